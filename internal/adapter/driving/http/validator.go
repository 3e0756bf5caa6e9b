package httphandler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// requestValidator wraps go-playground/validator for request bodies.
type requestValidator struct {
	validator *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validator: validator.New()}
}

// Validate returns a message naming the first field that failed, or "".
func (v *requestValidator) Validate(i any) string {
	err := v.validator.Struct(i)
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("invalid %s: failed on '%s' validation", fe.Field(), fe.Tag())
	}
	return "invalid request body"
}
