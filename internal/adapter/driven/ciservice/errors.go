package ciservice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// HTTPError is returned for any non-2xx answer from the CI service.
type HTTPError struct {
	StatusCode int
	// Message is the service's JSON "error" field, or "HTTP <status>" when
	// the body carries none.
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("CI service returned %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the message to show review-system users.
func (e *HTTPError) UserMessage() string {
	return e.Message
}

func newHTTPError(resp *http.Response) *HTTPError {
	herr := &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return herr
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		herr.Message = envelope.Error
	}
	return herr
}
