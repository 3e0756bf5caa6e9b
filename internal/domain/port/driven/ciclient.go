package driven

import (
	"context"
	"errors"
	"io"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// ErrMalformedPayload indicates the CI service answered with a body that does
// not match the expected shape.
var ErrMalformedPayload = errors.New("malformed CI service payload")

// UserMessager is implemented by errors that carry a message suitable for
// showing to a review-system user.
type UserMessager interface {
	UserMessage() string
}

// ErrorMessage returns the best-effort human-readable message for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// CIClient defines the driven port for reading job state from the CI service.
type CIClient interface {
	// FetchJobRequests returns every job request recorded for the change, in
	// the order the CI service reports them. A change with no requests yields
	// an empty slice and a nil error.
	FetchJobRequests(ctx context.Context, change model.ChangeRef) ([]model.JobRequest, error)
}

// Authenticator exchanges account credentials for a CI service API token.
type Authenticator interface {
	// Login exchanges an email and password for an API token.
	Login(ctx context.Context, email, password string) (string, error)
}

// Submitter defines the driven port for creating job requests on the CI service.
type Submitter interface {
	Authenticator
	// SetToken sets the API token used by subsequent calls.
	SetToken(token string)
	// GetWorkflow returns the workflow with the given ID.
	GetWorkflow(ctx context.Context, workflowID string) (*model.Workflow, error)
	// UploadBinary uploads a firmware image and returns its binary ID.
	UploadBinary(ctx context.Context, name, filename string, body io.Reader) (string, error)
	// CreateJobRequest creates a job request and returns its ID.
	CreateJobRequest(ctx context.Context, sub model.JobSubmission) (string, error)
}
