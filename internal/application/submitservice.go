package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// ErrNoCredentials is returned when neither a token nor an email and
// password were supplied.
var ErrNoCredentials = errors.New("either a token or an email and password are required")

// ErrUnsupportedLocation is returned when no binary source handles a location.
var ErrUnsupportedLocation = errors.New("unsupported binary location")

// ValidationError reports the first field of a submission that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Auth carries CI service credentials. Token wins over Email and Password.
type Auth struct {
	Token    string
	Email    string
	Password string
}

// SubmitResult describes a created job request.
type SubmitResult struct {
	JobRequestID string
	Workflow     model.Workflow
	BinaryIDs    map[string]string
}

// SubmitService uploads firmware binaries and creates a job request for them.
type SubmitService struct {
	submitter driven.Submitter
	sources   []driven.BinarySource
	validate  *validator.Validate
}

// NewSubmitService creates a SubmitService. sources are tried in order for
// each binary location.
func NewSubmitService(submitter driven.Submitter, sources ...driven.BinarySource) *SubmitService {
	return &SubmitService{
		submitter: submitter,
		sources:   sources,
		validate:  validator.New(),
	}
}

// Validate checks the submission's fields.
func (s *SubmitService) Validate(sub model.Submission) error {
	if err := s.validate.Struct(sub); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return &ValidationError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
			}
		}
		return fmt.Errorf("validate submission: %w", err)
	}

	seen := make(map[string]bool, len(sub.Binaries))
	for _, b := range sub.Binaries {
		if seen[b.Name] {
			return &ValidationError{Field: "Binaries", Message: fmt.Sprintf("duplicate binary name %q", b.Name)}
		}
		seen[b.Name] = true
	}
	return nil
}

// Submit validates sub, authenticates, checks the workflow exists, uploads
// every binary and creates the job request. It stops at the first failure.
func (s *SubmitService) Submit(ctx context.Context, sub model.Submission, auth Auth) (*SubmitResult, error) {
	if err := s.Validate(sub); err != nil {
		return nil, err
	}

	if err := s.authenticate(ctx, auth); err != nil {
		return nil, err
	}

	workflow, err := s.submitter.GetWorkflow(ctx, sub.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("look up workflow %s: %w", sub.WorkflowID, err)
	}
	slog.Info("workflow found", "workflow", workflow.ID, "name", workflow.Name)

	binaryIDs := make(map[string]string, len(sub.Binaries))
	for _, spec := range sub.Binaries {
		id, err := s.upload(ctx, spec)
		if err != nil {
			return nil, err
		}
		binaryIDs[spec.Name] = id
	}

	jobID, err := s.submitter.CreateJobRequest(ctx, model.JobSubmission{
		WorkflowID:   sub.WorkflowID,
		CommitHash:   sub.CommitHash,
		BinaryIDs:    binaryIDs,
		ChangeNumber: sub.ChangeNumber,
		Patchset:     sub.Patchset,
		Project:      sub.Project,
		Branch:       sub.Branch,
		Comment:      sub.Comment,
	})
	if err != nil {
		return nil, fmt.Errorf("create job request: %w", err)
	}

	slog.Info("job request created", "job_request", jobID, "workflow", sub.WorkflowID, "commit", sub.CommitHash)

	return &SubmitResult{
		JobRequestID: jobID,
		Workflow:     *workflow,
		BinaryIDs:    binaryIDs,
	}, nil
}

func (s *SubmitService) authenticate(ctx context.Context, auth Auth) error {
	token := auth.Token
	if token == "" {
		if auth.Email == "" || auth.Password == "" {
			return ErrNoCredentials
		}
		var err error
		token, err = s.submitter.Login(ctx, auth.Email, auth.Password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}
	s.submitter.SetToken(token)
	return nil
}

func (s *SubmitService) upload(ctx context.Context, spec model.BinarySpec) (string, error) {
	source := s.sourceFor(spec.Location)
	if source == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLocation, spec.Location)
	}

	bin, err := source.Open(ctx, spec.Location)
	if err != nil {
		return "", fmt.Errorf("open binary %s: %w", spec.Name, err)
	}
	defer bin.Body.Close()

	id, err := s.submitter.UploadBinary(ctx, spec.Name, bin.Filename, bin.Body)
	if err != nil {
		return "", fmt.Errorf("upload binary %s: %w", spec.Name, err)
	}

	slog.Info("binary uploaded", "name", spec.Name, "file", bin.Filename, "size", bin.Size, "binary_id", id)
	return id, nil
}

func (s *SubmitService) sourceFor(location string) driven.BinarySource {
	for _, src := range s.sources {
		if src.Supports(location) {
			return src
		}
	}
	return nil
}
