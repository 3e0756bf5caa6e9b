package ciservice

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type workflowResponse struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

type idResponse struct {
	ID flexString `json:"id"`
}

type createJobRequest struct {
	WorkflowID   string            `json:"workflow_id"`
	CommitHash   string            `json:"commit_hash"`
	Binaries     map[string]string `json:"binaries"`
	ChangeNumber string            `json:"change_number,omitempty"`
	Patchset     string            `json:"patchset,omitempty"`
	Project      string            `json:"project,omitempty"`
	Branch       string            `json:"branch,omitempty"`
	Comment      string            `json:"comment,omitempty"`
}

// Login exchanges an email and password for an API token. The token is not
// stored; callers pass it to SetToken.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("auth", "login"), loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	var out tokenResponse
	if err := c.do(c.plain, req, &out); err != nil {
		return "", fmt.Errorf("logging in as %s: %w", email, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("logging in as %s: response carried no token", email)
	}
	return out.Token, nil
}

// GetWorkflow returns the workflow with the given ID.
func (c *Client) GetWorkflow(ctx context.Context, workflowID string) (*model.Workflow, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, c.endpoint("workflows", workflowID), nil)
	if err != nil {
		return nil, err
	}

	var out workflowResponse
	if err := c.do(c.cached, req, &out); err != nil {
		return nil, fmt.Errorf("getting workflow %s: %w", workflowID, err)
	}

	return &model.Workflow{
		ID:          string(out.ID),
		Name:        out.Name,
		Description: out.Description,
	}, nil
}

// UploadBinary streams body as a single multipart request and returns the
// binary ID assigned by the CI service.
func (c *Client) UploadBinary(ctx context.Context, name, filename string, body io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeBinaryForm(mw, name, filename, body)
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("binaries"), pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out idResponse
	if err := c.do(c.plain, req, &out); err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("uploading binary %s: %w", name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("uploading binary %s: response carried no id", name)
	}
	return string(out.ID), nil
}

func writeBinaryForm(mw *multipart.Writer, name, filename string, body io.Reader) error {
	if err := mw.WriteField("name", name); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

// CreateJobRequest creates a job request. Each call carries a fresh
// Idempotency-Key.
func (c *Client) CreateJobRequest(ctx context.Context, sub model.JobSubmission) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("job-requests"), createJobRequest{
		WorkflowID:   sub.WorkflowID,
		CommitHash:   sub.CommitHash,
		Binaries:     sub.BinaryIDs,
		ChangeNumber: sub.ChangeNumber,
		Patchset:     sub.Patchset,
		Project:      sub.Project,
		Branch:       sub.Branch,
		Comment:      sub.Comment,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Idempotency-Key", uuid.NewString())

	var out idResponse
	if err := c.do(c.plain, req, &out); err != nil {
		return "", fmt.Errorf("creating job request for workflow %s: %w", sub.WorkflowID, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("creating job request for workflow %s: response carried no id", sub.WorkflowID)
	}
	return string(out.ID), nil
}
