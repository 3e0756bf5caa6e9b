package ciservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// jobRequestQuery is the body of POST /job-requests/query.
type jobRequestQuery struct {
	ChangeNumber string `json:"change_number"`
	Patchset     string `json:"patchset"`
	Project      string `json:"project"`
	CommitHash   string `json:"commit_hash"`
}

type jobRequestList struct {
	Data json.RawMessage `json:"data"`
}

type jobRequestPayload struct {
	ID           flexString   `json:"id"`
	WorkflowID   flexString   `json:"workflow_id"`
	WorkflowName string       `json:"workflow_name"`
	Status       string       `json:"status"`
	StartTime    string       `json:"start_time"`
	Duration     string       `json:"duration"`
	CreatedAt    string       `json:"created_at"`
	Jobs         []jobPayload `json:"jobs"`
}

type jobPayload struct {
	ID     flexString   `json:"id"`
	Status string       `json:"status"`
	Error  string       `json:"error"`
	Test   *testPayload `json:"test"`
}

type testPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// FetchJobRequests returns the job requests recorded for change in the order
// the CI service reports them.
func (c *Client) FetchJobRequests(ctx context.Context, change model.ChangeRef) ([]model.JobRequest, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.endpoint("job-requests", "query"), jobRequestQuery{
		ChangeNumber: change.ChangeNumber,
		Patchset:     change.Patchset,
		Project:      change.Project,
		CommitHash:   change.CommitHash,
	})
	if err != nil {
		return nil, err
	}

	var list jobRequestList
	if err := c.do(c.plain, req, &list); err != nil {
		return nil, fmt.Errorf("querying job requests for %s: %w", change.Key(), err)
	}

	payloads, err := decodeData(list.Data)
	if err != nil {
		return nil, fmt.Errorf("querying job requests for %s: %w", change.Key(), err)
	}

	requests := make([]model.JobRequest, 0, len(payloads))
	for _, p := range payloads {
		requests = append(requests, mapJobRequest(p))
	}

	return requests, nil
}

// decodeData accepts a missing, null or array "data" member.
func decodeData(raw json.RawMessage) ([]jobRequestPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: data is not an array", driven.ErrMalformedPayload)
	}

	var payloads []jobRequestPayload
	if err := json.Unmarshal(trimmed, &payloads); err != nil {
		return nil, fmt.Errorf("%w: %v", driven.ErrMalformedPayload, err)
	}
	return payloads, nil
}

func mapJobRequest(p jobRequestPayload) model.JobRequest {
	jr := model.JobRequest{
		ID:           string(p.ID),
		WorkflowID:   string(p.WorkflowID),
		WorkflowName: p.WorkflowName,
		Status:       model.JobRequestStatus(p.Status),
		StartTime:    p.StartTime,
		Duration:     p.Duration,
		CreatedAt:    parseCreatedAt(p.CreatedAt),
		Jobs:         make([]model.Job, 0, len(p.Jobs)),
	}

	for _, j := range p.Jobs {
		job := model.Job{
			ID:     string(j.ID),
			Status: model.JobStatus(j.Status),
			Error:  j.Error,
		}
		if j.Test != nil {
			job.Test = &model.TestDescriptor{Name: j.Test.Name, Description: j.Test.Description}
		}
		jr.Jobs = append(jr.Jobs, job)
	}

	return jr
}

// parseCreatedAt returns the zero time for absent or unparseable values so
// that ordering falls back to the order received.
func parseCreatedAt(s string) time.Time {
	t, err := model.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
