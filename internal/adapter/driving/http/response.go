package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ChangeRequest identifies a change revision in checks queries and track requests.
type ChangeRequest struct {
	Change     string `json:"change" validate:"required,numeric"`
	Patchset   string `json:"patchset" validate:"required,numeric"`
	Project    string `json:"project" validate:"omitempty,max=255"`
	CommitHash string `json:"commitHash" validate:"omitempty,hexadecimal,min=7,max=64"`
}

func (r ChangeRequest) toRef() model.ChangeRef {
	return model.ChangeRef{
		ChangeNumber: r.Change,
		Patchset:     r.Patchset,
		Project:      r.Project,
		CommitHash:   r.CommitHash,
	}
}

// CredentialsRequest is the body of the CI credentials endpoint.
type CredentialsRequest struct {
	Token    string `json:"token" validate:"required_without_all=Email Password"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

// CheckResponse is the envelope returned to the review-system plugin.
type CheckResponse struct {
	ResponseCode string             `json:"responseCode"`
	Runs         []CheckRunResponse `json:"runs"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
}

// CheckRunResponse is the JSON representation of a check run.
type CheckRunResponse struct {
	Change             string                `json:"change"`
	Patchset           string                `json:"patchset"`
	Attempt            int                   `json:"attempt"`
	ExternalID         string                `json:"externalId"`
	CheckName          string                `json:"checkName"`
	CheckDescription   string                `json:"checkDescription"`
	CheckLink          string                `json:"checkLink"`
	Status             string                `json:"status"`
	StatusDescription  string                `json:"statusDescription"`
	StatusLink         string                `json:"statusLink"`
	LabelName          string                `json:"labelName"`
	ScheduledTimestamp *time.Time            `json:"scheduledTimestamp,omitempty"`
	StartedTimestamp   *time.Time            `json:"startedTimestamp,omitempty"`
	FinishedTimestamp  *time.Time            `json:"finishedTimestamp,omitempty"`
	Results            []CheckResultResponse `json:"results"`
}

// CheckResultResponse is the JSON representation of one job result.
type CheckResultResponse struct {
	ExternalID string         `json:"externalId"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	Summary    string         `json:"summary"`
	Attempt    int            `json:"attempt"`
	Tags       []TagResponse  `json:"tags"`
	Links      []LinkResponse `json:"links"`
}

// TagResponse is a colored chip on a result.
type TagResponse struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LinkResponse points from a result to the CI UI.
type LinkResponse struct {
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

// ChangeResponse is the JSON representation of a tracked change.
type ChangeResponse struct {
	Change     string `json:"change"`
	Patchset   string `json:"patchset"`
	Project    string `json:"project"`
	CommitHash string `json:"commitHash"`
	CIStatus   string `json:"ciStatus"`
	Tier       string `json:"tier,omitempty"`
	LastSeenAt string `json:"lastSeenAt"`
	PolledAt   string `json:"polledAt,omitempty"`
	AddedAt    string `json:"addedAt"`
}

// ChangeRunsResponse is a tracked change with its stored snapshot.
type ChangeRunsResponse struct {
	ChangeResponse
	Runs []CheckRunResponse `json:"runs"`
}

// PluginConfigResponse is read by the review-system plugin at load time.
type PluginConfigResponse struct {
	UIBaseURL           string `json:"uiBaseUrl"`
	DocsURL             string `json:"docsUrl"`
	LabelName           string `json:"labelName"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Time         string `json:"time"`
	CIConfigured bool   `json:"ciConfigured"`
}

func toCheckResponse(resp model.CheckResponse) CheckResponse {
	out := CheckResponse{
		ResponseCode: string(resp.ResponseCode),
		ErrorMessage: resp.ErrorMessage,
		Runs:         []CheckRunResponse{},
	}
	if resp.ResponseCode == model.ResponseOK {
		out.Runs = toCheckRunResponses(resp.Runs)
	}
	return out
}

func toCheckRunResponses(runs []model.CheckRun) []CheckRunResponse {
	out := make([]CheckRunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toCheckRunResponse(run))
	}
	return out
}

func toCheckRunResponse(run model.CheckRun) CheckRunResponse {
	results := make([]CheckResultResponse, 0, len(run.Results))
	for _, res := range run.Results {
		results = append(results, toCheckResultResponse(res))
	}

	return CheckRunResponse{
		Change:             run.Change,
		Patchset:           run.Patchset,
		Attempt:            run.Attempt,
		ExternalID:         run.ExternalID,
		CheckName:          run.CheckName,
		CheckDescription:   run.CheckDescription,
		CheckLink:          run.CheckLink,
		Status:             string(run.Status),
		StatusDescription:  run.StatusDescription,
		StatusLink:         run.StatusLink,
		LabelName:          run.LabelName,
		ScheduledTimestamp: run.ScheduledAt,
		StartedTimestamp:   run.StartedAt,
		FinishedTimestamp:  run.FinishedAt,
		Results:            results,
	}
}

func toCheckResultResponse(res model.CheckResult) CheckResultResponse {
	tags := make([]TagResponse, 0, len(res.Tags))
	for _, tag := range res.Tags {
		tags = append(tags, TagResponse{Name: tag.Name, Color: string(tag.Color)})
	}

	links := []LinkResponse{}
	if res.Link != "" {
		links = append(links, LinkResponse{URL: res.Link, Primary: true})
	}

	return CheckResultResponse{
		ExternalID: res.ExternalID,
		Name:       res.Name,
		Category:   string(res.Category),
		Summary:    res.Summary,
		Attempt:    res.Attempt,
		Tags:       tags,
		Links:      links,
	}
}

func toChangeResponse(c model.TrackedChange, schedule *application.ScheduleInfo) ChangeResponse {
	resp := ChangeResponse{
		Change:     c.Ref.ChangeNumber,
		Patchset:   c.Ref.Patchset,
		Project:    c.Ref.Project,
		CommitHash: c.Ref.CommitHash,
		CIStatus:   string(c.CIStatus),
		LastSeenAt: c.LastSeenAt.UTC().Format(time.RFC3339),
		AddedAt:    c.AddedAt.UTC().Format(time.RFC3339),
	}
	if !c.PolledAt.IsZero() {
		resp.PolledAt = c.PolledAt.UTC().Format(time.RFC3339)
	}
	if schedule != nil {
		resp.Tier = schedule.Tier.String()
	}
	return resp
}
