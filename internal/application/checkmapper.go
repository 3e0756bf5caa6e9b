package application

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// unknownWorkflowKey groups job requests that carry no workflow ID.
const unknownWorkflowKey = "unknown"

// LinkConfig parameterizes the links and label placed on mapped check runs.
// It never influences statuses, attempts or ordering.
type LinkConfig struct {
	UIBaseURL string
	DocsURL   string
	LabelName string
}

// MapCheckRuns converts the job requests of one change into check runs.
// The output has the same length and order as requests. Attempt numbers are
// computed per workflow group on every call; requests is not modified.
// A malformed record fails the whole batch and no runs are returned.
func MapCheckRuns(requests []model.JobRequest, change model.ChangeRef, links LinkConfig) ([]model.CheckRun, error) {
	attempts := assignAttempts(requests)

	runs := make([]model.CheckRun, 0, len(requests))
	for i, req := range requests {
		run, err := mapCheckRun(req, attempts[i], change, links)
		if err != nil {
			return nil, fmt.Errorf("map job request %s: %w", req.ID, err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func workflowKey(req model.JobRequest) string {
	if req.WorkflowID == "" {
		return unknownWorkflowKey
	}
	return req.WorkflowID
}

// assignAttempts returns the attempt number of every request, indexed like
// requests. Within a group of size n the request at group position i gets
// n - i, so the first position holds the highest attempt.
func assignAttempts(requests []model.JobRequest) []int {
	groups := make(map[string][]int)
	for i, req := range requests {
		key := workflowKey(req)
		groups[key] = append(groups[key], i)
	}

	attempts := make([]int, len(requests))
	for _, members := range groups {
		ordered := orderGroup(requests, members)
		n := len(ordered)
		for pos, idx := range ordered {
			attempts[idx] = n - pos
		}
	}

	return attempts
}

// orderGroup returns the group's input indexes newest-first. When every member
// reports CreatedAt the creation time decides; otherwise the CI service's
// order (newest-first) is trusted as received.
func orderGroup(requests []model.JobRequest, members []int) []int {
	for _, idx := range members {
		if requests[idx].CreatedAt.IsZero() {
			return members
		}
	}

	ordered := slices.Clone(members)
	slices.SortStableFunc(ordered, func(a, b int) int {
		return requests[b].CreatedAt.Compare(requests[a].CreatedAt)
	})
	return ordered
}

func mapCheckRun(req model.JobRequest, attempt int, change model.ChangeRef, links LinkConfig) (model.CheckRun, error) {
	status, known := lookupRunStatus(req.Status)
	if !known {
		slog.Warn("unrecognized job request status, using default",
			"job_request", req.ID,
			"status", string(req.Status),
			"default", string(defaultRunStatus),
		)
	}

	started, err := parseStartTime(req.StartTime)
	if err != nil {
		return model.CheckRun{}, err
	}

	run := model.CheckRun{
		Change:            change.ChangeNumber,
		Patchset:          change.Patchset,
		ExternalID:        req.ID,
		CheckName:         req.WorkflowName,
		CheckDescription:  fmt.Sprintf("Job request %s", req.ID),
		CheckLink:         workflowDocsLink(links.DocsURL, req.WorkflowID),
		StatusLink:        joinURL(links.UIBaseURL, "job-requests", req.ID),
		LabelName:         links.LabelName,
		Status:            status,
		Attempt:           attempt,
		StatusDescription: summarizeJobs(req.Jobs),
		Results:           make([]model.CheckResult, 0, len(req.Jobs)),
	}

	if started != nil {
		scheduled := *started
		run.ScheduledAt = &scheduled
		run.StartedAt = started
		if req.Duration != "" {
			finished := started.Add(ParseCompactDuration(req.Duration))
			run.FinishedAt = &finished
		}
	}

	for _, job := range req.Jobs {
		run.Results = append(run.Results, mapCheckResult(req, job, attempt, links))
	}

	return run, nil
}

// parseStartTime returns nil for an absent or zero-date start time.
func parseStartTime(raw string) (*time.Time, error) {
	t, err := model.ParseTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}

func mapCheckResult(req model.JobRequest, job model.Job, attempt int, links LinkConfig) model.CheckResult {
	outcome, known := lookupJobOutcome(job.Status)
	if !known {
		slog.Warn("unrecognized job status, using default",
			"job_request", req.ID,
			"job", job.ID,
			"status", string(job.Status),
		)
	}

	name := job.ID
	summary := job.Error
	if job.Test != nil {
		if job.Test.Name != "" {
			name = job.Test.Name
		}
		if summary == "" {
			summary = job.Test.Description
		}
	}

	return model.CheckResult{
		ExternalID: job.ID,
		Name:       name,
		Category:   outcome.Category,
		Summary:    summary,
		Attempt:    attempt,
		Tags:       []model.Tag{{Name: outcome.Tag, Color: outcome.Color}},
		Link:       joinURL(links.UIBaseURL, "job-requests", req.ID, "jobs", job.ID),
	}
}

// summarizeJobs renders "<total> jobs" followed by the non-zero counts of
// succeeded, failed, queued and running jobs, in that order.
func summarizeJobs(jobs []model.Job) string {
	counts := make(map[model.JobStatus]int, 4)
	for _, job := range jobs {
		counts[job.Status]++
	}

	var parts []string
	for _, s := range []model.JobStatus{model.JobSucceeded, model.JobFailed, model.JobQueued, model.JobRunning} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}

	summary := fmt.Sprintf("%d jobs", len(jobs))
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}
	return summary
}

func workflowDocsLink(docsURL, workflowID string) string {
	if workflowID == "" {
		return docsURL
	}
	return joinURL(docsURL, "workflows", workflowID)
}

// joinURL appends escaped path segments to base.
func joinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}
