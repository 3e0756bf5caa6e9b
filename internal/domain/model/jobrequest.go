package model

import "time"

// UnsetStartTime is the zero-date sentinel the CI service sends for requests
// that have not started.
const UnsetStartTime = "0001-01-01T00:00:00Z"

// JobRequest is one invocation of a workflow against a commit, as returned by
// the CI service.
type JobRequest struct {
	ID           string
	WorkflowID   string // Empty when the CI service omits it.
	WorkflowName string
	Status       JobRequestStatus
	StartTime    string    // ISO-8601, empty, or UnsetStartTime.
	Duration     string    // Compact form such as "10m32s"; may be empty.
	CreatedAt    time.Time // Zero when the CI service does not report it.
	Jobs         []Job
}

// Job is a single test execution inside a job request.
type Job struct {
	ID     string
	Status JobStatus
	Error  string
	Test   *TestDescriptor
}

// TestDescriptor names the test a job executes.
type TestDescriptor struct {
	Name        string
	Description string
}
