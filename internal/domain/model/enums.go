package model

// JobRequestStatus is the CI service's lifecycle state for a job request.
// Values outside the known set are tolerated and handled by fallback entries.
type JobRequestStatus string

const (
	JobRequestQueued    JobRequestStatus = "queued"
	JobRequestPreparing JobRequestStatus = "preparing"
	JobRequestRunning   JobRequestStatus = "running"
	JobRequestSucceeded JobRequestStatus = "succeeded"
	JobRequestFailed    JobRequestStatus = "failed"
	JobRequestAborted   JobRequestStatus = "aborted"
)

// JobStatus is the CI service's state for a single job inside a request.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPreparing JobStatus = "preparing"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobAborted   JobStatus = "aborted"
)

// RunStatus is the review system's status vocabulary for a check run.
type RunStatus string

const (
	RunStatusRunnable  RunStatus = "RUNNABLE"
	RunStatusScheduled RunStatus = "SCHEDULED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
)

// Category classifies a check result for the review system.
type Category string

const (
	CategorySuccess Category = "SUCCESS"
	CategoryInfo    Category = "INFO"
	CategoryWarning Category = "WARNING"
	CategoryError   Category = "ERROR"
)

// TagColor is the color of a result tag chip.
type TagColor string

const (
	TagColorGray   TagColor = "GRAY"
	TagColorYellow TagColor = "YELLOW"
	TagColorPink   TagColor = "PINK"
	TagColorPurple TagColor = "PURPLE"
	TagColorCyan   TagColor = "CYAN"
	TagColorBrown  TagColor = "BROWN"
)

// ResponseCode is the top-level outcome of a checks fetch.
type ResponseCode string

const (
	ResponseOK    ResponseCode = "OK"
	ResponseError ResponseCode = "ERROR"
)

// CIStatus is the folded status of all runs for a change.
type CIStatus string

const (
	CIStatusPassing CIStatus = "passing"
	CIStatusFailing CIStatus = "failing"
	CIStatusPending CIStatus = "pending"
	CIStatusUnknown CIStatus = "unknown"
)
