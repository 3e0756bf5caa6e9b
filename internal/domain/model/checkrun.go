package model

import "time"

// CheckRun is the review-system view of one job request.
type CheckRun struct {
	Change            string
	Patchset          string
	ExternalID        string // Job request ID.
	CheckName         string
	CheckDescription  string
	CheckLink         string // Documentation link for the workflow.
	StatusLink        string // CI UI page for the job request.
	LabelName         string
	Status            RunStatus
	Attempt           int
	StatusDescription string
	Results           []CheckResult
	ScheduledAt       *time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
}

// CheckResult is the review-system view of one job.
type CheckResult struct {
	ExternalID string
	Name       string
	Category   Category
	Summary    string
	Attempt    int
	Tags       []Tag
	Link       string
}

// Tag is a colored label attached to a check result.
type Tag struct {
	Name  string
	Color TagColor
}

// CheckResponse is the envelope handed to the review system for one fetch.
// Runs is non-nil when ResponseCode is ResponseOK.
type CheckResponse struct {
	ResponseCode ResponseCode
	Runs         []CheckRun
	ErrorMessage string
}
