package application

import "github.com/ericfisherdev/fwchecks/internal/domain/model"

// defaultRunStatus is used for workflow statuses missing from runStatusTable.
const defaultRunStatus = model.RunStatusRunnable

// runStatusTable translates request-level CI states to review-system run states.
var runStatusTable = map[model.JobRequestStatus]model.RunStatus{
	model.JobRequestQueued:    model.RunStatusScheduled,
	model.JobRequestPreparing: model.RunStatusScheduled,
	model.JobRequestRunning:   model.RunStatusRunning,
	model.JobRequestSucceeded: model.RunStatusCompleted,
	model.JobRequestFailed:    model.RunStatusCompleted,
	model.JobRequestAborted:   model.RunStatusCompleted,
}

// jobOutcome is what a job-level state renders as.
type jobOutcome struct {
	Tag      string
	Category model.Category
	Color    model.TagColor
}

// defaultJobOutcome is used for job statuses missing from jobOutcomeTable.
var defaultJobOutcome = jobOutcomeTable[model.JobQueued]

var jobOutcomeTable = map[model.JobStatus]jobOutcome{
	model.JobQueued:    {Tag: "queued", Category: model.CategoryInfo, Color: model.TagColorGray},
	model.JobPreparing: {Tag: "preparing", Category: model.CategoryInfo, Color: model.TagColorYellow},
	model.JobRunning:   {Tag: "running", Category: model.CategoryInfo, Color: model.TagColorPurple},
	model.JobSucceeded: {Tag: "succeeded", Category: model.CategorySuccess, Color: model.TagColorCyan},
	model.JobFailed:    {Tag: "failed", Category: model.CategoryError, Color: model.TagColorPink},
	model.JobAborted:   {Tag: "aborted", Category: model.CategoryWarning, Color: model.TagColorBrown},
}

// lookupRunStatus returns the run status for s and whether s was recognized.
func lookupRunStatus(s model.JobRequestStatus) (model.RunStatus, bool) {
	if rs, ok := runStatusTable[s]; ok {
		return rs, true
	}
	return defaultRunStatus, false
}

// lookupJobOutcome returns the outcome for s and whether s was recognized.
func lookupJobOutcome(s model.JobStatus) (jobOutcome, bool) {
	if o, ok := jobOutcomeTable[s]; ok {
		return o, true
	}
	return defaultJobOutcome, false
}
