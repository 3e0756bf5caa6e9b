package driven

import (
	"context"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// RunStore defines the driven port for check run snapshot persistence.
// Uses full replacement strategy: all runs for a change are replaced atomically.
type RunStore interface {
	// ReplaceRuns deletes the stored runs of the tracked change and inserts
	// the provided runs, with their results, in one transaction.
	ReplaceRuns(ctx context.Context, changeID int64, runs []model.CheckRun) error
	// GetRuns returns the stored runs in their original order.
	GetRuns(ctx context.Context, changeID int64) ([]model.CheckRun, error)
}
