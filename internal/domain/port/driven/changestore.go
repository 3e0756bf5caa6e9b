package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// Sentinel errors returned by ChangeStore implementations.
var (
	// ErrChangeNotFound indicates the change revision is not tracked.
	ErrChangeNotFound = errors.New("change not found")

	// ErrChangeAlreadyTracked indicates the change revision is already tracked.
	ErrChangeAlreadyTracked = errors.New("change already tracked")
)

// ChangeStore defines the driven port for tracked change persistence.
type ChangeStore interface {
	// Add starts tracking a change. Returns ErrChangeAlreadyTracked on duplicates.
	Add(ctx context.Context, ref model.ChangeRef) error
	// Touch tracks the change if needed and records that it was just queried.
	Touch(ctx context.Context, ref model.ChangeRef, seenAt time.Time) error
	// MarkPolled records a successful poll and the resulting folded status.
	MarkPolled(ctx context.Context, changeNumber, patchset string, status model.CIStatus, polledAt time.Time) error
	// Remove stops tracking a change. Returns ErrChangeNotFound if absent.
	Remove(ctx context.Context, changeNumber, patchset string) error
	// Get returns the tracked change or nil, nil when absent.
	Get(ctx context.Context, changeNumber, patchset string) (*model.TrackedChange, error)
	// ListAll returns all tracked changes, most recently seen first.
	ListAll(ctx context.Context) ([]model.TrackedChange, error)
	// DeleteSeenBefore removes changes not queried since cutoff and returns how many.
	DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int, error)
}
