package model

import (
	"fmt"
	"time"
)

// ChangeRef identifies a review-system change revision and the commit under test.
type ChangeRef struct {
	ChangeNumber string
	Patchset     string
	Project      string
	CommitHash   string
}

// Key returns the "<change>/<patchset>" identifier used for storage and routes.
func (c ChangeRef) Key() string {
	return fmt.Sprintf("%s/%s", c.ChangeNumber, c.Patchset)
}

// TrackedChange is a change revision the background poller keeps refreshed.
type TrackedChange struct {
	ID         int64
	Ref        ChangeRef
	CIStatus   CIStatus
	LastSeenAt time.Time // Last time the review system queried this change.
	PolledAt   time.Time // Zero until the first successful poll.
	AddedAt    time.Time
}
