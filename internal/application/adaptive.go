package application

import (
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// ChangeTier is the polling frequency classification of a tracked change,
// derived from the state of its latest snapshot.
type ChangeTier int

const (
	// TierHot indicates at least one run is not completed. Polled every cycle.
	TierHot ChangeTier = iota
	// TierSettled indicates every run completed within settleWindow. Polled every 5th cycle.
	TierSettled
	// TierIdle indicates every run completed long ago. Polled every 15th cycle.
	TierIdle
)

// settleWindow is how long after the last finish a change stays settled.
const settleWindow = time.Hour

// Poll cycle strides per tier.
const (
	strideHot     = 1
	strideSettled = 5
	strideIdle    = 15
)

// String returns a human-readable name for the tier.
func (t ChangeTier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierSettled:
		return "settled"
	case TierIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// tierStride returns how many poll cycles separate two polls in tier.
func tierStride(tier ChangeTier) int {
	switch tier {
	case TierHot:
		return strideHot
	case TierSettled:
		return strideSettled
	case TierIdle:
		return strideIdle
	default:
		return strideHot
	}
}

// classifyRuns determines the tier of a change from its latest snapshot.
func classifyRuns(runs []model.CheckRun, now time.Time) ChangeTier {
	for _, run := range runs {
		if run.Status != model.RunStatusCompleted {
			return TierHot
		}
	}

	finished := latestFinish(runs)
	if !finished.IsZero() && now.Sub(finished) < settleWindow {
		return TierSettled
	}
	return TierIdle
}

// latestFinish returns the newest FinishedAt across runs, or the zero time.
func latestFinish(runs []model.CheckRun) time.Time {
	var newest time.Time
	for _, run := range runs {
		if run.FinishedAt != nil && run.FinishedAt.After(newest) {
			newest = *run.FinishedAt
		}
	}
	return newest
}

// changeSchedule tracks per-change adaptive polling state.
type changeSchedule struct {
	tier       ChangeTier
	lastCycle  int
	lastPolled time.Time
}

// due reports whether a change last polled per sched should be polled in cycle.
func (sched changeSchedule) due(cycle int) bool {
	return cycle-sched.lastCycle >= tierStride(sched.tier)
}

// ScheduleInfo is an exported view of a change's adaptive polling schedule,
// used for observability and testing.
type ScheduleInfo struct {
	Tier       ChangeTier
	LastPolled time.Time
}
