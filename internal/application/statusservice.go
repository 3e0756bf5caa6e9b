package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// ChangeSummary is the stored view of a tracked change: its last snapshot of
// check runs and the folded CI status.
type ChangeSummary struct {
	Change   model.TrackedChange
	Runs     []model.CheckRun
	CIStatus model.CIStatus
}

// StatusService reads stored snapshots for the API and the dashboard.
// It depends only on port interfaces.
type StatusService struct {
	changeStore driven.ChangeStore
	runStore    driven.RunStore
}

// NewStatusService creates a StatusService with the required dependencies.
func NewStatusService(changeStore driven.ChangeStore, runStore driven.RunStore) *StatusService {
	return &StatusService{
		changeStore: changeStore,
		runStore:    runStore,
	}
}

// GetChangeSummary loads the snapshot of a tracked change. It returns
// driven.ErrChangeNotFound when the change is not tracked.
func (s *StatusService) GetChangeSummary(ctx context.Context, changeNumber, patchset string) (*ChangeSummary, error) {
	change, err := s.changeStore.Get(ctx, changeNumber, patchset)
	if err != nil {
		return nil, fmt.Errorf("get change %s/%s: %w", changeNumber, patchset, err)
	}
	if change == nil {
		return nil, driven.ErrChangeNotFound
	}

	runs, err := s.runStore.GetRuns(ctx, change.ID)
	if err != nil {
		return nil, fmt.Errorf("get runs for change %s/%s: %w", changeNumber, patchset, err)
	}

	return &ChangeSummary{
		Change:   *change,
		Runs:     runs,
		CIStatus: OverallStatus(runs),
	}, nil
}

// OverallStatus folds check runs into a single CIStatus, considering only the
// latest attempt of each check. Priority: failing > pending > passing > unknown.
func OverallStatus(runs []model.CheckRun) model.CIStatus {
	latest := LatestAttempts(runs)
	if len(latest) == 0 {
		return model.CIStatusUnknown
	}

	var hasFailing, hasPending bool
	for _, run := range latest {
		switch {
		case run.Status != model.RunStatusCompleted:
			hasPending = true
		case worstCategory(run) == model.CategoryError:
			hasFailing = true
		}
	}

	if hasFailing {
		return model.CIStatusFailing
	}
	if hasPending {
		return model.CIStatusPending
	}
	return model.CIStatusPassing
}

// LatestAttempts returns, for each check name, the run with the highest
// attempt, in order of first appearance.
func LatestAttempts(runs []model.CheckRun) []model.CheckRun {
	index := make(map[string]int, len(runs))
	var latest []model.CheckRun
	for _, run := range runs {
		i, ok := index[run.CheckName]
		if !ok {
			index[run.CheckName] = len(latest)
			latest = append(latest, run)
			continue
		}
		if run.Attempt > latest[i].Attempt {
			latest[i] = run
		}
	}
	return latest
}

// worstCategory returns the most severe result category of run, or
// CategorySuccess when it has no results.
func worstCategory(run model.CheckRun) model.Category {
	worst := model.CategorySuccess
	for _, res := range run.Results {
		if categoryRank[res.Category] > categoryRank[worst] {
			worst = res.Category
		}
	}
	return worst
}

var categoryRank = map[model.Category]int{
	model.CategorySuccess: 0,
	model.CategoryInfo:    1,
	model.CategoryWarning: 2,
	model.CategoryError:   3,
}
