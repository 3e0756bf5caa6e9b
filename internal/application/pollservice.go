// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// ErrPollFailed is returned by a manual refresh when the CI service answered
// with an ERROR envelope. The previous snapshot is kept.
var ErrPollFailed = errors.New("poll failed")

// PollRecorder receives poll loop measurements.
type PollRecorder interface {
	PollCycle(polled, failed int, elapsed time.Duration)
	TrackedChanges(n int)
	ChangePolled(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) PollCycle(int, int, time.Duration) {}
func (nopRecorder) TrackedChanges(int)                {}
func (nopRecorder) ChangePolled(bool)                 {}

// PollConfig holds the timing parameters of the poll loop.
type PollConfig struct {
	Interval  time.Duration
	Retention time.Duration
	FetchRate float64 // CI fetches per second; <= 0 means unlimited.
}

// refreshRequest represents a manual refresh trigger. An empty key refreshes
// every tracked change.
type refreshRequest struct {
	changeNumber string
	patchset     string
	done         chan error
}

// PollService keeps the stored snapshots of tracked changes fresh. It polls
// the CI service through CheckService, replaces snapshots, mirrors status
// transitions and prunes changes the review system stopped asking about.
type PollService struct {
	checks    *CheckService
	changes   driven.ChangeStore
	runs      driven.RunStore
	publisher driven.StatusPublisher
	recorder  PollRecorder
	limiter   *rate.Limiter
	interval  time.Duration
	retention time.Duration
	refreshCh chan refreshRequest
	now       func() time.Time

	mu        sync.Mutex
	cycle     int
	schedules map[string]changeSchedule
}

// NewPollService creates a PollService. publisher and recorder may be nil.
func NewPollService(
	checks *CheckService,
	changes driven.ChangeStore,
	runs driven.RunStore,
	publisher driven.StatusPublisher,
	recorder PollRecorder,
	cfg PollConfig,
) *PollService {
	limit := rate.Inf
	if cfg.FetchRate > 0 {
		limit = rate.Limit(cfg.FetchRate)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &PollService{
		checks:    checks,
		changes:   changes,
		runs:      runs,
		publisher: publisher,
		recorder:  recorder,
		limiter:   rate.NewLimiter(limit, 1),
		interval:  cfg.Interval,
		retention: cfg.Retention,
		refreshCh: make(chan refreshRequest),
		now:       time.Now,
		schedules: make(map[string]changeSchedule),
	}
}

// Start begins the polling loop. It runs an immediate poll, then polls on the
// configured interval. It also listens for manual refresh requests. Start
// blocks until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	if err := s.pollAll(ctx, false); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			if err := s.pollAll(ctx, false); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RefreshChange polls a single tracked change immediately, bypassing its
// schedule. It blocks until the refresh completes or the context is canceled.
func (s *PollService) RefreshChange(ctx context.Context, changeNumber, patchset string) error {
	slog.Info("manual change refresh requested", "change", changeNumber, "patchset", patchset)
	return s.submitRefresh(ctx, refreshRequest{changeNumber: changeNumber, patchset: patchset})
}

// RefreshAll polls every tracked change immediately.
func (s *PollService) RefreshAll(ctx context.Context) error {
	return s.submitRefresh(ctx, refreshRequest{})
}

func (s *PollService) submitRefresh(ctx context.Context, req refreshRequest) error {
	req.done = make(chan error, 1)

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule returns the adaptive schedule of a change, if it has been polled.
func (s *PollService) Schedule(changeNumber, patchset string) (ScheduleInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[scheduleKey(changeNumber, patchset)]
	if !ok {
		return ScheduleInfo{}, false
	}
	return ScheduleInfo{Tier: sched.tier, LastPolled: sched.lastPolled}, true
}

// pollAll prunes expired changes and polls every tracked change that is due.
// When force is set every change is polled regardless of its tier.
func (s *PollService) pollAll(ctx context.Context, force bool) error {
	start := s.now()

	if s.retention > 0 {
		pruned, err := s.changes.DeleteSeenBefore(ctx, start.Add(-s.retention))
		if err != nil {
			slog.Error("prune expired changes failed", "error", err)
		} else if pruned > 0 {
			slog.Info("pruned expired changes", "count", pruned, "retention", s.retention)
		}
	}

	changes, err := s.changes.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tracked changes: %w", err)
	}
	s.recorder.TrackedChanges(len(changes))

	cycle := s.nextCycle(changes)

	var polled, pollErrors, skipped int
	for _, change := range changes {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !force && !s.isDue(change.Ref, cycle) {
			skipped++
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		polled++
		if err := s.pollChange(ctx, change, cycle); err != nil {
			slog.Error("change poll failed", "change", change.Ref.Key(), "error", err)
			pollErrors++
		}
	}

	elapsed := s.now().Sub(start)
	s.recorder.PollCycle(polled, pollErrors, elapsed)

	slog.Info("poll cycle complete",
		"cycle", cycle,
		"changes", len(changes),
		"polled", polled,
		"skipped", skipped,
		"errors", pollErrors,
		"duration", elapsed.Round(time.Millisecond),
	)

	return nil
}

// nextCycle advances the cycle counter and forgets schedules of changes that
// are no longer tracked.
func (s *PollService) nextCycle(changes []model.TrackedChange) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracked := make(map[string]bool, len(changes))
	for _, c := range changes {
		tracked[c.Ref.Key()] = true
	}
	for key := range s.schedules {
		if !tracked[key] {
			delete(s.schedules, key)
		}
	}

	s.cycle++
	return s.cycle
}

func (s *PollService) isDue(ref model.ChangeRef, cycle int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[ref.Key()]
	return !ok || sched.due(cycle)
}

// pollChange refreshes the snapshot of one change. An ERROR envelope leaves
// the stored snapshot untouched.
func (s *PollService) pollChange(ctx context.Context, change model.TrackedChange, cycle int) error {
	resp := s.checks.Runs(ctx, change.Ref)
	if resp.ResponseCode != model.ResponseOK {
		s.recorder.ChangePolled(false)
		return fmt.Errorf("%w: %s", ErrPollFailed, resp.ErrorMessage)
	}
	s.recorder.ChangePolled(true)

	previous, err := s.runs.GetRuns(ctx, change.ID)
	if err != nil {
		slog.Warn("load previous snapshot failed", "change", change.Ref.Key(), "error", err)
		previous = nil
	}

	if err := s.runs.ReplaceRuns(ctx, change.ID, resp.Runs); err != nil {
		return fmt.Errorf("replace runs: %w", err)
	}

	now := s.now()
	status := OverallStatus(resp.Runs)
	if err := s.changes.MarkPolled(ctx, change.Ref.ChangeNumber, change.Ref.Patchset, status, now); err != nil {
		return fmt.Errorf("mark polled: %w", err)
	}

	s.publishTransitions(ctx, change.Ref, previous, resp.Runs)

	tier := classifyRuns(resp.Runs, now)
	s.mu.Lock()
	s.schedules[change.Ref.Key()] = changeSchedule{tier: tier, lastCycle: cycle, lastPolled: now}
	s.mu.Unlock()

	slog.Debug("change polled",
		"change", change.Ref.Key(),
		"runs", len(resp.Runs),
		"ci_status", string(status),
		"tier", tier.String(),
	)

	return nil
}

// publishTransitions mirrors every run whose observable state differs from
// the previous snapshot. Failures are logged and do not fail the poll.
func (s *PollService) publishTransitions(ctx context.Context, ref model.ChangeRef, previous, current []model.CheckRun) {
	if s.publisher == nil || ref.CommitHash == "" {
		return
	}

	before := make(map[string]model.CheckRun, len(previous))
	for _, run := range previous {
		before[run.ExternalID] = run
	}

	for _, run := range LatestAttempts(current) {
		if prev, ok := before[run.ExternalID]; ok && !runChanged(prev, run) {
			continue
		}
		if err := s.publisher.PublishRunStatus(ctx, ref, run); err != nil {
			slog.Error("publish run status failed",
				"change", ref.Key(),
				"run", run.ExternalID,
				"error", err,
			)
		}
	}
}

func runChanged(prev, cur model.CheckRun) bool {
	return prev.Status != cur.Status ||
		prev.Attempt != cur.Attempt ||
		worstCategory(prev) != worstCategory(cur)
}

// handleRefresh dispatches a manual refresh request.
func (s *PollService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.changeNumber == "" {
		return s.pollAll(ctx, true)
	}

	change, err := s.changes.Get(ctx, req.changeNumber, req.patchset)
	if err != nil {
		return fmt.Errorf("get change: %w", err)
	}
	if change == nil {
		return driven.ErrChangeNotFound
	}

	s.mu.Lock()
	cycle := s.cycle
	s.mu.Unlock()

	return s.pollChange(ctx, *change, cycle)
}

func scheduleKey(changeNumber, patchset string) string {
	return model.ChangeRef{ChangeNumber: changeNumber, Patchset: patchset}.Key()
}
