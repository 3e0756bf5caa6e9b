package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// ReplaceRuns atomically replaces the snapshot of a tracked change.
// It deletes existing runs and inserts the provided runs in a single transaction.
func (r *RunRepo) ReplaceRuns(ctx context.Context, changeID int64, runs []model.CheckRun) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, `DELETE FROM check_runs WHERE change_id = ?`, changeID); err != nil {
		return fmt.Errorf("delete runs for change %d: %w", changeID, err)
	}

	const insertRun = `
		INSERT INTO check_runs (
			change_id, position, external_id, check_name, check_description, check_link,
			status_link, label_name, status, attempt, status_description,
			scheduled_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	const insertResult = `
		INSERT INTO check_results (run_id, position, external_id, name, category, summary, attempt, tags, link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, run := range runs {
		res, err := tx.ExecContext(ctx, insertRun,
			changeID, i, run.ExternalID, run.CheckName, run.CheckDescription, run.CheckLink,
			run.StatusLink, run.LabelName, string(run.Status), run.Attempt, run.StatusDescription,
			nullTime(run.ScheduledAt), nullTime(run.StartedAt), nullTime(run.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert run %s for change %d: %w", run.ExternalID, changeID, err)
		}

		runID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("run id for %s: %w", run.ExternalID, err)
		}

		for j, result := range run.Results {
			tags, err := json.Marshal(result.Tags)
			if err != nil {
				return fmt.Errorf("encode tags for result %s: %w", result.ExternalID, err)
			}
			if _, err := tx.ExecContext(ctx, insertResult,
				runID, j, result.ExternalID, result.Name, string(result.Category),
				result.Summary, result.Attempt, string(tags), result.Link,
			); err != nil {
				return fmt.Errorf("insert result %s for run %s: %w", result.ExternalID, run.ExternalID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit runs for change %d: %w", changeID, err)
	}

	return nil
}

// GetRuns returns the stored runs of a change in their original order.
func (r *RunRepo) GetRuns(ctx context.Context, changeID int64) ([]model.CheckRun, error) {
	const runQuery = `
		SELECT run.id, c.change_number, c.patchset, run.external_id, run.check_name,
		       run.check_description, run.check_link, run.status_link, run.label_name, run.status,
		       run.attempt, run.status_description, run.scheduled_at, run.started_at, run.finished_at
		FROM check_runs run
		JOIN tracked_changes c ON c.id = run.change_id
		WHERE run.change_id = ?
		ORDER BY run.position
	`

	rows, err := r.db.Reader.QueryContext(ctx, runQuery, changeID)
	if err != nil {
		return nil, fmt.Errorf("query runs for change %d: %w", changeID, err)
	}
	defer rows.Close()

	runs := []model.CheckRun{}
	indexByID := make(map[int64]int)
	for rows.Next() {
		runID, run, err := scanCheckRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		indexByID[runID] = len(runs)
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if len(runs) == 0 {
		return runs, nil
	}

	if err := r.attachResults(ctx, changeID, runs, indexByID); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *RunRepo) attachResults(ctx context.Context, changeID int64, runs []model.CheckRun, indexByID map[int64]int) error {
	const resultQuery = `
		SELECT res.run_id, res.external_id, res.name, res.category, res.summary, res.attempt, res.tags, res.link
		FROM check_results res
		JOIN check_runs run ON run.id = res.run_id
		WHERE run.change_id = ?
		ORDER BY res.run_id, res.position
	`

	rows, err := r.db.Reader.QueryContext(ctx, resultQuery, changeID)
	if err != nil {
		return fmt.Errorf("query results for change %d: %w", changeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID int64
		var res model.CheckResult
		var category, tags string
		if err := rows.Scan(&runID, &res.ExternalID, &res.Name, &category, &res.Summary, &res.Attempt, &tags, &res.Link); err != nil {
			return fmt.Errorf("scan result: %w", err)
		}
		res.Category = model.Category(category)
		if err := json.Unmarshal([]byte(tags), &res.Tags); err != nil {
			return fmt.Errorf("decode tags for result %s: %w", res.ExternalID, err)
		}

		i, ok := indexByID[runID]
		if !ok {
			continue
		}
		runs[i].Results = append(runs[i].Results, res)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate results: %w", err)
	}
	return nil
}

func scanCheckRun(s scanner) (int64, *model.CheckRun, error) {
	var id int64
	var run model.CheckRun
	var status string
	var scheduledAt, startedAt, finishedAt sql.NullString

	err := s.Scan(
		&id, &run.Change, &run.Patchset, &run.ExternalID, &run.CheckName, &run.CheckDescription, &run.CheckLink, &run.StatusLink,
		&run.LabelName, &status, &run.Attempt, &run.StatusDescription, &scheduledAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return 0, nil, err
	}

	run.Status = model.RunStatus(status)
	run.Results = []model.CheckResult{}

	for _, col := range []struct {
		name string
		src  sql.NullString
		dst  **time.Time
	}{
		{"scheduled_at", scheduledAt, &run.ScheduledAt},
		{"started_at", startedAt, &run.StartedAt},
		{"finished_at", finishedAt, &run.FinishedAt},
	} {
		if !col.src.Valid {
			continue
		}
		t, err := parseTime(col.src.String)
		if err != nil {
			return 0, nil, fmt.Errorf("parse %s: %w", col.name, err)
		}
		*col.dst = &t
	}

	return id, &run, nil
}
