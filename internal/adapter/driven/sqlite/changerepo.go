package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChangeStore = (*ChangeRepo)(nil)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ChangeRepo is the SQLite implementation of the ChangeStore port interface.
type ChangeRepo struct {
	db  *DB
	now func() time.Time
}

// NewChangeRepo creates a new ChangeRepo backed by the given DB.
func NewChangeRepo(db *DB) *ChangeRepo {
	return &ChangeRepo{db: db, now: time.Now}
}

const changeColumns = `id, change_number, patchset, project, commit_hash, ci_status, last_seen_at, polled_at, added_at`

// Add starts tracking a change. Returns ErrChangeAlreadyTracked if the
// change revision is already tracked.
func (r *ChangeRepo) Add(ctx context.Context, ref model.ChangeRef) error {
	const query = `
		INSERT INTO tracked_changes (change_number, patchset, project, commit_hash, last_seen_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := formatTime(r.now())
	_, err := r.db.Writer.ExecContext(ctx, query, ref.ChangeNumber, ref.Patchset, ref.Project, ref.CommitHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add change %s: %w", ref.Key(), driven.ErrChangeAlreadyTracked)
		}
		return fmt.Errorf("add change %s: %w", ref.Key(), err)
	}

	return nil
}

// Touch tracks the change if needed and records seenAt. Non-empty project
// and commit hash values overwrite the stored ones.
func (r *ChangeRepo) Touch(ctx context.Context, ref model.ChangeRef, seenAt time.Time) error {
	const query = `
		INSERT INTO tracked_changes (change_number, patchset, project, commit_hash, last_seen_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (change_number, patchset) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			project      = CASE WHEN excluded.project != '' THEN excluded.project ELSE project END,
			commit_hash  = CASE WHEN excluded.commit_hash != '' THEN excluded.commit_hash ELSE commit_hash END
	`

	seen := formatTime(seenAt)
	_, err := r.db.Writer.ExecContext(ctx, query, ref.ChangeNumber, ref.Patchset, ref.Project, ref.CommitHash, seen, seen)
	if err != nil {
		return fmt.Errorf("touch change %s: %w", ref.Key(), err)
	}
	return nil
}

// MarkPolled records a successful poll.
func (r *ChangeRepo) MarkPolled(ctx context.Context, changeNumber, patchset string, status model.CIStatus, polledAt time.Time) error {
	const query = `UPDATE tracked_changes SET ci_status = ?, polled_at = ? WHERE change_number = ? AND patchset = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), formatTime(polledAt), changeNumber, patchset)
	if err != nil {
		return fmt.Errorf("mark change %s/%s polled: %w", changeNumber, patchset, err)
	}
	return requireAffected(result, fmt.Sprintf("mark change %s/%s polled", changeNumber, patchset))
}

// Remove stops tracking a change. Stored runs are removed by cascade.
func (r *ChangeRepo) Remove(ctx context.Context, changeNumber, patchset string) error {
	const query = `DELETE FROM tracked_changes WHERE change_number = ? AND patchset = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, changeNumber, patchset)
	if err != nil {
		return fmt.Errorf("remove change %s/%s: %w", changeNumber, patchset, err)
	}
	return requireAffected(result, fmt.Sprintf("remove change %s/%s", changeNumber, patchset))
}

// Get returns the tracked change, or nil, nil if it is not tracked.
func (r *ChangeRepo) Get(ctx context.Context, changeNumber, patchset string) (*model.TrackedChange, error) {
	query := `SELECT ` + changeColumns + ` FROM tracked_changes WHERE change_number = ? AND patchset = ?`

	change, err := scanTrackedChange(r.db.Reader.QueryRowContext(ctx, query, changeNumber, patchset))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get change %s/%s: %w", changeNumber, patchset, err)
	}
	return change, nil
}

// ListAll returns every tracked change, most recently seen first.
func (r *ChangeRepo) ListAll(ctx context.Context) ([]model.TrackedChange, error) {
	query := `SELECT ` + changeColumns + ` FROM tracked_changes ORDER BY last_seen_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	changes := []model.TrackedChange{}
	for rows.Next() {
		change, err := scanTrackedChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, *change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}

	return changes, nil
}

// DeleteSeenBefore removes changes last queried before cutoff.
func (r *ChangeRepo) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM tracked_changes WHERE last_seen_at < ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete changes seen before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return int(n), nil
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrChangeNotFound)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrackedChange(s scanner) (*model.TrackedChange, error) {
	var c model.TrackedChange
	var status, lastSeenAt, addedAt string
	var polledAt sql.NullString

	err := s.Scan(
		&c.ID, &c.Ref.ChangeNumber, &c.Ref.Patchset, &c.Ref.Project, &c.Ref.CommitHash,
		&status, &lastSeenAt, &polledAt, &addedAt,
	)
	if err != nil {
		return nil, err
	}

	c.CIStatus = model.CIStatus(status)

	if c.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	if c.AddedAt, err = parseTime(addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}
	if c.PolledAt, err = parseNullTime(polledAt); err != nil {
		return nil, fmt.Errorf("parse polled_at: %w", err)
	}

	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (time.Time, error) {
	if !s.Valid {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
