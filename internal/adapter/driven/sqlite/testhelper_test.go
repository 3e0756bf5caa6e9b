package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// setupTestDB opens a migrated database in a per-test temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "fwchecks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// fixedClock returns a clock that advances by one second per call.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func trackChange(t *testing.T, repo *ChangeRepo, number, patchset string) model.TrackedChange {
	t.Helper()

	ref := model.ChangeRef{ChangeNumber: number, Patchset: patchset, Project: "firmware/boot", CommitHash: "abc123"}
	require.NoError(t, repo.Add(t.Context(), ref))

	change, err := repo.Get(t.Context(), number, patchset)
	require.NoError(t, err)
	require.NotNil(t, change)
	return *change
}
