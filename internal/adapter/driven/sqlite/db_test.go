package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwchecks.db")

	first, err := NewDB(path)
	require.NoError(t, err)
	trackChange(t, NewChangeRepo(first), "100", "1")
	require.NoError(t, first.Close())

	second, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	changes, err := NewChangeRepo(second).ListAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.Equal(t, path, second.Path())
}

func TestNewDB_AppliesPragmas(t *testing.T) {
	db := setupTestDB(t)

	var mode string
	require.NoError(t, db.Reader.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.Writer.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/data/fwchecks.db")

	assert.Equal(t, "file:/data/fwchecks.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)", dsn)
}
