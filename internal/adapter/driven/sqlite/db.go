// Package sqlite implements the tracked change, run snapshot and credential
// stores on SQLite.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	writerConns = 1
	readerConns = 4
)

// pragmas applied to every connection: WAL journaling, a 5s busy timeout,
// synchronous NORMAL, foreign keys and a 64MB page cache.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

// DB holds separate writer and reader pools over one database file. The
// writer pool has a single connection so SQLite never reports "database is
// locked" between our own writers; readers run concurrently under WAL.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the database at dbPath and applies pending migrations.
func NewDB(dbPath string) (*DB, error) {
	dsn := buildDSN(dbPath)

	writer, err := openPool(dsn, "writer", writerConns)
	if err != nil {
		return nil, err
	}

	reader, err := openPool(dsn, "reader", readerConns)
	if err != nil {
		writer.Close()
		return nil, err
	}

	db := &DB{Writer: writer, Reader: reader, path: dbPath}

	if err := RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func buildDSN(path string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func openPool(dsn, role string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", role, err)
	}
	pool.SetMaxOpenConns(maxConns)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", role, err)
	}
	return pool, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes both pools.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}
