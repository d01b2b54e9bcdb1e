// Package store implements the blob store adapter (C4) and the storage
// query facade (C8): SQLite-backed persistence for voicemail recordings
// and the contacts presentation table, with every database call routed
// through a blocking worker pool so the SIP/RTP event loop never blocks
// on disk I/O directly.
//
// Persistence follows the pattern the pack uses for its own SQLite store
// (flowpbx's internal/database/database.go): modernc.org/sqlite through
// database/sql, WAL journal mode, a single writer connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS voicemail (
	id         INTEGER PRIMARY KEY,
	event_time TEXT DEFAULT current_timestamp,
	caller     TEXT,
	time       INTEGER,
	data       BLOB
);
CREATE TABLE IF NOT EXISTS contacts (
	caller TEXT PRIMARY KEY,
	name   TEXT
);
`

// Store is the voicemail database, guarded by a bounded blocking worker
// pool so callers on the signalling/media goroutines never touch *sql.DB
// directly.
type Store struct {
	db   *sql.DB
	pool *WorkerPool
}

// Open creates or opens the SQLite database under dataDir and ensures the
// voicemail/contacts schema exists. workers bounds the concurrency of the
// blocking pool queries run on.
func Open(dataDir string, workers int) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("store: creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "voicemail.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection; concurrent
	// callers serialize through the worker pool and through database/sql's
	// own connection wait queue.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}

	slog.Info("store: database opened", "path", dbPath)

	return &Store{db: db, pool: NewWorkerPool(workers)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// do runs fn on the blocking worker pool, returning ctx.Err() if ctx is
// done before fn ever gets a chance to run.
func (s *Store) do(ctx context.Context, fn func() error) error {
	return s.pool.Do(ctx, fn)
}
