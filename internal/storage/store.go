// Package storage records bridge sessions and link events in SQLite.
//
// The host keeps a small operational history: when sessions started
// and ended, and notable link events (device connects, dropped frames,
// shell exits). `picoterm doctor` and plain sqlite3 queries read it
// back when debugging a flaky link.
package storage

import (
	"log"
	"sync"

	// Using modernc.org/sqlite which is a pure-Go implementation that
	// doesn't require CGO, making cross-compilation to the Pi easier.
	"database/sql"

	_ "modernc.org/sqlite"

	apperrors "github.com/picoterm/host/internal/errors"
)

// currentSchemaVersion tracks the schema for future migrations.
const currentSchemaVersion = 1

// Store persists sessions and events. Safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the database at path and initializes the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	log.Printf("storage: opening database at %s", path)

	// Foreign keys for referential integrity; busy_timeout so a CLI
	// query against a live host's database doesn't fail immediately.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "ping database", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("storage: database ready (schema version %d)", currentSchemaVersion)
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			shell       TEXT NOT NULL,
			rows        INTEGER NOT NULL,
			cols        INTEGER NOT NULL,
			started_at  TEXT NOT NULL,
			ended_at    TEXT,
			exit_reason TEXT
		);

		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			at         TEXT NOT NULL,
			kind       TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageOpenFailed, "init schema", err)
	}
	return nil
}
