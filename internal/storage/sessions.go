package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/picoterm/host/internal/errors"
)

// maxSessions is the number of sessions retained. Older sessions, and
// their events via the foreign key cascade, are deleted past this.
const maxSessions = 50

// Session is one run of the bridge.
type Session struct {
	ID         string
	Shell      string
	Rows       int
	Cols       int
	StartedAt  time.Time
	EndedAt    time.Time // zero while running
	ExitReason string    // empty while running
}

// StartSession records a new session and returns its generated ID.
func (s *Store) StartSession(shell string, rows, cols int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	const query = `
		INSERT INTO sessions (id, shell, rows, cols, started_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, id, shell, rows, cols,
		time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageWriteFailed, "start session", err)
	}

	// Retention: drop everything beyond the newest maxSessions.
	const cleanup = `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?
		)
	`
	if _, err := s.db.Exec(cleanup, maxSessions); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorageWriteFailed, "session retention", err)
	}
	return id, nil
}

// EndSession marks a session finished with the given reason.
func (s *Store) EndSession(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `UPDATE sessions SET ended_at = ?, exit_reason = ? WHERE id = ?`
	_, err := s.db.Exec(query, time.Now().Format(time.RFC3339Nano), reason, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageWriteFailed, "end session", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil, nil when absent.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		SELECT id, shell, rows, cols, started_at, ended_at, exit_reason
		FROM sessions WHERE id = ?
	`
	sess, err := scanSession(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "get session", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest first, up to limit (0 means the
// retention limit).
func (s *Store) ListSessions(limit int) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = maxSessions
	}
	const query = `
		SELECT id, shell, rows, cols, started_at, ended_at, exit_reason
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "list sessions", err)
	}
	defer rows.Close()

	out := make([]*Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "scan session", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "iterate sessions", err)
	}
	return out, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess       Session
		startedAt  string
		endedAt    sql.NullString
		exitReason sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.Shell, &sess.Rows, &sess.Cols,
		&startedAt, &endedAt, &exitReason)
	if err != nil {
		return nil, err
	}

	if sess.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		if sess.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt.String); err != nil {
			return nil, err
		}
	}
	if exitReason.Valid {
		sess.ExitReason = exitReason.String
	}
	return &sess, nil
}
