package storage

import (
	"time"

	apperrors "github.com/picoterm/host/internal/errors"
)

// Event kinds recorded against a session.
const (
	EventViewerConnected    = "viewer_connected"
	EventViewerDisconnected = "viewer_disconnected"
	EventFramesDropped      = "frames_dropped"
	EventShellExited        = "shell_exited"
	EventLinkError          = "link_error"
)

// Event is one notable occurrence during a session.
type Event struct {
	ID        int64
	SessionID string
	At        time.Time
	Kind      string
	Detail    string
}

// RecordEvent appends an event to a session's history.
func (s *Store) RecordEvent(sessionID, kind, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `INSERT INTO events (session_id, at, kind, detail) VALUES (?, ?, ?, ?)`
	_, err := s.db.Exec(query, sessionID,
		time.Now().Format(time.RFC3339Nano), kind, detail)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageWriteFailed, "record event", err)
	}
	return nil
}

// ListEvents returns a session's events in chronological order.
func (s *Store) ListEvents(sessionID string) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		SELECT id, session_id, at, kind, detail
		FROM events WHERE session_id = ? ORDER BY at, id
	`
	rows, err := s.db.Query(query, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "list events", err)
	}
	defer rows.Close()

	out := make([]*Event, 0)
	for rows.Next() {
		var (
			ev Event
			at string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &at, &ev.Kind, &ev.Detail); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "scan event", err)
		}
		if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "parse event time", err)
		}
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageWriteFailed, "iterate events", err)
	}
	return out, nil
}
