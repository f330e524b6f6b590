package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.StartSession("/bin/bash", 24, 80)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if id == "" {
		t.Fatalf("empty session id")
	}

	sess, err := s.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess == nil {
		t.Fatalf("session not found")
	}
	if sess.Shell != "/bin/bash" || sess.Rows != 24 || sess.Cols != 80 {
		t.Fatalf("session = %+v", sess)
	}
	if !sess.EndedAt.IsZero() || sess.ExitReason != "" {
		t.Fatalf("new session already ended: %+v", sess)
	}

	if err := s.EndSession(id, "shell exited"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	sess, err = s.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.EndedAt.IsZero() || sess.ExitReason != "shell exited" {
		t.Fatalf("ended session = %+v", sess)
	}
}

func TestGetMissingSession(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil for missing session")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.StartSession("/bin/sh", 24, 80)
		if err != nil {
			t.Fatalf("StartSession: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond) // distinct started_at
	}

	sessions, err := s.ListSessions(0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions", len(sessions))
	}
	if sessions[0].ID != ids[2] || sessions[2].ID != ids[0] {
		t.Fatalf("not newest first: %v", []string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	}
}

func TestEventsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	id, err := s.StartSession("/bin/sh", 24, 80)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if err := s.RecordEvent(id, EventViewerConnected, "192.168.1.20"); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := s.RecordEvent(id, EventFramesDropped, "3 frames"); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	events, err := s.ListEvents(id)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Kind != EventViewerConnected || events[0].Detail != "192.168.1.20" {
		t.Fatalf("event 0 = %+v", events[0])
	}
	if events[1].Kind != EventFramesDropped {
		t.Fatalf("event 1 = %+v", events[1])
	}
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picoterm.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := s.StartSession("/bin/sh", 24, 80)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s.Close()

	// Reopen and verify persistence.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	sess, err := s2.GetSession(id)
	if err != nil || sess == nil {
		t.Fatalf("session did not survive reopen: %v %v", sess, err)
	}
}
