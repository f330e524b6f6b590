// This file implements the `picoterm sessions` command: inspect the
// session history the host records while running.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/picoterm/host/internal/config"
	"github.com/picoterm/host/internal/storage"
)

func runSessions(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(stderr)

	storePath := fs.String("event-store", "", "SQLite path for session history (default ~/.picoterm/picoterm.db)")
	eventsFor := fs.String("events", "", "Show the event log for the given session ID")
	limit := fs.Int("limit", 20, "Number of sessions to list")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: picoterm sessions [options]\n\nList recorded bridge sessions, newest first.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	path := *storePath
	if path == "" {
		path = config.DefaultEventStorePath()
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(stderr, "Error: no session history at %s (run the host first)\n", path)
		return 1
	}
	store, err := storage.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if *eventsFor != "" {
		return printEvents(store, *eventsFor, stdout, stderr)
	}
	return printSessions(store, *limit, stdout, stderr)
}

func printSessions(store *storage.Store, limit int, stdout, stderr io.Writer) int {
	sessions, err := store.ListSessions(limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded.")
		return 0
	}
	for _, s := range sessions {
		state := "running"
		if !s.EndedAt.IsZero() {
			state = s.ExitReason
		}
		fmt.Fprintf(stdout, "%s  %s  %dx%d  %s  %s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Rows, s.Cols, s.Shell, state)
	}
	return 0
}

func printEvents(store *storage.Store, id string, stdout, stderr io.Writer) int {
	sess, err := store.GetSession(id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if sess == nil {
		fmt.Fprintf(stderr, "Error: no session %s\n", id)
		return 1
	}
	events, err := store.ListEvents(id)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Session %s: %s at %dx%d, started %s\n",
		sess.ID, sess.Shell, sess.Rows, sess.Cols,
		sess.StartedAt.Format("2006-01-02 15:04:05"))
	if len(events) == 0 {
		fmt.Fprintln(stdout, "No events recorded.")
		return 0
	}
	for _, ev := range events {
		fmt.Fprintf(stdout, "%s  %-19s %s\n",
			ev.At.Format("15:04:05.000"), ev.Kind, ev.Detail)
	}
	return 0
}
