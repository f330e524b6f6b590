// Package host runs the bridge event loop: shell output in, snapshot
// frames out, input tokens back to the shell.
package host

import (
	"context"
	"io"
	"log"
	"time"

	apperrors "github.com/picoterm/host/internal/errors"
	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/relay"
	"github.com/picoterm/host/internal/screen"
	"github.com/picoterm/host/internal/term"
)

// Defaults for the loop timing. The flush interval caps the frame rate
// on the serial link; the tick bounds how stale a pending flush can go
// when the shell falls silent right after producing output.
const (
	DefaultFlushInterval = 50 * time.Millisecond
	DefaultTickInterval  = 20 * time.Millisecond
)

// ShellSession is the slice of the shell session the loop needs.
// *shell.Session satisfies it; tests substitute a stub.
type ShellSession interface {
	Output() <-chan []byte
	Done() <-chan struct{}
	Err() error
	Write(p []byte) (int, error)
}

// Options configures a Loop.
type Options struct {
	Session ShellSession
	Rows    int
	Cols    int

	// Frame is the primary frame sink, normally the serial port. May be
	// nil when only WebSocket viewers are attached.
	Frame io.Writer

	// Keys delivers raw keyboard bytes from the host's own terminal.
	// May be nil for a headless host.
	Keys <-chan []byte

	// Tokens delivers input token lines from the device and from
	// WebSocket viewers.
	Tokens <-chan string

	// Mirror, when set, receives a copy of all shell output so the host
	// terminal shows the session locally.
	Mirror io.Writer

	// OnFlush is called with every snapshot that was flushed, after the
	// frame write. Used for WebSocket broadcast and session recording.
	OnFlush func(*screen.Grid, []byte)

	// OnFrameError is called when a write to Frame fails. The loop
	// keeps running; the hook exists for session event recording.
	OnFrameError func(error)

	FlushInterval time.Duration
	TickInterval  time.Duration
}

// Loop owns the emulator state and multiplexes all host-side events.
// It is single-goroutine: every mutation of the grid happens on Run's
// goroutine, so the emulator never sees concurrent feeds.
type Loop struct {
	opts  Options
	emu   *term.Emulator
	relay *relay.Relay

	flushes   int
	lastFlush time.Time
}

// New creates a loop. Rows and Cols set the grid geometry, which must
// match the PTY size the session was started with.
func New(opts Options) *Loop {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Loop{
		opts:  opts,
		emu:   term.New(opts.Rows, opts.Cols),
		relay: relay.New(opts.Session),
	}
}

// Run drives the loop until the context is cancelled or the shell
// exits. Shell exit is fatal: the returned error carries
// session.exited so the caller can shut the whole host down.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	// lastFlush starts at the zero time, so the very first frame goes
	// out immediately and a freshly attached device shows the blank
	// screen instead of stale content.
	for {
		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-l.opts.Session.Output():
			if !ok {
				// Output ended; the exit path below reports the cause.
				return l.exitError()
			}
			l.consume(chunk)
			l.drainOutput()

		case <-l.opts.Session.Done():
			return l.exitError()

		case key, ok := <-l.opts.Keys:
			if !ok {
				l.opts.Keys = nil
				continue
			}
			if _, err := l.opts.Session.Write(key); err != nil {
				log.Printf("Keyboard write to shell failed: %v", err)
			}

		case line, ok := <-l.opts.Tokens:
			if !ok {
				l.opts.Tokens = nil
				continue
			}
			l.relay.HandleLine(line)

		case <-ticker.C:
			// Output queued since the last wakeup belongs in this
			// flush, not the next one.
			l.drainOutput()
		}

		l.maybeFlush()
	}
}

// Flushes reports how many snapshot frames have been flushed. Only
// meaningful after Run returns.
func (l *Loop) Flushes() int {
	return l.flushes
}

// consume feeds one output chunk into the emulator and the mirror.
func (l *Loop) consume(chunk []byte) {
	l.emu.Feed(chunk)
	if l.opts.Mirror != nil {
		if _, err := l.opts.Mirror.Write(chunk); err != nil {
			log.Printf("Mirror write failed: %v", err)
			l.opts.Mirror = nil
		}
	}
}

// drainOutput consumes whatever output is already queued before the
// flush decision, so a burst of shell writes lands in one frame
// instead of several.
func (l *Loop) drainOutput() {
	for {
		select {
		case chunk, ok := <-l.opts.Session.Output():
			if !ok {
				return
			}
			l.consume(chunk)
		default:
			return
		}
	}
}

// maybeFlush sends a snapshot once the flush interval has passed. The
// stream runs even while the shell is silent, so a device attaching
// mid-session is current within one interval. The flush timestamp
// advances even when the write fails: a dead link must not turn into a
// hot retry loop.
func (l *Loop) maybeFlush() {
	if time.Since(l.lastFlush) < l.opts.FlushInterval {
		return
	}
	l.lastFlush = time.Now()
	l.flushes++

	snap := l.emu.Snapshot()
	data := frame.Encode(snap)
	if l.opts.Frame != nil {
		if _, err := l.opts.Frame.Write(data); err != nil {
			log.Printf("Frame write failed: %v", err)
			if l.opts.OnFrameError != nil {
				l.opts.OnFrameError(err)
			}
		}
	}
	if l.opts.OnFlush != nil {
		l.opts.OnFlush(snap, data)
	}
}

// exitError builds the fatal error for a shell that went away.
func (l *Loop) exitError() error {
	if err := l.opts.Session.Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeSessionExited, "shell session ended", err)
	}
	return apperrors.New(apperrors.CodeSessionExited, "shell exited")
}
