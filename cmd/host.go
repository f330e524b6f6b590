// This file implements the `picoterm host` command: the bridge that
// runs the shell under a PTY and relays snapshot frames to the display
// device over the serial link and to WebSocket viewers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/picoterm/host/internal/config"
	apperrors "github.com/picoterm/host/internal/errors"
	"github.com/picoterm/host/internal/host"
	"github.com/picoterm/host/internal/link"
	"github.com/picoterm/host/internal/mdns"
	"github.com/picoterm/host/internal/screen"
	"github.com/picoterm/host/internal/shell"
	"github.com/picoterm/host/internal/storage"
)

func runHost(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("host", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Config file path (default ~/.picoterm/config.toml)")
	port := fs.String("port", "", "Serial device path (default /dev/serial0)")
	baud := fs.Int("baud", 0, "Serial baud rate (default 115200)")
	rows := fs.Int("rows", 0, "Shell screen rows (default 24)")
	cols := fs.Int("cols", 0, "Shell screen columns (default 80)")
	addr := fs.String("addr", "", "WebSocket listen address (default 127.0.0.1:7171)")
	shellCmd := fs.String("shell", "", "Shell command (default $SHELL)")
	flushMs := fs.Int("flush-ms", 0, "Minimum gap between frames in ms (default 50)")
	mirror := fs.Bool("mirror", false, "Echo the session on this terminal too")
	noSerial := fs.Bool("no-serial", false, "Disable the serial link, serve WebSocket only")
	mdnsFlag := fs.Bool("mdns", false, "Advertise the WebSocket server over mDNS")
	eventStore := fs.String("event-store", "", "SQLite path for session history (default ~/.picoterm/picoterm.db)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: picoterm host [options]\n\nRun the bridge.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// CLI flags take precedence over file values, but only flags the
	// user actually set.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.SerialPort = *port
		case "baud":
			cfg.Baud = *baud
		case "rows":
			cfg.Rows = *rows
		case "cols":
			cfg.Cols = *cols
		case "addr":
			cfg.Addr = *addr
		case "shell":
			cfg.Shell = *shellCmd
		case "flush-ms":
			cfg.FlushMs = *flushMs
		case "mirror":
			cfg.Mirror = *mirror
		case "no-serial":
			cfg.SerialDisabled = *noSerial
		case "mdns":
			cfg.MdnsEnabled = *mdnsFlag
		case "event-store":
			cfg.EventStore = *eventStore
		}
	})
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// Session history is best effort: a broken database must not keep
	// the bridge from running.
	var store *storage.Store
	var sessionID string
	if cfg.EventStore != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.EventStore), 0700); err == nil {
			store, err = storage.Open(cfg.EventStore)
			if err != nil {
				fmt.Fprintf(stderr, "Warning: session history disabled: %v\n", err)
				store = nil
			}
		}
	}
	if store != nil {
		defer store.Close()
		sessionID, err = store.StartSession(cfg.Shell, cfg.Rows, cfg.Cols)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: could not record session: %v\n", err)
		}
	}

	var serialPort *link.Port
	if !cfg.SerialDisabled {
		serialPort, err = link.Open(cfg.SerialPort, cfg.Baud)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer serialPort.Close()
	}

	sess, err := shell.Start(cfg.Shell, nil, cfg.Rows, cfg.Cols)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sess.Stop()

	// recordEvent is a no-op when session history is off.
	recordEvent := func(kind, detail string) {
		if store != nil && sessionID != "" {
			_ = store.RecordEvent(sessionID, kind, detail)
		}
	}

	ws := link.NewWSServer()
	ws.OnConnect = func(remote string) {
		recordEvent(storage.EventViewerConnected, remote)
	}
	ws.OnDisconnect = func(remote string) {
		recordEvent(storage.EventViewerDisconnected, remote)
	}
	if err := ws.Start(cfg.Addr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer ws.Stop()

	var advertiser *mdns.Advertiser
	if cfg.MdnsEnabled {
		advertiser = mdns.NewAdvertiser(mdns.Config{
			Port: ws.Port(),
			Rows: cfg.Rows,
			Cols: cfg.Cols,
		})
		if err := advertiser.Start(); err != nil {
			fmt.Fprintf(stderr, "Warning: mDNS advertisement failed: %v\n", err)
		} else {
			defer advertiser.Stop()
		}
	}

	// Input tokens arrive from the device's reverse serial channel and
	// from WebSocket viewers; the loop consumes one merged stream.
	tokens := make(chan string, 64)
	if serialPort != nil {
		go forwardTokens(link.TokenLines(serialPort), tokens)
	}
	go forwardTokens(ws.Tokens(), tokens)

	// When stdin is a terminal, put it into raw mode and forward
	// keystrokes to the shell. Ctrl+C becomes a byte for the shell,
	// not a signal for us; the bridge ends when the shell exits.
	var keys chan []byte
	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err != nil {
			fmt.Fprintf(stderr, "Warning: cannot set raw mode: %v\n", err)
		} else {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
			keys = make(chan []byte, 16)
			go readKeyboard(os.Stdin, keys)
		}
	}

	var frameSink io.Writer
	if serialPort != nil {
		frameSink = serialPort
	}
	var mirrorSink io.Writer
	if cfg.Mirror {
		mirrorSink = stdout
	}

	loop := host.New(host.Options{
		Session:       sess,
		Rows:          cfg.Rows,
		Cols:          cfg.Cols,
		Frame:         frameSink,
		Keys:          keys,
		Tokens:        tokens,
		Mirror:        mirrorSink,
		FlushInterval: time.Duration(cfg.FlushMs) * time.Millisecond,
		OnFlush: func(_ *screen.Grid, data []byte) {
			ws.BroadcastFrame(data)
		},
		OnFrameError: func(err error) {
			recordEvent(storage.EventLinkError, err.Error())
		},
	})

	if !cfg.Mirror {
		fmt.Fprintf(stdout, "Bridge running: %s at %dx%d\n", cfg.Shell, cfg.Rows, cfg.Cols)
		if serialPort != nil {
			fmt.Fprintf(stdout, "Serial link on %s @ %d baud\n", cfg.SerialPort, cfg.Baud)
		}
		fmt.Fprintf(stdout, "Viewers: picoterm view --url ws://%s/ws\n", ws.Addr())
	}

	runErr := loop.Run(ctx)

	reason := "stopped"
	code := 0
	switch {
	case runErr == nil:
		// Cancelled by signal.
	case apperrors.HasCode(runErr, apperrors.CodeSessionExited):
		reason = "shell exited"
	default:
		reason = runErr.Error()
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		code = 1
	}

	if store != nil && sessionID != "" {
		if runErr != nil {
			recordEvent(storage.EventShellExited, reason)
		}
		if n := ws.Dropped(); n > 0 {
			recordEvent(storage.EventFramesDropped, strconv.FormatInt(n, 10))
		}
		if err := store.EndSession(sessionID, reason); err != nil {
			fmt.Fprintf(stderr, "Warning: could not close session record: %v\n", err)
		}
	}

	fmt.Fprintf(stdout, "\r\nSession ended (%s) after %d frames.\r\n", reason, loop.Flushes())
	return code
}

// forwardTokens funnels one token source into the merged channel
// without ever blocking the source.
func forwardTokens(src <-chan string, dst chan<- string) {
	for line := range src {
		select {
		case dst <- line:
		default:
		}
	}
}

// readKeyboard forwards raw stdin bytes to the loop. The goroutine
// ends when stdin closes; during shutdown it is simply abandoned.
func readKeyboard(r io.Reader, keys chan<- []byte) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			keys <- chunk
		}
		if err != nil {
			close(keys)
			return
		}
	}
}
