// This file implements the `picoterm view` command: a software viewer
// that connects to a host over WebSocket or a serial tap and emulates
// the handheld display, viewport scrolling and all, in the local
// terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/picoterm/host/internal/config"
	"github.com/picoterm/host/internal/device"
	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/link"
	"github.com/picoterm/host/internal/mdns"
)

// Display geometry of the reference hardware (a 16x2 character LCD).
const (
	defaultViewRows = 2
	defaultViewCols = 16
)

// discoverTimeout bounds the mDNS search when no --url is given.
const discoverTimeout = 3 * time.Second

func runView(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(stderr)

	url := fs.String("url", "", "Host WebSocket URL (e.g. ws://192.168.1.10:7171/ws); empty = discover via mDNS")
	port := fs.String("port", "", "Serial device to read frames from instead of WebSocket")
	baud := fs.Int("baud", config.DefaultBaud, "Serial baud rate with --port")
	rows := fs.Int("rows", defaultViewRows, "Display rows to emulate")
	cols := fs.Int("cols", defaultViewCols, "Display columns to emulate")
	invert := fs.Bool("invert-vertical", false, "Flip vertical scroll direction")
	debounceMs := fs.Int("debounce-ms", 200, "Button debounce interval in ms")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: picoterm view [options]\n\nEmulate the handheld display.\n\nKeys: arrows scroll, typing sends text, Enter/Backspace send keys, Ctrl+C quits.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *rows < 1 || *cols < 1 {
		fmt.Fprintf(stderr, "Error: display geometry must be positive\n")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src device.FrameSource
	var sink device.TokenWriter
	if *port != "" {
		p, err := link.Open(*port, *baud)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer p.Close()
		fmt.Fprintf(stdout, "Reading frames from %s at %d baud\n", p.Name(), *baud)
		src = device.NewReaderSource(p)
		sink = serialTokenSink{p}
	} else {
		target := *url
		if target == "" {
			found, err := discoverHost(ctx, stdout)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			target = found
		}

		fmt.Fprintf(stdout, "Connecting to %s...\n", target)
		client, err := link.Dial(ctx, target)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer client.Close()
		src = client
		sink = client
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(stderr, "Error: view requires a terminal\n")
		return 1
	}
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot set raw mode: %v\n", err)
		return 1
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	disp := device.NewANSIDisplay(stdout, *rows, *cols)
	loop := device.NewLoop(src, disp, sink, device.LoopOptions{
		InvertVertical: *invert,
	})

	go readViewerInput(os.Stdin, loop, cancel,
		time.Duration(*debounceMs)*time.Millisecond)

	if err := loop.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "\r\nConnection lost: %v\r\n", err)
		return 1
	}
	fmt.Fprint(stdout, "\r\n")
	return 0
}

// serialTokenSink writes newline-terminated token lines to the port,
// the reverse direction of the frame stream.
type serialTokenSink struct {
	p *link.Port
}

func (s serialTokenSink) WriteToken(t frame.Token) error {
	_, err := s.p.Write(frame.EncodeToken(t))
	return err
}

// discoverHost finds a picoterm host via mDNS and returns its URL.
func discoverHost(ctx context.Context, stdout io.Writer) (string, error) {
	fmt.Fprintln(stdout, "Searching for picoterm hosts...")
	dctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	hosts, err := mdns.Discover(dctx)
	if err != nil {
		return "", err
	}
	if len(hosts) == 0 {
		return "", errors.New("no hosts found; pass --url or start the host with --mdns")
	}
	h := hosts[0]
	fmt.Fprintf(stdout, "Found %s (%dx%d screen)\n", h.Name, h.Rows, h.Cols)
	return h.URL(), nil
}

// readViewerInput turns keystrokes into loop events. Scrolling runs
// through the same quadrature decoding as the hardware encoders: one
// arrow press is one full detent, four phase steps.
func readViewerInput(r io.Reader, loop *device.Loop, quit func(), debounce time.Duration) {
	var vertical, horizontal device.Encoder
	// Prime both decoders at the rest phase.
	vertical.Transition(false, false)
	horizontal.Transition(false, false)

	enterBtn := device.NewDebouncer(debounce)
	backBtn := device.NewDebouncer(debounce)

	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if err != nil {
			quit()
			return
		}
		for _, act := range decodeKeys(buf[:n]) {
			switch act.kind {
			case actScrollUp:
				loop.PostScrollVertical(spinReverse(&vertical) / 4)
			case actScrollDown:
				loop.PostScrollVertical(spinForward(&vertical) / 4)
			case actScrollRight:
				loop.PostScrollHorizontal(spinForward(&horizontal) / 4)
			case actScrollLeft:
				loop.PostScrollHorizontal(spinReverse(&horizontal) / 4)
			case actEnter:
				if enterBtn.Press() {
					loop.PostToken(frame.Enter())
				}
			case actBackspace:
				if backBtn.Press() {
					loop.PostToken(frame.Backspace())
				}
			case actText:
				loop.PostToken(frame.Text(act.text))
			case actQuit:
				quit()
				return
			}
		}
	}
}

// spinForward walks the encoder through one clockwise detent from the
// rest phase and returns the accumulated delta (+4 when clean).
func spinForward(e *device.Encoder) int {
	d := e.Transition(false, true)
	d += e.Transition(true, true)
	d += e.Transition(true, false)
	d += e.Transition(false, false)
	return d
}

// spinReverse walks one counter-clockwise detent (-4 when clean).
func spinReverse(e *device.Encoder) int {
	d := e.Transition(true, false)
	d += e.Transition(true, true)
	d += e.Transition(false, true)
	d += e.Transition(false, false)
	return d
}
