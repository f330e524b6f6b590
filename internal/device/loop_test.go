package device

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/screen"
)

type stubSource struct {
	grids chan *screen.Grid
	errs  chan error
}

func newStubSource() *stubSource {
	return &stubSource{
		grids: make(chan *screen.Grid, 8),
		errs:  make(chan error, 1),
	}
}

func (s *stubSource) Next() (*screen.Grid, error) {
	select {
	case g := <-s.grids:
		return g, nil
	case err := <-s.errs:
		return nil, err
	}
}

type recordingDisplay struct {
	rows, cols int

	mu      sync.Mutex
	renders [][]string
	closed  bool
	painted chan struct{}
}

func newRecordingDisplay(rows, cols int) *recordingDisplay {
	return &recordingDisplay{rows: rows, cols: cols, painted: make(chan struct{}, 64)}
}

func (d *recordingDisplay) Size() (int, int) { return d.rows, d.cols }

func (d *recordingDisplay) Render(lines []string) error {
	d.mu.Lock()
	cp := make([]string, len(lines))
	copy(cp, lines)
	d.renders = append(d.renders, cp)
	d.mu.Unlock()
	d.painted <- struct{}{}
	return nil
}

func (d *recordingDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *recordingDisplay) last() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.renders) == 0 {
		return nil
	}
	return d.renders[len(d.renders)-1]
}

func (d *recordingDisplay) waitPaint(t *testing.T) {
	t.Helper()
	select {
	case <-d.painted:
	case <-time.After(5 * time.Second):
		t.Fatalf("display was never painted")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	tokens []frame.Token
	sent   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sent: make(chan struct{}, 64)}
}

func (s *recordingSink) WriteToken(t frame.Token) error {
	s.mu.Lock()
	s.tokens = append(s.tokens, t)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return nil
}

func startDeviceLoop(t *testing.T, src FrameSource, disp Display, sink TokenWriter, opts LoopOptions) (*Loop, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l := NewLoop(src, disp, sink, opts)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	return l, errc
}

func labelGrid(rows, cols int, label string) *screen.Grid {
	g := screen.New(rows, cols)
	copy(g.Row(0), []byte(label))
	return g
}

func TestSplashShownBeforeFirstFrame(t *testing.T) {
	disp := newRecordingDisplay(2, 16)
	startDeviceLoop(t, newStubSource(), disp, nil, LoopOptions{})

	disp.waitPaint(t)
	if last := disp.last(); !strings.Contains(strings.Join(last, " "), "picoterm") {
		t.Fatalf("splash = %q", last)
	}
}

func TestFrameRendersViewport(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(2, 16)
	startDeviceLoop(t, src, disp, nil, LoopOptions{})
	disp.waitPaint(t) // splash

	src.grids <- labelGrid(24, 80, "hello world")
	disp.waitPaint(t)

	last := disp.last()
	if len(last) != 2 || !strings.HasPrefix(last[0], "hello world") {
		t.Fatalf("render = %q", last)
	}
	if len(last[0]) != 16 {
		t.Fatalf("line width = %d", len(last[0]))
	}
}

func TestScrollEventRepaints(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(1, 8)
	loop, _ := startDeviceLoop(t, src, disp, nil, LoopOptions{})
	disp.waitPaint(t) // splash

	g := screen.New(4, 8)
	copy(g.Row(1), []byte("row-one"))
	src.grids <- g
	disp.waitPaint(t)

	loop.PostScrollVertical(1)
	disp.waitPaint(t)
	if last := disp.last(); !strings.HasPrefix(last[0], "row-one") {
		t.Fatalf("after scroll = %q", last)
	}
}

func TestInvertVertical(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(1, 8)
	loop, _ := startDeviceLoop(t, src, disp, nil, LoopOptions{InvertVertical: true})
	disp.waitPaint(t) // splash

	g := screen.New(4, 8)
	copy(g.Row(1), []byte("row-one"))
	src.grids <- g
	disp.waitPaint(t)

	// Inverted: a negative delta moves the window down.
	loop.PostScrollVertical(-1)
	disp.waitPaint(t)
	if last := disp.last(); !strings.HasPrefix(last[0], "row-one") {
		t.Fatalf("after inverted scroll = %q", last)
	}
}

func TestClampedScrollDoesNotRepaint(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(1, 8)
	loop, _ := startDeviceLoop(t, src, disp, nil, LoopOptions{})
	disp.waitPaint(t) // splash

	src.grids <- screen.New(4, 8)
	disp.waitPaint(t)

	// Already at the origin; scrolling up changes nothing.
	loop.PostScrollVertical(-1)
	time.Sleep(50 * time.Millisecond)
	select {
	case <-disp.painted:
		t.Fatalf("no-op scroll repainted the display")
	default:
	}
}

func TestTokenForwardedToSink(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(2, 16)
	sink := newRecordingSink()
	loop, _ := startDeviceLoop(t, src, disp, sink, LoopOptions{})
	disp.waitPaint(t)

	loop.PostToken(frame.Enter())
	select {
	case <-sink.sent:
	case <-time.After(5 * time.Second):
		t.Fatalf("token never reached the sink")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.tokens) != 1 || sink.tokens[0].Kind != frame.TokenEnter {
		t.Fatalf("sink got %v", sink.tokens)
	}
}

func TestSourceErrorEndsLoop(t *testing.T) {
	src := newStubSource()
	disp := newRecordingDisplay(2, 16)
	_, errc := startDeviceLoop(t, src, disp, nil, LoopOptions{})
	disp.waitPaint(t)

	boom := errors.New("link lost")
	src.errs <- boom

	select {
	case err := <-errc:
		if !errors.Is(err, boom) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return on source error")
	}

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if !disp.closed {
		t.Fatalf("display not closed on exit")
	}
}
