package device

import (
	"context"
	"log"

	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/screen"
)

// eventQueueSize bounds pending input events. Input arriving faster
// than the loop can apply it is stale by definition; dropping is fine.
const eventQueueSize = 64

type eventKind int

const (
	evScrollVertical eventKind = iota
	evScrollHorizontal
	evToken
)

type event struct {
	kind  eventKind
	delta int
	token frame.Token
}

// LoopOptions configures a device Loop.
type LoopOptions struct {
	// InvertVertical flips the sign of vertical scroll deltas, for
	// units whose vertical encoder is mounted upside down.
	InvertVertical bool
}

// Loop is the device-side event loop. It is the single consumer of
// the event queue and the only goroutine that touches the viewport
// and the display; input sources post events from wherever they run.
type Loop struct {
	src    FrameSource
	disp   Display
	sink   TokenWriter
	vp     *Viewport
	opts   LoopOptions
	events chan event
}

// NewLoop creates a loop drawing frames from src onto disp and
// forwarding input tokens to sink. sink may be nil for a receive-only
// viewer.
func NewLoop(src FrameSource, disp Display, sink TokenWriter, opts LoopOptions) *Loop {
	rows, cols := disp.Size()
	return &Loop{
		src:    src,
		disp:   disp,
		sink:   sink,
		vp:     NewViewport(rows, cols),
		opts:   opts,
		events: make(chan event, eventQueueSize),
	}
}

// PostScrollVertical queues a vertical scroll by delta rows.
func (l *Loop) PostScrollVertical(delta int) {
	l.post(event{kind: evScrollVertical, delta: delta})
}

// PostScrollHorizontal queues a horizontal scroll by delta columns.
func (l *Loop) PostScrollHorizontal(delta int) {
	l.post(event{kind: evScrollHorizontal, delta: delta})
}

// PostToken queues an input token for the host.
func (l *Loop) PostToken(t frame.Token) {
	l.post(event{kind: evToken, token: t})
}

func (l *Loop) post(ev event) {
	select {
	case l.events <- ev:
	default:
		log.Printf("Warning: event queue full, dropping input event")
	}
}

// Run drives the loop until the context is cancelled or the frame
// source fails. The display shows a splash until the first frame
// arrives.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.disp.Render(splashLines()); err != nil {
		return err
	}
	defer l.disp.Close()

	frames := make(chan *screen.Grid)
	errs := make(chan error, 1)
	go func() {
		for {
			g, err := l.src.Next()
			if err != nil {
				errs <- err
				return
			}
			select {
			case frames <- g:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-errs:
			return err

		case g := <-frames:
			l.vp.SetGrid(g)
			if err := l.render(); err != nil {
				return err
			}

		case ev := <-l.events:
			if l.apply(ev) {
				if err := l.render(); err != nil {
					return err
				}
			}
		}
	}
}

// apply handles one event and reports whether the display changed.
func (l *Loop) apply(ev event) bool {
	switch ev.kind {
	case evScrollVertical:
		delta := ev.delta
		if l.opts.InvertVertical {
			delta = -delta
		}
		before, _ := l.vp.Offsets()
		l.vp.ScrollVertical(delta)
		after, _ := l.vp.Offsets()
		return before != after

	case evScrollHorizontal:
		_, before := l.vp.Offsets()
		l.vp.ScrollHorizontal(ev.delta)
		_, after := l.vp.Offsets()
		return before != after

	case evToken:
		if l.sink == nil {
			return false
		}
		if err := l.sink.WriteToken(ev.token); err != nil {
			log.Printf("Token send failed: %v", err)
		}
		return false
	}
	return false
}

// render draws the current viewport. Before the first frame it leaves
// the splash in place.
func (l *Loop) render() error {
	if l.vp.Grid() == nil {
		return nil
	}
	return l.disp.Render(l.vp.Visible())
}

// splashLines is what the display shows before the first frame.
func splashLines() []string {
	return []string{"picoterm", "waiting for host"}
}
