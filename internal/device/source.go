package device

import (
	"io"

	"github.com/picoterm/host/internal/frame"
	"github.com/picoterm/host/internal/screen"
)

// FrameSource yields successive snapshot grids from the host. The
// WebSocket client satisfies this directly; serial readers wrap their
// port in a ReaderSource.
type FrameSource interface {
	Next() (*screen.Grid, error)
}

// TokenWriter sends input tokens back to the host.
type TokenWriter interface {
	WriteToken(t frame.Token) error
}

// ReaderSource decodes frames from a raw byte stream, resynchronizing
// across line noise.
type ReaderSource struct {
	d *frame.Decoder
}

// NewReaderSource wraps r, normally an open serial port.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{d: frame.NewDecoder(r)}
}

// Next blocks until the next complete frame.
func (s *ReaderSource) Next() (*screen.Grid, error) {
	return s.d.Next()
}

// Dropped reports how many malformed frames were skipped.
func (s *ReaderSource) Dropped() int {
	return s.d.Dropped()
}
