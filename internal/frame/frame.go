// Package frame implements the wire protocol between the host and the
// viewer device.
//
// Snapshot frames travel host -> device with a fixed byte layout:
//
//	offset 0          start marker 0x02
//	offset 1          type byte 'S' (snapshot)
//	offset 2          row count (0..255)
//	offset 3          column count (0..255)
//	offset 4..        rows*cols payload bytes, each in 0x20..0x7E
//	offset 4+R*C      end marker 0x03
//
// Key tokens travel device -> host as newline-terminated ASCII lines
// (see token.go). The layout is shared with the device firmware and must
// stay bit-exact; there is no checksum, so a corrupted payload whose
// markers survive is accepted as valid. That is a known property of the
// protocol, not something this package tries to repair.
package frame

import (
	"bufio"
	"io"

	"github.com/picoterm/host/internal/screen"
)

// Wire protocol constants.
const (
	StartMarker  = 0x02 // ASCII STX
	EndMarker    = 0x03 // ASCII ETX
	TypeSnapshot = 'S'
)

// HeaderSize is the number of bytes before the payload.
const HeaderSize = 4

// Encode serializes a grid into a snapshot frame. Payload bytes are forced
// into the printable range; dimensions beyond 255 never occur because
// screen.Grid clamps them at construction.
func Encode(g *screen.Grid) []byte {
	buf := make([]byte, 0, HeaderSize+len(g.Cells)+1)
	buf = append(buf, StartMarker, TypeSnapshot, byte(g.Rows), byte(g.Cols))
	for _, b := range g.Cells {
		buf = append(buf, screen.Sanitize(b))
	}
	return append(buf, EndMarker)
}

// Decoder reads snapshot frames from a byte stream.
//
// The stream may deliver data in arbitrary-sized chunks; Decoder blocks
// until a complete frame is available. Malformed frames (wrong type byte,
// missing end marker) are discarded and the decoder resynchronizes by
// scanning forward for the next start marker, so one bad frame never
// misaligns the ones that follow.
type Decoder struct {
	r       *bufio.Reader
	dropped int
}

// NewDecoder wraps a reader for frame decoding.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Dropped reports how many malformed frames have been discarded since the
// decoder was created.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Next blocks until a complete, well-formed frame has been read and
// returns its grid. Garbage bytes and malformed frames are skipped.
// The only errors returned are stream errors (EOF, closed link); a frame
// truncated by stream exhaustion never yields a grid.
func (d *Decoder) Next() (*screen.Grid, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != StartMarker {
			continue
		}

		g, ok, err := d.readBody()
		if err != nil {
			return nil, err
		}
		if !ok {
			d.dropped++
			continue
		}
		return g, nil
	}
}

// readBody reads everything after a start marker. ok=false means the frame
// was malformed and the caller should resume scanning; the offending bytes
// have been consumed except that a start marker seen where the type byte
// was expected is pushed back so it can open a new frame.
func (d *Decoder) readBody() (*screen.Grid, bool, error) {
	typ, err := d.r.ReadByte()
	if err != nil {
		return nil, false, err
	}
	if typ != TypeSnapshot {
		if typ == StartMarker {
			if err := d.r.UnreadByte(); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}

	var dims [2]byte
	if _, err := io.ReadFull(d.r, dims[:]); err != nil {
		return nil, false, unexpectedEOF(err)
	}
	rows, cols := int(dims[0]), int(dims[1])

	payload := make([]byte, rows*cols)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, false, unexpectedEOF(err)
	}

	end, err := d.r.ReadByte()
	if err != nil {
		return nil, false, err
	}
	if end != EndMarker {
		if end == StartMarker {
			if err := d.r.UnreadByte(); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	}

	g := screen.New(rows, cols)
	for i, b := range payload {
		g.Cells[i] = screen.Sanitize(b)
	}
	return g, true, nil
}

// Decode parses a single frame from a complete byte slice, as delivered by
// message-oriented transports (one WebSocket binary message per frame).
// Unlike Decoder.Next it does not resynchronize: the message either is a
// frame or it is not.
func Decode(p []byte) (*screen.Grid, bool) {
	if len(p) < HeaderSize+1 || p[0] != StartMarker || p[1] != TypeSnapshot {
		return nil, false
	}
	rows, cols := int(p[2]), int(p[3])
	if len(p) != HeaderSize+rows*cols+1 || p[len(p)-1] != EndMarker {
		return nil, false
	}
	g := screen.New(rows, cols)
	for i, b := range p[HeaderSize : HeaderSize+rows*cols] {
		g.Cells[i] = screen.Sanitize(b)
	}
	return g, true
}

// unexpectedEOF normalizes io.EOF inside a frame body to ErrUnexpectedEOF
// so callers can tell "clean end of stream" from "stream died mid-frame".
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
