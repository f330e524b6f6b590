package frame

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/picoterm/host/internal/screen"
)

func gridOf(rows, cols int, fill byte) *screen.Grid {
	g := screen.New(rows, cols)
	g.Fill(fill)
	return g
}

func TestEncodeLayout(t *testing.T) {
	g := gridOf(2, 3, 'A')
	got := Encode(g)

	want := []byte{0x02, 'S', 2, 3, 'A', 'A', 'A', 'A', 'A', 'A', 0x03}
	if !bytes.Equal(got, want) {
		t.Fatalf("encoded frame = % x, want % x", got, want)
	}
}

func TestEncodeSanitizesPayload(t *testing.T) {
	g := screen.New(1, 4)
	copy(g.Cells, []byte{'a', 0x1B, 0x7F, 'z'})

	got := Encode(g)
	payload := got[HeaderSize : HeaderSize+4]
	want := []byte{'a', ' ', ' ', 'z'}
	if !bytes.Equal(payload, want) {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, dims := range [][2]int{{1, 1}, {2, 16}, {24, 80}, {255, 3}} {
		rows, cols := dims[0], dims[1]
		g := screen.New(rows, cols)
		raw := make([]byte, rows*cols)
		rng.Read(raw)
		for i, b := range raw {
			g.Cells[i] = screen.Sanitize(b)
		}

		dec := NewDecoder(bytes.NewReader(Encode(g)))
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("%dx%d: decode failed: %v", rows, cols, err)
		}
		if got.Rows != rows || got.Cols != cols {
			t.Fatalf("%dx%d: decoded dims %dx%d", rows, cols, got.Rows, got.Cols)
		}
		if !bytes.Equal(got.Cells, g.Cells) {
			t.Fatalf("%dx%d: payload mismatch after round trip", rows, cols)
		}
	}
}

func TestDecoderSkipsGarbageBeforeFrame(t *testing.T) {
	g := gridOf(2, 2, 'x')
	stream := append([]byte{0xFF, 'j', 'u', 'n', 'k', 0x00}, Encode(g)...)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Rows != 2 || got.Cols != 2 || got.Cells[0] != 'x' {
		t.Fatalf("unexpected grid after garbage skip: %dx%d %q", got.Rows, got.Cols, got.Cells)
	}
}

func TestDecoderNeverReturnsTruncatedPayload(t *testing.T) {
	g := gridOf(4, 8, 'A')
	full := Encode(g)

	// Every truncation point inside the frame must fail, not yield a grid.
	for cut := 1; cut < len(full); cut++ {
		dec := NewDecoder(bytes.NewReader(full[:cut]))
		got, err := dec.Next()
		if got != nil {
			t.Fatalf("cut=%d: decoder returned a grid from a truncated frame", cut)
		}
		if err == nil {
			t.Fatalf("cut=%d: expected an error", cut)
		}
	}
}

func TestDecoderResyncAfterBadEndMarker(t *testing.T) {
	bad := gridOf(1, 2, 'B')
	stream := Encode(bad)
	stream[len(stream)-1] = 0x7F // corrupt the end marker
	good := gridOf(1, 2, 'G')
	stream = append(stream, Encode(good)...)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Cells[0] != 'G' {
		t.Fatalf("expected the frame after the corrupt one, got %q", got.Cells)
	}
	if dec.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", dec.Dropped())
	}
}

func TestDecoderWrongTypeByte(t *testing.T) {
	good := gridOf(1, 1, 'k')
	stream := append([]byte{StartMarker, 'X', 1, 1, 'z', EndMarker}, Encode(good)...)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Cells[0] != 'k' {
		t.Fatalf("expected the well-typed frame, got %q", got.Cells)
	}
}

func TestDecoderStartMarkerInTypePosition(t *testing.T) {
	// A start marker where the type byte should be must open a new frame
	// attempt, not be swallowed.
	good := gridOf(1, 1, 'k')
	stream := append([]byte{StartMarker}, Encode(good)...)

	dec := NewDecoder(bytes.NewReader(stream))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Cells[0] != 'k' {
		t.Fatalf("unexpected grid %q", got.Cells)
	}
}

func TestDecoderChunkedDelivery(t *testing.T) {
	g := gridOf(3, 5, 'c')
	full := Encode(g)

	// Deliver one byte at a time to exercise partial-read retries.
	dec := NewDecoder(iotest(full))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(got.Cells, g.Cells) {
		t.Fatalf("payload mismatch over chunked delivery")
	}
}

// iotest returns a reader that yields a single byte per Read call.
func iotest(p []byte) io.Reader {
	return &oneByteReader{data: p}
}

type oneByteReader struct{ data []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestDecodeMessage(t *testing.T) {
	g := gridOf(2, 4, 'm')
	got, ok := Decode(Encode(g))
	if !ok {
		t.Fatalf("Decode rejected a valid frame")
	}
	if !bytes.Equal(got.Cells, g.Cells) {
		t.Fatalf("payload mismatch")
	}

	if _, ok := Decode(Encode(g)[:5]); ok {
		t.Fatalf("Decode accepted a truncated frame")
	}
	bad := Encode(g)
	bad[1] = 'X'
	if _, ok := Decode(bad); ok {
		t.Fatalf("Decode accepted a wrong type byte")
	}
}
