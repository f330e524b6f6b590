package device

import (
	"bytes"
	"strings"
	"testing"
)

func TestANSIDisplayFirstRenderClears(t *testing.T) {
	var buf bytes.Buffer
	d := NewANSIDisplay(&buf, 2, 4)

	if err := d.Render([]string{"ab", "cdef"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[2J") {
		t.Fatalf("first render did not clear: %q", out)
	}
	if !strings.Contains(out, "ab  ") {
		t.Fatalf("short line not padded: %q", out)
	}

	buf.Reset()
	if err := d.Render([]string{"xy", "zw"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "\x1b[2J") {
		t.Fatalf("second render cleared again")
	}
}

func TestANSIDisplayTruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	d := NewANSIDisplay(&buf, 1, 4)

	if err := d.Render([]string{"abcdefgh"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out := buf.String(); strings.Contains(out, "abcde") {
		t.Fatalf("line not truncated: %q", out)
	}
}

func TestANSIDisplayCloseRestoresCursor(t *testing.T) {
	var buf bytes.Buffer
	d := NewANSIDisplay(&buf, 1, 4)
	d.Render([]string{"x"})
	buf.Reset()

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[?25h") {
		t.Fatalf("cursor not restored: %q", buf.String())
	}
}
