package device

import (
	"strings"
	"testing"

	"github.com/picoterm/host/internal/screen"
)

// numberedGrid fills a grid so each cell encodes its position: row
// letter in column 0, then repeating digits of the column index.
func numberedGrid(rows, cols int) *screen.Grid {
	g := screen.New(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Set(r, c, byte('0'+(r*cols+c)%10))
		}
	}
	return g
}

func TestVisibleWindowShape(t *testing.T) {
	v := NewViewport(2, 16)
	v.SetGrid(numberedGrid(24, 80))

	lines := v.Visible()
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, line := range lines {
		if len(line) != 16 {
			t.Fatalf("line %d has width %d", i, len(line))
		}
	}
}

func TestVisibleBeforeFirstFrameIsBlank(t *testing.T) {
	v := NewViewport(2, 16)
	for _, line := range v.Visible() {
		if strings.TrimSpace(line) != "" {
			t.Fatalf("blank viewport rendered %q", line)
		}
	}
}

func TestScrollClamping(t *testing.T) {
	v := NewViewport(2, 16)
	v.SetGrid(screen.New(24, 80))

	v.ScrollVertical(-10)
	v.ScrollHorizontal(-10)
	if r, c := v.Offsets(); r != 0 || c != 0 {
		t.Fatalf("offsets = (%d,%d), want origin", r, c)
	}

	v.ScrollVertical(1000)
	v.ScrollHorizontal(1000)
	if r, c := v.Offsets(); r != 23 || c != 79 {
		t.Fatalf("offsets = (%d,%d), want (23,79)", r, c)
	}
}

func TestWindowAtMaxOffsetStaysFullOfContent(t *testing.T) {
	g := screen.New(24, 80)
	g.Fill('A')
	v := NewViewport(2, 16)
	v.SetGrid(g)

	// Scroll hard past both edges. Rows past the bottom repeat the
	// last grid row; only the columns past the right edge pad with
	// spaces.
	v.ScrollVertical(100)
	v.ScrollHorizontal(100)
	lines := v.Visible()

	want := "A" + strings.Repeat(" ", 15)
	if lines[0] != want {
		t.Fatalf("line 0 = %q, want %q", lines[0], want)
	}
	if lines[1] != want {
		t.Fatalf("line 1 = %q, want %q", lines[1], want)
	}
}

func TestRowsPastBottomRepeatLastGridRow(t *testing.T) {
	g := screen.New(24, 80)
	g.Fill('A')
	v := NewViewport(2, 16)
	v.SetGrid(g)

	// At the maximum vertical offset only one real grid row remains;
	// the second display line shows that same row again.
	v.ScrollVertical(100)
	lines := v.Visible()

	want := strings.Repeat("A", 16)
	if lines[0] != want {
		t.Fatalf("line 0 = %q, want %q", lines[0], want)
	}
	if lines[1] != want {
		t.Fatalf("line 1 = %q, want %q", lines[1], want)
	}
}

func TestOffsetsResetOnResize(t *testing.T) {
	v := NewViewport(2, 16)
	v.SetGrid(screen.New(24, 80))
	v.ScrollVertical(5)
	v.ScrollHorizontal(7)

	v.SetGrid(screen.New(12, 40))
	if r, c := v.Offsets(); r != 0 || c != 0 {
		t.Fatalf("offsets after resize = (%d,%d), want origin", r, c)
	}
}

func TestOffsetsSurviveSameSizeFrame(t *testing.T) {
	v := NewViewport(2, 16)
	v.SetGrid(screen.New(24, 80))
	v.ScrollVertical(5)

	v.SetGrid(screen.New(24, 80))
	if r, _ := v.Offsets(); r != 5 {
		t.Fatalf("row offset = %d, want 5", r)
	}
}

func TestVisibleShowsScrolledContent(t *testing.T) {
	g := screen.New(4, 8)
	copy(g.Row(2), []byte("deadbeef"))
	v := NewViewport(1, 4)
	v.SetGrid(g)

	v.ScrollVertical(2)
	v.ScrollHorizontal(4)
	if lines := v.Visible(); lines[0] != "beef" {
		t.Fatalf("window = %q", lines[0])
	}
}
