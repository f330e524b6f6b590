// Package device implements the display side of the bridge: the
// viewport over the received grid, the rotary encoder and button input
// model, and the render loop. The same code drives the handheld
// hardware build and the software viewer.
package device

import (
	"github.com/picoterm/host/internal/screen"
)

// Viewport is a small window panned over the full received grid. The
// display is far smaller than the grid (16x2 characters against a
// 24x80 screen on the reference hardware), so the user scrolls the
// window with the encoders.
type Viewport struct {
	dispRows int
	dispCols int

	grid   *screen.Grid
	rowOff int
	colOff int
}

// NewViewport creates a viewport for a display of the given size.
func NewViewport(dispRows, dispCols int) *Viewport {
	return &Viewport{dispRows: dispRows, dispCols: dispCols}
}

// SetGrid installs a newly received grid. When the grid geometry
// differs from the previous one the offsets reset to the origin; a
// stale offset into a differently shaped screen points at nothing
// meaningful.
func (v *Viewport) SetGrid(g *screen.Grid) {
	if v.grid == nil || v.grid.Rows != g.Rows || v.grid.Cols != g.Cols {
		v.rowOff = 0
		v.colOff = 0
	}
	v.grid = g
}

// Grid returns the current grid, or nil before the first frame.
func (v *Viewport) Grid() *screen.Grid {
	return v.grid
}

// Offsets returns the current (row, col) offset of the window's top
// left corner.
func (v *Viewport) Offsets() (int, int) {
	return v.rowOff, v.colOff
}

// ScrollVertical moves the window by delta rows, clamped to the grid.
func (v *Viewport) ScrollVertical(delta int) {
	if v.grid == nil {
		return
	}
	v.rowOff = clamp(v.rowOff+delta, 0, v.grid.Rows-1)
}

// ScrollHorizontal moves the window by delta columns, clamped to the
// grid.
func (v *Viewport) ScrollHorizontal(delta int) {
	if v.grid == nil {
		return
	}
	v.colOff = clamp(v.colOff+delta, 0, v.grid.Cols-1)
}

// Visible returns the window contents as dispRows lines of exactly
// dispCols characters. Rows past the bottom of the grid repeat the last
// grid row, so a window scrolled hard down keeps showing content;
// columns past the right edge render as spaces.
func (v *Viewport) Visible() []string {
	lines := make([]string, v.dispRows)
	buf := make([]byte, v.dispCols)
	for r := 0; r < v.dispRows; r++ {
		rr := v.rowOff + r
		if v.grid != nil && rr >= v.grid.Rows {
			rr = v.grid.Rows - 1
		}
		for c := 0; c < v.dispCols; c++ {
			buf[c] = v.cellAt(rr, v.colOff+c)
		}
		lines[r] = string(buf)
	}
	return lines
}

func (v *Viewport) cellAt(r, c int) byte {
	if v.grid == nil || r < 0 || r >= v.grid.Rows || c < 0 || c >= v.grid.Cols {
		return ' '
	}
	return v.grid.At(r, c)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
