// Package screen defines the character grid shared by the frame codec, the
// terminal emulator and the device viewport.
//
// A grid is a rectangular buffer of rows x cols cells, each holding one
// printable ASCII byte. Anything outside 0x20..0x7E is stored as a space:
// the wire protocol only transports printable ASCII, so the grid never
// needs to represent anything else.
package screen

// MaxDim is the largest row or column count a grid may have. The wire
// format encodes each dimension in a single byte.
const MaxDim = 255

// Grid is a rows x cols character buffer in row-major order.
// Cells always has length Rows*Cols and every byte is in 0x20..0x7E.
type Grid struct {
	Rows  int
	Cols  int
	Cells []byte
}

// New returns a grid of the given dimensions filled with spaces.
// Dimensions are clamped to [0, MaxDim].
func New(rows, cols int) *Grid {
	rows = clampDim(rows)
	cols = clampDim(cols)
	cells := make([]byte, rows*cols)
	for i := range cells {
		cells[i] = ' '
	}
	return &Grid{Rows: rows, Cols: cols, Cells: cells}
}

// Sanitize maps a byte into the printable ASCII range, substituting a
// space for anything outside 0x20..0x7E.
func Sanitize(b byte) byte {
	if b < 0x20 || b > 0x7E {
		return ' '
	}
	return b
}

// At returns the cell at (row, col). Out-of-range coordinates yield a space
// rather than a panic; callers at the grid edge rely on this.
func (g *Grid) At(row, col int) byte {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return ' '
	}
	return g.Cells[row*g.Cols+col]
}

// Set stores a sanitized byte at (row, col). Out-of-range coordinates are
// ignored.
func (g *Grid) Set(row, col int, b byte) {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return
	}
	g.Cells[row*g.Cols+col] = Sanitize(b)
}

// Row returns the bytes of one row. The slice aliases the grid's storage.
func (g *Grid) Row(row int) []byte {
	if row < 0 || row >= g.Rows {
		return nil
	}
	return g.Cells[row*g.Cols : (row+1)*g.Cols]
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	cells := make([]byte, len(g.Cells))
	copy(cells, g.Cells)
	return &Grid{Rows: g.Rows, Cols: g.Cols, Cells: cells}
}

// Fill sets every cell to the sanitized value of b.
func (g *Grid) Fill(b byte) {
	b = Sanitize(b)
	for i := range g.Cells {
		g.Cells[i] = b
	}
}

func clampDim(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxDim {
		return MaxDim
	}
	return n
}
