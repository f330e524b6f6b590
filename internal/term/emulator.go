// Package term maintains a fixed-size character grid from a raw shell
// output stream.
//
// The emulator is deliberately small: the downstream display only shows
// printable ASCII, so it tracks cursor movement, line discipline and the
// common clear/erase sequences, and ignores color, charset and mode
// sequences entirely. Escape parsing is delegated to
// github.com/charmbracelet/x/ansi, which splits the stream into text and
// control sequences; this package only interprets the handful it cares
// about.
package term

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/picoterm/host/internal/screen"
)

// maxPending bounds the partial-sequence buffer carried between feeds.
// A stream that never completes an escape sequence is garbage; dropping
// the buffer keeps memory bounded and the grid sane.
const maxPending = 4096

// tabWidth is the fixed tab stop spacing.
const tabWidth = 8

// Emulator converts raw shell output bytes into a character grid.
// Feed may be called with arbitrary chunk boundaries; escape sequences
// split across chunks are buffered until complete. Invalid UTF-8 never
// fails the feed: undecodable bytes become space cells.
type Emulator struct {
	mu      sync.Mutex
	grid    *screen.Grid
	row     int
	col     int
	pending []byte
}

// New returns an emulator with a rows x cols grid of spaces and the
// cursor at the origin.
func New(rows, cols int) *Emulator {
	return &Emulator{grid: screen.New(rows, cols)}
}

// Snapshot returns an independent copy of the current grid.
func (e *Emulator) Snapshot() *screen.Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grid.Clone()
}

// Cursor returns the current cursor position (row, col).
func (e *Emulator) Cursor() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.row, e.col
}

// Feed consumes a chunk of raw shell output.
func (e *Emulator) Feed(p []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := string(append(e.pending, p...))
	e.pending = nil

	var state byte
	for len(data) > 0 {
		seq, width, n, newState := ansi.DecodeSequence(data, state, nil)
		if n == 0 {
			// Defensive: never loop forever on a decoder stall.
			break
		}

		// An escape sequence cut off by the chunk boundary is carried
		// over to the next feed instead of being misinterpreted.
		if n == len(data) && width == 0 && isIncompleteEscape(seq) {
			if len(seq) <= maxPending {
				e.pending = []byte(seq)
			}
			return
		}

		if width > 0 {
			e.print(seq)
		} else {
			e.control(seq)
		}
		state = newState
		data = data[n:]
	}
}

// print places the runes of a text sequence at the cursor, wrapping at
// the right edge. Non-ASCII runes occupy one cell as a space; the wire
// format cannot carry them anyway.
func (e *Emulator) print(seq string) {
	for _, r := range seq {
		if r < 0x20 {
			continue
		}
		if e.col >= e.grid.Cols {
			e.col = 0
			e.lineFeed()
		}
		b := byte(' ')
		if r >= 0x20 && r <= 0x7E {
			b = byte(r)
		}
		e.grid.Set(e.row, e.col, b)
		e.col++
	}
}

// control interprets a single control byte or escape sequence.
func (e *Emulator) control(seq string) {
	if len(seq) == 1 {
		switch seq[0] {
		case '\r':
			e.col = 0
		case '\n', '\v', '\f':
			e.lineFeed()
		case '\b':
			if e.col > 0 {
				e.col--
			}
		case '\t':
			e.col = min((e.col/tabWidth+1)*tabWidth, e.grid.Cols-1)
		}
		return
	}
	if len(seq) >= 2 && seq[0] == 0x1B && seq[1] == '[' {
		e.csi(seq)
	}
	// OSC, DCS, charset and other ESC sequences carry nothing the grid
	// can display; they are dropped.
}

// csi interprets a CSI sequence: cursor positioning, relative movement,
// and the clear/erase family. Private-mode sequences (ESC [ ? ...) are
// ignored wholesale.
func (e *Emulator) csi(seq string) {
	body := seq[2 : len(seq)-1]
	final := seq[len(seq)-1]
	if strings.HasPrefix(body, "?") || strings.HasPrefix(body, ">") || strings.HasPrefix(body, "=") {
		return
	}
	params := csiParams(body)

	switch final {
	case 'H', 'f': // cursor position, 1-based row;col
		e.row = e.clampRow(param(params, 0, 1) - 1)
		e.col = e.clampCol(param(params, 1, 1) - 1)
	case 'A':
		e.row = e.clampRow(e.row - param(params, 0, 1))
	case 'B':
		e.row = e.clampRow(e.row + param(params, 0, 1))
	case 'C':
		e.col = e.clampCol(e.col + param(params, 0, 1))
	case 'D':
		e.col = e.clampCol(e.col - param(params, 0, 1))
	case 'G': // cursor horizontal absolute, 1-based
		e.col = e.clampCol(param(params, 0, 1) - 1)
	case 'd': // vertical position absolute, 1-based
		e.row = e.clampRow(param(params, 0, 1) - 1)
	case 'J':
		e.eraseDisplay(param(params, 0, 0))
	case 'K':
		e.eraseLine(param(params, 0, 0))
	}
}

// eraseDisplay implements ED: 0 = cursor to end, 1 = start to cursor,
// 2 and 3 = whole screen.
func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0:
		e.eraseLine(0)
		for r := e.row + 1; r < e.grid.Rows; r++ {
			e.blankRow(r)
		}
	case 1:
		e.eraseLine(1)
		for r := 0; r < e.row; r++ {
			e.blankRow(r)
		}
	case 2, 3:
		e.grid.Fill(' ')
	}
}

// eraseLine implements EL: 0 = cursor to end of line, 1 = start of line
// through cursor, 2 = whole line.
func (e *Emulator) eraseLine(mode int) {
	switch mode {
	case 0:
		for c := e.col; c < e.grid.Cols; c++ {
			e.grid.Set(e.row, c, ' ')
		}
	case 1:
		for c := 0; c <= e.col && c < e.grid.Cols; c++ {
			e.grid.Set(e.row, c, ' ')
		}
	case 2:
		e.blankRow(e.row)
	}
}

func (e *Emulator) blankRow(r int) {
	row := e.grid.Row(r)
	for i := range row {
		row[i] = ' '
	}
}

// lineFeed advances the cursor one row, scrolling the grid up when the
// cursor is already on the bottom row.
func (e *Emulator) lineFeed() {
	if e.row < e.grid.Rows-1 {
		e.row++
		return
	}
	if e.grid.Rows == 0 {
		return
	}
	copy(e.grid.Cells, e.grid.Cells[e.grid.Cols:])
	e.blankRow(e.grid.Rows - 1)
}

func (e *Emulator) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= e.grid.Rows {
		return e.grid.Rows - 1
	}
	return r
}

func (e *Emulator) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= e.grid.Cols {
		return e.grid.Cols - 1
	}
	return c
}

// csiParams splits a CSI parameter body on ';'. Empty entries stay empty
// so callers can apply per-position defaults.
func csiParams(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, ";")
}

// param returns the i-th numeric parameter, with def for missing, empty
// or malformed entries. Zero also maps to def for the movement commands
// that treat 0 as 1; ED/EL pass def 0 so zero stays zero.
func param(params []string, i, def int) int {
	if i >= len(params) || params[i] == "" {
		return def
	}
	n, err := strconv.Atoi(params[i])
	if err != nil || n < 0 {
		return def
	}
	if n == 0 && def != 0 {
		return def
	}
	return n
}

// isIncompleteEscape reports whether seq looks like the beginning of an
// escape sequence whose terminator has not arrived yet.
func isIncompleteEscape(seq string) bool {
	if len(seq) == 0 || seq[0] != 0x1B {
		return false
	}
	if len(seq) == 1 {
		return true
	}
	switch seq[1] {
	case '[': // CSI: terminated by a final byte in 0x40..0x7E
		last := seq[len(seq)-1]
		return last < 0x40 || last > 0x7E
	case ']', 'P', '_', '^', 'X': // OSC/DCS/APC/PM/SOS: terminated by BEL or ST
		return !strings.HasSuffix(seq, "\a") && !strings.HasSuffix(seq, "\x1b\\")
	}
	return false
}
