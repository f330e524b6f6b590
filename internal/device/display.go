package device

import (
	"bytes"
	"io"
)

// Display is a character output device the render loop can draw to.
// The hardware build backs it with the LCD driver; the software viewer
// backs it with an ANSI terminal.
type Display interface {
	// Size returns the display geometry in character cells.
	Size() (rows, cols int)
	// Render replaces the whole display contents. Lines beyond the
	// display height are ignored; short lines are padded.
	Render(lines []string) error
	// Close restores the device to an idle state.
	Close() error
}

// ANSIDisplay draws to an ANSI terminal. It repaints in place using
// cursor addressing, so the viewer does not scroll the host terminal.
type ANSIDisplay struct {
	w       io.Writer
	rows    int
	cols    int
	started bool
}

// NewANSIDisplay creates a display of rows x cols cells writing ANSI
// sequences to w, normally the viewer's stdout in raw mode.
func NewANSIDisplay(w io.Writer, rows, cols int) *ANSIDisplay {
	return &ANSIDisplay{w: w, rows: rows, cols: cols}
}

// Size returns the display geometry.
func (d *ANSIDisplay) Size() (int, int) {
	return d.rows, d.cols
}

// Render repaints the display. The first render clears the screen and
// hides the cursor; later renders only reposition and overwrite.
func (d *ANSIDisplay) Render(lines []string) error {
	var buf bytes.Buffer
	if !d.started {
		buf.WriteString("\x1b[2J\x1b[?25l")
		d.started = true
	}
	buf.WriteString("\x1b[H")
	for r := 0; r < d.rows; r++ {
		line := ""
		if r < len(lines) {
			line = lines[r]
		}
		if len(line) > d.cols {
			line = line[:d.cols]
		}
		buf.WriteString(line)
		for i := len(line); i < d.cols; i++ {
			buf.WriteByte(' ')
		}
		buf.WriteString("\x1b[K")
		if r < d.rows-1 {
			buf.WriteString("\r\n")
		}
	}
	_, err := d.w.Write(buf.Bytes())
	return err
}

// Close shows the cursor again and moves past the drawn area.
func (d *ANSIDisplay) Close() error {
	if !d.started {
		return nil
	}
	_, err := io.WriteString(d.w, "\x1b[?25h\r\n")
	return err
}
