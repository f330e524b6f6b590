// Package shell runs the interactive shell under a PTY.
//
// A PTY (pseudo-terminal) is a master/slave pair of virtual devices: the
// shell runs attached to the slave and believes it has a real terminal,
// while the bridge reads output and writes input through the master. The
// PTY is sized to the configured grid geometry so the shell's own idea of
// the screen matches what the emulator maintains.
package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	apperrors "github.com/picoterm/host/internal/errors"
)

// readChunkSize is the PTY read buffer size. Reads return as soon as any
// data is available, so interactive output (prompt redraws, cursor
// movement) flows through without waiting for newlines.
const readChunkSize = 4096

// Session is one running shell attached to a PTY.
type Session struct {
	cmd  *exec.Cmd
	ptmx *os.File

	// out delivers raw output chunks to the single consumer (the host
	// event loop). It is closed when the output capture goroutine exits.
	out chan []byte

	// done is closed after the process has exited and the PTY is closed.
	done chan struct{}

	// outputDone is closed when the capture goroutine exits, so the PTY
	// fd is never closed underneath an in-flight read.
	outputDone chan struct{}

	mu      sync.Mutex
	running bool
	readErr error
}

// Start spawns command under a new PTY sized rows x cols and begins
// capturing its output.
func Start(command string, args []string, rows, cols int) (*Session, error) {
	s := &Session{
		out:        make(chan []byte, 16),
		done:       make(chan struct{}),
		outputDone: make(chan struct{}),
	}

	s.cmd = exec.Command(command, args...)
	ptmx, err := pty.StartWithSize(s.cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSessionSpawnFailed,
			fmt.Sprintf("cannot start %s under a pty", command), err)
	}
	s.ptmx = ptmx
	s.running = true

	go s.captureOutput()
	go s.waitForExit()
	return s, nil
}

// Output returns the channel of raw output chunks. The channel is closed
// when the shell's output stream ends (normally because the shell exited).
func (s *Session) Output() <-chan []byte {
	return s.out
}

// Done returns a channel closed once the shell process has exited and
// the PTY has been released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports the read error that ended output capture, if it was
// anything other than the PTY closing normally.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

// Write sends input bytes to the shell.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	ptmx := s.ptmx
	s.mu.Unlock()
	if ptmx == nil {
		return 0, apperrors.New(apperrors.CodeSessionExited, "shell session is not running")
	}
	return ptmx.Write(p)
}

// Resize changes the PTY dimensions, which delivers SIGWINCH to the
// shell so full-screen programs redraw at the new geometry.
func (s *Session) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptmx == nil {
		return apperrors.New(apperrors.CodeSessionExited, "shell session is not running")
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Stop terminates the session forcefully: closes the PTY master (which
// EOFs the capture goroutine) and kills the process if still alive.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.ptmx != nil {
		s.ptmx.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

// captureOutput reads PTY output in chunks and forwards each chunk to
// the output channel. Chunks are copied: the consumer may hold them
// across further reads.
func (s *Session) captureOutput() {
	defer close(s.outputDone)
	defer close(s.out)
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.out <- chunk
		}
		if err != nil {
			// Reading the master after the child exits fails with EIO
			// on Linux; that and plain EOF are the normal end of the
			// stream, anything else is worth reporting.
			if err != io.EOF && !isClosedPTY(err) {
				s.mu.Lock()
				s.readErr = err
				s.mu.Unlock()
			}
			return
		}
	}
}

// waitForExit reaps the child and releases the PTY after output capture
// has drained.
func (s *Session) waitForExit() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Wait()
	}

	// Wait for the capture goroutine to finish before closing the fd
	// under it. The host loop is the sole consumer of the output
	// channel; draining it here would steal chunks from it.
	<-s.outputDone

	s.mu.Lock()
	s.running = false
	if s.ptmx != nil {
		s.ptmx.Close()
		s.ptmx = nil
	}
	s.mu.Unlock()
	close(s.done)
}

// isClosedPTY reports whether err is the expected error from reading a
// PTY master whose slave side has gone away.
func isClosedPTY(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*os.PathError); ok {
		err = pe.Err
	}
	msg := err.Error()
	return msg == "input/output error" || msg == "file already closed" ||
		msg == "use of closed file" || msg == "read: input/output error"
}
