// Package link carries frames and input tokens between the host and the
// display device.
//
// Two transports are supported. The serial port is the primary one: a
// raw 8N1 UART at a configured baud rate, matching the wiring of the
// handheld display. The WebSocket server is the secondary one, used by
// the software viewer and by anything else on the LAN that wants the
// same frame stream.
package link

import (
	"fmt"
	"io"
	"os"

	apperrors "github.com/picoterm/host/internal/errors"
)

// supportedBauds are the rates the device firmware can be built for.
var supportedBauds = []int{9600, 19200, 38400, 57600, 115200, 230400}

// Port is an open serial device configured for raw byte transfer:
// 8 data bits, no parity, 1 stop bit, no flow control, no line
// discipline. Reads block until at least one byte is available.
type Port struct {
	f *os.File
}

// Open opens the serial device at path and configures it for raw 8N1
// transfer at the given baud rate. Only implemented on Linux; other
// platforms get a link.unsupported error.
func Open(path string, baud int) (*Port, error) {
	if !baudSupported(baud) {
		return nil, apperrors.New(apperrors.CodeLinkOpenFailed,
			fmt.Sprintf("unsupported baud rate %d", baud))
	}
	return openPort(path, baud)
}

func baudSupported(baud int) bool {
	for _, b := range supportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}

// Read reads raw bytes from the device. A clean io.EOF passes through
// unwrapped so stream consumers see end of input, not a link failure.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if err != nil && err != io.EOF {
		return n, apperrors.Wrap(apperrors.CodeLinkReadFailed, "serial read", err)
	}
	return n, err
}

// Write writes raw bytes to the device.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	if err != nil {
		return n, apperrors.Wrap(apperrors.CodeLinkWriteFailed, "serial write", err)
	}
	return n, nil
}

// Close releases the device.
func (p *Port) Close() error {
	return p.f.Close()
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string {
	return p.f.Name()
}
