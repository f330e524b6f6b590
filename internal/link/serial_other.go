//go:build !linux

package link

import (
	"runtime"

	apperrors "github.com/picoterm/host/internal/errors"
)

// openPort is only implemented for Linux; the host targets Raspberry Pi
// class hardware. Other platforms can still run the WebSocket transport.
func openPort(path string, baud int) (*Port, error) {
	return nil, apperrors.New(apperrors.CodeLinkUnsupported,
		"serial transport is not supported on "+runtime.GOOS)
}
