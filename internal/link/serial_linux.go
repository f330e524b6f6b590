//go:build linux

package link

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	apperrors "github.com/picoterm/host/internal/errors"
)

// baudFlags maps supported rates to the termios speed constants.
var baudFlags = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// openPort opens the device and puts it into raw mode via termios.
// O_NOCTTY keeps the device from becoming our controlling terminal,
// which would otherwise route job-control signals through it.
func openPort(path string, baud int) (*Port, error) {
	flag, ok := baudFlags[baud]
	if !ok {
		return nil, apperrors.New(apperrors.CodeLinkOpenFailed,
			fmt.Sprintf("unsupported baud rate %d", baud))
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
			fmt.Sprintf("cannot open serial device %s", path), err)
	}

	fd := int(f.Fd())
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
			fmt.Sprintf("%s is not a terminal device", path), err)
	}

	// Raw 8N1: no input translation, no echo, no signals, no output
	// processing. The frame protocol is binary and byte-exact.
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= flag
	tio.Ispeed = flag
	tio.Ospeed = flag

	// Block until at least one byte arrives, with no inter-byte timer.
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		f.Close()
		return nil, apperrors.Wrap(apperrors.CodeLinkOpenFailed,
			fmt.Sprintf("cannot configure %s", path), err)
	}

	// Drop whatever accumulated in the buffers before we attached.
	_ = unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)

	return &Port{f: f}, nil
}
