// Package termios holds the line-discipline settings shared by the emulated
// device and the serial reader that connects to it.
package termios

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MakeRaw switches t to raw 8-bit mode: no echo, no canonical line editing,
// no signal characters and no output post-processing. Reads return as soon as
// a single byte is available.
func MakeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

// SetSpeed stores the baud rate in the control flags of t.
func SetSpeed(t *unix.Termios, baud int) error {
	speed, err := Speed(baud)
	if err != nil {
		return err
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed
	return nil
}

// Speed maps a numeric baud rate to its termios constant.
func Speed(baud int) (uint32, error) {
	switch baud {
	case 1200:
		return unix.B1200, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, fmt.Errorf("unsupported baud rate %d", baud)
	}
}

// Get reads the terminal attributes of fd.
func Get(fd int) (*unix.Termios, error) {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}
	return t, nil
}

// Set applies t to fd immediately.
func Set(fd int, t *unix.Termios) error {
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}
