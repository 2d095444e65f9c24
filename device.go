package emulator

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Pair is an allocated pseudo-terminal. Master is owned by the event loop;
// SlavePath is what a client opens to talk to the emulated device.
type Pair struct {
	Master    int
	SlavePath string

	closeOnce sync.Once
	closeErr  error
}

// Allocate opens a pty pair through ptmx and returns it ready for a peer to
// open the slave side.
func Allocate(ptmx string) (*Pair, error) {
	name := make([]byte, slaveNameSize)
	fd, err := OpenPTYPair(ptmx, name)
	if err != nil {
		return nil, err
	}
	return &Pair{Master: fd, SlavePath: cString(name)}, nil
}

// Close releases the master descriptor. The slave node disappears once every
// descriptor on it is closed as well.
func (p *Pair) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = unix.Close(p.Master)
	})
	return p.closeErr
}

// OpenPTYPair opens the multiplexer at ptmx, writes the slave device path into
// name as a NUL-terminated string, then grants and unlocks the slave. A name
// buffer too small for the path receives a truncated, still terminated copy.
// On any failure the master is closed before returning.
func OpenPTYPair(ptmx string, name []byte) (int, error) {
	fd, err := unix.Open(ptmx, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: %s: %w", ErrDeviceOpen, ptmx, err)
	}

	slave, err := ptsname(fd)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: %w", ErrSlaveResolution, err)
	}
	terminateName(name, slave)

	if err := grantpt(slave); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: %s: %w", ErrGrant, slave, err)
	}
	if err := unlockpt(fd); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: %s: %w", ErrUnlock, slave, err)
	}
	return fd, nil
}

func ptsname(fd int) (string, error) {
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/dev/pts/%d", n), nil
}

// grantpt checks the slave node is a character device and makes it owned by,
// and readable and writable for, the calling user.
func grantpt(slave string) error {
	var st unix.Stat_t
	if err := unix.Stat(slave, &st); err != nil {
		return err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return fmt.Errorf("not a character device")
	}
	uid := os.Getuid()
	if int(st.Uid) != uid {
		if err := unix.Chown(slave, uid, -1); err != nil {
			return err
		}
	}
	if st.Mode&0o600 != 0o600 {
		if err := unix.Chmod(slave, st.Mode&0o777|0o600); err != nil {
			return err
		}
	}
	return nil
}

func unlockpt(fd int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0)
}

// terminateName copies src into buf, truncating as needed, and always leaves
// a NUL within buf. An empty buf is left untouched.
func terminateName(buf []byte, src string) {
	if len(buf) == 0 {
		return
	}
	n := copy(buf[:len(buf)-1], src)
	buf[n] = 0
}

func cString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}
