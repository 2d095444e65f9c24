package emulator

import "golang.org/x/sys/unix"

// SetBlocking clears (blocking) or sets O_NONBLOCK on fd. It reports false,
// leaving fd untouched, if the current flags cannot be read, and false if the
// new flags cannot be written.
func SetBlocking(fd int, blocking bool) bool {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false
	}
	if blocking {
		flags &^= unix.O_NONBLOCK
	} else {
		flags |= unix.O_NONBLOCK
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	return err == nil
}
