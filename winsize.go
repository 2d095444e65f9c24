package emulator

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// syncWinsize copies the window size of src onto the pty master, which makes
// it the size the peer sees on the slave. It reports false without error when
// src is not a terminal.
func syncWinsize(src *os.File, master int) (bool, error) {
	if src == nil || !term.IsTerminal(int(src.Fd())) {
		return false, nil
	}
	ws, err := pty.GetsizeFull(src)
	if err != nil {
		return false, fmt.Errorf("get window size: %w", err)
	}
	err = unix.IoctlSetWinsize(master, unix.TIOCSWINSZ, &unix.Winsize{
		Row:    ws.Rows,
		Col:    ws.Cols,
		Xpixel: ws.X,
		Ypixel: ws.Y,
	})
	if err != nil {
		return false, fmt.Errorf("set window size: %w", err)
	}
	return true, nil
}
