package emulator

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// quitSignals end the emulator.
var quitSignals = []os.Signal{
	syscall.SIGALRM,
	syscall.SIGHUP,
	syscall.SIGPIPE,
	syscall.SIGQUIT,
	syscall.SIGTERM,
	syscall.SIGINT,
}

// Signals is the shutdown state the event loop polls between steps.
type Signals interface {
	QuitRequested() bool
	// TakeWinch reports whether a window change arrived since the last call
	// and clears the flag.
	TakeWinch() bool
	// Quit is closed once a quit has been requested.
	Quit() <-chan struct{}
}

// Bridge turns asynchronous signal delivery into two flags. Each delivery is
// a single atomic store, never guarded by a lock; the first quit request also
// closes the Quit channel so a pacing delay in progress ends early.
//
// The Go runtime installs its handlers with SA_RESTART, so blocking calls in
// the loop are not cut short by delivery.
type Bridge struct {
	quit      atomic.Bool
	winch     atomic.Bool
	installed atomic.Bool
	stopped   atomic.Bool
	quitOnce  atomic.Bool

	quitCh chan struct{}
	sigCh  chan os.Signal
	done   chan struct{}
}

// NewBridge returns a bridge with winch already set, so the first loop
// iteration syncs the window geometry even if no SIGWINCH ever arrives.
func NewBridge() *Bridge {
	b := &Bridge{
		quitCh: make(chan struct{}),
		sigCh:  make(chan os.Signal, len(quitSignals)+1),
		done:   make(chan struct{}),
	}
	b.winch.Store(true)
	return b
}

// Install registers the termination handlers and the SIGWINCH handler.
// A bridge can be installed once.
func (b *Bridge) Install() error {
	if !b.installed.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: already installed", ErrSignalInstall)
	}
	signal.Notify(b.sigCh, append(quitSignals, syscall.SIGWINCH)...)
	go b.deliver()
	return nil
}

func (b *Bridge) deliver() {
	for {
		select {
		case sig := <-b.sigCh:
			if sig == syscall.SIGWINCH {
				b.winch.Store(true)
			} else {
				b.RequestQuit()
			}
		case <-b.done:
			return
		}
	}
}

// Stop restores default signal behavior. The flags keep their values.
func (b *Bridge) Stop() {
	if !b.installed.Load() || !b.stopped.CompareAndSwap(false, true) {
		return
	}
	signal.Stop(b.sigCh)
	close(b.done)
}

// RequestQuit has the same effect as a termination signal.
func (b *Bridge) RequestQuit() {
	b.quit.Store(true)
	if b.quitOnce.CompareAndSwap(false, true) {
		close(b.quitCh)
	}
}

func (b *Bridge) QuitRequested() bool { return b.quit.Load() }

func (b *Bridge) TakeWinch() bool { return b.winch.Swap(false) }

func (b *Bridge) Quit() <-chan struct{} { return b.quitCh }
