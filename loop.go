package emulator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

var (
	errEmptyPayload = errors.New("empty payload")
	errQuit         = errors.New("quit requested")
)

type settings struct {
	log        *slog.Logger
	winsizeSrc *os.File
}

// Option tunes the emulator and its event loop.
type Option func(*settings)

// WithLogger sets where diagnostics go. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithWinsizeSource sets the terminal whose window size is mirrored onto the
// emulated device. Defaults to os.Stdin; nil disables the sync.
func WithWinsizeSource(f *os.File) Option {
	return func(s *settings) { s.winsizeSrc = f }
}

func newSettings(opts []Option) settings {
	s := settings{log: slog.Default(), winsizeSrc: os.Stdin}
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Loop drives the master side of the device: it waits for the peer, drains
// and discards whatever the peer sends, and pushes the payload once per
// interval until asked to quit or the peer goes away.
//
// The loop is single-threaded. The only state it shares is the Signals it
// polls between steps.
type Loop struct {
	fd          int
	payload     []byte
	interval    time.Duration
	pollTimeout time.Duration
	sig         Signals
	buf         []byte
	settings
}

// NewLoop prepares a loop over an open, blocking pty master.
func NewLoop(master int, cfg Config, sig Signals, opts ...Option) *Loop {
	payload := []byte(cfg.Payload)
	return &Loop{
		fd:          master,
		payload:     payload,
		interval:    cfg.Interval,
		pollTimeout: max(cfg.PollTimeout, time.Millisecond),
		sig:         sig,
		buf:         make([]byte, max(len(payload), 1)),
		settings:    newSettings(opts),
	}
}

// Run loops until it stops. A nil error means a clean stop: a quit was
// requested, or there is nothing to send. Any other stop returns an error
// matching one of ErrPeerHangup, ErrPeerEOF, ErrRead or ErrWrite.
func (l *Loop) Run() (StopReason, error) {
	for !l.sig.QuitRequested() {
		revents, err := l.wait()
		if err != nil {
			l.log.Error("failed to poll pts device", "error", err)
			return StopPeerError, fmt.Errorf("%w: poll: %w", ErrPeerHangup, err)
		}

		if err := l.drain(revents); err != nil {
			return reasonOf(err), err
		}

		if l.sig.TakeWinch() {
			if _, err := syncWinsize(l.winsizeSrc, l.fd); err != nil {
				l.log.Warn("failed to update window size", "error", err)
			}
		}

		err = l.deliver()
		switch {
		case errors.Is(err, errEmptyPayload):
			return StopPeerEOF, nil
		case errors.Is(err, errQuit):
			return StopQuit, nil
		case err != nil:
			return StopWriteFailure, err
		}
	}
	return StopQuit, nil
}

// wait blocks for at most pollTimeout. A timeout or an interrupted poll
// yields no events.
func (l *Loop) wait() (int16, error) {
	pfd := []unix.PollFd{{Fd: int32(l.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, int(l.pollTimeout.Milliseconds()))
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return pfd[0].Revents, nil
}

// drain reads one buffer's worth of pending input and throws it away.
func (l *Loop) drain(revents int16) error {
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return fmt.Errorf("%w: revents %#x", ErrPeerHangup, revents)
	}
	if revents&unix.POLLIN == 0 {
		return nil
	}

	n, err := unix.Read(l.fd, l.buf)
	switch {
	case err == unix.EINTR || err == unix.EAGAIN:
		return nil
	case err == unix.EIO:
		// Linux reports a slave with no open descriptors this way.
		return fmt.Errorf("%w: %w", ErrPeerEOF, err)
	case err != nil:
		l.log.Error("failed to read from pts device", "error", err)
		return fmt.Errorf("%w: %w", ErrRead, err)
	case n == 0:
		return ErrPeerEOF
	}
	return nil
}

// deliver waits out the pacing delay and writes the whole payload. A quit
// request during the delay cancels the write; one made while the write is
// stalled on a peer that stopped reading abandons the rest of it.
func (l *Loop) deliver() error {
	if len(l.payload) == 0 {
		return errEmptyPayload
	}

	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-l.sig.Quit():
		return errQuit
	}

	err := writeFull(l.fd, l.payload, l.pollTimeout, l.sig.QuitRequested)
	switch {
	case errors.Is(err, errQuit):
		return err
	case err != nil:
		l.log.Error("failed to write to pts device", "error", err)
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// writeChunk bounds each write. When a pty master polls writable at least
// one 256-byte tty buffer unit is free, so a chunk this size never blocks.
const writeChunk = 256

// writeFull writes b to fd in chunks, waiting up to pollTimeout at a time for
// fd to become writable, and retrying short and interrupted writes. A hung up
// fd fails with EPIPE, an invalid one with EBADF. While fd stays unwritable,
// stop is consulted after every wait; when it reports true writeFull gives up
// with errQuit. A nil stop never gives up.
func writeFull(fd int, b []byte, pollTimeout time.Duration, stop func() bool) error {
	for len(b) > 0 {
		ready, err := waitWritable(fd, pollTimeout)
		if err != nil {
			return err
		}
		if !ready {
			if stop != nil && stop() {
				return errQuit
			}
			continue
		}

		n, err := unix.Write(fd, b[:min(len(b), writeChunk)])
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func waitWritable(fd int, timeout time.Duration) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, int(max(timeout, time.Millisecond).Milliseconds()))
	if err == unix.EINTR || n == 0 {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	revents := pfd[0].Revents
	switch {
	case revents&unix.POLLNVAL != 0:
		return false, fmt.Errorf("revents %#x: %w", revents, unix.EBADF)
	case revents&(unix.POLLHUP|unix.POLLERR) != 0:
		return false, fmt.Errorf("revents %#x: %w", revents, unix.EPIPE)
	}
	return revents&unix.POLLOUT != 0, nil
}

func reasonOf(err error) StopReason {
	switch {
	case err == nil:
		return StopQuit
	case errors.Is(err, ErrPeerHangup):
		return StopPeerError
	case errors.Is(err, ErrPeerEOF):
		return StopPeerEOF
	case errors.Is(err, ErrRead):
		return StopReadFailure
	default:
		return StopWriteFailure
	}
}
