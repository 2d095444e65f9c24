// Package serial is a killable, line-oriented reader for Linux serial devices.
// It is the client side of the emulator: anything that opens the emulated
// slave device can use it to consume the readings the device publishes.
//
// Example usage:
//
//	port, err := serial.Open("/dev/pts/3", serial.WithDelimiter("\n"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	go port.ReadLinesLoop(
//	    func(line string) { fmt.Println("Received:", line) },
//	    func(err error) { log.Println("Read error:", err) },
//	)
package serial

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/luhtfiimanal/go-serial-emulator/internal/termios"
)

// ErrClosed is returned by reads and writes on a closed port, including those
// unblocked by Close.
var ErrClosed = errors.New("serial port closed")

const (
	readChunk = 4096
	// A tty that polls writable has room for at least this many bytes.
	writeChunk = 256
)

// Port is an open serial device. Reads and writes block in poll(2) together
// with a self-pipe so that Close can wake them from another goroutine.
//
// Reads and writes hold mu shared for as long as they use fd; Close takes it
// exclusively, after waking them, before releasing the descriptors.
type Port struct {
	fd        int
	path      string
	delimiter string
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	pipeR     int
	pipeW     int
	pending   string
}

type options struct {
	baudRate  int
	delimiter string
	raw       bool
}

// Option tunes how Open configures the device.
type Option func(*options)

// WithBaudRate sets the line speed. Zero leaves the current speed untouched.
func WithBaudRate(baud int) Option {
	return func(o *options) { o.baudRate = baud }
}

// WithDelimiter sets the line terminator used by ReadLine and ReadLinesLoop.
func WithDelimiter(d string) Option {
	return func(o *options) { o.delimiter = d }
}

// WithCooked keeps the device's canonical line discipline instead of
// switching it to raw mode.
func WithCooked() Option {
	return func(o *options) { o.raw = false }
}

// Open opens the device at path for reading and writing. Unless WithCooked is
// given the line is switched to raw mode so bytes arrive unmodified.
func Open(path string, opts ...Option) (*Port, error) {
	o := options{delimiter: "\n", raw: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.delimiter == "" {
		return nil, errors.New("empty delimiter")
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := configure(fd, o); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Blocking again now that configuration is done; poll does the waiting.
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &Port{
		fd:        fd,
		path:      path,
		delimiter: o.delimiter,
		done:      make(chan struct{}),
		pipeR:     pipeFds[0],
		pipeW:     pipeFds[1],
	}, nil
}

func configure(fd int, o options) error {
	if !o.raw && o.baudRate == 0 {
		return nil
	}
	attrs, err := termios.Get(fd)
	if err != nil {
		return err
	}
	if o.raw {
		termios.MakeRaw(attrs)
	}
	if o.baudRate != 0 {
		if err := termios.SetSpeed(attrs, o.baudRate); err != nil {
			return err
		}
	}
	return termios.Set(fd, attrs)
}

// Path returns the device path the port was opened with.
func (p *Port) Path() string { return p.path }

// Fd returns the underlying descriptor.
func (p *Port) Fd() int { return p.fd }

// WriteLine writes line followed by newline in full. A write stalled on a
// full device is abandoned with ErrClosed once the port is closed.
func (p *Port) WriteLine(line, newline string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	b := []byte(line + newline)
	for len(b) > 0 {
		ready, err := p.wait(unix.POLLOUT)
		if err != nil {
			return err
		}
		if !ready {
			continue
		}
		n, err := unix.Write(p.fd, b[:min(len(b), writeChunk)])
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", p.path, err)
		}
		b = b[n:]
	}
	return nil
}

// Read waits for data and returns whatever is available, up to len(buf).
// A hung up device is reported as an error wrapping EIO, never as (0, nil).
func (p *Port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for {
		ready, err := p.wait(unix.POLLIN)
		if err != nil {
			return 0, err
		}
		if !ready {
			continue
		}
		n, err := unix.Read(p.fd, buf)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", p.path, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("read %s: %w", p.path, unix.EIO)
		}
		return n, nil
	}
}

// wait blocks until the device reports events or an error, or until the
// port is closed. Callers hold mu.
func (p *Port) wait(events int16) (bool, error) {
	select {
	case <-p.done:
		return false, ErrClosed
	default:
	}

	pfd := []unix.PollFd{
		{Fd: int32(p.fd), Events: events},
		{Fd: int32(p.pipeR), Events: unix.POLLIN},
	}
	_, err := unix.Poll(pfd, -1)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	select {
	case <-p.done:
		return false, ErrClosed
	default:
	}
	if pfd[1].Revents&unix.POLLIN != 0 {
		return false, ErrClosed
	}
	if pfd[0].Revents&(events|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return true, nil
	}
	return false, nil
}

// ReadLine blocks until a full line is available and returns it without the
// delimiter. Bytes after the delimiter are kept for the next call.
func (p *Port) ReadLine() (string, error) {
	buf := make([]byte, readChunk)
	for {
		if idx := strings.Index(p.pending, p.delimiter); idx >= 0 {
			line := p.pending[:idx]
			p.pending = p.pending[idx+len(p.delimiter):]
			return line, nil
		}
		n, err := p.Read(buf)
		if err != nil {
			return "", err
		}
		p.pending += string(buf[:n])
	}
}

// ReadLinesLoop calls onLine for every complete line until the port is closed
// or a read fails. A read failure is passed to onError; Close ends the loop
// without calling onError.
func (p *Port) ReadLinesLoop(onLine func(string), onError func(error)) {
	for {
		line, err := p.ReadLine()
		if errors.Is(err, ErrClosed) {
			return
		}
		if err != nil {
			onError(err)
			return
		}
		onLine(line)
	}
}

// Close unblocks any pending reads and writes, waits for them to return, then
// releases the device. Safe to call multiple times; subsequent calls are
// no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		unix.Write(p.pipeW, []byte{1})

		p.mu.Lock()
		defer p.mu.Unlock()
		err = unix.Close(p.fd)
		unix.Close(p.pipeR)
		unix.Close(p.pipeW)
	})
	return err
}
