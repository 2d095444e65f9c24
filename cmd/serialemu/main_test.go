//go:build linux

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	emulator "github.com/luhtfiimanal/go-serial-emulator"
	"github.com/luhtfiimanal/go-serial-emulator/serial"
)

// syncBuffer collects output written by run from another goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

var devicePath = regexp.MustCompile(`Create PTS device: (\S+)\n`)

func TestRun_DeviceUnavailable(t *testing.T) {
	var stdout, stderr syncBuffer
	code := run([]string{"-ptmx", "/nonexistent/ptmx"}, &stdout, &stderr)

	require.Equal(t, 1, code)
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), "failed to start device")
	require.Contains(t, stderr.String(), "/nonexistent/ptmx")
}

func TestRun_BadFlags(t *testing.T) {
	var stdout, stderr syncBuffer
	require.Equal(t, 2, run([]string{"-interval", "soon"}, &stdout, &stderr))
	require.Equal(t, 0, run([]string{"-h"}, &stdout, &stderr))
	require.Equal(t, 1, run([]string{"-poll-timeout", "0"}, &stdout, &stderr))
	require.Empty(t, stdout.String())
}

func TestRun_PublishesUntilTerminated(t *testing.T) {
	var stdout, stderr syncBuffer
	code := make(chan int, 1)
	go func() {
		code <- run([]string{"-interval", "100ms", "-poll-timeout", "20ms"}, &stdout, &stderr)
	}()

	var path string
	require.Eventually(t, func() bool {
		m := devicePath.FindStringSubmatch(stdout.String())
		if m == nil {
			return false
		}
		path = m[1]
		return true
	}, 2*time.Second, 10*time.Millisecond)

	peer, err := serial.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	lines := make(chan string, 1)
	go func() {
		line, err := peer.ReadLine()
		if err == nil {
			lines <- line
		}
	}()
	select {
	case line := <-lines:
		require.Equal(t, `{"Pressure": 103}`, line)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the first reading")
	}

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case c := <-code:
		require.Equal(t, 0, c)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for run to return after SIGTERM")
	}

	out := stdout.String()
	banners := []string{
		"Create PTS device: " + path + "\n",
		"Device ready, connect your application\n",
		"Sending JSON message\n" + emulator.DefaultPayload,
		"\nexited\n",
	}
	at := 0
	for _, b := range banners {
		i := strings.Index(out[at:], b)
		require.GreaterOrEqual(t, i, 0, "missing or out of order: %q in %q", b, out)
		at += i + len(b)
	}
	require.Equal(t, len(out), at)
	require.NotContains(t, stderr.String(), "level=ERROR")
}

func TestConfigFromFlags(t *testing.T) {
	fs, f := newFlags(io.Discard)
	require.NoError(t, fs.Parse([]string{"-interval", "0", "-raw", "-baud", "9600"}))

	cfg, err := f.config(fs)
	require.NoError(t, err)
	require.Zero(t, cfg.Interval)
	require.True(t, cfg.Raw)
	require.Equal(t, 9600, cfg.BaudRate)
	require.Equal(t, emulator.DefaultPollTimeout, cfg.PollTimeout)
	require.Equal(t, emulator.DefaultPtmx, cfg.Ptmx)
	require.Equal(t, emulator.DefaultPayload, cfg.Payload)
}

func TestConfigFromFlags_OverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serialemu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interval: 1s\nraw: true\nbaud_rate: 9600\n"), 0o600))
	payload := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(payload, []byte("{\"Wind\": 3}\n"), 0o600))

	fs, f := newFlags(io.Discard)
	require.NoError(t, fs.Parse([]string{"-config", path, "-raw=false", "-payload-file", payload}))

	cfg, err := f.config(fs)
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.Interval)
	require.False(t, cfg.Raw)
	require.Equal(t, 9600, cfg.BaudRate)
	require.Equal(t, "{\"Wind\": 3}\n", cfg.Payload)

	fs, f = newFlags(io.Discard)
	require.NoError(t, fs.Parse([]string{"-payload-file", filepath.Join(dir, "missing")}))
	_, err = f.config(fs)
	require.ErrorIs(t, err, emulator.ErrConfig)
}
