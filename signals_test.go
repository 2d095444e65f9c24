package emulator

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func installBridge(t *testing.T) *Bridge {
	t.Helper()
	b := NewBridge()
	require.NoError(t, b.Install())
	t.Cleanup(b.Stop)
	return b
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestBridge_InitialState(t *testing.T) {
	b := NewBridge()
	require.False(t, b.QuitRequested())
	require.False(t, closed(b.Quit()))

	require.True(t, b.TakeWinch())
	require.False(t, b.TakeWinch())

	// Stop before Install is a no-op.
	b.Stop()
}

func TestBridge_InstallTwice(t *testing.T) {
	b := installBridge(t)
	require.ErrorIs(t, b.Install(), ErrSignalInstall)
}

func TestBridge_QuitSignals(t *testing.T) {
	for _, sig := range quitSignals {
		t.Run(sig.String(), func(t *testing.T) {
			b := installBridge(t)
			require.NoError(t, syscall.Kill(syscall.Getpid(), sig.(syscall.Signal)))

			require.Eventually(t, b.QuitRequested, time.Second, 5*time.Millisecond)
			require.True(t, closed(b.Quit()))
		})
	}
}

func TestBridge_Winch(t *testing.T) {
	b := installBridge(t)
	require.True(t, b.TakeWinch())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGWINCH))
	require.Eventually(t, b.TakeWinch, time.Second, 5*time.Millisecond)
	require.False(t, b.TakeWinch())
	require.False(t, b.QuitRequested())
}

func TestBridge_RequestQuit(t *testing.T) {
	b := NewBridge()
	b.RequestQuit()
	b.RequestQuit()
	require.True(t, b.QuitRequested())
	require.True(t, closed(b.Quit()))
}

func TestBridge_StopTwice(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Install())
	b.Stop()
	b.Stop()
}
