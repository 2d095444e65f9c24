package termios

import (
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSpeed(t *testing.T) {
	s, err := Speed(9600)
	require.NoError(t, err)
	require.Equal(t, uint32(unix.B9600), s)

	s, err = Speed(115200)
	require.NoError(t, err)
	require.Equal(t, uint32(unix.B115200), s)

	_, err = Speed(12345)
	require.Error(t, err)
}

func TestMakeRawAndSetSpeed(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	fd := int(slave.Fd())
	attrs, err := Get(fd)
	require.NoError(t, err)

	MakeRaw(attrs)
	require.NoError(t, SetSpeed(attrs, 19200))
	require.NoError(t, Set(fd, attrs))

	got, err := Get(fd)
	require.NoError(t, err)
	assert.Zero(t, got.Lflag&(unix.ECHO|unix.ICANON|unix.ISIG))
	assert.Zero(t, got.Oflag&unix.OPOST)
	assert.Equal(t, uint32(unix.CS8), got.Cflag&unix.CSIZE)
	assert.Equal(t, uint32(unix.B19200), got.Cflag&unix.CBAUD)
	assert.Equal(t, uint8(1), got.Cc[unix.VMIN])
}

func TestSetSpeedRejectsUnknownRate(t *testing.T) {
	var attrs unix.Termios
	require.Error(t, SetSpeed(&attrs, 31337))
	require.Zero(t, attrs.Cflag)
}
