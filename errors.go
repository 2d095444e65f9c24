package emulator

import "errors"

// Setup failures. All of them are fatal and happen before the loop starts.
var (
	ErrDeviceOpen      = errors.New("cannot open pty multiplexer")
	ErrSlaveResolution = errors.New("cannot resolve pty slave name")
	ErrGrant           = errors.New("cannot grant pty slave")
	ErrUnlock          = errors.New("cannot unlock pty slave")
	ErrSignalInstall   = errors.New("cannot install signal handlers")
	ErrBlockingMode    = errors.New("cannot switch master to blocking mode")
	ErrLineSettings    = errors.New("cannot apply line settings")
	ErrConfig          = errors.New("invalid configuration")
	ErrLink            = errors.New("cannot link slave device")
)

// Reasons the event loop stopped on its own.
var (
	ErrPeerHangup = errors.New("peer error or hang-up")
	ErrPeerEOF    = errors.New("peer end of file")
	ErrRead       = errors.New("read from pts device")
	ErrWrite      = errors.New("write to pts device")
)

// StopReason tells why the event loop ended.
type StopReason int

const (
	// StopQuit is the clean stop: a termination request was honored.
	StopQuit StopReason = iota
	StopPeerError
	StopPeerEOF
	StopReadFailure
	StopWriteFailure
)

func (r StopReason) String() string {
	switch r {
	case StopQuit:
		return "quit"
	case StopPeerError:
		return "peer error"
	case StopPeerEOF:
		return "peer eof"
	case StopReadFailure:
		return "read failure"
	case StopWriteFailure:
		return "write failure"
	default:
		return "unknown"
	}
}

// ExitCode collapses a run outcome into a process exit status:
// 0 for a clean stop, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
