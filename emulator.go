package emulator

import (
	"errors"
	"fmt"
	"log/slog"
)

// Emulator is a pty-backed device that publishes a fixed payload to whoever
// opens its slave side.
type Emulator struct {
	cfg    Config
	pair   *Pair
	bridge *Bridge
	opts   []Option
	log    *slog.Logger
}

// New allocates the pty pair, applies line settings, links the slave if a
// link is configured and installs the signal handlers. Nothing is written to
// the device until Run.
func New(cfg Config, opts ...Option) (*Emulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pair, err := Allocate(cfg.Ptmx)
	if err != nil {
		return nil, err
	}
	e := &Emulator{cfg: cfg, pair: pair, opts: opts, log: newSettings(opts).log}

	if err := applyLineSettings(pair.Master, cfg); err != nil {
		pair.Close()
		return nil, err
	}

	if cfg.Link != "" {
		if err := createLink(cfg.Link, pair.SlavePath); err != nil {
			pair.Close()
			return nil, err
		}
	}

	e.bridge = NewBridge()
	if err := e.bridge.Install(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// SlavePath is the device node clients open.
func (e *Emulator) SlavePath() string { return e.pair.SlavePath }

// Payload is what the device sends every interval.
func (e *Emulator) Payload() string { return e.cfg.Payload }

// Shutdown asks a running loop to stop, exactly like SIGTERM would.
func (e *Emulator) Shutdown() { e.bridge.RequestQuit() }

// Run forces the master into blocking mode and runs the event loop until it
// stops. See Loop.Run for the meaning of the results. A master that cannot be
// switched to blocking mode is never written to; Run reports it as
// StopWriteFailure with ErrBlockingMode, and the loop does not start.
func (e *Emulator) Run() (StopReason, error) {
	if !SetBlocking(e.pair.Master, true) {
		e.log.Error("failed to set blocking mode on pts device")
		return StopWriteFailure, ErrBlockingMode
	}
	return NewLoop(e.pair.Master, e.cfg, e.bridge, e.opts...).Run()
}

// Close uninstalls the signal handlers, removes the link and releases the
// master.
func (e *Emulator) Close() error {
	if e.bridge != nil {
		e.bridge.Stop()
	}
	var errs []error
	if e.cfg.Link != "" {
		if err := removeLink(e.cfg.Link, e.pair.SlavePath); err != nil {
			errs = append(errs, fmt.Errorf("remove link: %w", err))
		}
	}
	if err := e.pair.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close master: %w", err))
	}
	return errors.Join(errs...)
}
