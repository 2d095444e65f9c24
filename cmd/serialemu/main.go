//go:build linux

// Command serialemu publishes canned sensor readings on a pseudo-terminal so
// that serial clients can be exercised without the device attached.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	emulator "github.com/luhtfiimanal/go-serial-emulator"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliFlags struct {
	configPath  *string
	ptmx        *string
	interval    *time.Duration
	pollTimeout *time.Duration
	payloadFile *string
	link        *string
	baud        *int
	raw         *bool
	verbose     *bool
}

func newFlags(stderr io.Writer) (*flag.FlagSet, *cliFlags) {
	fs := flag.NewFlagSet("serialemu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs, &cliFlags{
		configPath:  fs.String("config", "", "path to a YAML config file"),
		ptmx:        fs.String("ptmx", emulator.DefaultPtmx, "pty multiplexer device"),
		interval:    fs.Duration("interval", emulator.DefaultInterval, "pacing delay between payloads"),
		pollTimeout: fs.Duration("poll-timeout", emulator.DefaultPollTimeout, "readiness wait ceiling"),
		payloadFile: fs.String("payload-file", "", "file whose contents replace the payload"),
		link:        fs.String("link", "", "symlink to keep pointing at the slave device"),
		baud:        fs.Int("baud", 0, "baud rate to report on the slave device"),
		raw:         fs.Bool("raw", false, "put the slave device in raw mode"),
		verbose:     fs.Bool("v", false, "debug logging"),
	}
}

// config starts from the defaults, or the config file if one is given, and
// applies every flag that was set on the command line, zero values included.
func (f *cliFlags) config(fs *flag.FlagSet) (emulator.Config, error) {
	cfg := emulator.DefaultConfig()
	if *f.configPath != "" {
		var err error
		if cfg, err = emulator.LoadConfig(*f.configPath); err != nil {
			return cfg, fmt.Errorf("load %s: %w", *f.configPath, err)
		}
	}

	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "ptmx":
			cfg.Ptmx = *f.ptmx
		case "interval":
			cfg.Interval = *f.interval
		case "poll-timeout":
			cfg.PollTimeout = *f.pollTimeout
		case "link":
			cfg.Link = *f.link
		case "baud":
			cfg.BaudRate = *f.baud
		case "raw":
			cfg.Raw = *f.raw
		case "payload-file":
			cfg.PayloadFile = *f.payloadFile
			err = cfg.ResolvePayload()
		}
	})
	return cfg, err
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, f := newFlags(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level := slog.LevelInfo
	if *f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := f.config(fs)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	em, err := emulator.New(cfg, emulator.WithLogger(log))
	if err != nil {
		log.Error("failed to start device", "error", err)
		return 1
	}
	defer func() {
		if err := em.Close(); err != nil {
			log.Warn("cleanup failed", "error", err)
		}
	}()

	fmt.Fprintf(stdout, "Create PTS device: %s\n", em.SlavePath())
	if cfg.Link != "" {
		fmt.Fprintf(stdout, "Linked as: %s\n", cfg.Link)
	}
	fmt.Fprintln(stdout, "Device ready, connect your application")
	fmt.Fprintf(stdout, "Sending JSON message\n%s", em.Payload())

	// The loop logs read and write failures itself.
	reason, err := em.Run()
	log.Debug("device stopped", "reason", reason, "error", err)

	fmt.Fprintln(stdout, "\nexited")
	return emulator.ExitCode(err)
}
