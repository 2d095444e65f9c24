package emulator

import (
	"fmt"

	"github.com/luhtfiimanal/go-serial-emulator/internal/termios"
)

// applyLineSettings sets the slave's termios through the master, so a client
// that inspects the device sees the configured raw mode and speed.
func applyLineSettings(master int, cfg Config) error {
	if !cfg.Raw && cfg.BaudRate == 0 {
		return nil
	}
	attrs, err := termios.Get(master)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLineSettings, err)
	}
	if cfg.Raw {
		termios.MakeRaw(attrs)
	}
	if cfg.BaudRate != 0 {
		if err := termios.SetSpeed(attrs, cfg.BaudRate); err != nil {
			return fmt.Errorf("%w: %w", ErrLineSettings, err)
		}
	}
	if err := termios.Set(master, attrs); err != nil {
		return fmt.Errorf("%w: %w", ErrLineSettings, err)
	}
	return nil
}
