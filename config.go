package emulator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luhtfiimanal/go-serial-emulator/internal/termios"
)

// DefaultPayload is the block of readings the emulated device publishes.
const DefaultPayload = "{\"Pressure\": 103}\n{\"Humidity\": 74}\n{\"Temperature\": 22}\n{\"Ambient_Light\": 40}\n"

const (
	DefaultPtmx        = "/dev/ptmx"
	DefaultInterval    = 5 * time.Second
	DefaultPollTimeout = 500 * time.Millisecond

	// slaveNameSize is the name buffer size handed to OpenPTYPair by Allocate.
	slaveNameSize = 256
)

// Config holds everything that shapes the emulated device. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// Ptmx is the pty multiplexer device.
	Ptmx string `yaml:"ptmx"`
	// Payload is written to the peer once per Interval.
	Payload string `yaml:"payload"`
	// PayloadFile, when set, replaces Payload with the file's contents.
	PayloadFile string `yaml:"payload_file"`
	// Interval is the pacing delay before each payload write.
	Interval time.Duration `yaml:"interval"`
	// PollTimeout bounds each readiness wait, and with it how long a quit
	// request can go unnoticed while the peer is silent.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// BaudRate is stored in the slave's termios. Zero leaves it alone.
	BaudRate int `yaml:"baud_rate"`
	// Raw switches the slave to raw mode so the peer sees bytes unmodified
	// and nothing is echoed back.
	Raw bool `yaml:"raw"`
	// Link, when set, is a symlink kept pointing at the slave device.
	Link string `yaml:"link"`
}

// DefaultConfig returns the fixed device behavior: the four-line payload every
// five seconds, polled with a half second timeout.
func DefaultConfig() Config {
	return Config{
		Ptmx:        DefaultPtmx,
		Payload:     DefaultPayload,
		Interval:    DefaultInterval,
		PollTimeout: DefaultPollTimeout,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}
	if err := cfg.ResolvePayload(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ResolvePayload loads PayloadFile into Payload. It is a no-op when no file
// is configured.
func (c *Config) ResolvePayload() error {
	if c.PayloadFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.PayloadFile)
	if err != nil {
		return fmt.Errorf("%w: payload file: %v", ErrConfig, err)
	}
	c.Payload = string(data)
	return nil
}

// Validate reports the first setting the emulator cannot run with.
func (c Config) Validate() error {
	if c.Ptmx == "" {
		return fmt.Errorf("%w: empty ptmx path", ErrConfig)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: negative interval %s", ErrConfig, c.Interval)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("%w: poll timeout must be positive, got %s", ErrConfig, c.PollTimeout)
	}
	if c.BaudRate != 0 {
		if _, err := termios.Speed(c.BaudRate); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	return nil
}
