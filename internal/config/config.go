// Package config holds the persisted librarian settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Config is stored as JSON under the user's config directory.
type Config struct {
	MIDI     MIDIConfig `json:"midi"`
	Timeouts Timeouts   `json:"timeouts"`
	LogLevel string     `json:"log_level"`
	// ExportDir is where exported .syx files go when no path is given.
	ExportDir string `json:"export_dir"`
}

type MIDIConfig struct {
	Input    string `json:"input"`  // port name fragment, case-insensitive
	Output   string `json:"output"` // port name fragment, case-insensitive
	DeviceID int    `json:"device_id"`
	Channel  int    `json:"channel"` // 0-based, used for CC
}

// Timeouts are Go duration strings such as "2s" or "50ms".
type Timeouts struct {
	Request string `json:"request"`
	Bank    string `json:"bank"`
	SendGap string `json:"send_gap"`
	Verify  string `json:"verify"`
}

func Default() *Config {
	return &Config{
		MIDI:     MIDIConfig{Input: "nova", Output: "nova", DeviceID: 0, Channel: 0},
		Timeouts: Timeouts{Request: "2s", Bank: "30s", SendGap: "50ms", Verify: "500ms"},
		LogLevel: "info",
	}
}

// Path returns the default location of the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "novamcp", "config.json"), nil
}

// Load reads the config from the default location. A missing file yields
// the defaults.
func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	c, err := LoadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

// LoadFile reads a config file. Fields absent from the file keep their
// default values.
func LoadFile(path string) (*Config, error) {
	bt, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := json.Unmarshal(bt, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes the config to the default location.
func Save(c *Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(c, p)
}

func SaveFile(c *Config, path string) error {
	if c == nil {
		return errors.New("nil config")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	bt, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bt, 0o600)
}

// Validate checks ranges, durations and the log level.
func (c *Config) Validate() error {
	if c.MIDI.DeviceID < 0 || c.MIDI.DeviceID > 127 {
		return fmt.Errorf("midi.device_id must be in range 0-127, got %d", c.MIDI.DeviceID)
	}
	if c.MIDI.Channel < 0 || c.MIDI.Channel > 15 {
		return fmt.Errorf("midi.channel must be in range 0-15, got %d", c.MIDI.Channel)
	}
	for name, v := range map[string]string{
		"timeouts.request":  c.Timeouts.Request,
		"timeouts.bank":     c.Timeouts.Bank,
		"timeouts.send_gap": c.Timeouts.SendGap,
		"timeouts.verify":   c.Timeouts.Verify,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func mustDuration(s, fallback string) time.Duration {
	if d, err := parseDuration(s); err == nil {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

func (c *Config) RequestTimeout() time.Duration { return mustDuration(c.Timeouts.Request, "2s") }
func (c *Config) BankTimeout() time.Duration    { return mustDuration(c.Timeouts.Bank, "30s") }
func (c *Config) SendGap() time.Duration        { return mustDuration(c.Timeouts.SendGap, "50ms") }
func (c *Config) VerifyDelay() time.Duration    { return mustDuration(c.Timeouts.Verify, "500ms") }

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
