// Package config loads the link verifier's TOML configuration file and
// applies defaults for anything left unset. Fields omitted from the file
// keep their defaults, so partial configs are safe.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/banshee-data/linkcheck/internal/link"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Port is the serial device path.
	Port string
	// PortOptions carries baud rate, data bits, stop bits and parity.
	PortOptions link.PortOptions
	// Expected is the payload transmitted and graded against. Values must
	// be 1..255; zero is rejected because grading divides by it.
	Expected []byte
	// PacketsToSend is how many frames one session transmits.
	PacketsToSend int
	// ChunkSize bounds each serial read.
	ChunkSize int
	// ReadTimeout is the serial read timeout.
	ReadTimeout time.Duration
	// RecvTimeout bounds each wait for a payload.
	RecvTimeout time.Duration
	// SendDelay is the pause between transmitted frames.
	SendDelay time.Duration
	// TolerancePct is the maximum |percent error| graded as PASS.
	TolerancePct float64
	// Database is the sqlite results database path.
	Database string
	// ReportDir is where report files are written.
	ReportDir string
}

// Default returns the configuration matching the device firmware and the
// historical tester behaviour.
func Default() Config {
	return Config{
		Port:          "/dev/ttyUSB0",
		Expected:      []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110},
		PacketsToSend: 5,
		ChunkSize:     64,
		ReadTimeout:   100 * time.Millisecond,
		RecvTimeout:   time.Second,
		SendDelay:     5 * time.Millisecond,
		TolerancePct:  1.0,
		Database:      "linkcheck.db",
		ReportDir:     ".",
	}
}

// fileConfig maps the TOML keys onto raw values before overlay.
type fileConfig struct {
	Port          string           `toml:"port"`
	PortOptions   link.PortOptions `toml:"serial"`
	Expected      []int            `toml:"expected"`
	PacketsToSend int              `toml:"packets_to_send"`
	ChunkSize     int              `toml:"chunk_size"`
	ReadTimeout   string           `toml:"read_timeout"`
	RecvTimeout   string           `toml:"recv_timeout"`
	SendDelay     string           `toml:"send_delay"`
	TolerancePct  float64          `toml:"tolerance_pct"`
	Database      string           `toml:"database"`
	ReportDir     string           `toml:"report_dir"`
}

// Load reads a TOML config file and overlays it onto the defaults. Only
// keys present in the file override defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("serial") {
		cfg.PortOptions = raw.PortOptions
	}
	if meta.IsDefined("expected") {
		expected := make([]byte, len(raw.Expected))
		for i, v := range raw.Expected {
			if v < 0 || v > 255 {
				return Config{}, fmt.Errorf("load config: expected[%d] = %d out of byte range", i, v)
			}
			expected[i] = byte(v)
		}
		cfg.Expected = expected
	}
	if meta.IsDefined("packets_to_send") {
		cfg.PacketsToSend = raw.PacketsToSend
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("recv_timeout") {
		if cfg.RecvTimeout, err = parseDuration("recv_timeout", raw.RecvTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("send_delay") {
		if cfg.SendDelay, err = parseDuration("send_delay", raw.SendDelay); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("tolerance_pct") {
		cfg.TolerancePct = raw.TolerancePct
	}
	if meta.IsDefined("database") {
		cfg.Database = raw.Database
	}
	if meta.IsDefined("report_dir") {
		cfg.ReportDir = raw.ReportDir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	return d, nil
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if len(c.Expected) == 0 {
		return fmt.Errorf("expected payload must not be empty")
	}
	for i, v := range c.Expected {
		if v == 0 {
			return fmt.Errorf("expected[%d] is zero: percent error is undefined", i)
		}
	}
	if c.PacketsToSend <= 0 {
		return fmt.Errorf("packets_to_send must be positive, got %d", c.PacketsToSend)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.TolerancePct <= 0 {
		return fmt.Errorf("tolerance_pct must be positive, got %g", c.TolerancePct)
	}
	if _, err := c.PortOptions.Normalize(); err != nil {
		return err
	}
	return nil
}
