// Package config provides TOML configuration file loading and parsing
// for the host. The configuration file lives at ~/.picoterm/config.toml
// by default, but can be overridden with the --config flag. CLI flags
// always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	apperrors "github.com/picoterm/host/internal/errors"
)

// Config represents the host configuration file structure. Field names
// use Go camelCase internally but map to snake_case in TOML files via
// struct tags.
type Config struct {
	// SerialPort is the device path of the serial link to the display.
	// Default: /dev/serial0 (the Raspberry Pi UART alias).
	SerialPort string `toml:"serial_port"`

	// Baud is the serial link speed. Must be one the device firmware
	// supports. Default: 115200.
	Baud int `toml:"baud"`

	// Rows and Cols set the shell screen geometry. Both must fit a
	// single header byte (1..255). Default: 24x80.
	Rows int `toml:"rows"`
	Cols int `toml:"cols"`

	// Addr is the host:port for the WebSocket frame server.
	// Default: 127.0.0.1:7171
	Addr string `toml:"addr"`

	// Shell is the command to run under the PTY. If empty, defaults to
	// $SHELL or /bin/sh.
	Shell string `toml:"shell"`

	// FlushMs is the minimum gap between snapshot frames, in
	// milliseconds. Default: 50.
	FlushMs int `toml:"flush_ms"`

	// Mirror echoes the shell session on the host's own terminal in
	// addition to streaming it. Default: false.
	Mirror bool `toml:"mirror"`

	// SerialDisabled turns the serial transport off so the host serves
	// WebSocket viewers only. Default: false.
	SerialDisabled bool `toml:"serial_disabled"`

	// EventStore is the path to the SQLite database recording sessions
	// and link events. Empty disables recording.
	// Default: ~/.picoterm/picoterm.db
	EventStore string `toml:"event_store"`

	// MdnsEnabled advertises the WebSocket server over mDNS so viewers
	// on the LAN can discover the host without manual IP entry.
	// Default: false.
	MdnsEnabled bool `toml:"mdns_enabled"`
}

// Defaults for values the file or flags leave unset.
const (
	DefaultSerialPort = "/dev/serial0"
	DefaultBaud       = 115200
	DefaultRows       = 24
	DefaultCols       = 80
	DefaultAddr       = "127.0.0.1:7171"
	DefaultFlushMs    = 50
)

// DefaultConfigPath returns the default config file location:
// ~/.picoterm/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".picoterm", "config.toml"), nil
}

// DefaultEventStorePath returns ~/.picoterm/picoterm.db, or empty when
// the home directory cannot be determined.
func DefaultEventStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".picoterm", "picoterm.db")
}

// Load reads a TOML config file from the given path.
//
// Behavior:
//   - If path is empty, attempts the default location and returns an
//     empty Config without error if that file doesn't exist.
//   - If path is specified, the file must exist.
//   - A file that exists but doesn't parse is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeConfigParseFailed,
				"config file not found: %s", path)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigParseFailed,
			"failed to parse config file "+path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills in every unset field.
func (c *Config) ApplyDefaults() {
	if c.SerialPort == "" {
		c.SerialPort = DefaultSerialPort
	}
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.Rows == 0 {
		c.Rows = DefaultRows
	}
	if c.Cols == 0 {
		c.Cols = DefaultCols
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Shell == "" {
		c.Shell = os.Getenv("SHELL")
		if c.Shell == "" {
			c.Shell = "/bin/sh"
		}
	}
	if c.FlushMs == 0 {
		c.FlushMs = DefaultFlushMs
	}
	if c.EventStore == "" {
		c.EventStore = DefaultEventStorePath()
	}
}

// Validate rejects geometry the frame header cannot carry and other
// values that would fail later in a less obvious place.
func (c *Config) Validate() error {
	if c.Rows < 1 || c.Rows > 255 {
		return apperrors.Newf(apperrors.CodeConfigInvalidGeometry,
			"rows must be 1..255, got %d", c.Rows)
	}
	if c.Cols < 1 || c.Cols > 255 {
		return apperrors.Newf(apperrors.CodeConfigInvalidGeometry,
			"cols must be 1..255, got %d", c.Cols)
	}
	if c.FlushMs < 1 {
		return apperrors.Newf(apperrors.CodeConfigParseFailed,
			"flush_ms must be positive, got %d", c.FlushMs)
	}
	if !c.SerialDisabled && c.SerialPort == "" {
		return apperrors.New(apperrors.CodeConfigBadPort,
			"serial_port is empty and serial is not disabled")
	}
	return nil
}
