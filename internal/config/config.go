// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Fetch  FetchConfig  `toml:"fetch"`
	Render RenderConfig `toml:"render"`
	Auth   AuthConfig   `toml:"auth"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the portal endpoint.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	// RateLimit is the sustained number of extract requests per second per client.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// FetchConfig configures the static strategy.
type FetchConfig struct {
	Timeout   Duration `toml:"timeout"`
	UserAgent string   `toml:"user_agent"`
}

// RenderConfig configures the headless-browser strategy.
type RenderConfig struct {
	Enabled           bool     `toml:"enabled"`
	BrowserBin        string   `toml:"browser_bin"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	NavigationTimeout Duration `toml:"navigation_timeout"`
	ElementTimeout    Duration `toml:"element_timeout"`
	IdleWindow        Duration `toml:"idle_window"`
}

// AuthConfig configures endpoint authentication.
type AuthConfig struct {
	Enabled  bool   `toml:"enabled"`
	Database string `toml:"database"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{90 * time.Second},
			RateLimit:    0.5,
			RateBurst:    3,
		},
		Fetch: FetchConfig{
			Timeout: Duration{30 * time.Second},
		},
		Render: RenderConfig{
			Enabled:           true,
			MaxConcurrent:     2,
			NavigationTimeout: Duration{30 * time.Second},
			ElementTimeout:    Duration{10 * time.Second},
			IdleWindow:        Duration{500 * time.Millisecond},
		},
		Auth: AuthConfig{
			Enabled:  true,
			Database: "~/.local/share/castgrab/users.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "castgrab"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "castgrab"), nil
}

// ConfigPath returns the path to the default config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path, false)
}

// LoadFile reads the config file at path and merges with defaults.
// A missing file is an error only when required is set.
func LoadFile(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set, got %d", c.Server.RateBurst)
	}
	if c.Fetch.Timeout.Duration <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Render.MaxConcurrent < 1 {
		return fmt.Errorf("render max_concurrent must be at least 1, got %d", c.Render.MaxConcurrent)
	}
	if c.Render.NavigationTimeout.Duration <= 0 || c.Render.ElementTimeout.Duration <= 0 {
		return fmt.Errorf("render timeouts must be positive")
	}
	if c.Render.IdleWindow.Duration < 0 {
		return fmt.Errorf("render idle_window must not be negative")
	}
	if c.Auth.Enabled && c.Auth.Database == "" {
		return fmt.Errorf("auth database path cannot be empty when auth is enabled")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("unsupported log level %q (valid: trace, debug, info, warn, error)", c.Log.Level)
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("unsupported log format %q (valid: console, json)", c.Log.Format)
	}

	return nil
}

// DatabasePath resolves ~ in the user database path.
func (c *Config) DatabasePath() (string, error) {
	path := c.Auth.Database
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
