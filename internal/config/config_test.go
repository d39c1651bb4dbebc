package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Fetch.Timeout.Duration != 30*time.Second {
		t.Errorf("default fetch timeout = %v, want 30s", cfg.Fetch.Timeout)
	}
	if cfg.Render.NavigationTimeout.Duration != 30*time.Second {
		t.Errorf("default navigation timeout = %v, want 30s", cfg.Render.NavigationTimeout)
	}
	if cfg.Render.ElementTimeout.Duration != 10*time.Second {
		t.Errorf("default element timeout = %v, want 10s", cfg.Render.ElementTimeout)
	}
	if !cfg.Render.Enabled {
		t.Error("rendering should be enabled by default")
	}
	if !cfg.Auth.Enabled {
		t.Error("auth should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, true},
		{"rate without burst", func(c *Config) { c.Server.RateBurst = 0 }, true},
		{"rate disabled without burst", func(c *Config) { c.Server.RateLimit = 0; c.Server.RateBurst = 0 }, false},
		{"zero fetch timeout", func(c *Config) { c.Fetch.Timeout.Duration = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Render.MaxConcurrent = 0 }, true},
		{"zero element timeout", func(c *Config) { c.Render.ElementTimeout.Duration = 0 }, true},
		{"negative idle window", func(c *Config) { c.Render.IdleWindow.Duration = -time.Second }, true},
		{"auth without db", func(c *Config) { c.Auth.Database = "" }, true},
		{"no auth without db", func(c *Config) { c.Auth.Enabled = false; c.Auth.Database = "" }, false},
		{"invalid level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"valid debug", func(c *Config) { c.Log.Level = "debug" }, false},
		{"invalid format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"valid json", func(c *Config) { c.Log.Format = "json" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	content := `
[server]
addr = "0.0.0.0:9000"
rate_limit = 2.0
rate_burst = 5

[fetch]
timeout = "12s"

[render]
enabled = false
max_concurrent = 4
element_timeout = "5s"

[auth]
enabled = false

[log]
level = "debug"
format = "json"
`
	dir := filepath.Join(tmpDir, "castgrab")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("addr = %q, want 0.0.0.0:9000", cfg.Server.Addr)
	}
	if cfg.Fetch.Timeout.Duration != 12*time.Second {
		t.Errorf("fetch timeout = %v, want 12s", cfg.Fetch.Timeout)
	}
	if cfg.Render.Enabled {
		t.Error("render should be disabled")
	}
	if cfg.Render.MaxConcurrent != 4 {
		t.Errorf("max_concurrent = %d, want 4", cfg.Render.MaxConcurrent)
	}
	if cfg.Render.ElementTimeout.Duration != 5*time.Second {
		t.Errorf("element timeout = %v, want 5s", cfg.Render.ElementTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.Render.NavigationTimeout.Duration != 30*time.Second {
		t.Errorf("navigation timeout = %v, want default 30s", cfg.Render.NavigationTimeout)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[fetch]\ntimeout = \"soon\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, true); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("missing file should return defaults, got addr = %q", cfg.Server.Addr)
	}
}

func TestLoadFileRequiredMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"), true); err == nil {
		t.Fatal("expected error for missing required config")
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.Auth.Database = "/tmp/castgrab/users.db"

	path, err := cfg.DatabasePath()
	if err != nil {
		t.Fatalf("DatabasePath() error: %v", err)
	}
	if path != "/tmp/castgrab/users.db" {
		t.Errorf("got %q, want /tmp/castgrab/users.db", path)
	}
}
