package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, ":8080")
	}
	if cfg.Planner.Timeout != 5*time.Second {
		t.Errorf("Planner.Timeout = %v, want 5s", cfg.Planner.Timeout)
	}
	if cfg.Loader.Attempts != 3 {
		t.Errorf("Loader.Attempts = %d, want 3", cfg.Loader.Attempts)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled without a secret")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
listen = ":9090"

[auth]
jwt_secret = "s3cret"
token_ttl = "2h"
users = [ { username = "admin", password_hash = "$2a$10$abc", role = "admin" } ]

[roads]
source = "overpass"
bbox = "40.0,116.0,40.1,116.1"

[zones]
source = "sql"
driver = "sqlite"
dsn = "zones.db"

[planner]
timeout = "750ms"
snap_radius_m = 250.0
`)
	t.Setenv("ZR_LISTEN", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("Server.Listen = %q", cfg.Server.Listen)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour || len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Role != "admin" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Roads.Source != RoadsOverpass || cfg.Zones.Driver != "sqlite" {
		t.Errorf("sources = %q %q", cfg.Roads.Source, cfg.Zones.Driver)
	}
	if cfg.Planner.Timeout != 750*time.Millisecond || cfg.Planner.SnapRadiusMeters != 250 {
		t.Errorf("planner = %+v", cfg.Planner)
	}
	// 未设置的字段保留默认值
	if cfg.Loader.Attempts != 3 {
		t.Errorf("Loader.Attempts = %d, want default 3", cfg.Loader.Attempts)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profiles.File != "profiles.toml" {
		t.Errorf("Profiles.File = %q", cfg.Profiles.File)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[planner]\ntimeuot = \"1s\"\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "timeuot") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("ZR_JWT_SECRET", "from-env")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if !cfg.Auth.Enabled() || cfg.Logging.Format != "json" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Auth, cfg.Logging)
	}
	if !strings.Contains(cfg.Database.DSN(), "port=6543") {
		t.Errorf("DSN = %q", cfg.Database.DSN())
	}

	t.Setenv("DB_PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid DB_PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown roads source", func(c *Config) { c.Roads.Source = "shapefile" }},
		{"overpass without bbox", func(c *Config) { c.Roads.Source = RoadsOverpass; c.Roads.BBox = "" }},
		{"unknown zones source", func(c *Config) { c.Zones.Source = "wfs" }},
		{"sql zones bad driver", func(c *Config) { c.Zones.Source = ZonesSQL; c.Zones.Driver = "mysql"; c.Zones.DSN = "x" }},
		{"sql zones no dsn", func(c *Config) { c.Zones.Source = ZonesSQL; c.Zones.DSN = "" }},
		{"zero timeout", func(c *Config) { c.Planner.Timeout = 0 }},
		{"zero snap radius", func(c *Config) { c.Planner.SnapRadiusMeters = 0 }},
		{"zero attempts", func(c *Config) { c.Loader.Attempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
