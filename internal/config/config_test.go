package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:37778", got)
	}
	if math.Abs(cfg.Viewport.FOVY()-math.Pi/3) > 1e-9 {
		t.Errorf("FOVY = %v, want pi/3", cfg.Viewport.FOVY())
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("WAYPOINT_DB", "")
	t.Setenv("WAYPOINT_LOG_LEVEL", "")
	path := writeConfig(t, `
[server]
port = 9000

[placement]
standoff = 1.25
refuse_when_unavailable = true

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, want default", cfg.Server.Bind)
	}
	if cfg.Placement.Standoff != 1.25 || !cfg.Placement.RefuseWhenUnavailable {
		t.Errorf("Placement = %+v", cfg.Placement)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WAYPOINT_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 37778 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 4242\n")
	t.Setenv("WAYPOINT_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("Port = %d, want 4242", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "[database]\npath = \"/from/file.db\"\n")
	t.Setenv("WAYPOINT_DB", "/from/env.db")
	t.Setenv("WAYPOINT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want /from/env.db", cfg.Database.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"standoff too far": "[placement]\nstandoff = 5.0\n",
		"bad port":         "[server]\nport = 0\n",
		"bad level":        "[log]\nlevel = \"loud\"\n",
		"unknown key":      "[server]\nhost = \"x\"\n",
		"bad toml":         "[server\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("WAYPOINT_LOG_LEVEL", "")
			_, err := Load(writeConfig(t, body))
			if err == nil {
				t.Fatal("expected error")
			}
			if name != "bad toml" && name != "unknown key" && !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}
