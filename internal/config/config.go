package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all waypoint configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Placement PlacementConfig `toml:"placement"`
	Viewport  ViewportConfig  `toml:"viewport"`
	Persist   PersistConfig   `toml:"persist"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind" validate:"required"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty: store.DefaultDBPath()
}

type PlacementConfig struct {
	Standoff              float32 `toml:"standoff" validate:"gte=0.1,lte=2"` // meters in front of the camera
	RefuseWhenUnavailable bool    `toml:"refuse_when_unavailable"`
}

// ViewportConfig is the camera image taps are reported against.
type ViewportConfig struct {
	Width       float32 `toml:"width" validate:"gt=0"`
	Height      float32 `toml:"height" validate:"gt=0"`
	FOVYDegrees float64 `toml:"fov_y_degrees" validate:"gt=0,lt=180"`
}

type PersistConfig struct {
	Timeout int `toml:"timeout" validate:"min=1"` // seconds per save
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Placement: PlacementConfig{
			Standoff: 0.5,
		},
		Viewport: ViewportConfig{
			Width:       1170,
			Height:      2532,
			FOVYDegrees: 60,
		},
		Persist: PersistConfig{
			Timeout: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the default config file path: ~/.waypoint/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".waypoint", "config.toml"), nil
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. An empty path means $WAYPOINT_CONFIG
// or, failing that, DefaultPath; only an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("WAYPOINT_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return cfg, err
		}
	}

	if err := cfg.readFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv("WAYPOINT_DB"); p != "" {
		c.Database.Path = p
	}
	if lvl := os.Getenv("WAYPOINT_LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// FOVY returns the vertical field of view in radians.
func (v ViewportConfig) FOVY() float64 {
	return v.FOVYDegrees * math.Pi / 180
}
