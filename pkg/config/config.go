// Package config loads runtime configuration from YAML with
// environment overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after file values.
const (
	EnvCacheDir = "ARMATURE_CACHE_DIR"
	EnvLogLevel = "ARMATURE_LOG_LEVEL"
)

// Duration wraps time.Duration so YAML accepts "15s" style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"15s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// View is the headless view size in pixels.
type View struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

// Log controls logger construction.
type Log struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Config is the full runtime configuration.
type Config struct {
	// CacheDir holds downloaded model files.
	CacheDir string `yaml:"cacheDir" validate:"required"`

	// FrameInterval drives the session self-pump; zero disables it and
	// leaves frames to the host.
	FrameInterval Duration `yaml:"frameInterval" validate:"gte=0"`

	ConnectTimeout Duration `yaml:"connectTimeout" validate:"gt=0"`
	ReadTimeout    Duration `yaml:"readTimeout" validate:"gt=0"`

	View View `yaml:"view"`
	Log  Log  `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		CacheDir:       defaultCacheDir(),
		FrameInterval:  Duration(33 * time.Millisecond),
		ConnectTimeout: Duration(15 * time.Second),
		ReadTimeout:    Duration(30 * time.Second),
		View:           View{Width: 1280, Height: 720},
		Log:            Log{Level: "info"},
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "armature", "models")
}

// Load reads the file at path over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds a zap logger per the Log section.
func (c Config) Logger() (*zap.Logger, error) {
	var zcfg zap.Config
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if c.Log.Level != "" {
		level, err := zapcore.ParseLevel(c.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Log.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
