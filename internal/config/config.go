// Package config loads camfilter settings from .env files and the environment.
// Flag parsing is done in cmd/camfilter; this package is data only.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvPort     = "CAMFILTER_PORT"
	EnvSource   = "CAMFILTER_SOURCE"
	EnvFilters  = "CAMFILTER_FILTERS"
	EnvDevice   = "CAMERA_DEVICE"
	EnvWidth    = "CAMERA_WIDTH"
	EnvHeight   = "CAMERA_HEIGHT"
	EnvFPS      = "CAMERA_FPS"
	EnvPortrait = "CAMERA_PORTRAIT"
	EnvQuality  = "JPEG_QUALITY"
	EnvLogLevel = "LOG_LEVEL"
	EnvDotenv   = "CAMFILTER_ENV_FILE"
)

// Source kinds.
const (
	SourceCamera  = "camera"
	SourcePattern = "pattern"
)

// Defaults.
const (
	DefaultPort     = "8080"
	DefaultSource   = SourceCamera
	DefaultFilters  = "noir"
	DefaultDevice   = 0
	DefaultWidth    = 1280
	DefaultHeight   = 720
	DefaultFPS      = 30
	DefaultQuality  = 80
	DefaultLogLevel = "info"
)

// Config holds everything the serve command needs.
type Config struct {
	Port     string
	Source   string // "camera" or "pattern"
	Filters  string // filter set: variant name or comma separated raw names
	Device   int    // camera index, /dev/video<N>
	Width    int
	Height   int
	FPS      int
	Portrait bool // rotate landscape sensor output to portrait
	Quality  int  // JPEG quality 1-100
	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     DefaultPort,
		Source:   DefaultSource,
		Filters:  DefaultFilters,
		Device:   DefaultDevice,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
		Portrait: true,
		Quality:  DefaultQuality,
		LogLevel: DefaultLogLevel,
	}
}

// Load returns the defaults overlaid with an optional .env file and then
// the process environment. The .env file is ./.env unless CAMFILTER_ENV_FILE
// points somewhere else. Variables already set in the environment win over
// the file.
func Load() (Config, error) {
	envPath := ".env"
	if alt := os.Getenv(EnvDotenv); alt != "" {
		envPath = alt
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", envPath, err)
		}
	}

	cfg := Default()
	cfg.Port = getEnvWithDefault(EnvPort, cfg.Port)
	cfg.Source = getEnvWithDefault(EnvSource, cfg.Source)
	cfg.Filters = getEnvWithDefault(EnvFilters, cfg.Filters)
	cfg.LogLevel = getEnvWithDefault(EnvLogLevel, cfg.LogLevel)

	var err error
	if cfg.Device, err = getEnvInt(EnvDevice, cfg.Device); err != nil {
		return Config{}, err
	}
	if cfg.Width, err = getEnvInt(EnvWidth, cfg.Width); err != nil {
		return Config{}, err
	}
	if cfg.Height, err = getEnvInt(EnvHeight, cfg.Height); err != nil {
		return Config{}, err
	}
	if cfg.FPS, err = getEnvInt(EnvFPS, cfg.FPS); err != nil {
		return Config{}, err
	}
	if cfg.Quality, err = getEnvInt(EnvQuality, cfg.Quality); err != nil {
		return Config{}, err
	}
	if v := strings.TrimSpace(os.Getenv(EnvPortrait)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvPortrait, err)
		}
		cfg.Portrait = b
	}

	return cfg, nil
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Source != SourceCamera && c.Source != SourcePattern {
		errors = append(errors, "source must be camera or pattern")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		errors = append(errors, "port must be between 1 and 65535")
	}
	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}
	if c.Width < 16 || c.Width > 7680 {
		errors = append(errors, "width must be between 16 and 7680")
	}
	if c.Height < 16 || c.Height > 4320 {
		errors = append(errors, "height must be between 16 and 4320")
	}
	if c.FPS < 1 || c.FPS > 120 {
		errors = append(errors, "fps must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if strings.TrimSpace(c.Filters) == "" {
		errors = append(errors, "filters must not be empty")
	}

	return errors
}

// DevicePath returns the V4L2 node for the configured camera index.
func (c *Config) DevicePath() string {
	return fmt.Sprintf("/dev/video%d", c.Device)
}

func getEnvWithDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
