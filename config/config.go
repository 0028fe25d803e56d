package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	// Environment variable names
	EnvConfigFile = "VIDEO_TRIMMER_CONFIG"
	EnvLogLevel   = "VIDEO_TRIMMER_LOG_LEVEL"
	EnvFFmpegDir  = "VIDEO_TRIMMER_FFMPEG_DIR"
	EnvTempDir    = "VIDEO_TRIMMER_TEMP_DIR"
	EnvJumpStep   = "VIDEO_TRIMMER_JUMP_SECONDS"

	appDirName     = "video-trimmer"
	configFileName = "config.toml"
)

// Config holds application settings. The trimmer only reads it; nothing is
// written back.
type Config struct {
	LogLevel      string  `toml:"log_level"`
	FFmpegDir     string  `toml:"ffmpeg_dir"`
	TempDir       string  `toml:"temp_dir"`
	PreviewWidth  int     `toml:"preview_width"`
	PreviewHeight int     `toml:"preview_height"`
	JumpSeconds   float64 `toml:"jump_seconds"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		PreviewWidth:  640,
		PreviewHeight: 360,
		JumpSeconds:   5,
	}
}

// configPath returns the path to the config file
func configPath() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appDirName, configFileName), nil
}

// Load reads the config file if there is one, then applies environment
// overrides. A missing file yields defaults; a malformed one is an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := configPath()
	if err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvFFmpegDir); v != "" {
		c.FFmpegDir = v
	}
	if v := os.Getenv(EnvTempDir); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv(EnvJumpStep); v != "" {
		step, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvJumpStep, err)
		}
		c.JumpSeconds = step
	}
	return nil
}

func (c *Config) validate() error {
	if c.PreviewWidth <= 0 || c.PreviewHeight <= 0 {
		return fmt.Errorf("invalid preview size %dx%d", c.PreviewWidth, c.PreviewHeight)
	}
	if c.JumpSeconds <= 0 {
		return fmt.Errorf("invalid jump_seconds %v: must be positive", c.JumpSeconds)
	}
	return nil
}
