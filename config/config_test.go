package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvLogLevel, EnvFFmpegDir, EnvTempDir, EnvJumpStep} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ReadsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"
ffmpeg_dir = "/opt/ffmpeg/bin"
preview_width = 960
preview_height = 540
jump_seconds = 10
`), 0o644))
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/opt/ffmpeg/bin", cfg.FFmpegDir)
	assert.Equal(t, 960, cfg.PreviewWidth)
	assert.Equal(t, 540, cfg.PreviewHeight)
	assert.Equal(t, 10.0, cfg.JumpSeconds)
	assert.Empty(t, cfg.TempDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "debug"`), 0o644))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvTempDir, "/scratch")
	t.Setenv(EnvJumpStep, "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/scratch", cfg.TempDir)
	assert.Equal(t, 2.5, cfg.JumpSeconds)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  string
	}{
		{"malformed toml", "log_level = ", ""},
		{"bad preview size", "preview_width = 0", ""},
		{"negative jump", "jump_seconds = -1", ""},
		{"bad jump env", "", "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			t.Setenv(EnvConfigFile, path)
			t.Setenv(EnvJumpStep, tt.env)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
