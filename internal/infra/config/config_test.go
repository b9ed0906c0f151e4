package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
cache:
  max_size: 64MiB
worker:
  queue_limit: 500
  preload_radius: 4
fetch:
  timeout: 5s
  max_bytes: 2MB
log:
  level: debug
store:
  enabled: true
  driver: sqlite
  sqlite_path: /tmp/gothumb-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(64*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 500, cfg.Worker.QueueLimit)
	assert.Equal(t, 4, cfg.Worker.PreloadRadius)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(2000000), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "./data/blobs", cfg.Store.BlobDir)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(32*1024*1024), cfg.Cache.MaxBytes)
	assert.Equal(t, 10, cfg.Worker.PreloadRadius)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "gothumb/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, int64(4096*4096), cfg.Fetch.MaxPixels)
	assert.False(t, cfg.Store.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GOTHUMB_PORT", "7070")
	t.Setenv("GOTHUMB_CACHE_MAX_SIZE", "1MiB")

	cfg, err := Load(writeConfig(t, "port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, int64(1024*1024), cfg.Cache.MaxBytes)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad size", "cache:\n  max_size: lots\n"},
		{"negative entries", "cache:\n  max_entries: -1\n"},
		{"negative queue", "worker:\n  queue_limit: -5\n"},
		{"negative pixels", "fetch:\n  max_pixels: -1\n"},
		{"unknown driver", "store:\n  enabled: true\n  driver: mongo\n"},
		{"postgres without dsn", "store:\n  enabled: true\n  driver: postgres\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_NegativeRadiusDisablesPreload(t *testing.T) {
	cfg, err := Load(writeConfig(t, "worker:\n  preload_radius: -3\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Worker.PreloadRadius)
}
