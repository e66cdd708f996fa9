package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(filepath.Join(tmpDir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".lock", cfg.Lock.Suffix)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Lock.RetryInterval))
	assert.Equal(t, time.Duration(0), time.Duration(cfg.Lock.Timeout))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParsesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
lock:
  suffix: .guard
  retryInterval: 50ms
  timeout: 5s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".guard", cfg.Lock.Suffix)
	assert.Equal(t, 50*time.Millisecond, time.Duration(cfg.Lock.RetryInterval))
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Lock.Timeout))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
log:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ".lock", cfg.Lock.Suffix)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Lock.RetryInterval))
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	content := `
lock:
  retryInterval: not-a-duration
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := Default()
	cfg.Lock.Suffix = ".mu"
	cfg.Lock.Timeout = Duration(2 * time.Second)
	cfg.Log.Format = "json"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
