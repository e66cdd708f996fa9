package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aki/filemutex/internal/config"
)

func TestConfigInitCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	err := executeWithConfig(t, cfgPath, "config", "init")
	require.NoError(t, err)

	loaded, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), loaded)

	// A second init must not clobber an existing file
	err = executeWithConfig(t, cfgPath, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigShowCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	cfg := config.Default()
	cfg.Lock.Suffix = ".guard"
	require.NoError(t, config.Save(cfgPath, cfg))

	err := executeWithConfig(t, cfgPath, "config", "show")
	require.NoError(t, err)
}

func TestConfigShowCommand_MissingFileUsesDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	err := executeWithConfig(t, cfgPath, "config", "show")
	require.NoError(t, err)

	_, statErr := os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(statErr), "show should not create a config file")
}
