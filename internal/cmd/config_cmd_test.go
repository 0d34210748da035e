package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/wsprovider/internal/config"
)

func TestRunConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsprovider", "config.yaml")
	old := configFile
	configFile = path
	t.Cleanup(func() { configFile = old; configForce = false })

	output := captureStdout(t, func() {
		require.NoError(t, runConfigInit(configInitCmd, nil))
	})
	assert.Contains(t, output, "Wrote "+path)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Variants, len(config.DefaultVariants()))

	// Existing file is kept without --force.
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  log_level: debug\n"), 0o644))
	err = runConfigInit(configInitCmd, nil)
	assert.ErrorContains(t, err, "already exists")

	configForce = true
	captureStdout(t, func() {
		require.NoError(t, runConfigInit(configInitCmd, nil))
	})
	cfg, err = config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Daemon.LogLevel)
}

func TestRunConfig_PrintsEffective(t *testing.T) {
	setupWorkspaces(t, "blog")
	t.Setenv("WSPROVIDER_BUS_NAME", "org.example.Test")

	output := captureStdout(t, func() {
		require.NoError(t, runConfig(configCmd, nil))
	})
	assert.Contains(t, output, "bus_name: org.example.Test")
	assert.Contains(t, output, "log_level: error")
	assert.Contains(t, output, "id: code")
}
