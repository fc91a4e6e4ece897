package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "auto", cfg.Format)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "http://localhost:8321", cfg.Oracle.URL)
	assert.Equal(t, "60s", cfg.Oracle.Timeout)
	assert.Equal(t, "gdb", cfg.Debug.GDBPath)
	assert.Equal(t, 15, cfg.Debug.MaxSteps)
	assert.Equal(t, 5, cfg.Debug.RecentWindow)
	assert.Equal(t, "15s", cfg.Debug.CommandTimeout)
	assert.True(t, cfg.Store.Save)
	assert.Equal(t, ":8000", cfg.Serve.Addr)
	assert.Equal(t, 4, cfg.Serve.MaxSessions)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gdba.yaml")
	content := `
format: json
quiet: true
oracle:
  url: http://10.0.0.5:8321
  model: llama3.2
debug:
  max_steps: 30
store:
  save: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Quiet)
	assert.Equal(t, "http://10.0.0.5:8321", cfg.Oracle.URL)
	assert.Equal(t, "llama3.2", cfg.Oracle.Model)
	assert.Equal(t, 30, cfg.Debug.MaxSteps)
	assert.False(t, cfg.Store.Save)

	// Values the file does not set keep their defaults.
	assert.Equal(t, "gdb", cfg.Debug.GDBPath)
	assert.Equal(t, 5, cfg.Debug.RecentWindow)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GDBA_ORACLE_URL", "http://env-host:8321")
	t.Setenv("GDBA_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://env-host:8321", cfg.Oracle.URL)
	assert.Equal(t, "text", cfg.Format)
}
