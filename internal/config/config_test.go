package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvConfig, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, home, cfg.HomeDir)
	assert.Equal(t, filepath.Join(home, "misud.sock"), cfg.SocketPath)
	assert.Equal(t, filepath.Join(home, "worksheet.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(home, "misud.pid"), cfg.PIDPath())
	assert.Equal(t, filepath.Join(home, "misud.lock"), cfg.LockPath())
	assert.True(t, cfg.Catalog.Builtin)
	assert.Equal(t, 300*time.Millisecond, cfg.Watcher.DebounceWindow)
	assert.False(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "misu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
home_dir: `+dir+`
log_level: debug
request_timeout: 250ms
database_path: sheets/main.db
catalog:
  builtin: false
  dirs: [/opt/units]
metrics:
  enabled: true
watcher:
  debounce_window: 50ms
`), 0o644))

	t.Setenv(EnvConfig, path)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, filepath.Join(dir, "sheets", "main.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "misud.sock"), cfg.SocketPath, "untouched paths follow home_dir")
	assert.Equal(t, filepath.Join(dir, "represent"), cfg.RepresentDir)
	assert.False(t, cfg.Catalog.Builtin)
	assert.Equal(t, []string{"/opt/units"}, cfg.Catalog.Dirs)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Watcher.DebounceWindow)
	assert.Equal(t, 100, cfg.Watcher.MaxBatchSize)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("colour: blue\n"), 0o644))
	_, err = LoadFile(unknown)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("metrics: {enabled: true, addr: \"\"}\n"), 0o644))
	_, err = LoadFile(invalid)
	assert.ErrorContains(t, err, "metrics.addr")
}

func TestEnsureDirectories(t *testing.T) {
	home := filepath.Join(t.TempDir(), "state")
	t.Setenv(EnvHome, home)

	cfg := Default()
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{home, cfg.RepresentDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
