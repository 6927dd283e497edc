package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := ConfigFrom("debug", "JSON", &buf)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Same(t, &buf, cfg.Output)

	_, err = ConfigFrom("info", "xml", nil)
	assert.Error(t, err)
}

func TestComponentLoggerFollowsInit(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	log := ForComponent("store").With("db", "worksheet")

	var buf bytes.Buffer
	Init(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept", "n", 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "store", rec["component"])
	assert.Equal(t, "worksheet", rec["db"])
	assert.Equal(t, float64(3), rec["n"])
}
