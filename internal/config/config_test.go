package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
log:
  level: debug
store:
  path: /tmp/rgraph.db
types:
  paths: [types/logical.cue]
runtime:
  auto_connect: false
`))
	require.NoError(t, err)

	assert.Equal(t, LogLevelDebug, cfg.Log.Level)
	assert.Equal(t, "/tmp/rgraph.db", cfg.Store.Path)
	assert.Equal(t, []string{"types/logical.cue"}, cfg.Types.Paths)
	assert.False(t, cfg.Runtime.AutoConnect)
	assert.Equal(t, "rgraph", cfg.Telemetry.ServiceName, "defaults survive partial files")
}

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("logging:\n  level: debug\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging")
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Types.Paths = []string{"ok", " "}
	cfg.Telemetry = TelemetryConfig{Enabled: true}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `log.level "loud"`)
	assert.Contains(t, msg, "types.paths[1]")
	assert.Contains(t, msg, "telemetry.service_name")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.Log.Level.Level())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		valid bool
		want  slog.Level
	}{
		{LogLevelDebug, true, slog.LevelDebug},
		{LogLevelInfo, true, slog.LevelInfo},
		{LogLevelWarn, true, slog.LevelWarn},
		{LogLevelError, true, slog.LevelError},
		{"", false, slog.LevelInfo},
		{"trace", false, slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.level.IsValid(), tt.level)
		assert.Equal(t, tt.want, tt.level.Level(), tt.level)
	}
}
