package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "boardflow.db", cfg.Database.Path)
	assert.Equal(t, int64(60_000), cfg.Scheduler.TickPeriodMs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/other.db
scheduler:
  tick_period_ms: 5000
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, int64(5000), cfg.Scheduler.TickPeriodMs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  path: only.db\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "only.db", cfg.Database.Path)
	assert.Equal(t, int64(60_000), cfg.Scheduler.TickPeriodMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "database:\n  path: file.db\n")
	t.Setenv("BOARDFLOW_DB_PATH", "env.db")
	t.Setenv("BOARDFLOW_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero tick period", "scheduler:\n  tick_period_ms: 0\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"unknown log format", "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
