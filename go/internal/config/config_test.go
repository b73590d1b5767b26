package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
port: 9090
log_level: debug
database:
  host: pg
  database: turns
engine:
  conflict_retries: 8
  conflict_backoff: 25ms
supervisor:
  workers: 4
redis:
  ttl: 1m
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "pg", cfg.Database.Host)
	assert.Equal(t, "turns", cfg.Database.Database)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, uint64(8), cfg.Engine.ConflictRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.Engine.ConflictBackoff)
	assert.Equal(t, 4, cfg.Supervisor.Workers)
	assert.Equal(t, 20, cfg.Supervisor.QueueSize)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "port: [1, 2"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "port: 9090\nnats:\n  url: nats://file:4222\n"))
	t.Setenv("PORT", "7070")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("CONFLICT_BACKOFF", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.ConflictBackoff)
}

func TestLevel_FallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Config{LogLevel: "loud"}.Level())
}
