package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, time.Hour, cfg.Janitor.Interval)
	assert.Zero(t, cfg.Janitor.MaxIdle)
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
store:
  driver: sqlite
  path: /tmp/respcache-test/cache.db
server:
  listen: ":9090"
log:
  level: debug
  format: console
janitor:
  interval: 10m
  max_idle: 168h
openai:
  api_key: ${TEST_API_KEY}
  base_url: http://localhost:1234/v1
`
	path := filepath.Join(t.TempDir(), "respcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/respcache-test/cache.db", cfg.Store.Path)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10*time.Minute, cfg.Janitor.Interval)
	assert.Equal(t, 168*time.Hour, cfg.Janitor.MaxIdle)
	assert.Equal(t, "sk-test-123", cfg.OpenAI.APIKey, "env var not expanded")
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAI.BaseURL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESPCACHE_STORE_DRIVER", "postgres")
	t.Setenv("RESPCACHE_STORE_DSN", "postgres://localhost/respcache")
	t.Setenv("RESPCACHE_SERVER_LISTEN", ":7070")
	t.Setenv("RESPCACHE_JANITOR_MAX_IDLE", "24h")

	path := filepath.Join(t.TempDir(), "respcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/respcache", cfg.Store.DSN)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, 24*time.Hour, cfg.Janitor.MaxIdle)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/respcache.yaml")
	assert.Error(t, err)
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
