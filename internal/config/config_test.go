package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.MCP.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
store:
  driver: Postgres
db:
  host: db.internal
  port: 6543
  user: svc
  password: s3cret
  name: routing
directory:
  roles:
    finance:
      - a@corp.com
      - b@corp.com
log:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "host=db.internal port=6543 user=svc password=s3cret dbname=routing sslmode=disable", cfg.DSN())
	assert.Equal(t, []string{"a@corp.com", "b@corp.com"}, cfg.Directory.Roles["finance"])
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: memory\n")
	t.Setenv("APPROVALS_STORE_DRIVER", "redis")
	t.Setenv("APPROVALS_REDIS_ADDR", "cache:6379")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: mongo\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "mongo"`)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
