package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adw-ith/hack25-spicechain/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_APP_ENV", "dev")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTP.Addr)
	assert.Equal(t, config.DriverMemory, c.Store.Driver)
	assert.Equal(t, 15*time.Second, c.Redis.LeaseTTL)
	assert.NotEmpty(t, c.Auth.JWTSecret)
	assert.True(t, c.IsDev())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
store:
  driver: badger
  badger_dir: /var/lib/spicechain
auth:
  jwt_secret: from-file
redis:
  lease_ttl: 30s
`), 0o600))
	t.Setenv("APP_HTTP_ADDR", ":9090")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTP.Addr)
	assert.Equal(t, config.DriverBadger, c.Store.Driver)
	assert.Equal(t, "/var/lib/spicechain", c.Store.BadgerDir)
	assert.Equal(t, "from-file", c.Auth.JWTSecret)
	assert.Equal(t, 30*time.Second, c.Redis.LeaseTTL)
}

func TestValidate(t *testing.T) {
	var c config.Config
	c.Store.Driver = config.DriverPostgres
	c.Auth.JWTSecret = "x"
	assert.Error(t, c.Validate(), "postgres without DSN")

	c.Postgres.DSN = "postgres://localhost/spicechain"
	assert.NoError(t, c.Validate())

	c.Store.Driver = "sqlite"
	assert.Error(t, c.Validate())

	c.Store.Driver = config.DriverMemory
	c.Auth.JWTSecret = ""
	assert.Error(t, c.Validate())
}
