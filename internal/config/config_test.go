package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "ironlog", cfg.Database.Name)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Cognito.KeyTTL)
	assert.True(t, cfg.Log.ToStdout)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  address: ":9090"
  timezone: "Europe/Berlin"
database:
  name: "ironlog_test"
cognito:
  region: "eu-west-1"
  user_pool_id: "eu-west-1_Example"
log:
  level: "info"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "ironlog_test", cfg.Database.Name)
	assert.Equal(t, "info", cfg.Log.Level)

	loc, err := cfg.Server.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestServerLocationFallsBackToLocal(t *testing.T) {
	loc, err := ServerConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = ServerConfig{Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
}

func TestCognitoDerivedEndpoints(t *testing.T) {
	c := CognitoConfig{Region: "eu-west-1", UserPoolID: "eu-west-1_Example"}
	assert.Equal(t,
		"https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_Example/.well-known/jwks.json",
		c.EffectiveJWKSURL())
	assert.Equal(t,
		"https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_Example",
		c.EffectiveIssuer())

	// Explicit overrides win.
	c.JWKSURL = "http://127.0.0.1:9999/jwks.json"
	c.Issuer = "http://127.0.0.1:9999"
	assert.Equal(t, "http://127.0.0.1:9999/jwks.json", c.EffectiveJWKSURL())
	assert.Equal(t, "http://127.0.0.1:9999", c.EffectiveIssuer())
}
