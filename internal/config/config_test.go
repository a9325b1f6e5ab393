package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "./models", cfg.Artifacts.Dir)
	assert.Equal(t, 3*time.Second, cfg.Weather.Timeout)
	assert.True(t, cfg.Weather.FallbackOnError)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8081
artifacts:
  dir: /srv/models
weather:
  timeout: 1s
  fallback_on_error: false
log:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("HARVEST_WEATHER_API_KEY", "secret")
	t.Setenv("HARVEST_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("HARVEST_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "/srv/models", cfg.Artifacts.Dir)
	assert.Equal(t, time.Second, cfg.Weather.Timeout)
	assert.False(t, cfg.Weather.FallbackOnError)
	assert.Equal(t, "secret", cfg.Weather.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// untouched defaults survive
	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HARVEST_LOG_LEVEL", "chatty")

	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.History.Path = ""
	assert.Error(t, cfg.Validate())

	cfg.History.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"HARVEST_WEATHER_API_KEY":   "weather.api_key",
		"HARVEST_SERVER_PORT":       "server.port",
		"HARVEST_ARTIFACTS_DIR":     "artifacts.dir",
		"HARVEST_HISTORY_ENABLED":   "history.enabled",
		"HARVEST_WEATHER_CACHE_TTL": "weather.cache_ttl",
		"HARVEST_VERBOSE":           "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}
