package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"addr": ":9090", "gateway_path": "/ws", "metrics_path": "/metrics"},
		"fetch": {
			"timeout": "30s",
			"allowed_origins": ["https://example.com"]
		},
		"nats": {"enabled": true, "url": "nats://nats.internal:4222", "name": "percept-prod"}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, []string{"https://example.com"}, cfg.Fetch.AllowedOrigins)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/ws", cfg.Server.GatewayPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.json")
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PERCEPT_SERVER_ADDR", ":7070")
	t.Setenv("PERCEPT_NATS_ENABLED", "true")
	t.Setenv("PERCEPT_NATS_URL", "nats://override:4222")
	t.Setenv("PERCEPT_LOG_LEVEL", "debug")
	t.Setenv("PERCEPT_ALLOWED_ORIGINS", "https://a.test,https://b.test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Fetch.AllowedOrigins)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"colliding paths", func(c *Config) { c.Server.MetricsPath = c.Server.GatewayPath }},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }},
		{"nats enabled without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"bad cache strategy", func(c *Config) { c.Cache.Strategy = "fifo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFetchTimeoutNanoseconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fetch": {"timeout": 5000000000}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
}
