// Package config provides the daemon's configuration: JSON file loading with
// defaults, environment overrides, and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/pkg/cache"
)

// envPrefix namespaces environment overrides, e.g. PERCEPT_NATS_URL.
const envPrefix = "PERCEPT"

// Config is the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Fetch   FetchConfig   `json:"fetch"`
	Cache   cache.Config  `json:"cache"`
	NATS    NATSConfig    `json:"nats"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig configures the HTTP listener that carries the websocket
// gateway and the metrics endpoint.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`

	// GatewayPath is the websocket endpoint path.
	GatewayPath string `json:"gateway_path"`

	// MetricsPath is the Prometheus endpoint path.
	MetricsPath string `json:"metrics_path"`
}

// FetchConfig configures the metadata fetch pipeline.
type FetchConfig struct {
	// Timeout bounds a single page fetch.
	Timeout time.Duration `json:"timeout"`

	// UserAgent is sent on outgoing requests.
	UserAgent string `json:"user_agent"`

	// AllowedOrigins lists origins ("https://example.com") content may be
	// fetched from. Empty means fetching is disabled.
	AllowedOrigins []string `json:"allowed_origins"`

	// ArtifactURLs are catalogs loaded at startup. URLs ending in .json
	// load as JSON catalogs; everything else loads as an HTML page.
	ArtifactURLs []string `json:"artifact_urls"`
}

// NATSConfig configures the optional delta publisher.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Name    string `json:"name"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`

	// Format is "json" or "text".
	Format string `json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			GatewayPath: "/ws",
			MetricsPath: "/metrics",
		},
		Fetch: FetchConfig{
			Timeout:   10 * time.Second,
			UserAgent: "perception-toolkit/1.0",
		},
		Cache: cache.DefaultConfig(),
		NATS: NATSConfig{
			URL:  "nats://localhost:4222",
			Name: "perception-toolkit",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "server.addr cannot be empty")
	}
	if c.Server.GatewayPath == c.Server.MetricsPath {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"gateway and metrics paths must differ")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("fetch.timeout must be positive, got %v", c.Fetch.Timeout))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown logging level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("unknown logging format %q", c.Logging.Format))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"nats.url is required when nats.enabled is set")
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads a JSON configuration file over the defaults and applies
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "reading config file failed")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parsing config file failed")
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(envPrefix + "_SERVER_ADDR"); val != "" {
		cfg.Server.Addr = val
	}
	if val := os.Getenv(envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(envPrefix + "_NATS_ENABLED"); val != "" {
		cfg.NATS.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv(envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(envPrefix + "_ALLOWED_ORIGINS"); val != "" {
		cfg.Fetch.AllowedOrigins = strings.Split(val, ",")
	}
}

// UnmarshalJSON accepts the fetch timeout as either a duration string ("10s")
// or integer nanoseconds.
func (f *FetchConfig) UnmarshalJSON(data []byte) error {
	type Alias FetchConfig

	aux := &struct {
		Timeout json.RawMessage `json:"timeout,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(f),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.Timeout) > 0 {
		var str string
		if err := json.Unmarshal(aux.Timeout, &str); err == nil {
			timeout, err := time.ParseDuration(str)
			if err != nil {
				return fmt.Errorf("invalid duration string for fetch.timeout: %w", err)
			}
			f.Timeout = timeout
			return nil
		}

		var nsec int64
		if err := json.Unmarshal(aux.Timeout, &nsec); err != nil {
			return fmt.Errorf("fetch.timeout must be a duration string (e.g. '10s') or integer nanoseconds")
		}
		f.Timeout = time.Duration(nsec)
	}

	return nil
}
