// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package config loads and validates Reelhub configuration.
//
// Configuration is layered with Koanf v2 (highest priority wins):
//   - Environment variables (explicitly mapped, see envTransformFunc)
//   - Optional YAML config file (CONFIG_PATH or DefaultConfigPaths)
//   - Built-in defaults (defaultConfig)
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Sources  SourcesConfig  `koanf:"sources"`
	Proxy    ProxyConfig    `koanf:"proxy"`
	Store    StoreConfig    `koanf:"store"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`

	// WriteTimeout bounds whole responses. Zero disables it, which proxied
	// media streams require.
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	// AuthMode is one of: none, basic, jwt.
	AuthMode       string        `koanf:"auth_mode"`
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	// DefaultUser is the caller identity used when AuthMode is none.
	DefaultUser string `koanf:"default_user"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SourcesConfig holds source plugin and outbound lookup settings.
type SourcesConfig struct {
	// Enabled lists the plugin ids registered at startup. Empty registers all.
	Enabled []string `koanf:"enabled"`

	// DiscoveryTimeout bounds a whole discovery fan-out. Plugins still
	// running at the deadline are dropped from the result.
	DiscoveryTimeout time.Duration `koanf:"discovery_timeout"`

	// RequestTimeout bounds a single upstream lookup request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	BreakerMaxRequests   uint32        `koanf:"breaker_max_requests"`
	BreakerInterval      time.Duration `koanf:"breaker_interval"`
	BreakerTimeout       time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests   uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio  float64       `koanf:"breaker_failure_ratio"`
	RateLimitPerSecond   float64       `koanf:"rate_limit_per_second"`
	RateLimitBurst       int           `koanf:"rate_limit_burst"`
	JellyfinDeviceID     string        `koanf:"jellyfin_device_id"`
	PlexClientIdentifier string        `koanf:"plex_client_identifier"`
}

// ProxyConfig holds streaming proxy transport settings.
type ProxyConfig struct {
	DialTimeout           time.Duration `koanf:"dial_timeout"`
	ResponseHeaderTimeout time.Duration `koanf:"response_header_timeout"`
	IdleConnTimeout       time.Duration `koanf:"idle_conn_timeout"`
	MaxIdleConnsPerHost   int           `koanf:"max_idle_conns_per_host"`
	BufferSize            int           `koanf:"buffer_size"`
}

// StoreConfig selects the user source settings backend.
type StoreConfig struct {
	// Backend is one of: memory, badger.
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`

	// GCInterval is how often the badger value log is garbage collected.
	// Zero disables the maintenance service.
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// IsProduction reports whether the server runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load loads configuration from defaults, optional config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
