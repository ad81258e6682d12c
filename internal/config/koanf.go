// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelhub/config.yaml",
	"/etc/reelhub/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         7070,
			Host:         "0.0.0.0",
			Timeout:      30 * time.Second,
			WriteTimeout: 0,
			Environment:  "development",
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			SessionTimeout:    24 * time.Hour,
			DefaultUser:       "default",
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Sources: SourcesConfig{
			Enabled:              []string{},
			DiscoveryTimeout:     10 * time.Second,
			RequestTimeout:       8 * time.Second,
			BreakerMaxRequests:   3,
			BreakerInterval:      time.Minute,
			BreakerTimeout:       30 * time.Second,
			BreakerMinRequests:   10,
			BreakerFailureRatio:  0.6,
			RateLimitPerSecond:   20,
			RateLimitBurst:       40,
			JellyfinDeviceID:     "reelhub",
			PlexClientIdentifier: "reelhub",
		},
		Proxy: ProxyConfig{
			DialTimeout:           10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   16,
			BufferSize:            32 * 1024,
		},
		Store: StoreConfig{
			Backend:        "badger",
			Path:           "/data/reelhub",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file
//  3. Environment Variables: override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, SOURCES_DISCOVERY_TIMEOUT -> sources.discovery_timeout
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"sources.enabled",
}

// processSliceFields converts comma-separated string values (from env vars)
// into slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		trimmed := []string{}
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":            "server.port",
	"http_host":            "server.host",
	"server_timeout":       "server.timeout",
	"server_write_timeout": "server.write_timeout",
	"environment":          "server.environment",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"admin_username":      "security.admin_username",
	"admin_password":      "security.admin_password",
	"default_user":        "security.default_user",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Sources
	"sources_enabled":               "sources.enabled",
	"sources_discovery_timeout":     "sources.discovery_timeout",
	"sources_request_timeout":       "sources.request_timeout",
	"sources_breaker_max_requests":  "sources.breaker_max_requests",
	"sources_breaker_interval":      "sources.breaker_interval",
	"sources_breaker_timeout":       "sources.breaker_timeout",
	"sources_breaker_min_requests":  "sources.breaker_min_requests",
	"sources_breaker_failure_ratio": "sources.breaker_failure_ratio",
	"sources_rate_limit":            "sources.rate_limit_per_second",
	"sources_rate_burst":            "sources.rate_limit_burst",
	"jellyfin_device_id":            "sources.jellyfin_device_id",
	"plex_client_identifier":        "sources.plex_client_identifier",

	// Proxy
	"proxy_dial_timeout":            "proxy.dial_timeout",
	"proxy_response_header_timeout": "proxy.response_header_timeout",
	"proxy_idle_conn_timeout":       "proxy.idle_conn_timeout",
	"proxy_max_idle_conns_per_host": "proxy.max_idle_conns_per_host",
	"proxy_buffer_size":             "proxy.buffer_size",

	// Store
	"store_backend":          "store.backend",
	"store_path":             "store.path",
	"store_gc_interval":      "store.gc_interval",
	"store_gc_discard_ratio": "store.gc_discard_ratio",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return an empty string and are skipped, so unrelated
// environment variables never pollute the configuration.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
