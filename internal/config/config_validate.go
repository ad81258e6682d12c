// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package config

import (
	"fmt"
	"strings"
)

// Auth mode constants.
const (
	AuthModeNone  = "none"
	AuthModeBasic = "basic"
	AuthModeJWT   = "jwt"
)

// Store backend constants.
const (
	StoreBackendMemory = "memory"
	StoreBackendBadger = "badger"
)

const minJWTSecretLength = 32

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateProxy(); err != nil {
		return err
	}
	return c.validateStore()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must not be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	validators := map[string]func() error{
		AuthModeNone:  c.validateNoneAuth,
		AuthModeBasic: c.validateBasicAuth,
		AuthModeJWT:   c.validateJWTAuth,
	}
	validate, ok := validators[c.Security.AuthMode]
	if !ok {
		return fmt.Errorf("AUTH_MODE must be one of: none, basic, jwt (got %q)", c.Security.AuthMode)
	}
	if err := validate(); err != nil {
		return err
	}

	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain a wildcard in production")
			}
		}
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateNoneAuth() error {
	if strings.TrimSpace(c.Security.DefaultUser) == "" {
		return fmt.Errorf("DEFAULT_USER is required when AUTH_MODE=none")
	}
	if c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed in production")
	}
	return nil
}

func (c *Config) validateBasicAuth() error {
	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when AUTH_MODE=basic")
	}
	if len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}

func (c *Config) validateJWTAuth() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got %q)", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console (got %q)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSources() error {
	s := c.Sources
	if s.DiscoveryTimeout <= 0 {
		return fmt.Errorf("SOURCES_DISCOVERY_TIMEOUT must be positive")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("SOURCES_REQUEST_TIMEOUT must be positive")
	}
	if s.BreakerFailureRatio <= 0 || s.BreakerFailureRatio > 1 {
		return fmt.Errorf("SOURCES_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", s.BreakerFailureRatio)
	}
	if s.BreakerMaxRequests == 0 {
		return fmt.Errorf("SOURCES_BREAKER_MAX_REQUESTS must be at least 1")
	}
	if s.RateLimitPerSecond <= 0 || s.RateLimitBurst < 1 {
		return fmt.Errorf("SOURCES_RATE_LIMIT and SOURCES_RATE_BURST must be positive")
	}
	return nil
}

func (c *Config) validateProxy() error {
	if c.Proxy.BufferSize < 4096 {
		return fmt.Errorf("PROXY_BUFFER_SIZE must be at least 4096, got %d", c.Proxy.BufferSize)
	}
	if c.Proxy.DialTimeout <= 0 || c.Proxy.ResponseHeaderTimeout <= 0 {
		return fmt.Errorf("PROXY_DIAL_TIMEOUT and PROXY_RESPONSE_HEADER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
		return nil
	case StoreBackendBadger:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
		}
		if c.Store.GCInterval < 0 {
			return fmt.Errorf("STORE_GC_INTERVAL must not be negative")
		}
		if c.Store.GCInterval > 0 && (c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1) {
			return fmt.Errorf("STORE_GC_DISCARD_RATIO must be between 0 and 1 (got %v)", c.Store.GCDiscardRatio)
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: memory, badger (got %q)", c.Store.Backend)
	}
}
