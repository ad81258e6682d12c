// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/metrics"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Rate limiting configuration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	RateLimitKeyFunc  httprate.KeyFunc
	RateLimitOnLimit  http.HandlerFunc
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		// Range and If-Range let browser media elements seek through the proxy.
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization", "Range", "If-Range", "X-Request-ID"},
		CORSExposedHeaders:   []string{"Content-Range", "Accept-Ranges", "Content-Length", "X-Request-ID"},
		CORSAllowCredentials: false,
		CORSMaxAge:           86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: false,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// NewChiMiddlewareFromConfig bridges the security configuration to the Chi
// middleware. Rejected requests get the JSON envelope.
func NewChiMiddlewareFromConfig(sec *config.SecurityConfig) *ChiMiddleware {
	mwConfig := DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = sec.CORSOrigins
	// Cookie-based tokens need credentialed requests, which browsers refuse
	// together with a wildcard origin.
	mwConfig.CORSAllowCredentials = !lo.Contains(sec.CORSOrigins, "*")
	if sec.RateLimitReqs > 0 {
		mwConfig.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		mwConfig.RateLimitWindow = sec.RateLimitWindow
	}
	mwConfig.RateLimitDisabled = sec.RateLimitDisabled
	mwConfig.RateLimitOnLimit = func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).TooManyRequests("rate limit exceeded")
	}
	return NewChiMiddleware(mwConfig)
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a Chi-compatible rate limiting middleware using go-chi/httprate.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	keyFunc := m.config.RateLimitKeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(m.limitHandler("api")),
	)
}

// limitHandler counts the rejection under group and writes the response.
func (m *ChiMiddleware) limitHandler(group string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.APIRateLimitHits.WithLabelValues(group).Inc()
		if m.config.RateLimitOnLimit != nil {
			m.config.RateLimitOnLimit(w, r)
			return
		}
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	}
}

// RateLimitConfig defines rate limit parameters for specific endpoints.
type RateLimitConfig struct {
	Name     string
	Requests int
	Window   time.Duration
}

var (
	// RateLimitHealth is permissive so monitoring can poll freely.
	RateLimitHealth = RateLimitConfig{Name: "health", Requests: 1000, Window: time.Minute}

	// RateLimitStream covers the proxy. A single HLS session fetches a
	// segment every few seconds per client, and players open several range
	// requests when seeking.
	RateLimitStream = RateLimitConfig{Name: "stream", Requests: 3000, Window: time.Minute}
)

// RateLimitCustom returns a rate limiter with custom configuration.
func (m *ChiMiddleware) RateLimitCustom(config RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(m.limitHandler(config.Name)),
	)
}

// RateLimitHealth returns a rate limiter for health endpoints.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitHealth)
}

// RateLimitStream returns a rate limiter for proxied stream requests.
func (m *ChiMiddleware) RateLimitStream() func(http.Handler) http.Handler {
	return m.RateLimitCustom(RateLimitStream)
}

// APISecurityHeaders returns a middleware that adds security headers to API responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Referrer-Policy: strict-origin-when-cross-origin
//   - Cache-Control: no-store (JSON routes only, see noStore)
//
// HSTS is added when the request arrived over HTTPS.
func APISecurityHeaders(noStore bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if noStore {
				w.Header().Set("Cache-Control", "no-store")
			}

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
