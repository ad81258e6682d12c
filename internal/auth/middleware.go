// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/metrics"
)

// tokenCookie is checked when no Authorization header is present, so media
// elements that cannot set headers can still reach the proxy.
const tokenCookie = "token"

// DenyFunc writes the 401 response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, message string)

// Middleware authenticates requests and stores the Caller in the context.
type Middleware struct {
	mode        string
	jwtManager  *JWTManager
	basicAuth   *BasicAuthManager
	defaultUser string
	deny        DenyFunc
}

// NewMiddleware builds the middleware for cfg.AuthMode. deny may be nil, in
// which case a plain-text 401 is written.
func NewMiddleware(cfg *config.SecurityConfig, deny DenyFunc) (*Middleware, error) {
	m := &Middleware{mode: cfg.AuthMode, defaultUser: cfg.DefaultUser, deny: deny}
	if m.deny == nil {
		m.deny = func(w http.ResponseWriter, _ *http.Request, message string) {
			http.Error(w, message, http.StatusUnauthorized)
		}
	}

	var err error
	switch cfg.AuthMode {
	case config.AuthModeNone:
		if m.defaultUser == "" {
			return nil, fmt.Errorf("default user is required when authentication is disabled")
		}
	case config.AuthModeBasic:
		m.basicAuth, err = NewBasicAuthManager(cfg.AdminUsername, cfg.AdminPassword)
	case config.AuthModeJWT:
		m.jwtManager, err = NewJWTManager(cfg)
	default:
		err = fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Authenticate is chi-compatible middleware that rejects unauthenticated
// requests with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := m.authenticate(r)
		if err != nil {
			metrics.RecordAuthAttempt(m.mode, false)
			logging.Ctx(r.Context()).Debug().Err(err).Str("mode", m.mode).Msg("Authentication failed")
			if m.basicAuth != nil {
				w.Header().Set("WWW-Authenticate", m.basicAuth.Challenge())
			}
			m.deny(w, r, "authentication required")
			return
		}
		if m.mode != config.AuthModeNone {
			metrics.RecordAuthAttempt(m.mode, true)
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (Caller, error) {
	switch m.mode {
	case config.AuthModeNone:
		return Caller{UserID: m.defaultUser}, nil

	case config.AuthModeBasic:
		username, err := m.basicAuth.ValidateRequest(r)
		if err != nil {
			return Caller{}, err
		}
		return Caller{UserID: username}, nil

	default:
		token, err := extractBearerToken(r)
		if err != nil {
			return Caller{}, err
		}
		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			return Caller{}, err
		}
		return Caller{UserID: claims.UserID(), Token: token}, nil
	}
}

// extractBearerToken reads the token from the Authorization header or, when
// the header is absent, from the token cookie.
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		cookie, err := r.Cookie(tokenCookie)
		if err != nil || cookie.Value == "" {
			return "", fmt.Errorf("%w: missing token", ErrInvalidToken)
		}
		return cookie.Value, nil
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return strings.TrimSpace(token), nil
}
