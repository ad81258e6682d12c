// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/reelhub/internal/config"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim, falling back to the username.
func (c *Claims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Username
}

// JWTManager issues and verifies HS256 tokens.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
}

// NewJWTManager creates a JWT manager from the security configuration.
// The secret must be non-empty; length is enforced by config validation.
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
		now:     time.Now,
	}, nil
}

// GenerateToken signs a token for username valid for the session timeout.
// Tokens are issued out of band (cmd/tokengen); the server only verifies.
func (m *JWTManager) GenerateToken(username string) (string, error) {
	now := m.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm and time claims.
//
// Only HMAC methods are accepted, which rules out "none" and RSA/HMAC key
// confusion.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID() == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}
