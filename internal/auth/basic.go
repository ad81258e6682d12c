// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when Basic credentials do not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

// bcryptCost is lowered by tests.
var bcryptCost = 12

// BasicAuthManager verifies HTTP Basic credentials of the single configured user.
type BasicAuthManager struct {
	username     string
	passwordHash []byte
}

// NewBasicAuthManager hashes password once at startup.
func NewBasicAuthManager(username, password string) (*BasicAuthManager, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &BasicAuthManager{username: username, passwordHash: hash}, nil
}

// ValidateRequest checks the request's Basic credentials and returns the username.
func (m *BasicAuthManager) ValidateRequest(r *http.Request) (string, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return "", fmt.Errorf("%w: missing basic credentials", ErrInvalidCredentials)
	}

	// Both comparisons always run.
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passMatch := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil
	if !userMatch || !passMatch {
		return "", ErrInvalidCredentials
	}
	return username, nil
}

// Challenge is the WWW-Authenticate value sent with 401 responses.
func (m *BasicAuthManager) Challenge() string {
	return `Basic realm="Reelhub", charset="UTF-8"`
}
