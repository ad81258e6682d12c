// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package store persists per-user source settings.
//
// Two backends exist: BadgerDB for durable storage and an in-memory map for
// development and tests. Both store the JSON encoding of a record, so values
// handed out are always independent copies.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
)

var (
	// ErrNotFound is returned when a user has no settings for a source.
	ErrNotFound = errors.New("source settings not found")

	// ErrInvalidKey is returned for empty ids or ids containing the key separator.
	ErrInvalidKey = errors.New("invalid user or source id")
)

// UserSourceSettings is one user's stored configuration for one source.
type UserSourceSettings struct {
	SourceID  string          `json:"sourceId"`
	Enabled   bool            `json:"enabled"`
	Settings  plugin.Settings `json:"settings"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store is the settings persistence contract. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the settings of userID for sourceID or ErrNotFound.
	Get(ctx context.Context, userID, sourceID string) (*UserSourceSettings, error)

	// List returns all settings of userID ordered by source id.
	List(ctx context.Context, userID string) ([]UserSourceSettings, error)

	// Put creates or replaces the settings for s.SourceID.
	Put(ctx context.Context, userID string, s UserSourceSettings) error

	// Delete removes the settings. Deleting a missing entry returns ErrNotFound.
	Delete(ctx context.Context, userID, sourceID string) error

	Close() error
}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreBackendBadger:
		return OpenBadger(cfg.Path)
	case config.StoreBackendMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

const keySeparator = "\x00"

const keyPrefix = "settings" + keySeparator

func userPrefix(userID string) string {
	return keyPrefix + userID + keySeparator
}

func recordKey(userID, sourceID string) (string, error) {
	if !validID(userID) || !validID(sourceID) {
		return "", fmt.Errorf("%w: user %q source %q", ErrInvalidKey, userID, sourceID)
	}
	return userPrefix(userID) + sourceID, nil
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, keySeparator)
}

func encode(s UserSourceSettings) ([]byte, error) {
	if s.Settings == nil {
		s.Settings = plugin.Settings{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings for %s: %w", s.SourceID, err)
	}
	return data, nil
}

func decode(data []byte) (UserSourceSettings, error) {
	var s UserSourceSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s, nil
}

// observe records the duration of a store call started at start.
func observe(backend, operation string, start time.Time) {
	metrics.RecordStoreOperation(backend, operation, time.Since(start))
}
