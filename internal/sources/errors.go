// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package sources

import (
	"errors"
	"fmt"

	"github.com/tomtom215/reelhub/internal/plugin"
)

var (
	// ErrUnknownSource is returned when no plugin is registered under an id.
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceNotConfigured is returned when the caller has no stored,
	// enabled settings for a source.
	ErrSourceNotConfigured = errors.New("source not configured")

	// ErrPluginPanic marks a recovered panic inside a plugin call.
	ErrPluginPanic = errors.New("plugin panicked")
)

// SourceError is a failed single-source lookup. Err is the plugin's error.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Reason is a short, client safe classification of the failure.
func (e *SourceError) Reason() string {
	switch {
	case errors.Is(e.Err, plugin.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(e.Err, plugin.ErrNotFound):
		return "not_found"
	case errors.Is(e.Err, plugin.ErrUnreachable):
		return "unreachable"
	case errors.Is(e.Err, plugin.ErrInvalidSettings):
		return "invalid_settings"
	case errors.Is(e.Err, ErrPluginPanic):
		return "internal"
	default:
		return "upstream_error"
	}
}
