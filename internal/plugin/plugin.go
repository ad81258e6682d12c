// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Package plugin defines the source plugin contract and the registry that
exposes plugins by id.

A source plugin integrates one external media backend (Jellyfin, Plex, a
local media index). Plugins are stateless: the caller's settings and bearer
token are passed on every call and never retained, so a single plugin value
serves any number of concurrent requests.

Plugins are registered explicitly at startup:

	reg, err := plugin.NewRegistry(
	    jellyfin.New(client, jellyfin.Options{}),
	    plex.New(client, plex.Options{}),
	    local.New(client),
	)

Lookup failures are reported with sentinel errors so callers can decide
whether to skip a source (discovery) or surface the failure (single-source
requests):

	if errors.Is(err, plugin.ErrUnauthorized) { ... }
*/
package plugin

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors returned by plugin lookups. Implementations wrap them
// with context using fmt.Errorf("...: %w", err).
var (
	// ErrNotFound means the source has no item for the requested title.
	ErrNotFound = errors.New("not found at source")

	// ErrUnauthorized means the source rejected the stored credentials.
	ErrUnauthorized = errors.New("source rejected credentials")

	// ErrUnreachable means the source could not be contacted or answered
	// with a server error.
	ErrUnreachable = errors.New("source unreachable")

	// ErrInvalidSettings means stored settings could not be decoded.
	ErrInvalidSettings = errors.New("invalid source settings")

	// ErrInvalidProxyPath means a proxy URI tried to leave the source's base URL.
	ErrInvalidProxyPath = errors.New("invalid proxy path")
)

// Settings is a user's opaque settings object for one plugin. Its shape is
// described by the plugin's SettingsTemplate.
type Settings map[string]any

// Credentials are passed to every lookup.
type Credentials struct {
	Settings Settings

	// Token is the bearer token the caller authenticated with. Plugins that
	// front services sharing the caller's identity forward it upstream.
	Token string
}

// SourcePlugin is implemented by every media source integration.
type SourcePlugin interface {
	// ID returns the stable identifier the plugin is registered under.
	ID() string

	// SettingsTemplate describes the configurable fields. It has no side effects.
	SettingsTemplate() SettingsTemplate

	// ValidateSettings checks raw settings. It never panics and reports
	// failures as field errors rather than returning an error.
	ValidateSettings(raw Settings) ValidationResult

	// GetMovieStream looks up a movie by TMDB id. A nil cfg lists candidates;
	// a non-nil cfg resolves a concrete playable stream.
	GetMovieStream(ctx context.Context, tmdbID string, creds Credentials, cfg *PlaybackConfig) (*StreamDescriptor, error)

	// GetEpisodeStream looks up one episode of a show by the show's TMDB id.
	GetEpisodeStream(ctx context.Context, tmdbID string, season, episode int, creds Credentials, cfg *PlaybackConfig) (*StreamDescriptor, error)

	// HandleProxy maps a downstream proxy request onto the upstream URL and
	// auth headers for this source. It performs no I/O.
	HandleProxy(req ProxyRequest, settings Settings) (*ProxyInstruction, error)
}

// ProxyRequest is the part of a downstream request a plugin needs to build
// the upstream request.
type ProxyRequest struct {
	// URI is the path below the stream route, including the raw query
	// (e.g. "Videos/abc/main.m3u8?MediaSourceId=abc").
	URI     string
	Headers http.Header
}

// ProxyInstruction is the upstream target for a proxied request. Headers
// are set on the upstream request after downstream headers and win on conflict.
type ProxyInstruction struct {
	URL     string
	Headers http.Header
}
