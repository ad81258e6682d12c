// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package plugintest provides a configurable SourcePlugin for tests.
package plugintest

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/tomtom215/reelhub/internal/plugin"
)

// FakeSettings is the settings shape accepted by Fake's default validator.
type FakeSettings struct {
	BaseURL string `json:"baseUrl" validate:"required,baseurl"`
	APIKey  string `json:"apiKey" validate:"required"`
}

// Fake is a SourcePlugin whose behavior is set per test. Nil funcs fall
// back to simple defaults. Call counters are safe for concurrent use.
type Fake struct {
	PluginID string

	MovieFunc   func(ctx context.Context, tmdbID string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error)
	EpisodeFunc func(ctx context.Context, tmdbID string, season, episode int, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error)
	ProxyFunc   func(req plugin.ProxyRequest, settings plugin.Settings) (*plugin.ProxyInstruction, error)

	movieCalls   atomic.Int64
	episodeCalls atomic.Int64
}

// New returns a Fake whose lookups return a single candidate.
func New(id string) *Fake {
	return &Fake{PluginID: id}
}

func (f *Fake) ID() string { return f.PluginID }

func (f *Fake) SettingsTemplate() plugin.SettingsTemplate {
	return plugin.TemplateFor[FakeSettings]()
}

func (f *Fake) ValidateSettings(raw plugin.Settings) plugin.ValidationResult {
	return plugin.ValidateAs(raw, func(s *FakeSettings) {
		s.BaseURL = plugin.NormalizeBaseURL(s.BaseURL)
	})
}

func (f *Fake) GetMovieStream(ctx context.Context, tmdbID string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	f.movieCalls.Add(1)
	if f.MovieFunc != nil {
		return f.MovieFunc(ctx, tmdbID, creds, cfg)
	}
	return Descriptor(f.PluginID + "-" + tmdbID), nil
}

func (f *Fake) GetEpisodeStream(ctx context.Context, tmdbID string, season, episode int, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	f.episodeCalls.Add(1)
	if f.EpisodeFunc != nil {
		return f.EpisodeFunc(ctx, tmdbID, season, episode, creds, cfg)
	}
	return Descriptor(f.PluginID + "-" + tmdbID), nil
}

func (f *Fake) HandleProxy(req plugin.ProxyRequest, settings plugin.Settings) (*plugin.ProxyInstruction, error) {
	if f.ProxyFunc != nil {
		return f.ProxyFunc(req, settings)
	}
	base, _ := settings["baseUrl"].(string)
	u, err := plugin.ResolveProxyURL(base, req.URI)
	if err != nil {
		return nil, err
	}
	key, _ := settings["apiKey"].(string)
	return &plugin.ProxyInstruction{
		URL:     u.String(),
		Headers: http.Header{"X-Api-Key": []string{key}},
	}, nil
}

// MovieCalls returns how often GetMovieStream was invoked.
func (f *Fake) MovieCalls() int64 { return f.movieCalls.Load() }

// EpisodeCalls returns how often GetEpisodeStream was invoked.
func (f *Fake) EpisodeCalls() int64 { return f.episodeCalls.Load() }

// Descriptor returns a discovery result with one candidate keyed by key.
func Descriptor(key string) *plugin.StreamDescriptor {
	return &plugin.StreamDescriptor{
		Key:   key,
		Title: key,
		Candidates: []plugin.StreamCandidate{
			{Key: key, Title: key},
		},
	}
}

// ValidSettings returns settings accepted by Fake's validator.
func ValidSettings(baseURL string) plugin.Settings {
	return plugin.Settings{"baseUrl": baseURL, "apiKey": "secret-key"}
}
