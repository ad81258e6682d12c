// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package local implements the source plugin for a self-hosted media index.
//
// The index exposes files per TMDB id over a small JSON API. Files are
// always served as-is, so every resolved stream is direct play.
package local

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

// ID is the registry id of the local index plugin.
const ID = "local"

// Settings is a user's local index configuration. Without an API key the
// caller's bearer token is forwarded on lookups.
type Settings struct {
	BaseURL string `json:"baseUrl" validate:"required,baseurl" jsonschema:"title=Index URL,example=http://media-index.lan:8080,description=Address of the media index"`
	APIKey  string `json:"apiKey,omitempty" validate:"omitempty,min=16" jsonschema:"title=API Key,format=password,description=Optional key sent as X-Api-Key"`
}

type filesResponse struct {
	Files []file `json:"files"`
}

type file struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Container  string `json:"container"`
	Resolution string `json:"resolution"`
	VideoCodec string `json:"videoCodec"`
}

// Plugin is the local index source plugin.
type Plugin struct {
	client   *upstream.Client
	template plugin.SettingsTemplate
}

// New creates the local index plugin.
func New(client *upstream.Client) *Plugin {
	return &Plugin{client: client, template: plugin.TemplateFor[Settings]()}
}

func (p *Plugin) ID() string { return ID }

func (p *Plugin) SettingsTemplate() plugin.SettingsTemplate { return p.template }

func (p *Plugin) ValidateSettings(raw plugin.Settings) plugin.ValidationResult {
	return plugin.ValidateAs(raw, normalize)
}

func normalize(s *Settings) {
	s.BaseURL = plugin.NormalizeBaseURL(s.BaseURL)
	s.APIKey = strings.TrimSpace(s.APIKey)
}

func (p *Plugin) GetMovieStream(ctx context.Context, tmdbID string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	path := "/api/movies/" + url.PathEscape(tmdbID) + "/files"
	return p.lookup(ctx, path, "movie "+tmdbID, creds, cfg)
}

func (p *Plugin) GetEpisodeStream(ctx context.Context, tmdbID string, season, episode int, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	path := fmt.Sprintf("/api/shows/%s/seasons/%d/episodes/%d/files", url.PathEscape(tmdbID), season, episode)
	return p.lookup(ctx, path, fmt.Sprintf("show %s S%02dE%02d", tmdbID, season, episode), creds, cfg)
}

func (p *Plugin) lookup(ctx context.Context, path, what string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	s, err := decode(creds.Settings)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	switch {
	case s.APIKey != "":
		header.Set("X-Api-Key", s.APIKey)
	case creds.Token != "":
		header.Set("Authorization", "Bearer "+creds.Token)
	}

	var res filesResponse
	if err := p.client.DoJSON(ctx, upstream.Request{URL: s.BaseURL + path, Header: header}, &res); err != nil {
		return nil, fmt.Errorf("local index %s: %w", what, err)
	}
	if len(res.Files) == 0 {
		return nil, fmt.Errorf("local index %s: %w", what, plugin.ErrNotFound)
	}

	if cfg == nil {
		first := res.Files[0]
		return &plugin.StreamDescriptor{
			Key:        first.ID,
			Title:      first.Name,
			Properties: fileProperties(first),
			Candidates: lo.Map(res.Files, func(f file, _ int) plugin.StreamCandidate {
				return plugin.StreamCandidate{Key: f.ID, Title: f.Name, Properties: fileProperties(f)}
			}),
		}, nil
	}

	f, ok := lo.Find(res.Files, func(f file) bool { return cfg.Key == "" || f.ID == cfg.Key })
	if !ok {
		return nil, fmt.Errorf("local index %s file %q: %w", what, cfg.Key, plugin.ErrNotFound)
	}
	return &plugin.StreamDescriptor{
		Key:        f.ID,
		Title:      f.Name,
		URI:        "files/" + url.PathEscape(f.ID),
		DirectPlay: true,
		Properties: fileProperties(f),
	}, nil
}

// HandleProxy maps the proxy URI onto the index. Only the stored API key is
// sent upstream; caller tokens never leave through the proxy.
func (p *Plugin) HandleProxy(req plugin.ProxyRequest, raw plugin.Settings) (*plugin.ProxyInstruction, error) {
	s, err := decode(raw)
	if err != nil {
		return nil, err
	}
	target, err := plugin.ResolveProxyURL(s.BaseURL, plugin.StripQueryParams(req.URI, "api_key"))
	if err != nil {
		return nil, err
	}
	inst := &plugin.ProxyInstruction{URL: target.String(), Headers: http.Header{}}
	if s.APIKey != "" {
		inst.Headers.Set("X-Api-Key", s.APIKey)
	}
	return inst, nil
}

func fileProperties(f file) []plugin.StreamProperty {
	props := []plugin.StreamProperty{}
	if f.Resolution != "" {
		props = append(props, plugin.StreamProperty{Label: "Resolution", Value: f.Resolution})
	}
	if f.VideoCodec != "" {
		props = append(props, plugin.StreamProperty{Label: "Video Codec", Value: f.VideoCodec, FormattedValue: strings.ToUpper(f.VideoCodec)})
	}
	if f.Container != "" {
		props = append(props, plugin.StreamProperty{Label: "Container", Value: f.Container})
	}
	if f.Size > 0 {
		props = append(props, plugin.StreamProperty{Label: "Size", Value: f.Size, FormattedValue: plugin.FormatBytes(f.Size)})
	}
	if f.Path != "" {
		props = append(props, plugin.StreamProperty{Label: "File", Value: lastSegment(f.Path)})
	}
	return props
}

func lastSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func decode(raw plugin.Settings) (Settings, error) {
	var s Settings
	if err := plugin.DecodeSettings(raw, &s); err != nil {
		return s, err
	}
	normalize(&s)
	return s, nil
}
