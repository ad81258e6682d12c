// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package jellyfin implements the source plugin for Jellyfin media servers.
//
// Titles are matched by TMDB provider id. Every media source of a matching
// item becomes a stream candidate; resolving a stream asks the server for
// PlaybackInfo and returns either its transcoding URL or a static direct
// stream URL, both relative to the proxy route.
package jellyfin

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

// ID is the registry id of the Jellyfin plugin.
const ID = "jellyfin"

const (
	clientName    = "Reelhub"
	clientVersion = "1.0.0"
)

// Settings is a user's Jellyfin configuration.
type Settings struct {
	BaseURL string `json:"baseUrl" validate:"required,baseurl" jsonschema:"title=Server URL,example=http://jellyfin.local:8096,description=Address of the Jellyfin server"`
	APIKey  string `json:"apiKey" validate:"required" jsonschema:"title=API Key,format=password,description=Created under Dashboard > API Keys"`
	UserID  string `json:"userId" validate:"required,excludesall=/?#%" jsonschema:"title=User ID,description=Jellyfin user whose libraries are searched"`
}

// Options configures the plugin.
type Options struct {
	// DeviceID identifies this server in Jellyfin's device list.
	DeviceID string
}

// Plugin is the Jellyfin source plugin.
type Plugin struct {
	client   *upstream.Client
	deviceID string
	template plugin.SettingsTemplate
}

// New creates the Jellyfin plugin.
func New(client *upstream.Client, opts Options) *Plugin {
	if opts.DeviceID == "" {
		opts.DeviceID = "reelhub"
	}
	return &Plugin{
		client:   client,
		deviceID: opts.DeviceID,
		template: plugin.TemplateFor[Settings](),
	}
}

func (p *Plugin) ID() string { return ID }

func (p *Plugin) SettingsTemplate() plugin.SettingsTemplate { return p.template }

func (p *Plugin) ValidateSettings(raw plugin.Settings) plugin.ValidationResult {
	return plugin.ValidateAs(raw, normalize)
}

func normalize(s *Settings) {
	s.BaseURL = plugin.NormalizeBaseURL(s.BaseURL)
}

// HandleProxy maps the proxy URI onto the server and authenticates with
// the MediaBrowser authorization header.
func (p *Plugin) HandleProxy(req plugin.ProxyRequest, raw plugin.Settings) (*plugin.ProxyInstruction, error) {
	s, err := decode(raw)
	if err != nil {
		return nil, err
	}
	target, err := plugin.ResolveProxyURL(s.BaseURL, plugin.StripQueryParams(req.URI, "api_key", "ApiKey"))
	if err != nil {
		return nil, err
	}
	return &plugin.ProxyInstruction{
		URL:     target.String(),
		Headers: p.authHeader(s.APIKey),
	}, nil
}

func (p *Plugin) authHeader(apiKey string) http.Header {
	return http.Header{
		"Authorization": []string{fmt.Sprintf(
			`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
			clientName, clientName, p.deviceID, clientVersion, apiKey,
		)},
	}
}

func decode(raw plugin.Settings) (Settings, error) {
	var s Settings
	if err := plugin.DecodeSettings(raw, &s); err != nil {
		return s, err
	}
	normalize(&s)
	return s, nil
}
