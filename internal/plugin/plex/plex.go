// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package plex implements the source plugin for Plex Media Server.
//
// Titles are matched through the server's external guid index
// (tmdb://{id}). Each Media entry of a matching item is a stream candidate.
// Resolved streams use the part key for direct play and the universal
// transcoder when the caller caps the bitrate below the file's bitrate.
package plex

import (
	"net/http"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

// ID is the registry id of the Plex plugin.
const ID = "plex"

const product = "Reelhub"

// Settings is a user's Plex configuration.
type Settings struct {
	BaseURL string `json:"baseUrl" validate:"required,baseurl" jsonschema:"title=Server URL,example=http://plex.local:32400,description=Address of the Plex Media Server"`
	Token   string `json:"token" validate:"required,min=8" jsonschema:"title=Plex Token,format=password,description=X-Plex-Token of an account with access to the libraries"`
}

// Options configures the plugin.
type Options struct {
	// ClientIdentifier is sent as X-Plex-Client-Identifier.
	ClientIdentifier string
}

// Plugin is the Plex source plugin.
type Plugin struct {
	client   *upstream.Client
	clientID string
	template plugin.SettingsTemplate
}

// New creates the Plex plugin.
func New(client *upstream.Client, opts Options) *Plugin {
	if opts.ClientIdentifier == "" {
		opts.ClientIdentifier = "reelhub"
	}
	return &Plugin{
		client:   client,
		clientID: opts.ClientIdentifier,
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
// X-Plex-Token. A client supplied token in the query is dropped.
func (p *Plugin) HandleProxy(req plugin.ProxyRequest, raw plugin.Settings) (*plugin.ProxyInstruction, error) {
	s, err := decode(raw)
	if err != nil {
		return nil, err
	}
	target, err := plugin.ResolveProxyURL(s.BaseURL, plugin.StripQueryParams(req.URI, "X-Plex-Token"))
	if err != nil {
		return nil, err
	}
	return &plugin.ProxyInstruction{
		URL:     target.String(),
		Headers: p.headers(s.Token),
	}, nil
}

func (p *Plugin) headers(token string) http.Header {
	return http.Header{
		"X-Plex-Token":             []string{token},
		"X-Plex-Client-Identifier": []string{p.clientID},
		"X-Plex-Product":           []string{product},
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
