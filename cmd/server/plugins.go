// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package main

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/plugin/jellyfin"
	"github.com/tomtom215/reelhub/internal/plugin/local"
	"github.com/tomtom215/reelhub/internal/plugin/plex"
	"github.com/tomtom215/reelhub/internal/upstream"
)

// buildRegistry creates the built-in plugins sharing one upstream client and
// registers those named in cfg.Enabled. An empty list registers all of them.
func buildRegistry(cfg *config.SourcesConfig) (*plugin.Registry, error) {
	client := upstream.New(upstream.OptionsFromConfig(cfg))

	all := []plugin.SourcePlugin{
		jellyfin.New(client, jellyfin.Options{DeviceID: cfg.JellyfinDeviceID}),
		plex.New(client, plex.Options{ClientIdentifier: cfg.PlexClientIdentifier}),
		local.New(client),
	}
	if len(cfg.Enabled) == 0 {
		return plugin.NewRegistry(all...)
	}

	known := lo.Map(all, func(p plugin.SourcePlugin, _ int) string { return p.ID() })
	if unknown, _ := lo.Difference(cfg.Enabled, known); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown sources in SOURCES_ENABLED: %v", unknown)
	}

	enabled := lo.Filter(all, func(p plugin.SourcePlugin, _ int) bool {
		return lo.Contains(cfg.Enabled, p.ID())
	})
	return plugin.NewRegistry(enabled...)
}
