// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/proxy"
	"github.com/tomtom215/reelhub/internal/sources"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_health.go: health endpoint
//   - handlers_sources.go: plugin listing, templates, settings validation
//   - handlers_streams.go: discovery, stream resolution, proxy
//   - handlers_user_sources.go: the caller's stored settings
type Handler struct {
	registry   *plugin.Registry
	aggregator *sources.Aggregator
	settings   *sources.SettingsService
	gateway    *proxy.Gateway
	startTime  time.Time
}

// Dependencies are the services the handlers delegate to. All are required.
type Dependencies struct {
	Registry   *plugin.Registry
	Aggregator *sources.Aggregator
	Settings   *sources.SettingsService
	Gateway    *proxy.Gateway
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		registry:   deps.Registry,
		aggregator: deps.Aggregator,
		settings:   deps.Settings,
		gateway:    deps.Gateway,
		startTime:  time.Now(),
	}
}

// requireCaller returns the authenticated caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		logging.Ctx(r.Context()).Warn().Err(ErrNoCaller).Str("path", r.URL.Path).Msg("Rejected request")
		NewResponseWriter(w, r).Unauthorized("authentication required")
		return auth.Caller{}, false
	}
	return caller, true
}
