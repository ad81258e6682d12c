// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Package api provides the HTTP REST API layer for Reelhub.

All routes live under /api/v1 and, except for the stream proxy, answer with
the standard JSON envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "request_id": "..."}}

Route groups:

 1. Health (/api/v1/health): liveness and plugin count, no authentication.

 2. Sources (/api/v1/sources): registered plugin ids, settings templates and
    settings validation.

 3. Movies and episodes (/api/v1/movies/{tmdbId}, /api/v1/shows/{tmdbId}/season/{season}/episode/{episode}):
    discovery across the caller's configured sources, per-source candidate
    listing, stream resolution and the byte-level stream proxy.

 4. User sources (/api/v1/users/me/sources): the caller's stored settings.

Prometheus metrics are served at /metrics.

Usage Example:

	handler := api.NewHandler(api.Dependencies{
	    Registry:   registry,
	    Aggregator: aggregator,
	    Settings:   settingsService,
	    Gateway:    gateway,
	})
	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddlewareFromConfig(&cfg.Security))
	srv := &http.Server{Addr: ":8080", Handler: router.SetupChi()}

Error mapping:

Source lookups report failures through sentinel errors in the sources and
plugin packages. writeSourceError maps them to status codes:

  - unknown source or plugin.ErrNotFound: 404 NOT_FOUND
  - source not configured for the caller: 400 BAD_REQUEST
  - any other plugin failure: 502 EXTERNAL_SERVICE_FAILED with {source, reason}
*/
package api
