// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/middleware"
)

// Router sets up HTTP routes using the Chi router.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil chiMw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		chiMiddleware: chiMw,
	}
}

const episodePath = "/shows/{tmdbId}/season/{season}/episode/{episode}"

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chiMiddleware(middleware.RequestID)) // X-Request-ID header and logging context
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := router.handler

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		// ========================
		// Health (no auth)
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitHealth())
			r.Use(APISecurityHeaders(true))
			r.Get("/health", h.Health)
		})

		// ========================
		// JSON API (auth)
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders(true))
			r.Use(router.auth.Authenticate)
			r.Use(chiMiddleware(middleware.Compression))

			r.Get("/sources", h.ListSources)
			r.Get("/sources/{sourceId}/settings/template", h.GetSettingsTemplate)
			r.Post("/sources/{sourceId}/settings/validate", h.ValidateSourceSettings)

			r.Get("/movies/{tmdbId}/sources", h.MovieSources)
			r.Get("/movies/{tmdbId}/sources/{sourceId}/streams", h.MovieStreams)
			r.Post("/movies/{tmdbId}/sources/{sourceId}/stream", h.MovieStream)

			r.Get(episodePath+"/sources", h.EpisodeSources)
			r.Get(episodePath+"/sources/{sourceId}/streams", h.EpisodeStreams)
			r.Post(episodePath+"/sources/{sourceId}/stream", h.EpisodeStream)

			r.Get("/users/me/sources", h.ListUserSources)
			r.Put("/users/me/sources/{sourceId}", h.PutUserSource)
			r.Delete("/users/me/sources/{sourceId}", h.DeleteUserSource)
		})

		// ========================
		// Stream proxy (auth, raw bytes)
		// ========================
		// No compression and no JSON envelope on success: bodies are media.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitStream())
			r.Use(APISecurityHeaders(false))
			r.Use(router.auth.Authenticate)

			r.HandleFunc("/movies/{tmdbId}/sources/{sourceId}/stream/*", h.ProxyStream)
			r.HandleFunc(episodePath+"/sources/{sourceId}/stream/*", h.ProxyStream)
		})
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
