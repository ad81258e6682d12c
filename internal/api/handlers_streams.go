// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/sources"
)

// SourcesResponse is the discovery payload: one descriptor per source that
// has the title.
type SourcesResponse struct {
	Sources sources.AggregatedSources `json:"sources"`
}

// MovieSources runs discovery for a movie across the caller's sources.
func (h *Handler) MovieSources(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseMovieRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}

	found, err := h.aggregator.SourcesForMovie(r.Context(), caller, req.TMDBID)
	h.writeDiscovery(w, r, found, err)
}

// EpisodeSources runs discovery for one episode across the caller's sources.
func (h *Handler) EpisodeSources(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseEpisodeRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}

	found, err := h.aggregator.SourcesForEpisode(r.Context(), caller, req.TMDBID, req.Season, req.Episode)
	h.writeDiscovery(w, r, found, err)
}

func (h *Handler) writeDiscovery(w http.ResponseWriter, r *http.Request, found sources.AggregatedSources, err error) {
	if err != nil {
		// Only store failures surface here; source failures are dropped.
		logging.Ctx(r.Context()).Error().Err(err).Msg("Discovery failed")
		NewResponseWriter(w, r).InternalError("failed to load source settings")
		return
	}
	if found == nil {
		found = sources.AggregatedSources{}
	}
	WriteSuccess(w, r, SourcesResponse{Sources: found})
}

// MovieStreams lists the candidates one source offers for a movie.
func (h *Handler) MovieStreams(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseMovieRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}

	desc, err := h.aggregator.StreamsForMovie(r.Context(), caller, req.SourceID, req.TMDBID)
	if err != nil {
		writeSourceError(w, r, req.SourceID, err)
		return
	}
	WriteSuccess(w, r, desc)
}

// EpisodeStreams lists the candidates one source offers for an episode.
func (h *Handler) EpisodeStreams(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseEpisodeRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}

	desc, err := h.aggregator.StreamsForEpisode(r.Context(), caller, req.SourceID, req.TMDBID, req.Season, req.Episode)
	if err != nil {
		writeSourceError(w, r, req.SourceID, err)
		return
	}
	WriteSuccess(w, r, desc)
}

// MovieStream resolves a playable stream for a movie. The body is a
// PlaybackConfig; an empty body selects the source's defaults.
func (h *Handler) MovieStream(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseMovieRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}
	cfg, ok := decodePlaybackConfig(w, r)
	if !ok {
		return
	}

	desc, err := h.aggregator.StreamForMovie(r.Context(), caller, req.SourceID, req.TMDBID, cfg)
	if err != nil {
		writeSourceError(w, r, req.SourceID, err)
		return
	}
	WriteSuccess(w, r, desc)
}

// EpisodeStream resolves a playable stream for an episode.
func (h *Handler) EpisodeStream(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	req, details := parseEpisodeRequest(r)
	if details != nil {
		NewResponseWriter(w, r).ValidationError("invalid path parameters", details)
		return
	}
	cfg, ok := decodePlaybackConfig(w, r)
	if !ok {
		return
	}

	desc, err := h.aggregator.StreamForEpisode(r.Context(), caller, req.SourceID, req.TMDBID, req.Season, req.Episode, cfg)
	if err != nil {
		writeSourceError(w, r, req.SourceID, err)
		return
	}
	WriteSuccess(w, r, desc)
}

func decodePlaybackConfig(w http.ResponseWriter, r *http.Request) (*plugin.PlaybackConfig, bool) {
	cfg := &plugin.PlaybackConfig{}
	if err := decodeJSON(w, r, cfg); err != nil && !errors.Is(err, errEmptyBody) {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return nil, false
	}
	if details := validateRequest(cfg); details != nil {
		NewResponseWriter(w, r).ValidationError("invalid playback config", details)
		return nil, false
	}
	return cfg, true
}

// ProxyStream relays any request below .../stream/ to the source. The
// title in the path only scopes the URL; the plugin maps the remainder.
func (h *Handler) ProxyStream(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.gateway.ServeProxy(w, r, caller, chi.URLParam(r, "sourceId"), proxyURI(r))
}

// proxyURI is the wildcard path plus the raw query string.
func proxyURI(r *http.Request) string {
	uri := chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return uri
}
