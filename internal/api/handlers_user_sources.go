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
	"github.com/tomtom215/reelhub/internal/sources"
	"github.com/tomtom215/reelhub/internal/store"
)

// UserSourcesResponse lists the caller's stored source settings.
type UserSourcesResponse struct {
	Sources []store.UserSourceSettings `json:"sources"`
}

// ListUserSources returns the caller's settings for registered sources.
func (h *Handler) ListUserSources(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	list, err := h.settings.ListSettings(r.Context(), caller.UserID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list source settings")
		NewResponseWriter(w, r).InternalError("failed to load source settings")
		return
	}
	if list == nil {
		list = []store.UserSourceSettings{}
	}
	WriteSuccess(w, r, UserSourcesResponse{Sources: list})
}

// PutUserSource validates and stores the caller's settings for a source.
// Invalid settings are rejected with the validation result and nothing is
// stored.
func (h *Handler) PutUserSource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)
	sourceID := chi.URLParam(r, "sourceId")

	var req PutUserSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("invalid request body", details)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	res, rec, err := h.settings.PutSettings(r.Context(), caller.UserID, sourceID, req.Settings, enabled)
	switch {
	case errors.Is(err, sources.ErrUnknownSource):
		rw.NotFound("source not found")
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("source", sourceID).Msg("Failed to store source settings")
		rw.InternalError("failed to store source settings")
	case !res.Valid:
		rw.ValidationError("invalid source settings", res)
	default:
		rw.Success(rec)
	}
}

// DeleteUserSource removes the caller's settings for a source.
func (h *Handler) DeleteUserSource(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)
	sourceID := chi.URLParam(r, "sourceId")

	err := h.settings.DeleteSettings(r.Context(), caller.UserID, sourceID)
	switch {
	case errors.Is(err, sources.ErrSourceNotConfigured):
		rw.NotFound("source is not configured for this user")
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("source", sourceID).Msg("Failed to delete source settings")
		rw.InternalError("failed to delete source settings")
	default:
		rw.NoContent()
	}
}
