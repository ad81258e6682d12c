// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/sources"
)

// SettingsTemplateResponse wraps a plugin's settings template.
type SettingsTemplateResponse struct {
	Settings plugin.SettingsTemplate `json:"settings"`
}

// ListSources returns the sorted ids of all registered plugins.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.registry.IDs())
}

// GetSettingsTemplate returns the settings template of one plugin.
func (h *Handler) GetSettingsTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.registry.Plugin(chi.URLParam(r, "sourceId"))
	if !ok {
		NewResponseWriter(w, r).NotFound("source not found")
		return
	}
	WriteSuccess(w, r, SettingsTemplateResponse{Settings: p.SettingsTemplate()})
}

// ValidateSourceSettings checks settings without storing them. An invalid
// result is still a 200: the validation outcome is the payload.
func (h *Handler) ValidateSourceSettings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	sourceID := chi.URLParam(r, "sourceId")

	var req ValidateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("invalid request body", details)
		return
	}

	res, err := h.settings.Validate(sourceID, req.Settings)
	if err != nil {
		if errors.Is(err, sources.ErrUnknownSource) {
			rw.NotFound("source not found")
			return
		}
		rw.InternalError("internal server error")
		return
	}
	rw.Success(res)
}
