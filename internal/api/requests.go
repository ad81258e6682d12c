// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// MovieRequest holds the validated path parameters of movie routes.
type MovieRequest struct {
	TMDBID   string `json:"tmdbId" validate:"required,numeric,max=20"`
	SourceID string `json:"sourceId" validate:"omitempty,max=64"`
}

// EpisodeRequest holds the validated path parameters of episode routes.
type EpisodeRequest struct {
	TMDBID   string `json:"tmdbId" validate:"required,numeric,max=20"`
	SourceID string `json:"sourceId" validate:"omitempty,max=64"`
	Season   int    `json:"season" validate:"gte=0,lte=10000"`
	Episode  int    `json:"episode" validate:"gte=0,lte=100000"`
}

// ValidateSettingsRequest is the body of POST /sources/{sourceId}/settings/validate.
type ValidateSettingsRequest struct {
	Settings plugin.Settings `json:"settings" validate:"required"`
}

// PutUserSourceRequest is the body of PUT /users/me/sources/{sourceId}.
// A missing enabled flag means true.
type PutUserSourceRequest struct {
	Enabled  *bool           `json:"enabled"`
	Settings plugin.Settings `json:"settings" validate:"required"`
}

// FieldDetail is one entry of a VALIDATION_FAILED details list.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a bounded JSON body into dst. An empty body returns
// errEmptyBody so callers can decide whether it is acceptable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// validateRequest runs the shared validator and converts failures into
// envelope details.
func validateRequest(req any) []FieldDetail {
	verr := validation.ValidateStruct(req)
	if verr == nil {
		return nil
	}
	fieldErrs := verr.Errors()
	details := make([]FieldDetail, 0, len(fieldErrs))
	for i := range fieldErrs {
		details = append(details, FieldDetail{Field: fieldErrs[i].Field(), Message: fieldErrs[i].Error()})
	}
	return details
}

func parseMovieRequest(r *http.Request) (MovieRequest, []FieldDetail) {
	req := MovieRequest{
		TMDBID:   chi.URLParam(r, "tmdbId"),
		SourceID: chi.URLParam(r, "sourceId"),
	}
	return req, validateRequest(&req)
}

func parseEpisodeRequest(r *http.Request) (EpisodeRequest, []FieldDetail) {
	req := EpisodeRequest{
		TMDBID:   chi.URLParam(r, "tmdbId"),
		SourceID: chi.URLParam(r, "sourceId"),
	}
	season, serr := strconv.Atoi(chi.URLParam(r, "season"))
	episode, eerr := strconv.Atoi(chi.URLParam(r, "episode"))
	if serr != nil || eerr != nil {
		return req, []FieldDetail{{Field: "season", Message: ErrInvalidEpisode.Error()}}
	}
	req.Season = season
	req.Episode = episode
	return req, validateRequest(&req)
}
