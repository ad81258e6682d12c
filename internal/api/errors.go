// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/sources"
)

// Common API errors
var (
	// ErrNoCaller indicates a handler ran without an authenticated caller in
	// its context, which means the route was mounted outside the auth group.
	ErrNoCaller = errors.New("no authenticated caller")

	// ErrInvalidEpisode indicates a season or episode path segment that is
	// not a non-negative integer.
	ErrInvalidEpisode = errors.New("season and episode must be non-negative integers")
)

// SourceErrorDetails is the details payload of a 502 source failure.
type SourceErrorDetails struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// writeSourceError maps errors from the sources package onto the envelope.
func writeSourceError(w http.ResponseWriter, r *http.Request, sourceID string, err error) {
	rw := NewResponseWriter(w, r)

	var srcErr *sources.SourceError
	switch {
	case errors.Is(err, sources.ErrUnknownSource):
		rw.NotFound("source not found")

	case errors.Is(err, sources.ErrSourceNotConfigured):
		rw.BadRequest("source is not configured for this user")

	case errors.As(err, &srcErr):
		if errors.Is(srcErr, plugin.ErrNotFound) {
			rw.NotFound("no stream found at source")
			return
		}
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("source", srcErr.Source).
			Str("reason", srcErr.Reason()).
			Msg("Source lookup failed")
		rw.ExternalServiceError("source lookup failed", SourceErrorDetails{
			Source: srcErr.Source,
			Reason: srcErr.Reason(),
		})

	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("source", sourceID).Msg("Unexpected source error")
		rw.InternalError("internal server error")
	}
}
