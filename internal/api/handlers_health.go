// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Sources       []string `json:"sources"`
}

// Health reports liveness and the registered plugins. It does not contact
// any source.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, HealthStatus{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Sources:       h.registry.IDs(),
	})
}
