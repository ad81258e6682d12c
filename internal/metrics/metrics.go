// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered with the default registry through promauto and
// cover API traffic, source plugin lookups, outbound circuit breakers, the
// streaming proxy, and the settings store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results used as the "result" label of SourceLookupsTotal.
const (
	ResultFound   = "found"
	ResultEmpty   = "empty"
	ResultError   = "error"
	ResultTimeout = "timeout"
	ResultPanic   = "panic"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Source Plugin Metrics
	SourceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_lookups_total",
			Help: "Total number of source plugin lookups by outcome",
		},
		[]string{"source", "operation", "result"},
	)

	SourceLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_lookup_duration_seconds",
			Help:    "Duration of a single source plugin lookup",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source", "operation"},
	)

	DiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_discovery_duration_seconds",
			Help:    "Duration of a full discovery fan-out across configured sources",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	DiscoverySourcesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_discovery_results",
			Help:    "Number of sources returned by a discovery fan-out",
			Buckets: []float64{0, 1, 2, 3, 5, 8},
		},
	)

	// Outbound Request Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of outbound lookup requests to media servers",
		},
		[]string{"host", "status_class"},
	)

	UpstreamRateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the per-host outbound rate limiter",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"host"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Streaming Proxy Metrics
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Total number of proxied stream requests by outcome",
		},
		[]string{"source", "result"}, // result: "ok", "upstream_error", "rejected", "aborted"
	)

	ProxyBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_bytes_total",
			Help: "Total bytes relayed from upstream media servers to clients",
		},
		[]string{"source"},
	)

	ProxyActiveStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "proxy_active_streams",
			Help: "Current number of in-flight proxied streams",
		},
		[]string{"source"},
	)

	ProxyUpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxy_upstream_latency_seconds",
			Help:    "Time until upstream response headers arrive",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// Settings Metrics
	SettingsOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_operations_total",
			Help: "Total number of user source settings operations",
		},
		[]string{"operation", "result"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of settings store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"backend", "operation"},
	)

	// Auth Metrics
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"mode", "result"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSourceLookup records the outcome of one plugin call.
func RecordSourceLookup(source, operation, result string, duration time.Duration) {
	SourceLookupsTotal.WithLabelValues(source, operation, result).Inc()
	SourceLookupDuration.WithLabelValues(source, operation).Observe(duration.Seconds())
}

// RecordDiscovery records a completed discovery fan-out.
func RecordDiscovery(duration time.Duration, returned int) {
	DiscoveryDuration.Observe(duration.Seconds())
	DiscoverySourcesReturned.Observe(float64(returned))
}

// RecordUpstreamRequest records an outbound lookup request by HTTP status class.
// A zero status records a transport failure.
func RecordUpstreamRequest(host string, status int) {
	UpstreamRequestsTotal.WithLabelValues(host, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status <= 0:
		return "error"
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// RecordProxyResult records the outcome of a proxied stream request.
func RecordProxyResult(source, result string) {
	ProxyRequestsTotal.WithLabelValues(source, result).Inc()
}

// TrackActiveStream tracks in-flight proxied streams for a source.
func TrackActiveStream(source string, inc bool) {
	if inc {
		ProxyActiveStreams.WithLabelValues(source).Inc()
	} else {
		ProxyActiveStreams.WithLabelValues(source).Dec()
	}
}

// RecordSettingsOperation records a settings read, write, validate or delete.
func RecordSettingsOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SettingsOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordStoreOperation records the duration of a store call.
func RecordStoreOperation(backend, operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(mode string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	AuthAttemptsTotal.WithLabelValues(mode, result).Inc()
}
