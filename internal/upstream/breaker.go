// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package upstream

import (
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/metrics"
)

// errCallerGone marks requests abandoned because the caller's context ended.
// They say nothing about the upstream's health and never count as failures.
var errCallerGone = errors.New("caller context ended")

// newBreaker creates the circuit breaker guarding one upstream host.
//
// Opens when the failure ratio reaches opts.BreakerFailureRatio over at
// least opts.BreakerMinRequests requests within opts.BreakerInterval, and
// probes again after opts.BreakerTimeout.
func newBreaker(name string, opts Options) *gobreaker.CircuitBreaker[*http.Response] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: opts.BreakerMaxRequests,
		Interval:    opts.BreakerInterval,
		Timeout:     opts.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= opts.BreakerFailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// recordBreakerResult updates request metrics after an Execute call.
func recordBreakerResult(cb *gobreaker.CircuitBreaker[*http.Response], err error) {
	name := cb.Name()
	switch {
	case err == nil, errors.Is(err, errCallerGone):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(cb.Counts().ConsecutiveFailures))
	}
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging and metrics
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
