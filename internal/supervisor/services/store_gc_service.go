// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package services

import (
	"context"
	"time"

	"github.com/tomtom215/reelhub/internal/logging"
)

// ValueLogCollector is satisfied by *store.Badger.
type ValueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// StoreGCService periodically garbage collects the settings store's value
// log. Settings are rewritten on every PUT, so without GC the log only grows.
//
// A failed GC run is logged and retried on the next tick; it never returns
// an error to the supervisor.
type StoreGCService struct {
	collector    ValueLogCollector
	interval     time.Duration
	discardRatio float64
	name         string
}

// NewStoreGCService creates the service. interval must be positive.
func NewStoreGCService(collector ValueLogCollector, interval time.Duration, discardRatio float64) *StoreGCService {
	return &StoreGCService{
		collector:    collector,
		interval:     interval,
		discardRatio: discardRatio,
		name:         "store-gc",
	}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	logger := logging.WithComponent(s.name)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.collector.RunValueLogGC(s.discardRatio); err != nil {
				logger.Warn().Err(err).Msg("Store value log GC failed")
				continue
			}
			logger.Debug().Dur("duration", time.Since(start)).Msg("Store value log GC complete")
		}
	}
}

// String names the service in supervisor events.
func (s *StoreGCService) String() string {
	return s.name
}
