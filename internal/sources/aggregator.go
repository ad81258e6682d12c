// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package sources runs plugin lookups on behalf of a caller.
//
// Discovery fans out to every source the caller has enabled and merges the
// answers; single-source lookups call one plugin and report its failure.
// Settings writes go through the plugin's validator before they reach the
// store, so plugins only ever see settings they accepted.
package sources

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/store"
)

const (
	opMovie   = "movie"
	opEpisode = "episode"
)

// DefaultDiscoveryTimeout bounds a discovery fan-out when none is configured.
const DefaultDiscoveryTimeout = 10 * time.Second

// AggregatedSources maps plugin id to its answer. Sources that were skipped
// or failed are absent.
type AggregatedSources map[string]*plugin.StreamDescriptor

// lookupFunc is one plugin call with the caller's credentials.
type lookupFunc func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error)

// Aggregator performs stream lookups across the registered plugins.
type Aggregator struct {
	registry         *plugin.Registry
	store            store.Store
	discoveryTimeout time.Duration
}

// NewAggregator creates an Aggregator. A non-positive timeout uses
// DefaultDiscoveryTimeout.
func NewAggregator(registry *plugin.Registry, st store.Store, discoveryTimeout time.Duration) *Aggregator {
	if discoveryTimeout <= 0 {
		discoveryTimeout = DefaultDiscoveryTimeout
	}
	return &Aggregator{registry: registry, store: st, discoveryTimeout: discoveryTimeout}
}

// SourcesForMovie asks every enabled source of the caller for the movie.
func (a *Aggregator) SourcesForMovie(ctx context.Context, caller auth.Caller, tmdbID string) (AggregatedSources, error) {
	return a.discover(ctx, caller, opMovie, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetMovieStream(ctx, tmdbID, creds, nil)
	})
}

// SourcesForEpisode asks every enabled source of the caller for the episode.
func (a *Aggregator) SourcesForEpisode(ctx context.Context, caller auth.Caller, tmdbID string, season, episode int) (AggregatedSources, error) {
	return a.discover(ctx, caller, opEpisode, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetEpisodeStream(ctx, tmdbID, season, episode, creds, nil)
	})
}

// StreamsForMovie lists the candidates of one source for the movie.
func (a *Aggregator) StreamsForMovie(ctx context.Context, caller auth.Caller, sourceID, tmdbID string) (*plugin.StreamDescriptor, error) {
	return a.single(ctx, caller, sourceID, opMovie, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetMovieStream(ctx, tmdbID, creds, nil)
	})
}

// StreamsForEpisode lists the candidates of one source for the episode.
func (a *Aggregator) StreamsForEpisode(ctx context.Context, caller auth.Caller, sourceID, tmdbID string, season, episode int) (*plugin.StreamDescriptor, error) {
	return a.single(ctx, caller, sourceID, opEpisode, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetEpisodeStream(ctx, tmdbID, season, episode, creds, nil)
	})
}

// StreamForMovie resolves a playable stream of the movie at one source.
// A nil cfg selects the source's default stream.
func (a *Aggregator) StreamForMovie(ctx context.Context, caller auth.Caller, sourceID, tmdbID string, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	cfg = orDefault(cfg)
	return a.single(ctx, caller, sourceID, opMovie, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetMovieStream(ctx, tmdbID, creds, cfg)
	})
}

// StreamForEpisode resolves a playable stream of the episode at one source.
func (a *Aggregator) StreamForEpisode(ctx context.Context, caller auth.Caller, sourceID, tmdbID string, season, episode int, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	cfg = orDefault(cfg)
	return a.single(ctx, caller, sourceID, opEpisode, func(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials) (*plugin.StreamDescriptor, error) {
		return p.GetEpisodeStream(ctx, tmdbID, season, episode, creds, cfg)
	})
}

// Settings returns the caller's stored settings for sourceID when they exist
// and are enabled. The proxy uses it to authorize a stream.
func (a *Aggregator) Settings(ctx context.Context, caller auth.Caller, sourceID string) (plugin.SourcePlugin, plugin.Settings, error) {
	p, ok := a.registry.Plugin(sourceID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	creds, err := a.credentials(ctx, caller, sourceID)
	if err != nil {
		return nil, nil, err
	}
	return p, creds.Settings, nil
}

func orDefault(cfg *plugin.PlaybackConfig) *plugin.PlaybackConfig {
	if cfg == nil {
		return &plugin.PlaybackConfig{}
	}
	return cfg
}

type lookupResult struct {
	source   string
	desc     *plugin.StreamDescriptor
	err      error
	duration time.Duration
}

func (a *Aggregator) discover(ctx context.Context, caller auth.Caller, op string, fn lookupFunc) (AggregatedSources, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	enabled, err := a.enabledSettings(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	out := make(AggregatedSources, len(enabled))
	if len(enabled) == 0 {
		metrics.RecordDiscovery(time.Since(start), 0)
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.discoveryTimeout)
	defer cancel()

	// Buffered so late plugins can finish after the deadline without blocking.
	results := make(chan lookupResult, len(enabled))
	pending := make(map[string]bool, len(enabled))

	// A plain Group: one failing source must not cancel the others.
	var g errgroup.Group
	for _, rec := range enabled {
		p, _ := a.registry.Plugin(rec.SourceID)
		creds := plugin.Credentials{Settings: rec.Settings, Token: caller.Token}
		pending[rec.SourceID] = true

		g.Go(func() error {
			began := time.Now()
			desc, err := invoke(ctx, p, creds, fn)
			results <- lookupResult{source: p.ID(), desc: desc, err: err, duration: time.Since(began)}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			delete(pending, res.source)
			if kept := a.record(log, op, res); kept {
				out[res.source] = res.desc
			}
		case <-ctx.Done():
			break collect
		}
	}

	for source := range pending {
		metrics.RecordSourceLookup(source, op, metrics.ResultTimeout, a.discoveryTimeout)
		log.Warn().Str("source", source).Str("operation", op).
			Dur("timeout", a.discoveryTimeout).Msg("Source lookup timed out")
	}

	metrics.RecordDiscovery(time.Since(start), len(out))
	log.Debug().Str("operation", op).Int("enabled", len(enabled)).Int("returned", len(out)).
		Dur("duration", time.Since(start)).Msg("Discovery complete")
	return out, nil
}

// record logs and counts one discovery answer and reports whether to keep it.
func (a *Aggregator) record(log *zerolog.Logger, op string, res lookupResult) bool {
	switch {
	case errors.Is(res.err, ErrPluginPanic):
		metrics.RecordSourceLookup(res.source, op, metrics.ResultPanic, res.duration)
		log.Error().Err(res.err).Str("source", res.source).Str("operation", op).Msg("Source plugin panicked")
		return false
	case errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled):
		metrics.RecordSourceLookup(res.source, op, metrics.ResultTimeout, res.duration)
		log.Warn().Err(res.err).Str("source", res.source).Str("operation", op).Msg("Source lookup timed out")
		return false
	case errors.Is(res.err, plugin.ErrNotFound), res.err == nil && res.desc.IsEmpty():
		metrics.RecordSourceLookup(res.source, op, metrics.ResultEmpty, res.duration)
		return false
	case res.err != nil:
		metrics.RecordSourceLookup(res.source, op, metrics.ResultError, res.duration)
		log.Warn().Err(res.err).Str("source", res.source).Str("operation", op).Msg("Source lookup failed")
		return false
	default:
		metrics.RecordSourceLookup(res.source, op, metrics.ResultFound, res.duration)
		return true
	}
}

func (a *Aggregator) single(ctx context.Context, caller auth.Caller, sourceID, op string, fn lookupFunc) (*plugin.StreamDescriptor, error) {
	p, ok := a.registry.Plugin(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	creds, err := a.credentials(ctx, caller, sourceID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	desc, err := invoke(ctx, p, creds, fn)
	switch {
	case err != nil:
		metrics.RecordSourceLookup(sourceID, op, metrics.ResultError, time.Since(start))
		return nil, &SourceError{Source: sourceID, Err: err}
	case desc.IsEmpty():
		metrics.RecordSourceLookup(sourceID, op, metrics.ResultEmpty, time.Since(start))
		return nil, &SourceError{Source: sourceID, Err: plugin.ErrNotFound}
	}
	metrics.RecordSourceLookup(sourceID, op, metrics.ResultFound, time.Since(start))
	return desc, nil
}

// credentials loads the caller's enabled settings for sourceID.
func (a *Aggregator) credentials(ctx context.Context, caller auth.Caller, sourceID string) (plugin.Credentials, error) {
	rec, err := a.store.Get(ctx, caller.UserID, sourceID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !rec.Enabled) {
		return plugin.Credentials{}, fmt.Errorf("%w: %s", ErrSourceNotConfigured, sourceID)
	}
	if err != nil {
		return plugin.Credentials{}, fmt.Errorf("load settings for %s: %w", sourceID, err)
	}
	return plugin.Credentials{Settings: rec.Settings, Token: caller.Token}, nil
}

// enabledSettings returns the caller's enabled settings for registered plugins.
func (a *Aggregator) enabledSettings(ctx context.Context, userID string) ([]store.UserSourceSettings, error) {
	all, err := a.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load source settings: %w", err)
	}
	enabled := all[:0]
	for _, rec := range all {
		if _, ok := a.registry.Plugin(rec.SourceID); ok && rec.Enabled {
			enabled = append(enabled, rec)
		}
	}
	return enabled, nil
}

// invoke calls fn and converts a panic into an ErrPluginPanic error.
func invoke(ctx context.Context, p plugin.SourcePlugin, creds plugin.Credentials, fn lookupFunc) (desc *plugin.StreamDescriptor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().Str("source", p.ID()).Str("stack", string(debug.Stack())).Msg("Recovered plugin panic")
			desc, err = nil, fmt.Errorf("%w: %v", ErrPluginPanic, rec)
		}
	}()
	return fn(ctx, p, creds)
}
