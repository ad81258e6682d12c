// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package sources

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/store"
)

// SettingsService manages a user's source settings. Writes are validated by
// the owning plugin first; rejected payloads are never persisted.
type SettingsService struct {
	registry *plugin.Registry
	store    store.Store
	now      func() time.Time
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(registry *plugin.Registry, st store.Store) *SettingsService {
	return &SettingsService{registry: registry, store: st, now: time.Now}
}

// Validate runs the plugin's validator without persisting anything.
func (s *SettingsService) Validate(sourceID string, raw plugin.Settings) (plugin.ValidationResult, error) {
	res, err := s.registry.ValidateSettings(sourceID, raw)
	if err != nil {
		metrics.RecordSettingsOperation("validate", err)
		return res, fmt.Errorf("%w: %s", ErrUnknownSource, sourceID)
	}
	metrics.RecordSettingsOperation("validate", nil)
	return res, nil
}

// ListSettings returns the user's settings for sources that are still registered.
func (s *SettingsService) ListSettings(ctx context.Context, userID string) ([]store.UserSourceSettings, error) {
	all, err := s.store.List(ctx, userID)
	metrics.RecordSettingsOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("list source settings: %w", err)
	}
	return lo.Filter(all, func(rec store.UserSourceSettings, _ int) bool {
		_, ok := s.registry.Plugin(rec.SourceID)
		return ok
	}), nil
}

// PutSettings validates raw with the plugin and, when valid, stores the
// plugin's normalized settings. Keys the validator did not carry into
// Replace are dropped. The returned record is nil when the result is invalid.
func (s *SettingsService) PutSettings(ctx context.Context, userID, sourceID string, raw plugin.Settings, enabled bool) (plugin.ValidationResult, *store.UserSourceSettings, error) {
	res, err := s.Validate(sourceID, raw)
	if err != nil {
		return res, nil, err
	}
	if !res.Valid {
		metrics.RecordSettingsOperation("put", errInvalid)
		logging.Ctx(ctx).Debug().Str("source", sourceID).Int("errors", len(res.Errors)).Msg("Rejected source settings")
		return res, nil, nil
	}

	normalized := maps.Clone(res.Replace)
	if normalized == nil {
		normalized = plugin.Settings{}
	}

	rec := store.UserSourceSettings{
		SourceID:  sourceID,
		Enabled:   enabled,
		Settings:  normalized,
		UpdatedAt: s.now().UTC(),
	}
	err = s.store.Put(ctx, userID, rec)
	metrics.RecordSettingsOperation("put", err)
	if err != nil {
		return res, nil, fmt.Errorf("store settings for %s: %w", sourceID, err)
	}

	logging.Ctx(ctx).Info().Str("source", sourceID).Bool("enabled", enabled).Msg("Source settings saved")
	return res, &rec, nil
}

// DeleteSettings removes the user's settings for sourceID. Missing settings
// return ErrSourceNotConfigured.
func (s *SettingsService) DeleteSettings(ctx context.Context, userID, sourceID string) error {
	err := s.store.Delete(ctx, userID, sourceID)
	metrics.RecordSettingsOperation("delete", err)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSourceNotConfigured, sourceID)
	}
	if err != nil {
		return fmt.Errorf("delete settings for %s: %w", sourceID, err)
	}
	return nil
}

var errInvalid = errors.New("settings rejected")
