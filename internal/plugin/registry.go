// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Registry maps plugin ids to implementations. It is built once at startup
// and never mutated, so concurrent reads need no locking.
type Registry struct {
	plugins map[string]SourcePlugin
	ids     []string
}

// NewRegistry builds a registry from an explicit plugin list. Empty and
// duplicate ids are rejected.
func NewRegistry(plugins ...SourcePlugin) (*Registry, error) {
	r := &Registry{plugins: make(map[string]SourcePlugin, len(plugins))}

	for _, p := range plugins {
		if p == nil {
			return nil, fmt.Errorf("nil plugin in registration list")
		}
		id := p.ID()
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("plugin %T has an empty id", p)
		}
		if _, exists := r.plugins[id]; exists {
			return nil, fmt.Errorf("duplicate plugin id %q", id)
		}
		r.plugins[id] = p
	}

	r.ids = lo.Keys(r.plugins)
	slices.Sort(r.ids)
	return r, nil
}

// Plugin returns the plugin registered under id. A missing id is a normal
// condition, not an error.
func (r *Registry) Plugin(id string) (SourcePlugin, bool) {
	p, ok := r.plugins[id]
	return p, ok
}

// Plugins returns a copy of the id -> plugin mapping.
func (r *Registry) Plugins() map[string]SourcePlugin {
	out := make(map[string]SourcePlugin, len(r.plugins))
	for id, p := range r.plugins {
		out[id] = p
	}
	return out
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.plugins)
}

// ValidateSettings runs the validator of plugin id against raw. The error is
// non-nil only when no plugin is registered under id.
func (r *Registry) ValidateSettings(id string, raw Settings) (ValidationResult, error) {
	p, ok := r.Plugin(id)
	if !ok {
		return ValidationResult{}, fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}
	return safeValidate(p, raw), nil
}

// safeValidate turns a panicking validator into a failed result.
func safeValidate(p SourcePlugin, raw Settings) (result ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Invalid(FieldError{Field: "settings", Reason: "settings could not be validated"})
		}
	}()
	result = p.ValidateSettings(raw)
	if result.Errors == nil {
		result.Errors = []FieldError{}
	}
	return result
}
