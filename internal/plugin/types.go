// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin

import "github.com/invopop/jsonschema"

// StreamProperty is a display attribute of a stream (resolution, codec, size).
type StreamProperty struct {
	Label          string `json:"label"`
	Value          any    `json:"value"`
	FormattedValue string `json:"formattedValue,omitempty"`
}

// StreamCandidate is one playable version of a title at a source.
type StreamCandidate struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	Properties []StreamProperty `json:"properties,omitempty"`
}

// AudioStream describes a selectable audio track.
type AudioStream struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Language string `json:"language,omitempty"`
	Codec    string `json:"codec,omitempty"`
	Default  bool   `json:"default,omitempty"`
}

// Subtitle describes a selectable subtitle track. URI, when set, is relative
// to the source's proxy route.
type Subtitle struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Language string `json:"language,omitempty"`
	Codec    string `json:"codec,omitempty"`
	URI      string `json:"uri,omitempty"`
	Default  bool   `json:"default,omitempty"`
}

// StreamDescriptor is a plugin's answer to a stream lookup.
//
// In discovery mode Candidates lists every version of the title. When a
// PlaybackConfig was supplied, URI is set and is relative to the source's
// proxy route (/movies/{tmdbId}/sources/{sourceId}/stream/).
type StreamDescriptor struct {
	Key          string            `json:"key"`
	Title        string            `json:"title"`
	URI          string            `json:"uri,omitempty"`
	DirectPlay   bool              `json:"directPlay"`
	Properties   []StreamProperty  `json:"properties,omitempty"`
	AudioStreams []AudioStream     `json:"audioStreams,omitempty"`
	Subtitles    []Subtitle        `json:"subtitles,omitempty"`
	Candidates   []StreamCandidate `json:"candidates,omitempty"`
}

// IsEmpty reports whether d carries neither a playable URI nor candidates.
func (d *StreamDescriptor) IsEmpty() bool {
	return d == nil || (d.URI == "" && len(d.Candidates) == 0)
}

// PlaybackConfig is the caller's choice when requesting a single stream.
type PlaybackConfig struct {
	// Key selects a candidate returned by discovery. Empty picks the default.
	Key              string         `json:"key,omitempty" validate:"max=512"`
	Bitrate          int            `json:"bitrate,omitempty" validate:"gte=0"`
	AudioStreamIndex *int           `json:"audioStreamIndex,omitempty" validate:"omitempty,gte=0"`
	ProgressSeconds  float64        `json:"progressSeconds,omitempty" validate:"gte=0"`
	DeviceProfile    map[string]any `json:"deviceProfile,omitempty"`
}

// Field describes one configurable setting for UI rendering.
type Field struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
	Description string `json:"description,omitempty"`
}

// SettingsTemplate is a plugin's static settings description.
type SettingsTemplate struct {
	Fields []Field            `json:"fields"`
	Schema *jsonschema.Schema `json:"schema"`
}

// FieldError is one structured validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationResult is the outcome of ValidateSettings. Replace holds the
// normalized settings to persist in place of the submitted values.
type ValidationResult struct {
	Valid   bool         `json:"isValid"`
	Errors  []FieldError `json:"errors"`
	Replace Settings     `json:"replace,omitempty"`
}

// Invalid builds a failed ValidationResult.
func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}
