// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin

import (
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
)

// TemplateFor builds a SettingsTemplate from a typed settings struct.
//
// The JSON Schema is reflected from T; the UI fields are derived from the
// schema's properties in struct order. Field metadata comes from jsonschema
// struct tags:
//
//	APIKey string `json:"apiKey" jsonschema:"title=API Key,format=password,description=..."`
//
// format=password renders as a password input; example= becomes the placeholder.
// Fields without omitempty in their json tag are required.
func TemplateFor[T any]() SettingsTemplate {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var zero T
	schema := reflector.Reflect(&zero)

	fields := []Field{}
	if schema.Properties != nil {
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			fields = append(fields, fieldFromSchema(pair.Key, pair.Value, slices.Contains(schema.Required, pair.Key)))
		}
	}

	return SettingsTemplate{Fields: fields, Schema: schema}
}

func fieldFromSchema(name string, prop *jsonschema.Schema, required bool) Field {
	f := Field{
		Name:        name,
		Label:       prop.Title,
		Type:        prop.Type,
		Required:    required,
		Description: prop.Description,
	}
	if f.Label == "" {
		f.Label = name
	}
	if prop.Format == "password" {
		f.Type = "password"
	}
	if len(prop.Examples) > 0 {
		f.Placeholder = fmt.Sprint(prop.Examples[0])
	}
	return f
}
