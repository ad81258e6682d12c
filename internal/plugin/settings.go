// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelhub/internal/validation"
)

// DecodeSettings decodes raw settings into a typed settings struct.
func DecodeSettings(raw Settings, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// EncodeSettings converts a typed settings struct back to a Settings map.
func EncodeSettings(v any) (Settings, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := Settings{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateAs decodes raw into T, applies normalize (may be nil) and runs
// struct validation. On success Replace holds the normalized settings.
func ValidateAs[T any](raw Settings, normalize func(*T)) ValidationResult {
	var s T
	if err := DecodeSettings(raw, &s); err != nil {
		return Invalid(decodeFieldError(err))
	}
	if normalize != nil {
		normalize(&s)
	}

	if verr := validation.ValidateStruct(&s); verr != nil {
		errs := make([]FieldError, 0, len(verr.Errors()))
		for _, fe := range verr.Errors() {
			errs = append(errs, FieldError{Field: fe.Field(), Reason: fe.Error()})
		}
		return Invalid(errs...)
	}

	replace, err := EncodeSettings(&s)
	if err != nil {
		return Invalid(FieldError{Field: "settings", Reason: "settings could not be encoded"})
	}
	return ValidationResult{Valid: true, Errors: []FieldError{}, Replace: replace}
}

func decodeFieldError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return FieldError{
			Field:  typeErr.Field,
			Reason: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()),
		}
	}
	return FieldError{Field: "settings", Reason: "settings must be a JSON object"}
}

// NormalizeBaseURL trims whitespace and trailing slashes from a base URL.
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
