// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package logging

import (
	"net/url"
	"strings"
)

// sensitiveKeys are query parameter and header names whose values never reach the logs.
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"token":         true,
	"x-plex-token":  true,
	"x-emby-token":  true,
	"x-api-key":     true,
	"authorization": true,
	"cookie":        true,
	"password":      true,
	"secret":        true,
}

// SanitizeToken masks a token, showing only the first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiJ9.e30.abcd" -> "eyJh...abcd"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// IsSensitiveKey reports whether a header or parameter name carries credentials.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// SanitizeURL masks credential-bearing query parameters and userinfo in a URL.
// Unparseable input is replaced entirely.
//
//	SanitizeURL("http://plex:32400/library?X-Plex-Token=abcdef0123456789")
//	// "http://plex:32400/library?X-Plex-Token=abcd...6789"
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	if u.User != nil {
		u.User = url.User("***")
	}

	query := u.Query()
	changed := false
	for key, values := range query {
		if !IsSensitiveKey(key) {
			continue
		}
		for i := range values {
			values[i] = SanitizeToken(values[i])
		}
		changed = true
	}
	if changed {
		u.RawQuery = query.Encode()
	}

	return u.String()
}
