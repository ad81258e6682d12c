// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveProxyURL joins a proxy URI onto a source base URL. The URI must be
// relative to the base: absolute and scheme-relative URLs are rejected, as
// are ".." segments (also when percent-encoded).
func ResolveProxyURL(baseURL, uri string) (*url.URL, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidSettings, baseURL)
	}

	if strings.HasPrefix(uri, "//") || strings.Contains(uri, "\\") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyPath, uri)
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxyPath, err)
	}
	if ref.IsAbs() || ref.Host != "" || ref.User != nil {
		return nil, fmt.Errorf("%w: %q is not relative", ErrInvalidProxyPath, uri)
	}

	rel := strings.TrimPrefix(ref.Path, "/")
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return nil, fmt.Errorf("%w: %q escapes the base path", ErrInvalidProxyPath, uri)
		}
	}

	out := *base
	out.Path = strings.TrimRight(base.Path, "/") + "/" + rel
	out.RawPath = ""
	out.RawQuery = ref.RawQuery
	out.Fragment = ""
	return &out, nil
}

// StripQueryParams removes the named query parameters (case-insensitive)
// from a URI and returns the result. Used to keep source credentials out of
// URIs handed to clients.
func StripQueryParams(uri string, names ...string) string {
	u, err := url.Parse(uri)
	if err != nil || u.RawQuery == "" {
		return uri
	}
	q := u.Query()
	for key := range q {
		for _, name := range names {
			if strings.EqualFold(key, name) {
				q.Del(key)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
