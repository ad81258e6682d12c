// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package auth

import "context"

type contextKey string

const callerContextKey contextKey = "caller"

// Caller is the authenticated identity of a request.
type Caller struct {
	UserID string

	// Token is the bearer token the caller presented. Empty for Basic and
	// unauthenticated modes.
	Token string
}

// ContextWithCaller returns a copy of ctx carrying c.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, c)
}

// CallerFromContext returns the caller stored by the middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(Caller)
	if !ok || c.UserID == "" {
		return Caller{}, false
	}
	return c, true
}
