// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/plugin/plugintest"
	"github.com/tomtom215/reelhub/internal/proxy"
	"github.com/tomtom215/reelhub/internal/sources"
	"github.com/tomtom215/reelhub/internal/store"
)

const testJWTSecret = "test_secret_with_at_least_32_characters_for_testing"

// noAuth serves every request as alice.
func noAuth() config.SecurityConfig {
	return config.SecurityConfig{AuthMode: config.AuthModeNone, DefaultUser: "alice", RateLimitDisabled: true}
}

func jwtAuth() config.SecurityConfig {
	return config.SecurityConfig{
		AuthMode:          config.AuthModeJWT,
		JWTSecret:         testJWTSecret,
		SessionTimeout:    time.Hour,
		RateLimitDisabled: true,
	}
}

type testEnv struct {
	router http.Handler
	store  store.Store
}

// newTestEnv wires the real services around fake plugins and a memory store.
func newTestEnv(t *testing.T, sec config.SecurityConfig, plugins ...plugin.SourcePlugin) *testEnv {
	t.Helper()

	reg, err := plugin.NewRegistry(plugins...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })

	agg := sources.NewAggregator(reg, st, time.Second)
	gw := proxy.NewGateway(agg, config.ProxyConfig{
		DialTimeout:           time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}, proxy.Options{WriteError: WriteError})

	authMw, err := auth.NewMiddleware(&sec, WriteUnauthorized)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	handler := NewHandler(Dependencies{
		Registry:   reg,
		Aggregator: agg,
		Settings:   sources.NewSettingsService(reg, st),
		Gateway:    gw,
	})
	router := NewRouter(handler, authMw, NewChiMiddlewareFromConfig(&sec))
	return &testEnv{router: router.SetupChi(), store: st}
}

// configure stores enabled settings for alice.
func (e *testEnv) configure(t *testing.T, sourceID string, settings plugin.Settings) {
	t.Helper()
	err := e.store.Put(context.Background(), "alice", store.UserSourceSettings{
		SourceID: sourceID,
		Enabled:  true,
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("success = false, error = %+v", env.Error)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v\ndata: %s", err, env.Data)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil {
		t.Fatalf("expected an error envelope, got %s", rec.Body.String())
	}
	if env.Error.Code != code {
		t.Errorf("error code = %q, want %q", env.Error.Code, code)
	}
	return env
}

func newFake(id string) *plugintest.Fake {
	return plugintest.New(id)
}
