// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package local

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

const testAPIKey = "local-index-key-0001"

func newIndex(t *testing.T, check func(r *http.Request) bool) *httptest.Server {
	t.Helper()
	files := filesResponse{Files: []file{
		{ID: "f1", Name: "Alien (1979)", Path: "/media/movies/Alien (1979).mkv", Size: 3 << 30, Container: "mkv", Resolution: "1080p", VideoCodec: "h264"},
		{ID: "f2", Name: "Alien (1979) Director's Cut", Path: "/media/movies/Alien DC.mp4", Container: "mp4"},
	}}
	mux := http.NewServeMux()
	serve := func(w http.ResponseWriter, r *http.Request) {
		if !check(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(files)
	}
	mux.HandleFunc("GET /api/movies/348/files", serve)
	mux.HandleFunc("GET /api/shows/1396/seasons/1/episodes/2/files", serve)
	mux.HandleFunc("GET /api/movies/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(filesResponse{})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newPlugin() *Plugin {
	return New(upstream.New(upstream.Options{Timeout: 2 * time.Second, BreakerMinRequests: 100}))
}

func TestGetMovieStream(t *testing.T) {
	srv := newIndex(t, func(r *http.Request) bool { return r.Header.Get("X-Api-Key") == testAPIKey })
	p := newPlugin()
	creds := plugin.Credentials{Settings: plugin.Settings{"baseUrl": srv.URL, "apiKey": testAPIKey}, Token: "caller"}

	desc, err := p.GetMovieStream(context.Background(), "348", creds, nil)
	if err != nil {
		t.Fatalf("GetMovieStream() error = %v", err)
	}
	if len(desc.Candidates) != 2 || desc.Candidates[1].Key != "f2" {
		t.Errorf("candidates = %+v", desc.Candidates)
	}

	desc, err = p.GetMovieStream(context.Background(), "348", creds, &plugin.PlaybackConfig{Key: "f2"})
	if err != nil {
		t.Fatalf("GetMovieStream(cfg) error = %v", err)
	}
	if desc.URI != "files/f2" || !desc.DirectPlay {
		t.Errorf("URI = %q (direct %v), want files/f2 direct", desc.URI, desc.DirectPlay)
	}

	_, err = p.GetMovieStream(context.Background(), "348", creds, &plugin.PlaybackConfig{Key: "nope"})
	if !errors.Is(err, plugin.ErrNotFound) {
		t.Errorf("unknown key error = %v, want ErrNotFound", err)
	}
}

func TestGetMovieStream_ForwardsCallerToken(t *testing.T) {
	srv := newIndex(t, func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer caller" && r.Header.Get("X-Api-Key") == ""
	})
	p := newPlugin()
	creds := plugin.Credentials{Settings: plugin.Settings{"baseUrl": srv.URL}, Token: "caller"}

	if _, err := p.GetMovieStream(context.Background(), "348", creds, nil); err != nil {
		t.Fatalf("GetMovieStream() error = %v", err)
	}

	creds.Token = "someone-else"
	_, err := p.GetMovieStream(context.Background(), "348", creds, nil)
	if !errors.Is(err, plugin.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}

func TestGetMovieStream_NoFiles(t *testing.T) {
	srv := newIndex(t, func(*http.Request) bool { return true })
	creds := plugin.Credentials{Settings: plugin.Settings{"baseUrl": srv.URL}}

	_, err := newPlugin().GetMovieStream(context.Background(), "999", creds, nil)
	if !errors.Is(err, plugin.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetEpisodeStream(t *testing.T) {
	srv := newIndex(t, func(*http.Request) bool { return true })
	creds := plugin.Credentials{Settings: plugin.Settings{"baseUrl": srv.URL}}

	desc, err := newPlugin().GetEpisodeStream(context.Background(), "1396", 1, 2, creds, &plugin.PlaybackConfig{})
	if err != nil {
		t.Fatalf("GetEpisodeStream() error = %v", err)
	}
	if desc.Key != "f1" || desc.URI != "files/f1" {
		t.Errorf("descriptor = %+v", desc)
	}
}

func TestValidateSettings(t *testing.T) {
	p := newPlugin()
	tests := []struct {
		name     string
		settings plugin.Settings
		valid    bool
	}{
		{"url only", plugin.Settings{"baseUrl": "http://index.lan:8080/"}, true},
		{"with key", plugin.Settings{"baseUrl": "https://index.example.com", "apiKey": testAPIKey}, true},
		{"short key", plugin.Settings{"baseUrl": "https://index.example.com", "apiKey": "abc"}, false},
		{"missing url", plugin.Settings{}, false},
		{"url with query", plugin.Settings{"baseUrl": "http://index.lan?x=1"}, false},
		{"wrong type", plugin.Settings{"baseUrl": 42}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.ValidateSettings(tt.settings)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors %+v)", res.Valid, tt.valid, res.Errors)
			}
			if !res.Valid && len(res.Errors) == 0 {
				t.Error("invalid result should list errors")
			}
		})
	}
}

func TestHandleProxy(t *testing.T) {
	p := newPlugin()

	inst, err := p.HandleProxy(plugin.ProxyRequest{URI: "files/f1?api_key=x&t=5"}, plugin.Settings{"baseUrl": "http://index.lan/", "apiKey": testAPIKey})
	if err != nil {
		t.Fatalf("HandleProxy() error = %v", err)
	}
	if inst.URL != "http://index.lan/files/f1?t=5" || inst.Headers.Get("X-Api-Key") != testAPIKey {
		t.Errorf("instruction = %+v", inst)
	}

	inst, err = p.HandleProxy(plugin.ProxyRequest{URI: "files/f1"}, plugin.Settings{"baseUrl": "http://index.lan"})
	if err != nil {
		t.Fatalf("HandleProxy() error = %v", err)
	}
	if len(inst.Headers) != 0 {
		t.Errorf("headers without api key = %v, want none", inst.Headers)
	}
}
