// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package proxy

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/plugin/plugintest"
	"github.com/tomtom215/reelhub/internal/sources"
	"github.com/tomtom215/reelhub/internal/store"
)

var alice = auth.Caller{UserID: "alice", Token: "alice-token"}

func testProxyConfig() config.ProxyConfig {
	return config.ProxyConfig{
		DialTimeout:           2 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		IdleConnTimeout:       time.Minute,
		MaxIdleConnsPerHost:   4,
		BufferSize:            DefaultBufferSize,
	}
}

// newGateway registers one fake source pointing at upstreamURL, configured
// for alice, and serves the gateway on a real listener so client
// disconnects propagate.
func newGateway(t *testing.T, sourceID, upstreamURL string, f *plugintest.Fake) *httptest.Server {
	t.Helper()
	if f == nil {
		f = plugintest.New(sourceID)
	}
	reg, err := plugin.NewRegistry(f, plugintest.New("unset"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	st := store.NewMemory()
	err = st.Put(context.Background(), "alice", store.UserSourceSettings{
		SourceID: sourceID, Enabled: true, Settings: plugintest.ValidSettings(upstreamURL),
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	gw := NewGateway(sources.NewAggregator(reg, st, time.Second), testProxyConfig(), Options{})
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source, uri, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if r.URL.RawQuery != "" {
			uri += "?" + r.URL.RawQuery
		}
		gw.ServeProxy(w, r, alice, source, uri)
	}))
	t.Cleanup(front.Close)
	return front
}

// compareStream reads got in chunks and checks it against want, holding at
// most one chunk of each in memory. It returns the number of matching bytes.
func compareStream(t *testing.T, got, want io.Reader) int64 {
	t.Helper()
	gotBuf := make([]byte, 32<<10)
	wantBuf := make([]byte, 32<<10)
	var total int64
	for {
		n, err := io.ReadFull(got, gotBuf)
		if n > 0 {
			if _, werr := io.ReadFull(want, wantBuf[:n]); werr != nil {
				t.Fatalf("relay sent more than expected at offset %d", total)
			}
			if !bytes.Equal(gotBuf[:n], wantBuf[:n]) {
				t.Fatalf("relayed bytes differ in chunk at offset %d", total)
			}
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total
		}
		if err != nil {
			t.Fatalf("read relayed body at offset %d: %v", total, err)
		}
	}
}

func TestServeProxy_RelaysLargeBodyByteForByte(t *testing.T) {
	const size = 10 << 20
	const seed = 42

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/abc/stream" || r.URL.Query().Get("static") != "true" {
			t.Errorf("upstream got %s", r.URL)
		}
		w.Header().Set("Content-Type", "video/x-matroska")
		w.Header().Set("Content-Length", strconv.Itoa(size))
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("X-Internal-Node", "jf-2")
		_, _ = io.CopyN(w, rand.New(rand.NewSource(seed)), size)
	}))
	defer upstream.Close()
	front := newGateway(t, "big-src", upstream.URL, nil)

	before := testutil.ToFloat64(metrics.ProxyBytesTotal.WithLabelValues("big-src"))

	resp, err := http.Get(front.URL + "/big-src/videos/abc/stream?static=true")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if n := compareStream(t, resp.Body, rand.New(rand.NewSource(seed))); n != size {
		t.Fatalf("relayed %d bytes, want %d", n, size)
	}
	if resp.Header.Get("Content-Type") != "video/x-matroska" || resp.Header.Get("Accept-Ranges") != "bytes" {
		t.Errorf("headers = %v", resp.Header)
	}
	if resp.Header.Get("X-Internal-Node") != "" {
		t.Error("unlisted upstream header was forwarded")
	}
	if d := testutil.ToFloat64(metrics.ProxyBytesTotal.WithLabelValues("big-src")) - before; d != float64(size) {
		t.Errorf("proxy_bytes_total delta = %v, want %d", d, size)
	}
}

func TestServeProxy_RangeRequest(t *testing.T) {
	payload := []byte("0123456789abcdefghij")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "clip.mp4", time.Time{}, bytes.NewReader(payload))
	}))
	defer upstream.Close()
	front := newGateway(t, "range-src", upstream.URL, nil)

	req, _ := http.NewRequest(http.MethodGet, front.URL+"/range-src/clip.mp4", nil)
	req.Header.Set("Range", "bytes=5-9")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", resp.StatusCode)
	}
	if string(body) != "56789" || resp.Header.Get("Content-Range") != "bytes 5-9/20" {
		t.Errorf("body %q, Content-Range %q", body, resp.Header.Get("Content-Range"))
	}
}

func TestServeProxy_HeaderPrecedence(t *testing.T) {
	var mu sync.Mutex
	var seen http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	f := plugintest.New("hdr-src")
	f.ProxyFunc = func(req plugin.ProxyRequest, settings plugin.Settings) (*plugin.ProxyInstruction, error) {
		if req.Headers.Get("User-Agent") != "VLC/3.0" {
			t.Errorf("plugin saw User-Agent %q", req.Headers.Get("User-Agent"))
		}
		u, err := plugin.ResolveProxyURL(settings["baseUrl"].(string), req.URI)
		if err != nil {
			return nil, err
		}
		return &plugin.ProxyInstruction{URL: u.String(), Headers: http.Header{
			"X-Api-Key":  {"source-key"},
			"User-Agent": {"Reelhub"},
		}}, nil
	}
	front := newGateway(t, "hdr-src", upstream.URL, f)

	req, _ := http.NewRequest(http.MethodGet, front.URL+"/hdr-src/file", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	req.Header.Set("Cookie", "token=alice-token")
	req.Header.Set("X-Api-Key", "client-key")
	req.Header.Set("X-Plex-Token", "client-plex")
	req.Header.Set("User-Agent", "VLC/3.0")
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("Connection", "X-Trace")
	req.Header.Set("X-Trace", "hop")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	want := map[string]string{
		"X-Api-Key":     "source-key",
		"User-Agent":    "Reelhub",
		"Range":         "bytes=0-",
		"Authorization": "",
		"Cookie":        "",
		"X-Plex-Token":  "",
		"X-Trace":       "",
	}
	for k, v := range want {
		if got := seen.Get(k); got != v {
			t.Errorf("upstream %s = %q, want %q", k, got, v)
		}
	}
	if len(seen.Values("X-Api-Key")) != 1 {
		t.Errorf("X-Api-Key values = %v, want only the plugin's", seen.Values("X-Api-Key"))
	}
}

func TestServeProxy_UpstreamServerErrorIsCollapsed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Stack", "at db.go:42")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "pq: password authentication failed for user media")
	}))
	defer upstream.Close()
	front := newGateway(t, "err-src", upstream.URL, nil)

	before := testutil.ToFloat64(metrics.ProxyRequestsTotal.WithLabelValues("err-src", "upstream_error"))

	resp, err := http.Get(front.URL + "/err-src/videos/x")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if strings.Contains(string(body), "password") || resp.Header.Get("X-Stack") != "" {
		t.Errorf("upstream detail leaked: %q %v", body, resp.Header)
	}
	if d := testutil.ToFloat64(metrics.ProxyRequestsTotal.WithLabelValues("err-src", "upstream_error")) - before; d != 1 {
		t.Errorf("upstream_error delta = %v, want 1", d)
	}
}

func TestServeProxy_StatusPassthrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"redirect", http.StatusFound},
		{"not modified", http.StatusNotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
			}))
			defer upstream.Close()
			front := newGateway(t, "pass-src", upstream.URL, nil)

			client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
			resp, err := client.Get(front.URL + "/pass-src/item")
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestServeProxy_Rejections(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	front := newGateway(t, "dead-src", deadURL, nil)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown source", "/nope/file", http.StatusNotFound},
		{"not configured", "/unset/file", http.StatusUnauthorized},
		{"connection refused", "/dead-src/file", http.StatusBadGateway},
		{"path traversal", "/dead-src/..%2f..%2fetc/passwd", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(front.URL + tt.path)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestServeProxy_ClientDisconnectCancelsUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		w.Header().Set("Content-Type", "video/mp2t")
		chunk := bytes.Repeat([]byte{0x47}, 188*64)
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer upstream.Close()
	front := newGateway(t, "live-src", upstream.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, front.URL+"/live-src/live.ts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	buf := make([]byte, 4096)
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("reading first bytes: %v", err)
	}
	cancel()
	resp.Body.Close()

	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream request still running after client disconnect")
	}
}

func TestServeProxy_CustomErrorWriter(t *testing.T) {
	reg, _ := plugin.NewRegistry(plugintest.New("jellyfin"))
	var gotCode string
	gw := NewGateway(sources.NewAggregator(reg, store.NewMemory(), time.Second), testProxyConfig(), Options{
		WriteError: func(w http.ResponseWriter, _ *http.Request, status int, code, _ string) {
			gotCode = code
			w.WriteHeader(status)
		},
	})

	w := httptest.NewRecorder()
	gw.ServeProxy(w, httptest.NewRequest(http.MethodGet, "/", nil), alice, "jellyfin", "file")
	if w.Code != http.StatusUnauthorized || gotCode != CodeUnauthorized {
		t.Errorf("status %d code %q", w.Code, gotCode)
	}
}

func TestOutboundHeaders(t *testing.T) {
	in := http.Header{
		"Keep-Alive":        {"timeout=5"},
		"Transfer-Encoding": {"chunked"},
		"Accept":            {"*/*"},
		"X-Emby-Token":      {"client"},
	}
	out := outboundHeaders(in, http.Header{"x-emby-token": {"plugin"}})

	if out.Get("Keep-Alive") != "" || out.Get("Transfer-Encoding") != "" {
		t.Errorf("hop-by-hop headers kept: %v", out)
	}
	if out.Get("Accept") != "*/*" || out.Get("X-Emby-Token") != "plugin" {
		t.Errorf("out = %v", out)
	}
	if in.Get("Keep-Alive") == "" {
		t.Error("input headers were modified")
	}
}
