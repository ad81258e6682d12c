// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

// Package proxy relays media bytes between clients and source servers.
//
// The gateway asks the source plugin where a proxy URI lives upstream and
// which credentials to attach, then streams the upstream response back
// without buffering it. Client disconnects cancel the upstream request.
package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/sources"
)

// DefaultBufferSize is the copy buffer used when none is configured.
const DefaultBufferSize = 32 * 1024

// Proxy outcomes recorded in proxy_requests_total.
const (
	resultOK            = "ok"
	resultUpstreamError = "upstream_error"
	resultRejected      = "rejected"
	resultAborted       = "aborted"
)

// Error codes passed to the ErrorWriter.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeBadGateway     = "EXTERNAL_SERVICE_FAILED"
	CodeInternalError  = "INTERNAL_ERROR"
	badGatewayMessage  = "upstream source request failed"
	notFoundMessage    = "source not found"
	notConfiguredMsg   = "source is not configured for this user"
	internalErrMessage = "internal server error"
)

// hopHeaders are connection-scoped and never forwarded (RFC 9110 7.6.1).
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// credentialHeaders carry the caller's identity to Reelhub and must not reach
// a source. Plugins add the source's own credentials.
var credentialHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Emby-Token",
	"X-Emby-Authorization",
	"X-MediaBrowser-Token",
	"X-Plex-Token",
	"X-Api-Key",
}

// responseHeaders are copied from the upstream response.
var responseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Content-Encoding",
	"Accept-Ranges",
	"Content-Disposition",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// SettingsSource resolves the plugin and the caller's settings for a source.
type SettingsSource interface {
	Settings(ctx context.Context, caller auth.Caller, sourceID string) (plugin.SourcePlugin, plugin.Settings, error)
}

// ErrorWriter writes an error response before any body byte was sent.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// Gateway proxies stream requests to sources.
type Gateway struct {
	settings   SettingsSource
	client     *http.Client
	bufferSize int
	writeError ErrorWriter
}

// Options configures a Gateway.
type Options struct {
	// Transport overrides the transport built from config. Used by tests.
	Transport http.RoundTripper

	// WriteError renders errors. Nil writes plain text.
	WriteError ErrorWriter
}

// NewGateway creates a Gateway with a transport tuned for long-lived streams.
func NewGateway(settings SettingsSource, cfg config.ProxyConfig, opts Options) *Gateway {
	transport := opts.Transport
	if transport == nil {
		transport = NewTransport(cfg)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	writeError := opts.WriteError
	if writeError == nil {
		writeError = func(w http.ResponseWriter, _ *http.Request, status int, _, message string) {
			http.Error(w, message, status)
		}
	}

	return &Gateway{
		settings: settings,
		client: &http.Client{
			Transport: transport,
			// Redirects are returned to the client as received.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		bufferSize: bufferSize,
		writeError: writeError,
	}
}

// NewTransport builds the upstream transport. There is no overall client
// timeout since streams may run for hours; only dialing and the wait for
// response headers are bounded.
func NewTransport(cfg config.ProxyConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: time.Second,
		// Encodings pass through untouched.
		DisableCompression: true,
	}
}

// ServeProxy relays r to the source's server at uri.
func (g *Gateway) ServeProxy(w http.ResponseWriter, r *http.Request, caller auth.Caller, sourceID, uri string) {
	ctx := r.Context()
	log := logging.Ctx(ctx).With().Str("source", sourceID).Logger()

	p, settings, err := g.settings.Settings(ctx, caller, sourceID)
	switch {
	case errors.Is(err, sources.ErrUnknownSource):
		metrics.RecordProxyResult(sourceID, resultRejected)
		g.writeError(w, r, http.StatusNotFound, CodeNotFound, notFoundMessage)
		return
	case errors.Is(err, sources.ErrSourceNotConfigured):
		metrics.RecordProxyResult(sourceID, resultRejected)
		g.writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, notConfiguredMsg)
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to load source settings for proxy")
		metrics.RecordProxyResult(sourceID, resultRejected)
		g.writeError(w, r, http.StatusInternalServerError, CodeInternalError, internalErrMessage)
		return
	}

	inst, err := p.HandleProxy(plugin.ProxyRequest{URI: uri, Headers: r.Header.Clone()}, settings)
	if err != nil {
		log.Warn().Err(err).Str("uri", logging.SanitizeURL(uri)).Msg("Plugin rejected proxy request")
		metrics.RecordProxyResult(sourceID, resultUpstreamError)
		g.writeError(w, r, http.StatusBadGateway, CodeBadGateway, badGatewayMessage)
		return
	}

	upReq, err := http.NewRequestWithContext(ctx, r.Method, inst.URL, r.Body)
	if err != nil {
		log.Warn().Err(err).Msg("Plugin produced an invalid upstream URL")
		metrics.RecordProxyResult(sourceID, resultUpstreamError)
		g.writeError(w, r, http.StatusBadGateway, CodeBadGateway, badGatewayMessage)
		return
	}
	upReq.ContentLength = r.ContentLength
	if r.ContentLength == 0 {
		upReq.Body = http.NoBody
	}
	upReq.Header = outboundHeaders(r.Header, inst.Headers)

	metrics.TrackActiveStream(sourceID, true)
	defer metrics.TrackActiveStream(sourceID, false)

	start := time.Now()
	resp, err := g.client.Do(upReq)
	if err != nil {
		if ctx.Err() != nil {
			metrics.RecordProxyResult(sourceID, resultAborted)
			log.Debug().Err(err).Msg("Client went away before upstream answered")
			return
		}
		log.Warn().Err(err).Str("url", logging.SanitizeURL(inst.URL)).Msg("Upstream proxy request failed")
		metrics.RecordProxyResult(sourceID, resultUpstreamError)
		g.writeError(w, r, http.StatusBadGateway, CodeBadGateway, badGatewayMessage)
		return
	}
	defer resp.Body.Close()
	metrics.ProxyUpstreamLatency.WithLabelValues(sourceID).Observe(time.Since(start).Seconds())

	if resp.StatusCode >= http.StatusInternalServerError {
		// Body may describe server internals; drop it.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		log.Warn().Int("status", resp.StatusCode).Str("url", logging.SanitizeURL(inst.URL)).Msg("Upstream returned a server error")
		metrics.RecordProxyResult(sourceID, resultUpstreamError)
		g.writeError(w, r, http.StatusBadGateway, CodeBadGateway, badGatewayMessage)
		return
	}

	dst := w.Header()
	for _, h := range responseHeaders {
		if v := resp.Header.Values(h); len(v) > 0 {
			dst[h] = append([]string(nil), v...)
		}
	}
	w.WriteHeader(resp.StatusCode)

	n, err := g.copyBody(w, resp.Body)
	metrics.ProxyBytesTotal.WithLabelValues(sourceID).Add(float64(n))
	if err != nil {
		metrics.RecordProxyResult(sourceID, resultAborted)
		if ctx.Err() != nil {
			log.Debug().Int64("bytes", n).Msg("Client closed stream")
			return
		}
		log.Warn().Err(err).Int64("bytes", n).Msg("Stream interrupted")
		// Headers are gone; abort the connection so the client sees a
		// truncated response instead of a clean end.
		panic(http.ErrAbortHandler)
	}
	metrics.RecordProxyResult(sourceID, resultOK)
}

// copyBody streams src to w through a fixed buffer, flushing after every
// chunk so playback can start before the upstream finishes.
func (g *Gateway) copyBody(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, g.bufferSize)
	var written int64

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return written, ferr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// outboundHeaders copies client headers minus hop-by-hop and credential
// headers, then applies the plugin's headers, which always win.
func outboundHeaders(in, pluginHeaders http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}

	// Headers named in Connection are hop-by-hop too.
	for _, v := range in.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, h := range hopHeaders {
		out.Del(h)
	}
	for _, h := range credentialHeaders {
		out.Del(h)
	}
	out.Del("Host")

	for k, v := range pluginHeaders {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	return out
}
