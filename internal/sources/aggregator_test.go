// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package sources

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/metrics"
	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/plugin/plugintest"
	"github.com/tomtom215/reelhub/internal/store"
)

var alice = auth.Caller{UserID: "alice", Token: "alice-token"}

func newRegistry(t *testing.T, plugins ...plugin.SourcePlugin) *plugin.Registry {
	t.Helper()
	reg, err := plugin.NewRegistry(plugins...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func configure(t *testing.T, st store.Store, userID string, enabled bool, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := st.Put(context.Background(), userID, store.UserSourceSettings{
			SourceID: id,
			Enabled:  enabled,
			Settings: plugintest.ValidSettings("http://" + id + ".lan"),
		})
		if err != nil {
			t.Fatalf("Put(%s) error = %v", id, err)
		}
	}
}

// blocking returns a fake that waits for its context to end.
func blocking(id string) *plugintest.Fake {
	f := plugintest.New(id)
	f.MovieFunc = func(ctx context.Context, _ string, _ plugin.Credentials, _ *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f
}

func failing(id string, err error) *plugintest.Fake {
	f := plugintest.New(id)
	f.MovieFunc = func(context.Context, string, plugin.Credentials, *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		return nil, err
	}
	return f
}

func TestSourcesForMovie_DropsFailuresAndTimeouts(t *testing.T) {
	jellyfin := plugintest.New("jellyfin")
	plex := plugintest.New("plex")
	local := blocking("local")
	reg := newRegistry(t, jellyfin, plex, local)
	st := store.NewMemory()
	configure(t, st, "alice", true, "jellyfin", "plex", "local")

	agg := NewAggregator(reg, st, 100*time.Millisecond)

	start := time.Now()
	got, err := agg.SourcesForMovie(context.Background(), alice, "603")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("discovery took %v, want it bounded by the deadline", elapsed)
	}

	if len(got) != 2 || got["jellyfin"] == nil || got["plex"] == nil {
		t.Fatalf("sources = %v, want jellyfin and plex", got)
	}
	if _, ok := got["local"]; ok {
		t.Error("timed out source should be absent")
	}
	if local.MovieCalls() != 1 {
		t.Errorf("local calls = %d, want 1", local.MovieCalls())
	}
}

func TestSourcesForMovie_SkipsUnconfiguredAndTimedOut(t *testing.T) {
	jellyfin := plugintest.New("jellyfin")
	plex := plugintest.New("plex")
	local := blocking("local")
	reg := newRegistry(t, jellyfin, plex, local)
	st := store.NewMemory()
	configure(t, st, "alice", true, "jellyfin", "local")

	got, err := NewAggregator(reg, st, 50*time.Millisecond).SourcesForMovie(context.Background(), alice, "603")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}

	if len(got) != 1 || got["jellyfin"] == nil {
		t.Fatalf("sources = %v, want only jellyfin", got)
	}
	if len(got["jellyfin"].Candidates) == 0 {
		t.Error("jellyfin descriptor has no candidates")
	}
	if plex.MovieCalls() != 0 {
		t.Errorf("plex calls = %d, want 0 without settings", plex.MovieCalls())
	}
	if local.MovieCalls() != 1 {
		t.Errorf("local calls = %d, want 1", local.MovieCalls())
	}
}

func TestSourcesForMovie_PluginIgnoringDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := plugintest.New("stuck")
	stuck.MovieFunc = func(context.Context, string, plugin.Credentials, *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		<-release
		return plugintest.Descriptor("late"), nil
	}
	fast := plugintest.New("fast")
	reg := newRegistry(t, stuck, fast)
	st := store.NewMemory()
	configure(t, st, "alice", true, "stuck", "fast")

	start := time.Now()
	got, err := NewAggregator(reg, st, 50*time.Millisecond).SourcesForMovie(context.Background(), alice, "1")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("discovery took %v with a stuck plugin", elapsed)
	}
	if len(got) != 1 || got["fast"] == nil {
		t.Errorf("sources = %v, want only fast", got)
	}
}

func TestSourcesForMovie_IsolatesPanicsAndErrors(t *testing.T) {
	panicky := plugintest.New("panicky-src")
	panicky.MovieFunc = func(context.Context, string, plugin.Credentials, *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		panic("boom")
	}
	empty := plugintest.New("empty-src")
	empty.MovieFunc = func(context.Context, string, plugin.Credentials, *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		return &plugin.StreamDescriptor{}, nil
	}
	reg := newRegistry(t,
		panicky,
		empty,
		failing("notfound-src", fmt.Errorf("lookup: %w", plugin.ErrNotFound)),
		failing("broken-src", plugin.ErrUnreachable),
		plugintest.New("good-src"),
	)
	st := store.NewMemory()
	configure(t, st, "alice", true, "panicky-src", "empty-src", "notfound-src", "broken-src", "good-src")

	panicsBefore := testutil.ToFloat64(metrics.SourceLookupsTotal.WithLabelValues("panicky-src", "movie", metrics.ResultPanic))
	errorsBefore := testutil.ToFloat64(metrics.SourceLookupsTotal.WithLabelValues("broken-src", "movie", metrics.ResultError))

	got, err := NewAggregator(reg, st, time.Second).SourcesForMovie(context.Background(), alice, "603")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}
	if len(got) != 1 || got["good-src"] == nil {
		t.Errorf("sources = %v, want only good-src", got)
	}

	if d := testutil.ToFloat64(metrics.SourceLookupsTotal.WithLabelValues("panicky-src", "movie", metrics.ResultPanic)) - panicsBefore; d != 1 {
		t.Errorf("panic lookups delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(metrics.SourceLookupsTotal.WithLabelValues("broken-src", "movie", metrics.ResultError)) - errorsBefore; d != 1 {
		t.Errorf("error lookups delta = %v, want 1", d)
	}
}

func TestSourcesForMovie_ResultCountIsSuccessfulSources(t *testing.T) {
	tests := []struct {
		n, m int
	}{
		{0, 0}, {1, 0}, {1, 1}, {3, 1}, {5, 5}, {8, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_enabled_%d_failing", tt.n, tt.m), func(t *testing.T) {
			var plugins []plugin.SourcePlugin
			var ids []string
			for i := 0; i < tt.n; i++ {
				id := fmt.Sprintf("src%d", i)
				ids = append(ids, id)
				if i < tt.m {
					plugins = append(plugins, failing(id, plugin.ErrUnreachable))
				} else {
					plugins = append(plugins, plugintest.New(id))
				}
			}
			reg := newRegistry(t, plugins...)
			st := store.NewMemory()
			configure(t, st, "alice", true, ids...)

			got, err := NewAggregator(reg, st, time.Second).SourcesForMovie(context.Background(), alice, "42")
			if err != nil {
				t.Fatalf("SourcesForMovie() error = %v", err)
			}
			if len(got) != tt.n-tt.m {
				t.Errorf("len(sources) = %d, want %d", len(got), tt.n-tt.m)
			}
		})
	}
}

func TestSourcesForMovie_OnlyConfiguredEnabledSources(t *testing.T) {
	configured := plugintest.New("configured")
	disabled := plugintest.New("disabled")
	unconfigured := plugintest.New("unconfigured")
	otherUsers := plugintest.New("other-users")
	reg := newRegistry(t, configured, disabled, unconfigured, otherUsers)

	st := store.NewMemory()
	configure(t, st, "alice", true, "configured", "retired-plugin")
	configure(t, st, "alice", false, "disabled")
	configure(t, st, "bob", true, "other-users")

	var gotCreds plugin.Credentials
	configured.MovieFunc = func(_ context.Context, _ string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		gotCreds = creds
		if cfg != nil {
			t.Error("discovery should pass a nil playback config")
		}
		return plugintest.Descriptor("c"), nil
	}

	got, err := NewAggregator(reg, st, time.Second).SourcesForMovie(context.Background(), alice, "603")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}
	if len(got) != 1 || got["configured"] == nil {
		t.Errorf("sources = %v", got)
	}
	for _, f := range []*plugintest.Fake{disabled, unconfigured, otherUsers} {
		if f.MovieCalls() != 0 {
			t.Errorf("%s invoked %d times without enabled settings", f.ID(), f.MovieCalls())
		}
	}
	if gotCreds.Token != "alice-token" || gotCreds.Settings["baseUrl"] != "http://configured.lan" {
		t.Errorf("credentials = %+v", gotCreds)
	}
}

func TestSourcesForMovie_NoSettings(t *testing.T) {
	f := plugintest.New("jellyfin")
	got, err := NewAggregator(newRegistry(t, f), store.NewMemory(), time.Second).SourcesForMovie(context.Background(), alice, "603")
	if err != nil {
		t.Fatalf("SourcesForMovie() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("sources = %v, want empty map", got)
	}
	if f.MovieCalls() != 0 {
		t.Error("plugin invoked for a user without settings")
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) List(context.Context, string) ([]store.UserSourceSettings, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Get(context.Context, string, string) (*store.UserSourceSettings, error) {
	return nil, errors.New("disk on fire")
}

func TestAggregator_StoreErrors(t *testing.T) {
	agg := NewAggregator(newRegistry(t, plugintest.New("jellyfin")), brokenStore{}, time.Second)

	if _, err := agg.SourcesForMovie(context.Background(), alice, "603"); err == nil {
		t.Error("SourcesForMovie() should fail when the store fails")
	}
	_, err := agg.StreamForMovie(context.Background(), alice, "jellyfin", "603", nil)
	if err == nil || errors.Is(err, ErrSourceNotConfigured) {
		t.Errorf("StreamForMovie() error = %v, want store failure", err)
	}
}

func TestSourcesForEpisode(t *testing.T) {
	f := plugintest.New("jellyfin")
	var season, episode int
	f.EpisodeFunc = func(_ context.Context, tmdbID string, s, e int, _ plugin.Credentials, _ *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		season, episode = s, e
		return plugintest.Descriptor(tmdbID), nil
	}
	st := store.NewMemory()
	configure(t, st, "alice", true, "jellyfin")

	got, err := NewAggregator(newRegistry(t, f), st, time.Second).SourcesForEpisode(context.Background(), alice, "1399", 3, 9)
	if err != nil {
		t.Fatalf("SourcesForEpisode() error = %v", err)
	}
	if got["jellyfin"] == nil || season != 3 || episode != 9 {
		t.Errorf("sources = %v, season %d episode %d", got, season, episode)
	}
}

func TestStreamForMovie(t *testing.T) {
	good := plugintest.New("good")
	var gotCfg *plugin.PlaybackConfig
	good.MovieFunc = func(_ context.Context, _ string, _ plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		gotCfg = cfg
		return &plugin.StreamDescriptor{Key: "k", URI: "videos/k/stream", DirectPlay: true}, nil
	}
	empty := plugintest.New("empty")
	empty.MovieFunc = func(context.Context, string, plugin.Credentials, *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		return nil, nil
	}
	reg := newRegistry(t, good, empty,
		failing("denied", fmt.Errorf("jellyfin lookup: %w", plugin.ErrUnauthorized)),
		plugintest.New("off"),
		plugintest.New("unset"),
	)
	st := store.NewMemory()
	configure(t, st, "alice", true, "good", "empty", "denied")
	configure(t, st, "alice", false, "off")
	agg := NewAggregator(reg, st, time.Second)
	ctx := context.Background()

	desc, err := agg.StreamForMovie(ctx, alice, "good", "603", nil)
	if err != nil {
		t.Fatalf("StreamForMovie() error = %v", err)
	}
	if desc.URI != "videos/k/stream" || gotCfg == nil {
		t.Errorf("descriptor = %+v, cfg = %v", desc, gotCfg)
	}

	tests := []struct {
		name       string
		source     string
		wantIs     error
		wantReason string
	}{
		{"unknown source", "nope", ErrUnknownSource, ""},
		{"not configured", "unset", ErrSourceNotConfigured, ""},
		{"disabled", "off", ErrSourceNotConfigured, ""},
		{"credentials rejected", "denied", plugin.ErrUnauthorized, "unauthorized"},
		{"empty answer", "empty", plugin.ErrNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.StreamForMovie(ctx, alice, tt.source, "603", &plugin.PlaybackConfig{})
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("error = %v, want %v", err, tt.wantIs)
			}
			var se *SourceError
			if tt.wantReason == "" {
				if errors.As(err, &se) {
					t.Errorf("error %v should not be a SourceError", err)
				}
				return
			}
			if !errors.As(err, &se) || se.Source != tt.source || se.Reason() != tt.wantReason {
				t.Errorf("SourceError = %+v, want source %s reason %s", se, tt.source, tt.wantReason)
			}
		})
	}
}

func TestStreamsAndEpisodeLookups(t *testing.T) {
	f := plugintest.New("jellyfin")
	var cfgs []*plugin.PlaybackConfig
	f.EpisodeFunc = func(_ context.Context, _ string, _, _ int, _ plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
		cfgs = append(cfgs, cfg)
		return plugintest.Descriptor("ep"), nil
	}
	st := store.NewMemory()
	configure(t, st, "alice", true, "jellyfin")
	agg := NewAggregator(newRegistry(t, f), st, time.Second)
	ctx := context.Background()

	if _, err := agg.StreamsForMovie(ctx, alice, "jellyfin", "603"); err != nil {
		t.Errorf("StreamsForMovie() error = %v", err)
	}
	if _, err := agg.StreamsForEpisode(ctx, alice, "jellyfin", "1399", 1, 1); err != nil {
		t.Errorf("StreamsForEpisode() error = %v", err)
	}
	if _, err := agg.StreamForEpisode(ctx, alice, "jellyfin", "1399", 1, 1, &plugin.PlaybackConfig{Key: "x"}); err != nil {
		t.Errorf("StreamForEpisode() error = %v", err)
	}
	if len(cfgs) != 2 || cfgs[0] != nil || cfgs[1] == nil || cfgs[1].Key != "x" {
		t.Errorf("episode configs = %v, want [nil, {Key:x}]", cfgs)
	}
}

func TestAggregator_Settings(t *testing.T) {
	st := store.NewMemory()
	configure(t, st, "alice", true, "jellyfin")
	agg := NewAggregator(newRegistry(t, plugintest.New("jellyfin"), plugintest.New("plex")), st, 0)

	p, settings, err := agg.Settings(context.Background(), alice, "jellyfin")
	if err != nil || p.ID() != "jellyfin" || settings["baseUrl"] != "http://jellyfin.lan" {
		t.Errorf("Settings() = %v, %v, %v", p, settings, err)
	}
	if _, _, err := agg.Settings(context.Background(), alice, "plex"); !errors.Is(err, ErrSourceNotConfigured) {
		t.Errorf("Settings(plex) error = %v, want ErrSourceNotConfigured", err)
	}
	if _, _, err := agg.Settings(context.Background(), alice, "nope"); !errors.Is(err, ErrUnknownSource) {
		t.Errorf("Settings(nope) error = %v, want ErrUnknownSource", err)
	}
}
