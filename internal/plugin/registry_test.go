// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plugin_test

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/plugin/plugintest"
)

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		plugins []plugin.SourcePlugin
		wantErr bool
		wantIDs []string
	}{
		{
			name:    "empty registry",
			wantIDs: []string{},
		},
		{
			name: "sorted ids",
			plugins: []plugin.SourcePlugin{
				plugintest.New("plex"), plugintest.New("jellyfin"), plugintest.New("local"),
			},
			wantIDs: []string{"jellyfin", "local", "plex"},
		},
		{
			name:    "duplicate id",
			plugins: []plugin.SourcePlugin{plugintest.New("plex"), plugintest.New("plex")},
			wantErr: true,
		},
		{
			name:    "empty id",
			plugins: []plugin.SourcePlugin{plugintest.New(" ")},
			wantErr: true,
		},
		{
			name:    "nil plugin",
			plugins: []plugin.SourcePlugin{nil},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := plugin.NewRegistry(tt.plugins...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewRegistry() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRegistry() error = %v", err)
			}
			if got := reg.IDs(); !slices.Equal(got, tt.wantIDs) {
				t.Errorf("IDs() = %v, want %v", got, tt.wantIDs)
			}
			if reg.Len() != len(tt.wantIDs) {
				t.Errorf("Len() = %d, want %d", reg.Len(), len(tt.wantIDs))
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	jf := plugintest.New("jellyfin")
	reg, err := plugin.NewRegistry(jf)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	p, ok := reg.Plugin("jellyfin")
	if !ok || p != jf {
		t.Errorf("Plugin(jellyfin) = %v, %v; want registered plugin", p, ok)
	}
	if _, ok := reg.Plugin("emby"); ok {
		t.Error("Plugin(emby) should not be found")
	}
}

func TestRegistryPluginsReturnsCopy(t *testing.T) {
	reg, err := plugin.NewRegistry(plugintest.New("jellyfin"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	m := reg.Plugins()
	delete(m, "jellyfin")
	m["rogue"] = plugintest.New("rogue")

	if _, ok := reg.Plugin("jellyfin"); !ok {
		t.Error("mutating Plugins() result removed a registered plugin")
	}
	if _, ok := reg.Plugin("rogue"); ok {
		t.Error("mutating Plugins() result added a plugin")
	}

	ids := reg.IDs()
	ids[0] = "changed"
	if reg.IDs()[0] != "jellyfin" {
		t.Error("mutating IDs() result changed the registry")
	}
}

func TestRegistryConcurrentReads(t *testing.T) {
	reg, err := plugin.NewRegistry(plugintest.New("jellyfin"), plugintest.New("plex"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = reg.Plugin("plex")
			_ = reg.IDs()
			_ = reg.Plugins()
		}()
	}
	wg.Wait()
}

func TestRegistryValidateSettings(t *testing.T) {
	reg, err := plugin.NewRegistry(plugintest.New("jellyfin"))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if _, err := reg.ValidateSettings("emby", plugin.Settings{}); !errors.Is(err, plugin.ErrNotFound) {
		t.Errorf("ValidateSettings(unknown) error = %v, want ErrNotFound", err)
	}

	res, err := reg.ValidateSettings("jellyfin", plugintest.ValidSettings("http://jf.local/"))
	if err != nil {
		t.Fatalf("ValidateSettings() error = %v", err)
	}
	if !res.Valid {
		t.Fatalf("ValidateSettings() = %+v, want valid", res)
	}
	if res.Replace["baseUrl"] != "http://jf.local" {
		t.Errorf("Replace[baseUrl] = %v, want normalized http://jf.local", res.Replace["baseUrl"])
	}
}

type panickyPlugin struct{ *plugintest.Fake }

func (panickyPlugin) ValidateSettings(plugin.Settings) plugin.ValidationResult {
	panic("boom")
}

func TestRegistryValidateSettingsRecoversPanic(t *testing.T) {
	reg, err := plugin.NewRegistry(panickyPlugin{plugintest.New("broken")})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	res, err := reg.ValidateSettings("broken", plugin.Settings{})
	if err != nil {
		t.Fatalf("ValidateSettings() error = %v", err)
	}
	if res.Valid || len(res.Errors) != 1 {
		t.Errorf("ValidateSettings() = %+v, want one failure", res)
	}
}
