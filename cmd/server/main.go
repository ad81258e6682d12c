// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/reelhub/internal/api"
	"github.com/tomtom215/reelhub/internal/auth"
	"github.com/tomtom215/reelhub/internal/config"
	"github.com/tomtom215/reelhub/internal/logging"
	"github.com/tomtom215/reelhub/internal/proxy"
	"github.com/tomtom215/reelhub/internal/sources"
	"github.com/tomtom215/reelhub/internal/store"
	"github.com/tomtom215/reelhub/internal/supervisor"
	"github.com/tomtom215/reelhub/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Reelhub exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("version", api.Version).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("store_backend", cfg.Store.Backend).
		Msg("Starting Reelhub")

	registry, err := buildRegistry(&cfg.Sources)
	if err != nil {
		return err
	}
	logging.Info().Strs("sources", registry.IDs()).Msg("Source plugins registered")

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing settings store")
		}
	}()

	if cfg.Security.AuthMode == config.AuthModeNone {
		logging.Warn().
			Str("default_user", cfg.Security.DefaultUser).
			Msg("Authentication is DISABLED (AUTH_MODE=none); every request acts as the default user")
	}
	authMiddleware, err := auth.NewMiddleware(&cfg.Security, api.WriteUnauthorized)
	if err != nil {
		return fmt.Errorf("initialize authentication: %w", err)
	}

	aggregator := sources.NewAggregator(registry, st, cfg.Sources.DiscoveryTimeout)
	handler := api.NewHandler(api.Dependencies{
		Registry:   registry,
		Aggregator: aggregator,
		Settings:   sources.NewSettingsService(registry, st),
		Gateway:    proxy.NewGateway(aggregator, cfg.Proxy, proxy.Options{WriteError: api.WriteError}),
	})
	router := api.NewRouter(handler, authMiddleware, api.NewChiMiddlewareFromConfig(&cfg.Security))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if gc, ok := st.(services.ValueLogCollector); ok && cfg.Store.GCInterval > 0 {
		tree.AddMaintenanceService(services.NewStoreGCService(gc, cfg.Store.GCInterval, cfg.Store.GCDiscardRatio))
		logging.Info().Dur("interval", cfg.Store.GCInterval).Msg("Store GC service added")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ServeBackground delivers exactly one result and never closes the channel.
	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor tree: %w", err)
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	return nil
}
