// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Package supervisor runs Reelhub's long-lived services under a suture v4
supervisor tree.

# Layout

	reelhub (root)
	├── maintenance-layer
	│   └── StoreGCService (badger backend only)
	└── api-layer
	    └── HTTPServerService

Each layer counts failures on its own, so a crashing GC loop is restarted
with backoff while the HTTP server keeps serving.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Supervisor events (service panics, restarts, backoff) are logged through
sutureslog, bridged onto zerolog by logging.NewSlogLogger.
*/
package supervisor
