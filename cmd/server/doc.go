// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Command server runs the Reelhub API and streaming proxy.

Reelhub asks every media source a user has configured (Jellyfin, Plex, a
local HTTP file server) whether it can play a given movie or episode, and
relays the chosen stream to the player through its own origin.

# Startup

 1. Configuration: Koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. Plugins: built-ins filtered by SOURCES_ENABLED, sharing one upstream client
 4. Settings store: BadgerDB (default) or in-memory
 5. Authentication: JWT, Basic Auth, or none
 6. HTTP: Chi router under the suture supervisor tree

	reelhub
	├── maintenance-layer
	│   └── store-gc (badger only, STORE_GC_INTERVAL > 0)
	└── api-layer
	    └── http-server

# Example

	export JWT_SECRET=$(openssl rand -base64 32)
	export STORE_PATH=/var/lib/reelhub
	./server

Development without authentication:

	AUTH_MODE=none DEFAULT_USER=dev STORE_BACKEND=memory ./server

SIGINT and SIGTERM stop the tree; in-flight requests get 10s to finish
and the settings store is closed afterwards.
*/
package main
