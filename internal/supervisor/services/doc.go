// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

/*
Package services adapts Reelhub components to suture.Service.

  - HTTPServerService: wraps *http.Server; graceful Shutdown on cancel.
  - StoreGCService: ticker loop running badger value log GC.

Both implement fmt.Stringer so supervisor events name them.
*/
package services
