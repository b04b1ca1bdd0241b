// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

/*
Package services adapts Pulse components to suture.Service.

  - HTTPServerService: ListenAndServe / Shutdown
  - RouterService: the Watermill aggregation consumer (Run / Close)
  - CleanupService: periodic raw event retention cleanup

Each wrapper returns ctx.Err() on a requested shutdown and a wrapped error
on failure so the supervisor can restart it.
*/
package services
