// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package supervisor runs Pulse's long-lived services under a suture v4
// tree. Failing services are restarted with backoff; cancelling the root
// context shuts every layer down within the configured timeout.
package supervisor
