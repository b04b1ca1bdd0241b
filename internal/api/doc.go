// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

/*
Package api exposes Pulse over HTTP using the chi router.

Endpoints:

  - POST /api/v1/events: ingest a telemetry batch (rate limited per IP)
  - GET /api/v1/aggregates: daily dashboard series
  - GET /api/v1/customers/{id}/metrics: engagement, lifecycle and churn risk
  - GET, PUT /api/v1/customers/{id}/profile: descriptive attributes
  - GET /api/v1/cohorts: monthly retention table
  - /api/v1/segments: segment CRUD, preview and membership
  - POST /api/v1/admin/aggregate, /api/v1/admin/cleanup: maintenance jobs
  - /health/live, /health/ready, /metrics

Every JSON response uses the APIResponse envelope. Transient store failures
answer 503 with Retry-After; invalid segment definitions answer 400 with the
offending group, condition and field in error.details.
*/
package api
