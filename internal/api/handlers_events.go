// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net"
	"net/http"

	"github.com/tomtom215/pulse/internal/ingest"
	"github.com/tomtom215/pulse/internal/models"
)

// IngestEvents records a telemetry batch. Malformed events are skipped and
// counted; the batch is rejected only when empty or oversized.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	var body models.IngestBatch
	if err := decodeJSON(w, r, &body); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	meta := ingest.RequestMeta{
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}
	result, err := h.deps.Ingestor.Ingest(r.Context(), body.Events, meta)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(result)
}

// clientIP strips the port from RemoteAddr, which RealIP may already have
// replaced with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
