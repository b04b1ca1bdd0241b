// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HealthStatus is the readiness payload.
type HealthStatus struct {
	Status      string  `json:"status"`
	Database    bool    `json:"database"`
	Cache       *bool   `json:"cache,omitempty"`
	UptimeSecs  float64 `json:"uptime_seconds"`
	Description string  `json:"description,omitempty"`
}

func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:     "alive",
		UptimeSecs: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 503 while the store or a configured shared cache is
// unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:     "ready",
		Database:   true,
		UptimeSecs: time.Since(h.startTime).Seconds(),
	}
	var failed []string
	if err := h.deps.Store.Ping(ctx); err != nil {
		status.Database = false
		failed = append(failed, "database")
	}
	if h.deps.Cache != nil {
		cacheOK := h.deps.Cache.Ping(ctx) == nil
		status.Cache = &cacheOK
		if !cacheOK {
			failed = append(failed, "cache")
		}
	}

	if len(failed) > 0 {
		status.Status = "not_ready"
		status.Description = strings.Join(failed, ", ") + " unreachable"
		rw := NewResponseWriter(w, r)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: status, Meta: rw.meta()})
		return
	}
	NewResponseWriter(w, r).Success(status)
}
