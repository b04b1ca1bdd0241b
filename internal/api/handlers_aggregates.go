// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net/http"

	"github.com/tomtom215/pulse/internal/models"
	"github.com/tomtom215/pulse/internal/validation"
)

// Aggregates returns daily series for ?from&to, optionally narrowed by
// dimension and metric.
func (h *Handler) Aggregates(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	from, err := requireDateParam(r, "from")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	to, err := requireDateParam(r, "to")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	q := models.AggregateQuery{
		From:      models.TruncateDay(from),
		To:        models.TruncateDay(to),
		Dimension: models.Dimension(r.URL.Query().Get("dimension")),
		Metric:    r.URL.Query().Get("metric"),
	}
	if err := validation.ValidateStruct(&q); err != nil {
		respondErr(w, r, err)
		return
	}

	series, err := h.deps.Aggregator.Query(r.Context(), q)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rw.SuccessList(series, len(series))
}

// AdminAggregate recomputes ?date synchronously.
func (h *Handler) AdminAggregate(w http.ResponseWriter, r *http.Request) {
	day, err := requireDateParam(r, "date")
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	summary, err := h.deps.Aggregator.AggregateDay(r.Context(), models.TruncateDay(day))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(summary)
}

type cleanupResult struct {
	Deleted int64 `json:"deleted"`
}

// AdminCleanup drops raw events past retention now instead of waiting for
// the scheduler.
func (h *Handler) AdminCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.deps.Aggregator.Cleanup(r.Context(), h.now())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(cleanupResult{Deleted: deleted})
}
