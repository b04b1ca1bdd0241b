// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import "net/http"

// Cohorts returns the monthly retention table for signups in ?from&to.
func (h *Handler) Cohorts(w http.ResponseWriter, r *http.Request) {
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

	table, err := h.deps.Cohorts.Retention(r.Context(), from, to)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rw.Success(table)
}
