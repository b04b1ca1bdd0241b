// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/models"
	"github.com/tomtom215/pulse/internal/validation"
)

// CustomerMetrics returns engagement, velocity, lifecycle and churn risk as
// of ?as_of, or now.
func (h *Handler) CustomerMetrics(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateParam(r, "as_of")
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	m, err := h.deps.Metrics.Metrics(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(m)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Profiles.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(p)
}

// UpdateProfile edits the profile and drops cached cohort tables, since
// signup dates decide cohort membership.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if err := validation.ValidateStruct(&upd); err != nil {
		respondErr(w, r, err)
		return
	}

	p, err := h.deps.Profiles.UpdateProfile(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if upd.SignupAt != nil {
		if err := h.deps.Cohorts.Invalidate(); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to invalidate cohort cache")
		}
	}
	NewResponseWriter(w, r).Success(p)
}
