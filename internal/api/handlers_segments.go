// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pulse/internal/models"
)

func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := h.deps.Segments.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessList(segs, len(segs))
}

func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var s models.Segment
	if err := decodeJSON(w, r, &s); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	created, err := h.deps.Segments.Create(r.Context(), s)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(created)
}

func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Segments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(s)
}

func (h *Handler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	var s models.Segment
	if err := decodeJSON(w, r, &s); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	updated, err := h.deps.Segments.Update(r.Context(), chi.URLParam(r, "id"), s)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(updated)
}

func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Segments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// PreviewSegment evaluates an unsaved definition against the current
// customer base.
func (h *Handler) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	var def models.SegmentDefinition
	if err := decodeJSON(w, r, &def); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	preview, err := h.deps.Segments.Preview(r.Context(), def)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(preview)
}

type membersResult struct {
	SegmentID string   `json:"segment_id"`
	Customers []string `json:"customers"`
}

func (h *Handler) SegmentMembers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ids, err := h.deps.Segments.Members(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessList(membersResult{SegmentID: id, Customers: ids}, len(ids))
}
