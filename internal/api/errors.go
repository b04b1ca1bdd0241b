// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/pulse/internal/aggregate"
	"github.com/tomtom215/pulse/internal/cohort"
	"github.com/tomtom215/pulse/internal/database"
	"github.com/tomtom215/pulse/internal/ingest"
	"github.com/tomtom215/pulse/internal/logging"
	"github.com/tomtom215/pulse/internal/segment"
	"github.com/tomtom215/pulse/internal/validation"
)

// retryAfterSeconds is sent with 503 responses for transient store failures.
const retryAfterSeconds = 5

// respondErr maps a service error onto the envelope. Unknown errors are
// logged and hidden behind a generic 500.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var (
		cfgErr *segment.ConfigError
		valErr *validation.RequestValidationError
	)
	switch {
	case errors.As(err, &cfgErr):
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeInvalidSegment, cfgErr.Error(), cfgErr.Details())
	case errors.As(err, &valErr):
		apiErr := valErr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
	case errors.Is(err, ingest.ErrEmptyBatch), errors.Is(err, ingest.ErrBatchTooLarge):
		rw.Error(http.StatusBadRequest, ErrCodeBatchRejected, err.Error())
	case errors.Is(err, cohort.ErrInvalidRange):
		rw.BadRequest(err.Error())
	case errors.Is(err, aggregate.ErrOutsideRetention):
		rw.Error(http.StatusUnprocessableEntity, ErrCodeOutsideRetention, err.Error())
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("resource not found")
	case database.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Transient store failure")
		rw.ServiceUnavailable("temporarily unavailable, retry later", retryAfterSeconds)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		rw.InternalError("internal error")
	}
}

func errMissingParam(name string) error {
	return fmt.Errorf("missing required parameter %q", name)
}
