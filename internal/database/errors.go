// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrRetryable marks transient store failures. Callers may retry the
	// operation; every write path in this package is idempotent.
	ErrRetryable = errors.New("retryable store failure")

	// ErrNotFound is returned when a keyed lookup matches no row.
	ErrNotFound = errors.New("not found")
)

type storeError struct {
	op        string
	err       error
	retryable bool
}

func (e *storeError) Error() string {
	if e.retryable {
		return fmt.Sprintf("%s (retryable): %v", e.op, e.err)
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *storeError) Unwrap() []error {
	if e.retryable {
		return []error{ErrRetryable, e.err}
	}
	return []error{e.err}
}

// IsRetryable reports whether err wraps a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

// classify wraps err with the operation name and marks it retryable when it
// is a timeout, a lost connection or a transaction conflict.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &storeError{op: op, err: err, retryable: isTransient(err)}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	return isConnectionError(err) || isTransactionConflict(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"bad connection",
		"database is closed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isTransactionConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Transaction conflict") ||
		strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "Conflict on tuple deletion")
}

// closeQuietly is for error paths where a Close failure is not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
