// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "retryable"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_ingested_total",
			Help: "Events processed by the ingestor, by outcome",
		},
		[]string{"outcome"}, // accepted, skipped, duplicate
	)

	AggregationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_aggregation_runs_total",
			Help: "Daily aggregation runs, by result",
		},
		[]string{"result"},
	)

	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_aggregation_duration_seconds",
			Help:    "Duration of one AggregateDay run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	AggregationDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_aggregation_dispatched_total",
			Help: "Aggregation requests handed to the dispatcher, by result",
		},
		[]string{"result"},
	)

	CleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_cleanup_deleted_events_total",
			Help: "Raw events removed by the retention cleanup job",
		},
	)

	SegmentScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_segment_scans_total",
			Help: "Bulk segment evaluations, by result",
		},
		[]string{"result"},
	)

	SegmentScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulse_segment_scan_duration_seconds",
			Help:    "Duration of bulk segment evaluations",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_cache_requests_total",
			Help: "Cache lookups, by cache and result",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)
)

// RecordDBQuery records the duration of one store operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error, retryable bool) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		r := "false"
		if retryable {
			r = "true"
		}
		DBQueryErrors.WithLabelValues(operation, table, r).Inc()
	}
}

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest adds the outcome counts of one ingest call.
func RecordIngest(accepted, skipped, duplicates int) {
	EventsIngested.WithLabelValues("accepted").Add(float64(accepted))
	EventsIngested.WithLabelValues("skipped").Add(float64(skipped))
	EventsIngested.WithLabelValues("duplicate").Add(float64(duplicates))
}

// RecordAggregation records one AggregateDay run.
func RecordAggregation(duration time.Duration, err error) {
	AggregationDuration.Observe(duration.Seconds())
	AggregationRuns.WithLabelValues(resultLabel(err)).Inc()
}

// RecordDispatch records the outcome of handing a date to the dispatcher.
func RecordDispatch(err error) {
	AggregationDispatched.WithLabelValues(resultLabel(err)).Inc()
}

// RecordSegmentScan records one bulk segment evaluation.
func RecordSegmentScan(duration time.Duration, err error) {
	SegmentScanDuration.Observe(duration.Seconds())
	SegmentScans.WithLabelValues(resultLabel(err)).Inc()
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(cache, result).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
