// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package models

import "time"

// Dimension names a fixed aggregation grouping.
type Dimension string

const (
	DimEventName         Dimension = "event_name"
	DimReferrer          Dimension = "referrer"
	DimUTM               Dimension = "utm"
	DimGeography         Dimension = "geography"
	DimInteractionTarget Dimension = "interaction_target"
	DimPerformancePath   Dimension = "performance_path"
)

// Dimensions lists every grouping in write order.
var Dimensions = []Dimension{
	DimEventName, DimReferrer, DimUTM, DimGeography, DimInteractionTarget, DimPerformancePath,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Metric names.
const (
	MetricCount          = "count"
	MetricUniqueSessions = "unique_sessions"
	MetricAvgMs          = "avg_ms"
	MetricP95Ms          = "p95_ms"
)

// DailyAggregate is one (date, dimension, value, metric) row.
type DailyAggregate struct {
	Date           time.Time `json:"date"`
	Dimension      Dimension `json:"dimension"`
	DimensionValue string    `json:"dimension_value"`
	Metric         string    `json:"metric"`
	Value          float64   `json:"value"`
}

// Key identifies the row independent of its value.
func (a DailyAggregate) Key() string {
	return a.Date.Format("2006-01-02") + "|" + string(a.Dimension) + "|" + a.DimensionValue + "|" + a.Metric
}

// AggregateQuery selects a range of aggregate rows for the dashboards.
type AggregateQuery struct {
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required,gtefield=From"`
	Dimension Dimension `validate:"omitempty,oneof=event_name referrer utm geography interaction_target performance_path"`
	Metric    string    `validate:"omitempty,oneof=count unique_sessions avg_ms p95_ms"`
}

// SeriesPoint is one day's value.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is a time series keyed by metric and dimension value.
type Series struct {
	Dimension      Dimension     `json:"dimension"`
	DimensionValue string        `json:"dimension_value"`
	Metric         string        `json:"metric"`
	Points         []SeriesPoint `json:"points"`
	Total          float64       `json:"total"`
}

// AggregationSummary describes one AggregateDay run.
type AggregationSummary struct {
	Date        time.Time `json:"date"`
	Events      int       `json:"events"`
	RowsWritten int       `json:"rows_written"`
	RowsRemoved int64     `json:"rows_removed"`
	DurationMs  int64     `json:"duration_ms"`
}
