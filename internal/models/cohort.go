// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package models

import "time"

// CohortCell is the retention of one cohort at one period offset.
type CohortCell struct {
	PeriodIndex   int     `json:"period_index"`
	RetainedCount int     `json:"retained_count"`
	CohortSize    int     `json:"cohort_size"`
	RetentionPct  float64 `json:"retention_pct"`
}

// CohortRow holds every offset of one signup month.
type CohortRow struct {
	CohortKey string       `json:"cohort_key"` // YYYY-MM
	Size      int          `json:"size"`
	Cells     []CohortCell `json:"cells"`
}

// CohortSummary aggregates the table for quick display.
type CohortSummary struct {
	TotalCohorts         int     `json:"total_cohorts"`
	TotalCustomers       int     `json:"total_customers"`
	AvgMonth1Retention   float64 `json:"avg_month1_retention"`
	AvgMonth3Retention   float64 `json:"avg_month3_retention"`
	BestCohort           string  `json:"best_cohort,omitempty"`
	WorstCohort          string  `json:"worst_cohort,omitempty"`
	RetentionTrend       string  `json:"retention_trend"` // improving, declining, stable, insufficient_data
	MedianMonth1Retained float64 `json:"median_month1_retention"`
}

// CohortTable is the full retention table for a signup range.
type CohortTable struct {
	From    time.Time     `json:"from"`
	To      time.Time     `json:"to"`
	Horizon int           `json:"horizon"`
	Rows    []CohortRow   `json:"rows"`
	Summary CohortSummary `json:"summary"`
	AsOf    time.Time     `json:"as_of"`
	Cached  bool          `json:"cached"`
}
