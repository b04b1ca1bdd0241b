// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package cohort groups customers by signup month and measures how many of
// them come back in each following calendar month.
package cohort

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

// DefaultHorizon is the number of monthly offsets reported per cohort.
const DefaultHorizon = 12

// Member is one customer with its signup time.
type Member struct {
	CustomerID string
	SignupAt   time.Time
}

// Options bounds a table. Cohorts are the calendar months from From to To
// inclusive; offsets that end up after Now are omitted.
type Options struct {
	From    time.Time
	To      time.Time
	Horizon int
	Now     time.Time
}

// monthIndex numbers calendar months so that consecutive months differ by 1.
func monthIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetweenInclusive(start, end time.Time) []time.Time {
	cur, last := monthStart(start), monthStart(end)
	var out []time.Time
	for !cur.After(last) {
		out = append(out, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// Build computes the retention table. Every month in the range gets a row,
// including months nobody signed up in. Activity before a member's signup
// month is ignored.
func Build(members []Member, activity []models.ActivityDay, opts Options) models.CohortTable {
	if opts.Horizon < 1 {
		opts.Horizon = DefaultHorizon
	}
	nowIdx := monthIndex(opts.Now)

	cohortOf := make(map[string]int, len(members))
	sizes := make(map[int]int)
	for _, m := range members {
		idx := monthIndex(m.SignupAt)
		cohortOf[m.CustomerID] = idx
		sizes[idx]++
	}

	// retained[cohort][offset] holds the distinct customers seen at that offset.
	retained := make(map[int]map[int]map[string]struct{})
	for _, a := range activity {
		cIdx, ok := cohortOf[a.CustomerID]
		if !ok {
			continue
		}
		offset := monthIndex(a.Date) - cIdx
		if offset < 0 || offset >= opts.Horizon {
			continue
		}
		if retained[cIdx] == nil {
			retained[cIdx] = make(map[int]map[string]struct{})
		}
		if retained[cIdx][offset] == nil {
			retained[cIdx][offset] = make(map[string]struct{})
		}
		retained[cIdx][offset][a.CustomerID] = struct{}{}
	}

	table := models.CohortTable{
		From:    monthStart(opts.From),
		To:      monthStart(opts.To),
		Horizon: opts.Horizon,
		AsOf:    opts.Now,
	}
	for _, month := range monthsBetweenInclusive(opts.From, opts.To) {
		idx := monthIndex(month)
		size := sizes[idx]
		row := models.CohortRow{CohortKey: month.Format("2006-01"), Size: size}
		for k := 0; k < opts.Horizon && idx+k <= nowIdx; k++ {
			count := len(retained[idx][k])
			row.Cells = append(row.Cells, models.CohortCell{
				PeriodIndex:   k,
				RetainedCount: count,
				CohortSize:    size,
				RetentionPct:  retentionPct(count, size),
			})
		}
		table.Rows = append(table.Rows, row)
	}
	table.Summary = Summarize(table.Rows)
	return table
}

func retentionPct(retained, size int) float64 {
	if size == 0 {
		return 0
	}
	return round2(float64(retained) / float64(size) * 100)
}

// trendThreshold is the month-1 retention change, in percentage points,
// between older and newer cohorts that counts as a trend.
const trendThreshold = 5.0

// minCohortsForTrend is the fewest cohorts with month-1 data needed to call
// a trend.
const minCohortsForTrend = 4

// Summarize reduces rows to headline numbers. Cohorts without members do not
// contribute to averages.
func Summarize(rows []models.CohortRow) models.CohortSummary {
	s := models.CohortSummary{RetentionTrend: "insufficient_data"}

	var month1, month3 []float64
	best, worst := -1.0, math.Inf(1)
	for _, r := range rows {
		if r.Size == 0 {
			continue
		}
		s.TotalCohorts++
		s.TotalCustomers += r.Size

		if len(r.Cells) > 1 {
			pct := r.Cells[1].RetentionPct
			month1 = append(month1, pct)
			if pct > best {
				best, s.BestCohort = pct, r.CohortKey
			}
			if pct < worst {
				worst, s.WorstCohort = pct, r.CohortKey
			}
		}
		if len(r.Cells) > 3 {
			month3 = append(month3, r.Cells[3].RetentionPct)
		}
	}

	s.AvgMonth1Retention = round2(average(month1))
	s.AvgMonth3Retention = round2(average(month3))
	s.MedianMonth1Retained = round2(median(month1))

	if len(month1) >= minCohortsForTrend {
		half := len(month1) / 2
		delta := average(month1[len(month1)-half:]) - average(month1[:half])
		switch {
		case delta > trendThreshold:
			s.RetentionTrend = "improving"
		case delta < -trendThreshold:
			s.RetentionTrend = "declining"
		default:
			s.RetentionTrend = "stable"
		}
	}
	return s
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
