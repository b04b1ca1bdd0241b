// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

// Package engagement derives point-in-time customer metrics from rolling
// usage windows.
//
// The formulas in this file are pure: the same window and reference time
// always produce the same CustomerMetrics, so dashboards and segment scans
// never disagree about a customer.
package engagement

import (
	"math"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

const (
	// velocityEpsilon keeps the velocity denominator positive.
	velocityEpsilon = 0.001

	churnedAfterDays = 30
	atRiskAfterDays  = 7

	// A decelerating customer is at risk only with a meaningful baseline.
	atRiskMinPrevCommands = 10
	atRiskMaxVelocity     = 0.2

	powerUserTotalCommands = 1000
	powerUserActiveDays    = 20
)

// EngagementScore combines active-day frequency and machine diversity into
// a score in [0, 100].
func EngagementScore(activeDays30d, machines int) int {
	a := float64(activeDays30d)
	m := float64(machines)
	raw := math.Min(40, a*1.33) + (a/30)*40 + math.Min(20, m*5)
	return clampInt(int(math.Round(raw)), 0, 100)
}

// Velocity compares the last three days' command rate with the rate of the
// seven days before them. Without a prior baseline it is exactly 1.
func Velocity(commandsLast3d, commandsPrev7d int64) float64 {
	if commandsPrev7d == 0 {
		return 1.0
	}
	return (float64(commandsLast3d) / 3.0) / (float64(commandsPrev7d)/7.0 + velocityEpsilon)
}

// DaysSinceActive counts whole UTC days between the last active day and
// asOf. It is negative only when lastActive is after asOf.
func DaysSinceActive(lastActive, asOf time.Time) int {
	return int(models.TruncateDay(asOf).Sub(models.TruncateDay(lastActive)).Hours() / 24)
}

// Classify assigns a lifecycle stage. Rules are evaluated in order and the
// first match wins.
func Classify(w models.UsageWindow, asOf time.Time) models.LifecycleStage {
	if !w.HasActivity {
		return models.StageNew
	}
	days := DaysSinceActive(w.LastActive, asOf)
	switch {
	case days > churnedAfterDays:
		return models.StageChurned
	case days > atRiskAfterDays:
		return models.StageAtRisk
	case w.CommandsPrev7d > atRiskMinPrevCommands &&
		Velocity(w.CommandsLast3d, w.CommandsPrev7d) < atRiskMaxVelocity:
		return models.StageAtRisk
	case w.TotalCommands > powerUserTotalCommands || w.ActiveDays30d > powerUserActiveDays:
		return models.StagePowerUser
	default:
		return models.StageActive
	}
}

// ChurnProbability estimates churn risk in [0, 100]. Staleness contributes
// up to 60 points and deceleration up to 40; the result never decreases as
// velocity falls or as the customer goes longer without activity.
func ChurnProbability(velocity float64, daysSinceActive int) float64 {
	days := math.Max(0, float64(daysSinceActive))
	recency := math.Min(60, days*2)

	v := math.Max(0, velocity)
	deceleration := 40 * (1 - math.Min(v, 1))

	p := math.Round((recency+deceleration)*10) / 10
	return math.Max(0, math.Min(100, p))
}

// Compute derives every metric for one window.
func Compute(w models.UsageWindow, asOf time.Time) models.CustomerMetrics {
	m := models.CustomerMetrics{
		CustomerID:     w.CustomerID,
		AsOf:           asOf,
		Window:         w,
		LifecycleStage: Classify(w, asOf),
	}
	if !w.HasActivity {
		// Without history the customer is neutral, not at risk.
		m.Velocity = 1.0
		return m
	}

	lastActive := w.LastActive
	m.LastActive = &lastActive
	m.EngagementScore = EngagementScore(w.ActiveDays30d, w.MachineCount)
	m.Velocity = Velocity(w.CommandsLast3d, w.CommandsPrev7d)
	m.ChurnProbability = ChurnProbability(m.Velocity, DaysSinceActive(w.LastActive, asOf))
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
