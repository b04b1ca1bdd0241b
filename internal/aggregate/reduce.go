// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package aggregate

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/pulse/internal/models"
)

type bucketKey struct {
	dim   models.Dimension
	value string
}

type bucket struct {
	count    int
	sessions map[string]struct{}
	timings  []float64
}

// Reduce turns one day's events into its complete set of aggregate rows,
// sorted by key. The result depends only on the events, not on their order.
func Reduce(day time.Time, events []models.RawEvent) []models.DailyAggregate {
	day = models.TruncateDay(day)
	buckets := make(map[bucketKey]*bucket)

	add := func(dim models.Dimension, value string, ev *models.RawEvent) *bucket {
		k := bucketKey{dim: dim, value: value}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{sessions: make(map[string]struct{})}
			buckets[k] = b
		}
		b.count++
		b.sessions[ev.SessionID] = struct{}{}
		return b
	}

	for i := range events {
		ev := &events[i]
		if !ev.Day().Equal(day) {
			continue
		}
		p := &ev.Properties

		add(models.DimEventName, string(ev.Type)+":"+ev.Name, ev)

		if host := referrerHost(p.Referrer); host != "" {
			add(models.DimReferrer, host, ev)
		}
		if p.HasUTM() {
			add(models.DimUTM, p.UTMSource+"|"+p.UTMMedium+"|"+p.UTMCampaign, ev)
		}
		if p.Country != "" {
			add(models.DimGeography, p.Country, ev)
		}
		if ev.Type == models.EventInteraction && p.Target != "" {
			add(models.DimInteractionTarget, p.Target, ev)
		}
		if ev.Type == models.EventPerformance && p.Path != "" {
			b := add(models.DimPerformancePath, p.Path, ev)
			if p.ValueMs != nil {
				b.timings = append(b.timings, *p.ValueMs)
			}
		}
	}

	rows := make([]models.DailyAggregate, 0, len(buckets)*2)
	for k, b := range buckets {
		row := func(metric string, v float64) models.DailyAggregate {
			return models.DailyAggregate{Date: day, Dimension: k.dim, DimensionValue: k.value, Metric: metric, Value: v}
		}
		rows = append(rows,
			row(models.MetricCount, float64(b.count)),
			row(models.MetricUniqueSessions, float64(len(b.sessions))),
		)
		if k.dim == models.DimPerformancePath && len(b.timings) > 0 {
			sort.Float64s(b.timings)
			rows = append(rows,
				row(models.MetricAvgMs, mean(b.timings)),
				row(models.MetricP95Ms, percentile(b.timings, 0.95)),
			)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Key() < rows[j].Key() })
	return rows
}

// referrerHost returns the lowercase host of a referrer URL without a
// leading "www.". Values that are not URLs are kept as given.
func referrerHost(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	host := ref
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

// percentile uses the nearest-rank method over ascending values.
func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return round2(sorted[rank])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
