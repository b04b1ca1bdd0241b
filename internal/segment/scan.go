// Pulse - Customer Analytics and Segmentation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pulse

package segment

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/pulse/internal/metrics"
)

// cancelCheckEvery is how many subjects a worker evaluates between context
// checks.
const cancelCheckEvery = 64

// Scan evaluates m against subjects on up to workers goroutines and returns
// the matching ids in input order. If ctx is cancelled the scan stops and
// only the context error is returned.
func Scan(ctx context.Context, m *Matcher, subjects []Subject, workers int) ([]string, error) {
	start := time.Now()
	if workers < 1 {
		workers = 1
	}

	matched := make([]bool, len(subjects))
	chunk := (len(subjects) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(subjects); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(subjects))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%cancelCheckEvery == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				matched[i] = m.Match(subjects[i])
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	metrics.RecordSegmentScan(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	for i, ok := range matched {
		if ok {
			ids = append(ids, subjects[i].ID())
		}
	}
	return ids, nil
}
