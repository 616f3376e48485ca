package stitcher

import (
	"context"
	"errors"
	"time"

	"panostitch/internal/imaging"
)

// ImageSet names one group of overlapping images.
type ImageSet struct {
	Name   string
	Images []*imaging.RGB
}

// SetResult is the per-set outcome of a batch run.
type SetResult struct {
	Name     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// Failed reports whether the set did not produce a panorama.
func (r SetResult) Failed() bool { return r.Err != nil }

// Reason classifies a failure for the batch summary.
func (r SetResult) Reason() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrTooFewImages):
		return "input"
	case errors.Is(r.Err, ErrTooFewMatches):
		return "match"
	default:
		return "internal"
	}
}

// Batch stitches independent image sets in order. One set's failure
// never aborts the batch; each outcome is recorded with its
// triggering reason. Only context cancellation stops the run early.
func (s *Stitcher) Batch(ctx context.Context, sets []ImageSet, opts Options) []SetResult {
	results := make([]SetResult, 0, len(sets))
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			results = append(results, SetResult{Name: set.Name, Err: err})
			continue
		}
		start := time.Now()
		res, err := s.Stitch(ctx, set.Images, opts)
		out := SetResult{Name: set.Name, Result: res, Err: err, Duration: time.Since(start)}
		if err != nil {
			s.log.Warn("set failed",
				"set", set.Name,
				"reason", out.Reason(),
				"error", err,
			)
		} else {
			s.log.Info("set stitched",
				"set", set.Name,
				"images", res.Stats.ImageCount,
				"avg_features", res.Stats.AvgFeatureCount,
				"avg_matches", res.Stats.AvgMatchCount,
				"avg_inlier_ratio", res.Stats.AvgInlierRatio,
				"duration_ms", out.Duration.Milliseconds(),
			)
		}
		results = append(results, out)
	}
	return results
}
