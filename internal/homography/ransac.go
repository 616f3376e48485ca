package homography

import (
	"math"
	"math/rand"
	"time"
)

// EstimateOptions configures the RANSAC consensus search.
type EstimateOptions struct {
	// MaxTrials is the fixed trial budget. The budget is fixed rather
	// than adapted from the observed inlier ratio; Confidence records
	// the target the budget was sized for. Degenerate minimal samples
	// consume a trial like any other.
	MaxTrials       int
	Confidence      float64
	InlierThreshold float64 // reprojection distance in pixels
	Seed            int64   // 0 seeds from the clock
}

// DefaultEstimateOptions returns the estimator defaults.
func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{
		MaxTrials:       2000,
		Confidence:      0.995,
		InlierThreshold: 3.0,
	}
}

// earlyExitRatio stops the search once this share of all
// correspondences agrees with the best model.
const earlyExitRatio = 0.9

// Estimate fits a homography mapping src to dst under outlier
// contamination. It returns the best model and a mask marking the
// correspondences that agree with it. Fewer than 4 correspondences,
// or a winner that fails validation, yield the identity with an
// all-false mask; the estimator itself never errors.
func Estimate(src, dst []Point, opts EstimateOptions) (Matrix, []bool) {
	n := len(src)
	mask := make([]bool, n)
	if n < 4 || len(dst) != n {
		return Identity(), mask
	}
	if opts.MaxTrials <= 0 {
		opts.MaxTrials = 2000
	}
	if opts.InlierThreshold <= 0 {
		opts.InlierThreshold = 3.0
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	sampleSrc := make([]Point, 4)
	sampleDst := make([]Point, 4)
	best := Identity()
	bestCount := 0

	for trial := 0; trial < opts.MaxTrials; trial++ {
		for i, idx := range rng.Perm(n)[:4] {
			sampleSrc[i] = src[idx]
			sampleDst[i] = dst[idx]
		}
		cand, err := SolveDLT(sampleSrc, sampleDst)
		if err != nil || !cand.Valid() {
			continue
		}

		count := 0
		for i := range src {
			if reprojectionError(cand, src[i], dst[i]) < opts.InlierThreshold {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = cand
		}
		if float64(bestCount) > earlyExitRatio*float64(n) {
			break
		}
	}

	if bestCount == 0 || !best.Valid() {
		return Identity(), mask
	}
	for i := range src {
		mask[i] = reprojectionError(best, src[i], dst[i]) < opts.InlierThreshold
	}

	// Refit over the full consensus set. The refit must stay valid and
	// must not lose inliers, otherwise the minimal-sample winner stands.
	inSrc := make([]Point, 0, bestCount)
	inDst := make([]Point, 0, bestCount)
	for i, ok := range mask {
		if ok {
			inSrc = append(inSrc, src[i])
			inDst = append(inDst, dst[i])
		}
	}
	if refit, err := SolveDLT(inSrc, inDst); err == nil && refit.Valid() {
		refitMask := make([]bool, n)
		count := 0
		for i := range src {
			if reprojectionError(refit, src[i], dst[i]) < opts.InlierThreshold {
				refitMask[i] = true
				count++
			}
		}
		if count >= bestCount {
			return refit, refitMask
		}
	}
	return best, mask
}

// reprojectionError is the Euclidean distance between H*src and dst.
func reprojectionError(h Matrix, src, dst Point) float64 {
	p := h.Apply(src)
	dx := p.X - dst.X
	dy := p.Y - dst.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// CountInliers returns the number of set entries in a mask.
func CountInliers(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
