package features

import "math"

// Correspondence pairs a keypoint in image A with one in image B.
type Correspondence struct {
	A, B Keypoint
}

// MatchOptions configures descriptor matching.
type MatchOptions struct {
	MaxRatio    float64 // nearest / second-nearest distance bound
	MaxDistance float64 // absolute nearest-distance cutoff
}

// DefaultMatchOptions returns the matcher defaults.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{MaxRatio: 0.75, MaxDistance: 0.9}
}

// Match finds correspondences between two described keypoint sets.
// For each descriptor in A the nearest and second-nearest neighbors in
// B are located; a pair survives only if the distance ratio and the
// absolute cutoff both pass, and each B keypoint is claimed by at most
// one A keypoint (ties resolved by smaller distance). Empty inputs
// produce an empty result.
func Match(kpsA []Keypoint, descA []Descriptor, kpsB []Keypoint, descB []Descriptor, opts MatchOptions) []Correspondence {
	if len(descA) == 0 || len(descB) == 0 {
		return nil
	}
	if opts.MaxRatio <= 0 {
		opts.MaxRatio = 0.75
	}
	if opts.MaxDistance <= 0 {
		opts.MaxDistance = 0.9
	}

	type claim struct {
		aIdx int
		dist float64
	}
	claims := make(map[int]claim)

	for i, da := range descA {
		best, second := math.Inf(1), math.Inf(1)
		bestJ := -1
		for j, db := range descB {
			d := euclidean(da, db)
			if d < best {
				second = best
				best = d
				bestJ = j
			} else if d < second {
				second = d
			}
		}
		if bestJ < 0 || best >= opts.MaxDistance {
			continue
		}
		if second > 0 && best/second >= opts.MaxRatio {
			continue
		}
		if prev, taken := claims[bestJ]; taken && prev.dist <= best {
			continue
		}
		claims[bestJ] = claim{aIdx: i, dist: best}
	}

	// Emit in A order for deterministic output.
	used := make([]int, 0, len(claims))
	byA := make(map[int]int, len(claims))
	for j, c := range claims {
		byA[c.aIdx] = j
	}
	for i := range descA {
		if _, ok := byA[i]; ok {
			used = append(used, i)
		}
	}
	out := make([]Correspondence, 0, len(used))
	for _, i := range used {
		out = append(out, Correspondence{A: kpsA[i], B: kpsB[byA[i]]})
	}
	return out
}
