// Package features implements corner detection, description and
// matching for the stitching core. Detection is a FAST segment test
// optionally filtered by a Harris cornerness map; matching is a
// ratio-tested nearest-neighbor search over descriptor vectors.
package features

import (
	"math/bits"
	"sort"

	"panostitch/internal/imaging"
)

// DetectorKind selects the corner test variant.
type DetectorKind string

const (
	// DetectorFAST is the plain segment test.
	DetectorFAST DetectorKind = "fast"
	// DetectorFASTR additionally requires the Harris response to
	// exceed the Harris threshold.
	DetectorFASTR DetectorKind = "fastr"
)

// Keypoint is an integer pixel location.
type Keypoint struct {
	X, Y int
}

// DetectorOptions configures one detection call. The zero value is not
// usable; use DefaultDetectorOptions.
type DetectorOptions struct {
	Kind            DetectorKind
	Threshold       float64 // intensity delta t, in (0,1)
	ArcLength       int     // contiguous circle pixels required, e.g. 12 of 16
	HarrisThreshold float64 // FASTR cutoff on the normalized Harris response
	MaxKeypoints    int     // cap before variance ranking kicks in
}

// DefaultDetectorOptions returns the detector defaults.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		Kind:            DetectorFAST,
		Threshold:       0.1,
		ArcLength:       12,
		HarrisThreshold: 0.005,
		MaxKeypoints:    500,
	}
}

// circleOffsets are the 16 Bresenham circle samples of radius 3,
// clockwise from the top.
var circleOffsets = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// circleMargin keeps the whole sample circle inside the image.
const circleMargin = 3

// Detect finds corners in img. Images too small to fit the sample
// circle plus margin produce an empty result.
func Detect(img *imaging.Gray, opts DetectorOptions) []Keypoint {
	if img == nil || img.W < 2*circleMargin+1 || img.H < 2*circleMargin+1 {
		return nil
	}
	if opts.ArcLength <= 0 || opts.ArcLength > 16 {
		opts.ArcLength = 12
	}
	if opts.MaxKeypoints <= 0 {
		opts.MaxKeypoints = 500
	}

	var harris *imaging.Gray
	if opts.Kind == DetectorFASTR {
		harris = HarrisResponse(img, opts.HarrisThreshold)
	}

	// Precompute flat circle offsets so the inner loop is a pure
	// index-and-compare sweep over each row.
	flat := make([]int, 16)
	for i, off := range circleOffsets {
		flat[i] = off[1]*img.W + off[0]
	}

	var kps []Keypoint
	for y := circleMargin; y < img.H-circleMargin; y++ {
		base := y * img.W
		for x := circleMargin; x < img.W-circleMargin; x++ {
			center := img.Pix[base+x]
			hi := center + opts.Threshold
			lo := center - opts.Threshold

			var brighter, darker uint16
			for i, d := range flat {
				v := img.Pix[base+x+d]
				if v > hi {
					brighter |= 1 << uint(i)
				} else if v < lo {
					darker |= 1 << uint(i)
				}
			}
			if !hasContiguousArc(brighter, opts.ArcLength) &&
				!hasContiguousArc(darker, opts.ArcLength) {
				continue
			}
			if harris != nil && harris.Pix[base+x] <= opts.HarrisThreshold {
				continue
			}
			kps = append(kps, Keypoint{X: x, Y: y})
		}
	}

	if len(kps) > opts.MaxKeypoints {
		kps = rankByLocalVariance(img, kps, opts.MaxKeypoints)
	}
	return kps
}

// hasContiguousArc reports whether mask contains a run of at least n
// set bits under circular wrap of the 16 circle positions. Doubling
// the mask turns the wrapped run test into a plain longest-run scan.
func hasContiguousArc(mask uint16, n int) bool {
	if mask == 0 {
		return false
	}
	if mask == 0xffff {
		return true
	}
	doubled := uint32(mask) | uint32(mask)<<16
	run := 0
	for doubled != 0 {
		tz := bits.TrailingZeros32(doubled)
		doubled >>= uint(tz)
		ones := bits.TrailingZeros32(^doubled)
		if ones > run {
			run = ones
		}
		doubled >>= uint(ones)
	}
	// Runs longer than 16 only arise from wrap-around duplication.
	if run > 16 {
		run = 16
	}
	return run >= n
}

// rankByLocalVariance keeps the top n keypoints by 3x3 neighborhood
// intensity variance.
func rankByLocalVariance(img *imaging.Gray, kps []Keypoint, n int) []Keypoint {
	type scored struct {
		kp  Keypoint
		val float64
	}
	ranked := make([]scored, len(kps))
	for i, kp := range kps {
		ranked[i] = scored{kp: kp, val: imaging.LocalVariance3(img, kp.X, kp.Y)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].val > ranked[j].val
	})
	out := make([]Keypoint, n)
	for i := range out {
		out[i] = ranked[i].kp
	}
	return out
}
