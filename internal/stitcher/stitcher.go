// Package stitcher orchestrates the panorama pipeline: corner
// detection, description, correspondence matching, robust homography
// estimation and compositing, for one image set at a time.
package stitcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"panostitch/internal/compositor"
	"panostitch/internal/features"
	"panostitch/internal/homography"
	"panostitch/internal/imaging"
)

// Sentinel errors classifying per-set failures. Batch processing
// reports them and moves on to the next set.
var (
	// ErrTooFewImages marks a set with fewer than two images.
	ErrTooFewImages = errors.New("need at least 2 images")
	// ErrTooFewMatches marks a pair without enough correspondences
	// or consensus inliers to fit a homography.
	ErrTooFewMatches = errors.New("too few correspondences")
)

// minCorrespondences is the floor for attempting (and trusting) a
// homography fit.
const minCorrespondences = 4

// Options is the immutable per-call configuration for a stitch. No
// state is carried between calls.
type Options struct {
	Detector features.DetectorOptions
	Match    features.MatchOptions
	Estimate homography.EstimateOptions
	Blend    compositor.BlendMethod
}

// DefaultOptions returns the stitching defaults.
func DefaultOptions() Options {
	return Options{
		Detector: features.DefaultDetectorOptions(),
		Match:    features.DefaultMatchOptions(),
		Estimate: homography.DefaultEstimateOptions(),
		Blend:    compositor.BlendLinear,
	}
}

// Stats summarizes one stitched set.
type Stats struct {
	ImageCount      int     `json:"imageCount"`
	AvgFeatureCount float64 `json:"avgFeatureCount"`
	AvgMatchCount   float64 `json:"avgMatchCount"`
	AvgInlierRatio  float64 `json:"avgInlierRatio"`
}

// Result is a finished panorama plus its statistics.
type Result struct {
	Panorama *imaging.RGB
	Stats    Stats
}

// Stitcher runs the pipeline. The descriptor engine is a collaborator
// behind the Describer interface; the core treats its vectors as
// opaque.
type Stitcher struct {
	describer features.Describer
	log       *slog.Logger
}

// New creates a Stitcher. A nil describer falls back to the built-in
// patch describer; a nil logger falls back to slog.Default.
func New(describer features.Describer, log *slog.Logger) *Stitcher {
	if describer == nil {
		describer = features.NewPatchDescriber()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Stitcher{describer: describer, log: log}
}

// Stitch aligns and composites one ordered image set. Pairwise
// homographies are estimated sequentially (i-1 -> i) and composed
// into cumulative transforms relative to the first image.
func (s *Stitcher) Stitch(ctx context.Context, images []*imaging.RGB, opts Options) (*Result, error) {
	if len(images) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewImages, len(images))
	}

	grays := make([]*imaging.Gray, len(images))
	kps := make([][]features.Keypoint, len(images))
	descs := make([][]features.Descriptor, len(images))
	totalFeatures := 0
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		grays[i] = img.Grayscale()
		detected := features.Detect(grays[i], opts.Detector)
		kps[i], descs[i] = s.describer.Describe(grays[i], detected)
		totalFeatures += len(kps[i])
		s.log.Debug("detected features",
			"image", i,
			"corners", len(detected),
			"described", len(kps[i]),
		)
	}

	// Chain of cumulative transforms: cumulative[0] is the identity,
	// cumulative[i] maps image i into image 0's frame. The chain is
	// strictly sequential.
	cumulative := make([]homography.Matrix, len(images))
	cumulative[0] = homography.Identity()
	totalMatches := 0
	inlierRatioSum := 0.0
	for i := 1; i < len(images); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		corr := features.Match(kps[i], descs[i], kps[i-1], descs[i-1], opts.Match)
		if len(corr) < minCorrespondences {
			return nil, fmt.Errorf("%w: pair %d-%d produced %d", ErrTooFewMatches, i-1, i, len(corr))
		}

		src := make([]homography.Point, len(corr))
		dst := make([]homography.Point, len(corr))
		for j, c := range corr {
			src[j] = homography.Point{X: float64(c.A.X), Y: float64(c.A.Y)}
			dst[j] = homography.Point{X: float64(c.B.X), Y: float64(c.B.Y)}
		}
		h, mask := homography.Estimate(src, dst, opts.Estimate)
		inliers := homography.CountInliers(mask)
		if inliers < minCorrespondences {
			return nil, fmt.Errorf("%w: pair %d-%d kept %d inliers of %d", ErrTooFewMatches, i-1, i, inliers, len(corr))
		}

		cumulative[i] = cumulative[i-1].Mul(h)
		totalMatches += len(corr)
		inlierRatioSum += float64(inliers) / float64(len(corr))
		s.log.Debug("estimated pairwise homography",
			"pair", fmt.Sprintf("%d-%d", i-1, i),
			"matches", len(corr),
			"inliers", inliers,
		)
	}

	var pano *imaging.RGB
	var err error
	if len(images) == 2 {
		var canvas *compositor.Canvas
		canvas, err = compositor.BlendPair(images[0], images[1], cumulative[1], opts.Blend)
		if err == nil {
			pano = canvas.Image
		}
	} else {
		pano, err = compositor.BlendMultiple(images, cumulative, opts.Blend)
	}
	if err != nil {
		return nil, fmt.Errorf("compositing: %w", err)
	}

	pairs := len(images) - 1
	return &Result{
		Panorama: pano,
		Stats: Stats{
			ImageCount:      len(images),
			AvgFeatureCount: float64(totalFeatures) / float64(len(images)),
			AvgMatchCount:   float64(totalMatches) / float64(pairs),
			AvgInlierRatio:  inlierRatioSum / float64(pairs),
		},
	}, nil
}
