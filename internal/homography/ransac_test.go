package homography

import (
	"math/rand"
	"testing"
)

func TestEstimateTooFewPoints(t *testing.T) {
	pts := []Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 0}}
	h, mask := Estimate(pts, pts, DefaultEstimateOptions())
	if h != Identity() {
		t.Fatalf("expected identity, got %+v", h)
	}
	if CountInliers(mask) != 0 {
		t.Fatalf("expected empty mask, got %d inliers", CountInliers(mask))
	}
	if len(mask) != len(pts) {
		t.Fatalf("mask length %d, want %d", len(mask), len(pts))
	}
}

func TestEstimateCleanTranslation(t *testing.T) {
	want := Matrix{1, 0, 20, 0, 1, 10, 0, 0, 1}
	rng := rand.New(rand.NewSource(11))

	var src, dst []Point
	for i := 0; i < 40; i++ {
		p := Point{X: rng.Float64() * 300, Y: rng.Float64() * 200}
		src = append(src, p)
		dst = append(dst, want.Apply(p))
	}

	opts := DefaultEstimateOptions()
	opts.Seed = 1
	h, mask := Estimate(src, dst, opts)
	if CountInliers(mask) != len(src) {
		t.Fatalf("clean data should be all inliers, got %d of %d", CountInliers(mask), len(src))
	}
	if !matricesClose(h, want, 1e-3) {
		t.Fatalf("got %+v\nwant %+v", h, want)
	}
}

func TestEstimateWithOutliers(t *testing.T) {
	want := Matrix{1, 0, 20, 0, 1, 10, 0, 0, 1}
	rng := rand.New(rand.NewSource(5))

	var src, dst []Point
	clean := 40
	for i := 0; i < clean; i++ {
		p := Point{X: rng.Float64() * 300, Y: rng.Float64() * 200}
		src = append(src, p)
		dst = append(dst, want.Apply(p))
	}
	outliers := 15
	for i := 0; i < outliers; i++ {
		p := Point{X: rng.Float64() * 300, Y: rng.Float64() * 200}
		src = append(src, p)
		dst = append(dst, Point{X: p.X + 100 + rng.Float64()*200, Y: p.Y - 150 - rng.Float64()*100})
	}

	opts := DefaultEstimateOptions()
	opts.Seed = 42
	h, mask := Estimate(src, dst, opts)

	if !matricesClose(h, want, 1e-3) {
		t.Fatalf("model not recovered under contamination:\ngot %+v\nwant %+v", h, want)
	}
	for i := 0; i < clean; i++ {
		if !mask[i] {
			t.Fatalf("clean correspondence %d marked outlier", i)
		}
	}
	for i := clean; i < clean+outliers; i++ {
		if mask[i] {
			t.Fatalf("outlier %d marked inlier", i)
		}
	}
}

func TestEstimateInvalidModelFallsBack(t *testing.T) {
	// A pure 20x scaling: every minimal sample recovers it exactly, and
	// its determinant lies outside the validity bounds. No candidate
	// ever survives, so the estimator reports identity and no inliers.
	rng := rand.New(rand.NewSource(3))
	var src, dst []Point
	for i := 0; i < 12; i++ {
		p := Point{X: 10 + rng.Float64()*100, Y: 10 + rng.Float64()*100}
		src = append(src, p)
		dst = append(dst, Point{X: 20 * p.X, Y: 20 * p.Y})
	}

	opts := DefaultEstimateOptions()
	opts.Seed = 3
	opts.MaxTrials = 200
	h, mask := Estimate(src, dst, opts)
	if h != Identity() {
		t.Fatalf("invalid models should yield identity, got %+v", h)
	}
	if CountInliers(mask) != 0 {
		t.Fatalf("invalid models should yield an empty mask")
	}
}

func TestEstimateDeterministicWithSeed(t *testing.T) {
	want := Matrix{1, 0.02, 12, -0.01, 1, -7, 0, 0, 1}
	rng := rand.New(rand.NewSource(9))
	var src, dst []Point
	for i := 0; i < 30; i++ {
		p := Point{X: rng.Float64() * 250, Y: rng.Float64() * 250}
		src = append(src, p)
		dst = append(dst, want.Apply(p))
	}

	opts := DefaultEstimateOptions()
	opts.Seed = 77
	h1, m1 := Estimate(src, dst, opts)
	h2, m2 := Estimate(src, dst, opts)
	if h1 != h2 {
		t.Fatalf("same seed produced different models")
	}
	for i := range m1 {
		if m1[i] != m2[i] {
			t.Fatalf("same seed produced different masks at %d", i)
		}
	}
}

func TestCountInliers(t *testing.T) {
	if got := CountInliers([]bool{true, false, true, true}); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := CountInliers(nil); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
