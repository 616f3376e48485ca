package stitcher

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"panostitch/internal/imaging"
)

// blockScene builds a textured intensity plane out of 5x5 blocks with
// random levels. Block corners are strong, repeatable corner stimuli.
func blockScene(w, h int, seed int64) *imaging.Gray {
	rng := rand.New(rand.NewSource(seed))
	const block = 5
	bw := (w + block - 1) / block
	bh := (h + block - 1) / block
	levels := make([]float64, bw*bh)
	for i := range levels {
		levels[i] = rng.Float64()
	}
	g := imaging.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, levels[(y/block)*bw+x/block])
		}
	}
	return g
}

// sceneWindow cuts a w x h RGB view of the scene starting at column x0.
func sceneWindow(scene *imaging.Gray, x0, w, h int) *imaging.RGB {
	img := imaging.NewRGB(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := scene.At(x0+x, y)
			img.R.Set(x, y, v)
			img.G.Set(x, y, v)
			img.B.Set(x, y, v)
		}
	}
	return img
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Detector.ArcLength = 9
	opts.Estimate.Seed = 1
	return opts
}

func TestStitchTooFewImages(t *testing.T) {
	s := New(nil, nil)
	_, err := s.Stitch(context.Background(), []*imaging.RGB{imaging.NewRGB(10, 10)}, DefaultOptions())
	if !errors.Is(err, ErrTooFewImages) {
		t.Fatalf("expected ErrTooFewImages, got %v", err)
	}
}

func TestStitchFeaturelessImages(t *testing.T) {
	flat := imaging.NewRGB(50, 50)
	for _, p := range flat.Planes() {
		p.Fill(0.5)
	}
	s := New(nil, nil)
	_, err := s.Stitch(context.Background(), []*imaging.RGB{flat, flat.Clone()}, DefaultOptions())
	if !errors.Is(err, ErrTooFewMatches) {
		t.Fatalf("expected ErrTooFewMatches, got %v", err)
	}
}

func TestStitchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(nil, nil)
	imgs := []*imaging.RGB{imaging.NewRGB(20, 20), imaging.NewRGB(20, 20)}
	if _, err := s.Stitch(ctx, imgs, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStitchTranslatedPair(t *testing.T) {
	scene := blockScene(140, 100, 21)
	img1 := sceneWindow(scene, 0, 100, 100)
	img2 := sceneWindow(scene, 20, 100, 100)

	s := New(nil, nil)
	res, err := s.Stitch(context.Background(), []*imaging.RGB{img1, img2}, testOptions())
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}

	pano := res.Panorama
	if pano.W() < 118 || pano.W() > 122 {
		t.Fatalf("panorama width %d, want about 120", pano.W())
	}
	if pano.H() < 98 || pano.H() > 102 {
		t.Fatalf("panorama height %d, want about 100", pano.H())
	}

	// Inside the overlap both contributions are identical, so blending
	// must reproduce the scene exactly.
	for _, pt := range [][2]int{{30, 30}, {50, 50}, {70, 80}, {90, 10}} {
		want := scene.At(pt[0], pt[1])
		got := pano.R.At(pt[0], pt[1])
		if math.Abs(got-want) > 1e-6 {
			t.Fatalf("pixel (%d, %d): got %v, want %v", pt[0], pt[1], got, want)
		}
	}

	if res.Stats.ImageCount != 2 {
		t.Fatalf("image count %d, want 2", res.Stats.ImageCount)
	}
	if res.Stats.AvgFeatureCount < 4 {
		t.Fatalf("too few features: %v", res.Stats.AvgFeatureCount)
	}
	if res.Stats.AvgMatchCount < 4 {
		t.Fatalf("too few matches: %v", res.Stats.AvgMatchCount)
	}
	if res.Stats.AvgInlierRatio < 0.5 {
		t.Fatalf("inlier ratio %v too low", res.Stats.AvgInlierRatio)
	}
}

func TestStitchThreeImages(t *testing.T) {
	scene := blockScene(160, 100, 8)
	imgs := []*imaging.RGB{
		sceneWindow(scene, 0, 100, 100),
		sceneWindow(scene, 20, 100, 100),
		sceneWindow(scene, 40, 100, 100),
	}

	s := New(nil, nil)
	res, err := s.Stitch(context.Background(), imgs, testOptions())
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	// Content spans 140 columns; padding and cropping leave slack.
	if res.Panorama.W() < 130 || res.Panorama.W() > 155 {
		t.Fatalf("panorama width %d, want roughly 140", res.Panorama.W())
	}
	if res.Stats.ImageCount != 3 {
		t.Fatalf("image count %d, want 3", res.Stats.ImageCount)
	}
}

func TestBatchContinuesPastFailures(t *testing.T) {
	scene := blockScene(140, 80, 4)
	good := ImageSet{
		Name: "good",
		Images: []*imaging.RGB{
			sceneWindow(scene, 0, 100, 80),
			sceneWindow(scene, 20, 100, 80),
		},
	}
	flat := imaging.NewRGB(50, 50)
	bad := ImageSet{Name: "bad", Images: []*imaging.RGB{flat, flat.Clone()}}
	short := ImageSet{Name: "short", Images: []*imaging.RGB{flat}}

	s := New(nil, nil)
	results := s.Batch(context.Background(), []ImageSet{good, bad, short}, testOptions())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Failed() {
		t.Fatalf("good set failed: %v", results[0].Err)
	}
	if !results[1].Failed() || results[1].Reason() != "match" {
		t.Fatalf("bad set: failed=%v reason=%q", results[1].Failed(), results[1].Reason())
	}
	if !results[2].Failed() || results[2].Reason() != "input" {
		t.Fatalf("short set: failed=%v reason=%q", results[2].Failed(), results[2].Reason())
	}
}
