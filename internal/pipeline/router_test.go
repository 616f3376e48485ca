package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"panostitch/internal/config"
	"panostitch/internal/features"
	"panostitch/internal/imaging"
	"panostitch/internal/stitcher"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testImages(n int) []*imaging.RGB {
	imgs := make([]*imaging.RGB, n)
	for i := range imgs {
		imgs[i] = imaging.NewRGB(10, 10)
	}
	return imgs
}

func TestProcessUnknownJobType(t *testing.T) {
	r := &router{log: testLogger()}
	res := r.Process(context.Background(), Job{ID: "j1", Type: JobType("transcode")})
	if res.Error == nil || !strings.Contains(res.Error.Error(), "unknown job type") {
		t.Fatalf("expected unknown job type error, got %v", res.Error)
	}
}

func TestHandleStitchSuccess(t *testing.T) {
	var savedPath string
	r := &router{
		log: testLogger(),
		loadSet: func(dir string, maxDim int) ([]*imaging.RGB, []string, error) {
			return testImages(3), []string{"a.png", "b.png", "c.png"}, nil
		},
		stitch: func(ctx context.Context, images []*imaging.RGB, opts stitcher.Options) (*stitcher.Result, error) {
			return &stitcher.Result{
				Panorama: imaging.NewRGB(120, 100),
				Stats: stitcher.Stats{
					ImageCount:      len(images),
					AvgFeatureCount: 210,
					AvgMatchCount:   80,
					AvgInlierRatio:  0.92,
				},
			}, nil
		},
		save: func(img *imaging.RGB, path string) error {
			savedPath = path
			return nil
		},
	}

	res := r.Process(context.Background(), Job{ID: "j2", Type: JobStitch, InputPath: "/sets/alps"})
	if res.Error != nil {
		t.Fatalf("Process: %v", res.Error)
	}
	want := filepath.Join("/sets/alps", "panorama.png")
	if savedPath != want {
		t.Fatalf("saved to %q, want %q", savedPath, want)
	}
	if res.Meta["width"] != 120 || res.Meta["height"] != 100 {
		t.Fatalf("meta size %v x %v, want 120 x 100", res.Meta["width"], res.Meta["height"])
	}
	if res.Meta["imageCount"] != 3 {
		t.Fatalf("meta imageCount = %v, want 3", res.Meta["imageCount"])
	}
	if res.Stats == nil {
		t.Fatalf("expected a stats record")
	}
	if res.Stats.JobID != "j2" || res.Stats.AvgInlierRatio != 0.92 {
		t.Fatalf("stats record %+v", res.Stats)
	}
}

func TestHandleStitchRespectsExplicitOutput(t *testing.T) {
	var savedPath string
	r := &router{
		log: testLogger(),
		loadSet: func(dir string, maxDim int) ([]*imaging.RGB, []string, error) {
			return testImages(2), []string{"a.png", "b.png"}, nil
		},
		stitch: func(ctx context.Context, images []*imaging.RGB, opts stitcher.Options) (*stitcher.Result, error) {
			return &stitcher.Result{Panorama: imaging.NewRGB(10, 10)}, nil
		},
		save: func(img *imaging.RGB, path string) error {
			savedPath = path
			return nil
		},
	}
	res := r.Process(context.Background(), Job{ID: "j3", Type: JobStitch, InputPath: "/in", Output: "/out/pano.tif"})
	if res.Error != nil {
		t.Fatalf("Process: %v", res.Error)
	}
	if savedPath != "/out/pano.tif" {
		t.Fatalf("saved to %q, want /out/pano.tif", savedPath)
	}
}

func TestHandleStitchLoadFailure(t *testing.T) {
	loadErr := errors.New("no images found")
	r := &router{
		log: testLogger(),
		loadSet: func(dir string, maxDim int) ([]*imaging.RGB, []string, error) {
			return nil, nil, loadErr
		},
	}
	res := r.Process(context.Background(), Job{ID: "j4", Type: JobStitch, InputPath: "/empty"})
	if !errors.Is(res.Error, loadErr) {
		t.Fatalf("expected load error, got %v", res.Error)
	}
}

func TestHandleStitchStitchFailure(t *testing.T) {
	r := &router{
		log: testLogger(),
		loadSet: func(dir string, maxDim int) ([]*imaging.RGB, []string, error) {
			return testImages(2), []string{"a.png", "b.png"}, nil
		},
		stitch: func(ctx context.Context, images []*imaging.RGB, opts stitcher.Options) (*stitcher.Result, error) {
			return nil, stitcher.ErrTooFewMatches
		},
	}
	res := r.Process(context.Background(), Job{ID: "j5", Type: JobStitch, InputPath: "/in"})
	if !errors.Is(res.Error, stitcher.ErrTooFewMatches) {
		t.Fatalf("expected stitch error, got %v", res.Error)
	}
	if names, ok := res.Meta["images"].([]string); !ok || len(names) != 2 {
		t.Fatalf("failure meta should carry the image names, got %v", res.Meta["images"])
	}
}

func TestHandleDetect(t *testing.T) {
	// An isolated bright pixel is a guaranteed segment-test corner.
	img := imaging.NewRGB(32, 32)
	img.R.Set(16, 16, 1)
	img.G.Set(16, 16, 1)
	img.B.Set(16, 16, 1)

	var savedPath string
	var saved *imaging.RGB
	r := &router{
		log: testLogger(),
		load: func(path string) (*imaging.RGB, error) {
			return img, nil
		},
		save: func(out *imaging.RGB, path string) error {
			savedPath = path
			saved = out
			return nil
		},
	}

	res := r.Process(context.Background(), Job{ID: "j6", Type: JobDetect, InputPath: "/in/a.png", Output: "/out/marked.png"})
	if res.Error != nil {
		t.Fatalf("Process: %v", res.Error)
	}
	corners, ok := res.Meta["corners"].(int)
	if !ok || corners < 1 {
		t.Fatalf("expected at least one corner, got %v", res.Meta["corners"])
	}
	if savedPath != "/out/marked.png" {
		t.Fatalf("overlay saved to %q", savedPath)
	}
	if saved.R.At(16, 16) != 1 || saved.G.At(16, 16) != 0 {
		t.Fatalf("overlay should mark the corner in red")
	}
	// The input image itself stays untouched.
	if img.G.At(16, 16) != 1 {
		t.Fatalf("detect must not mutate its input")
	}
}

func TestHandleRawDefaultsOutputDir(t *testing.T) {
	var gotIn, gotOut string
	r := &router{
		log: testLogger(),
		rawConv: func(ctx context.Context, inputDir, outputDir string) ([]string, error) {
			gotIn, gotOut = inputDir, outputDir
			return []string{"a.tif", "b.tif"}, nil
		},
	}
	res := r.Process(context.Background(), Job{ID: "j7", Type: JobRaw, InputPath: "/raws"})
	if res.Error != nil {
		t.Fatalf("Process: %v", res.Error)
	}
	if gotIn != "/raws" || gotOut != "/raws" {
		t.Fatalf("raw conversion dirs: in=%q out=%q", gotIn, gotOut)
	}
	if res.Meta["converted"] != 2 {
		t.Fatalf("meta converted = %v, want 2", res.Meta["converted"])
	}
}

func TestStitchOptionsFromConfig(t *testing.T) {
	cfg := &config.Stitch{
		Detector:        "fastr",
		FastThreshold:   0.2,
		FastArcLength:   10,
		HarrisThreshold: 0.01,
		MatchRatio:      0.8,
		MatchCutoff:     0.95,
		RansacMaxTrials: 500,
		BlendMethod:     "multiband",
	}
	opts, err := StitchOptions(cfg, nil)
	if err != nil {
		t.Fatalf("StitchOptions: %v", err)
	}
	if opts.Detector.Kind != features.DetectorFASTR {
		t.Fatalf("detector %q, want fastr", opts.Detector.Kind)
	}
	if opts.Detector.Threshold != 0.2 || opts.Detector.ArcLength != 10 {
		t.Fatalf("detector opts %+v", opts.Detector)
	}
	if opts.Match.MaxRatio != 0.8 || opts.Match.MaxDistance != 0.95 {
		t.Fatalf("match opts %+v", opts.Match)
	}
	if opts.Estimate.MaxTrials != 500 {
		t.Fatalf("max trials %d, want 500", opts.Estimate.MaxTrials)
	}
	if string(opts.Blend) != "multiband" {
		t.Fatalf("blend %q, want multiband", opts.Blend)
	}
}

func TestStitchOptionsOverridesWinOverConfig(t *testing.T) {
	cfg := &config.Stitch{Detector: "fast", FastThreshold: 0.1, BlendMethod: "linear"}
	overrides := map[string]any{
		"detector":      "fastr",
		"fastThreshold": 0.3,
		"arcLength":     9,
		"maxTrials":     float64(100), // JSON numbers decode as float64
		"seed":          7,
		"blend":         "none",
	}
	opts, err := StitchOptions(cfg, overrides)
	if err != nil {
		t.Fatalf("StitchOptions: %v", err)
	}
	if opts.Detector.Kind != features.DetectorFASTR || opts.Detector.Threshold != 0.3 {
		t.Fatalf("detector override not applied: %+v", opts.Detector)
	}
	if opts.Detector.ArcLength != 9 {
		t.Fatalf("arc length %d, want 9", opts.Detector.ArcLength)
	}
	if opts.Estimate.MaxTrials != 100 || opts.Estimate.Seed != 7 {
		t.Fatalf("estimate override not applied: %+v", opts.Estimate)
	}
	if string(opts.Blend) != "none" {
		t.Fatalf("blend %q, want none", opts.Blend)
	}
}

func TestStitchOptionsRejectsUnknownNames(t *testing.T) {
	if _, err := StitchOptions(&config.Stitch{Detector: "sift"}, nil); err == nil {
		t.Fatalf("unknown detector should error")
	}
	if _, err := StitchOptions(nil, map[string]any{"blend": "poisson"}); err == nil {
		t.Fatalf("unknown blend should error")
	}
}
