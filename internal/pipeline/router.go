package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"panostitch/internal/compositor"
	"panostitch/internal/config"
	"panostitch/internal/features"
	"panostitch/internal/imaging"
	"panostitch/internal/imgio"
	"panostitch/internal/stitcher"
	"panostitch/internal/storage"
)

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log     *slog.Logger
	store   *storage.Store
	cfg     *config.Stitch
	loadSet loadSetFunc
	load    loadFunc
	save    saveFunc
	stitch  stitchFunc
	rawConv rawConvertFunc
}

type loadSetFunc func(dir string, maxDim int) ([]*imaging.RGB, []string, error)

type loadFunc func(path string) (*imaging.RGB, error)

type saveFunc func(img *imaging.RGB, path string) error

type stitchFunc func(ctx context.Context, images []*imaging.RGB, opts stitcher.Options) (*stitcher.Result, error)

type rawConvertFunc func(ctx context.Context, inputDir, outputDir string) ([]string, error)

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Stitch) Processor {
	st := stitcher.New(nil, logger)
	return &router{
		log:     logger,
		store:   store,
		cfg:     cfg,
		loadSet: imgio.LoadDirectory,
		load:    imgio.Load,
		save:    imgio.Save,
		stitch:  st.Stitch,
		rawConv: func(ctx context.Context, in, out string) ([]string, error) {
			return imgio.ConvertRAWBatch(ctx, in, out, logger)
		},
	}
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobStitch:
		return r.handleStitch(ctx, job)
	case JobDetect:
		return r.handleDetect(ctx, job)
	case JobRaw:
		return r.handleRaw(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleStitch(ctx context.Context, job Job) Result {
	opts, err := StitchOptions(r.cfg, job.Options)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	maxDim := getIntOption(job.Options, "maxWorkDim")
	if maxDim == 0 && r.cfg != nil {
		maxDim = r.cfg.MaxWorkDim
	}
	images, names, err := r.loadSet(job.InputPath, maxDim)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	r.log.Info("loaded image set", "dir", job.InputPath, "count", len(images))

	res, err := r.stitch(ctx, images, opts)
	if err != nil {
		return Result{Job: job, Error: err, Meta: map[string]any{"images": names}}
	}

	output := job.Output
	if output == "" {
		output = filepath.Join(job.InputPath, "panorama.png")
	}
	if err := r.save(res.Panorama, output); err != nil {
		return Result{Job: job, Error: err}
	}

	meta := map[string]any{
		"output":          output,
		"width":           res.Panorama.W(),
		"height":          res.Panorama.H(),
		"imageCount":      res.Stats.ImageCount,
		"avgFeatureCount": res.Stats.AvgFeatureCount,
		"avgMatchCount":   res.Stats.AvgMatchCount,
		"avgInlierRatio":  res.Stats.AvgInlierRatio,
		"blend":           string(opts.Blend),
	}
	return Result{
		Job:  job,
		Meta: meta,
		Stats: &storage.StatsRecord{
			JobID:           job.ID,
			ImageCount:      res.Stats.ImageCount,
			AvgFeatureCount: res.Stats.AvgFeatureCount,
			AvgMatchCount:   res.Stats.AvgMatchCount,
			AvgInlierRatio:  res.Stats.AvgInlierRatio,
		},
	}
}

func (r *router) handleDetect(ctx context.Context, job Job) Result {
	opts, err := StitchOptions(r.cfg, job.Options)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	img, err := r.load(job.InputPath)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	corners := features.Detect(img.Grayscale(), opts.Detector)

	meta := map[string]any{
		"corners":  len(corners),
		"detector": string(opts.Detector.Kind),
		"width":    img.W(),
		"height":   img.H(),
	}
	if job.Output != "" {
		marked := markCorners(img, corners)
		if err := r.save(marked, job.Output); err != nil {
			return Result{Job: job, Error: err, Meta: meta}
		}
		meta["output"] = job.Output
	}
	return Result{Job: job, Meta: meta}
}

func (r *router) handleRaw(ctx context.Context, job Job) Result {
	outputDir := job.Output
	if outputDir == "" {
		outputDir = job.InputPath
	}
	converted, err := r.rawConv(ctx, job.InputPath, outputDir)
	meta := map[string]any{
		"converted": len(converted),
		"outputDir": outputDir,
	}
	return Result{Job: job, Error: err, Meta: meta}
}

// markCorners draws a small red marker over every detected corner.
func markCorners(img *imaging.RGB, corners []features.Keypoint) *imaging.RGB {
	out := img.Clone()
	planes := out.Planes()
	for _, kp := range corners {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				x, y := kp.X+dx, kp.Y+dy
				if x < 0 || y < 0 || x >= out.W() || y >= out.H() {
					continue
				}
				planes[0].Set(x, y, 1)
				planes[1].Set(x, y, 0)
				planes[2].Set(x, y, 0)
			}
		}
	}
	return out
}

// StitchOptions builds the per-call stitching options from the config
// defaults, applying any per-job overrides.
func StitchOptions(cfg *config.Stitch, overrides map[string]any) (stitcher.Options, error) {
	opts := stitcher.DefaultOptions()

	if cfg != nil {
		kind, err := parseDetectorKind(cfg.Detector)
		if err != nil {
			return opts, err
		}
		opts.Detector.Kind = kind
		if cfg.FastThreshold > 0 {
			opts.Detector.Threshold = cfg.FastThreshold
		}
		if cfg.FastArcLength > 0 {
			opts.Detector.ArcLength = cfg.FastArcLength
		}
		if cfg.HarrisThreshold > 0 {
			opts.Detector.HarrisThreshold = cfg.HarrisThreshold
		}
		if cfg.MatchRatio > 0 {
			opts.Match.MaxRatio = cfg.MatchRatio
		}
		if cfg.MatchCutoff > 0 {
			opts.Match.MaxDistance = cfg.MatchCutoff
		}
		if cfg.RansacMaxTrials > 0 {
			opts.Estimate.MaxTrials = cfg.RansacMaxTrials
		}
		if cfg.RansacConfid > 0 {
			opts.Estimate.Confidence = cfg.RansacConfid
		}
		blend, err := compositor.ParseBlendMethod(cfg.BlendMethod)
		if err != nil {
			return opts, err
		}
		opts.Blend = blend
	}

	if s, ok := overrides["detector"].(string); ok && s != "" {
		kind, err := parseDetectorKind(s)
		if err != nil {
			return opts, err
		}
		opts.Detector.Kind = kind
	}
	if v := getFloat64Option(overrides, "fastThreshold"); v > 0 {
		opts.Detector.Threshold = v
	}
	if v := getIntOption(overrides, "arcLength"); v > 0 {
		opts.Detector.ArcLength = v
	}
	if v := getFloat64Option(overrides, "harrisThreshold"); v > 0 {
		opts.Detector.HarrisThreshold = v
	}
	if v := getFloat64Option(overrides, "matchRatio"); v > 0 {
		opts.Match.MaxRatio = v
	}
	if v := getFloat64Option(overrides, "matchCutoff"); v > 0 {
		opts.Match.MaxDistance = v
	}
	if v := getIntOption(overrides, "maxTrials"); v > 0 {
		opts.Estimate.MaxTrials = v
	}
	if v := getIntOption(overrides, "seed"); v != 0 {
		opts.Estimate.Seed = int64(v)
	}
	if s, ok := overrides["blend"].(string); ok && s != "" {
		blend, err := compositor.ParseBlendMethod(s)
		if err != nil {
			return opts, err
		}
		opts.Blend = blend
	}
	return opts, nil
}

func parseDetectorKind(s string) (features.DetectorKind, error) {
	switch features.DetectorKind(s) {
	case features.DetectorFAST, features.DetectorFASTR:
		return features.DetectorKind(s), nil
	case "":
		return features.DetectorFAST, nil
	}
	return "", fmt.Errorf("unknown detector %q", s)
}

// Helper functions to safely extract typed options from job.Options map
func getFloat64Option(options map[string]any, key string) float64 {
	switch v := options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0.0
}

func getIntOption(options map[string]any, key string) int {
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
