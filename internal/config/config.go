// Package config loads user-editable settings from a JSON file,
// falling back to sensible defaults when none exists.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/panostitch/config.json"
	defaultParallel   = 4
)

// Config holds user-editable settings for the stitching pipeline.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Stitch     Stitch     `json:"stitch"`
	Server     Server     `json:"server"`
	Watch      Watch      `json:"watch"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int    `json:"parallel_jobs"`
	TempDir      string `json:"temp_dir"`
}

// Logging controls verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // text, json
	FileOutput bool   `json:"file_output"`
	LogDir     string `json:"log_dir"`
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string `json:"default_input"`
	DefaultOutput string `json:"default_output"`
	DatabasePath  string `json:"database_path"`
}

// Stitch configures the stitching core. These map one-to-one onto the
// per-call options value handed to the stitcher.
type Stitch struct {
	Detector        string  `json:"detector"` // fast, fastr
	FastThreshold   float64 `json:"fast_threshold"`
	FastArcLength   int     `json:"fast_arc_length"`
	HarrisThreshold float64 `json:"harris_threshold"`
	MatchRatio      float64 `json:"match_ratio"`
	MatchCutoff     float64 `json:"match_cutoff"`
	RansacMaxTrials int     `json:"ransac_max_trials"`
	RansacConfid    float64 `json:"ransac_confidence"`
	BlendMethod     string  `json:"blend_method"` // none, linear, multiband
	MaxWorkDim      int     `json:"max_work_dim"` // loader-side downscale bound, 0 = off
}

// Server configures the HTTP API.
type Server struct {
	Addr string `json:"addr"`
}

// Watch configures folder ingestion.
type Watch struct {
	IncomingDir  string `json:"incoming_dir"`
	SettleMillis int    `json:"settle_millis"` // quiet period before a set is submitted
}

// Load reads configuration from disk, falling back to defaults.
func Load() (*Config, error) {
	cfg := Default()

	configPath := os.Getenv("PANOSTITCH_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
			TempDir:      os.TempDir(),
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			LogDir: "./logs",
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "panostitch.db"),
		},
		Stitch: Stitch{
			Detector:        "fastr",
			FastThreshold:   0.1,
			FastArcLength:   12,
			HarrisThreshold: 0.005,
			MatchRatio:      0.75,
			MatchCutoff:     0.9,
			RansacMaxTrials: 2000,
			RansacConfid:    0.995,
			BlendMethod:     "linear",
		},
		Server: Server{
			Addr: ":8632",
		},
		Watch: Watch{
			SettleMillis: 2000,
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
