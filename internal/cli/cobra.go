package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panostitch/internal/config"
	"panostitch/internal/pipeline"
	"panostitch/internal/storage"
	"panostitch/internal/watch"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "panostitch",
		Short: "Panostitch aligns and blends overlapping photos into panoramas",
		Long: `Panostitch detects corners, matches features, estimates homographies
and composites overlapping photos into a single panorama.`,
	}

	rootCmd.AddCommand(newStitchCmd(root))
	rootCmd.AddCommand(newDetectCmd(root))
	rootCmd.AddCommand(newRawCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newJobsCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newStitchCmd(root *Root) *cobra.Command {
	var (
		output          string
		blending        string
		detector        string
		fastThreshold   float64
		harrisThreshold float64
		arcLength       int
		matchRatio      float64
		matchCutoff     float64
		maxTrials       int
		seed            int
		maxWorkDim      int
	)

	cmd := &cobra.Command{
		Use:   "stitch <input_directory> [output_path]",
		Short: "Stitch a directory of overlapping photos into a panorama",
		Long: `Stitch the images in a directory, ordered by file name, into one
panorama. Adjacent images must overlap enough to share matched corners.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if len(args) > 1 {
				output = args[1]
			}

			job := pipeline.Job{
				ID:        pipeline.NewJobID("stitch"),
				Type:      pipeline.JobStitch,
				InputPath: input,
				Output:    output,
				Options: map[string]any{
					"blend":           blending,
					"detector":        detector,
					"fastThreshold":   fastThreshold,
					"harrisThreshold": harrisThreshold,
					"arcLength":       arcLength,
					"matchRatio":      matchRatio,
					"matchCutoff":     matchCutoff,
					"maxTrials":       maxTrials,
					"seed":            seed,
					"maxWorkDim":      maxWorkDim,
					"source":          "cli",
				},
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <input>/panorama.png)")
	cmd.Flags().StringVarP(&blending, "blending", "b", "", "blending method (none|linear|multiband)")
	cmd.Flags().StringVar(&detector, "detector", "", "corner detector (fast|fastr)")
	cmd.Flags().Float64Var(&fastThreshold, "fast-threshold", 0, "FAST intensity threshold (0-1)")
	cmd.Flags().Float64Var(&harrisThreshold, "harris-threshold", 0, "Harris response threshold for fastr")
	cmd.Flags().IntVar(&arcLength, "arc-length", 0, "required contiguous arc length (9-12)")
	cmd.Flags().Float64Var(&matchRatio, "match-ratio", 0, "nearest neighbour ratio cutoff")
	cmd.Flags().Float64Var(&matchCutoff, "match-cutoff", 0, "absolute descriptor distance cutoff")
	cmd.Flags().IntVar(&maxTrials, "max-trials", 0, "RANSAC trial budget")
	cmd.Flags().IntVar(&seed, "seed", 0, "RANSAC random seed (0 = time-based)")
	cmd.Flags().IntVar(&maxWorkDim, "max-dim", 0, "downscale inputs above this size (0 = off)")

	return cmd
}

func newDetectCmd(root *Root) *cobra.Command {
	var (
		output          string
		detector        string
		fastThreshold   float64
		harrisThreshold float64
		arcLength       int
	)

	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect corners in a single image",
		Long: `Run the corner detector over one image and report the corner
count. With --output, writes a copy with the corners marked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        pipeline.NewJobID("detect"),
				Type:      pipeline.JobDetect,
				InputPath: args[0],
				Output:    output,
				Options: map[string]any{
					"detector":        detector,
					"fastThreshold":   fastThreshold,
					"harrisThreshold": harrisThreshold,
					"arcLength":       arcLength,
					"source":          "cli",
				},
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write an overlay image with corners marked")
	cmd.Flags().StringVar(&detector, "detector", "", "corner detector (fast|fastr)")
	cmd.Flags().Float64Var(&fastThreshold, "fast-threshold", 0, "FAST intensity threshold (0-1)")
	cmd.Flags().Float64Var(&harrisThreshold, "harris-threshold", 0, "Harris response threshold for fastr")
	cmd.Flags().IntVar(&arcLength, "arc-length", 0, "required contiguous arc length (9-12)")

	return cmd
}

func newRawCmd(root *Root) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "raw <input_directory>",
		Short: "Convert RAW camera files to TIFF for stitching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        pipeline.NewJobID("raw"),
				Type:      pipeline.JobRaw,
				InputPath: args[0],
				Output:    output,
				Options:   map[string]any{"source": "cli"},
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default alongside inputs)")
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start an HTTP server exposing job submission, history, statistics
and live result streaming over SSE and WebSocket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root.log.Info("starting server", "addr", addr)
			return root.serveFn(ctx, addr, root.store, root.pipeline, root.log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", root.cfg.Server.Addr, "server address (host:port)")
	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		outDir   string
		settleMs int
		blending string
	)

	cmd := &cobra.Command{
		Use:   "watch <incoming_directory>",
		Short: "Watch a directory and stitch arriving image sets",
		Long: `Monitor a directory for incoming images. Once no new image has
arrived for the settle period, the directory is stitched as one set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if settleMs <= 0 {
				settleMs = root.cfg.Watch.SettleMillis
			}
			options := map[string]any{"source": "watch"}
			if blending != "" {
				options["blend"] = blending
			}

			realPipe, ok := root.pipeline.(*pipeline.Pipeline)
			if !ok {
				return fmt.Errorf("pipeline unavailable for watch mode")
			}
			w := watch.New(args[0], outDir, time.Duration(settleMs)*time.Millisecond, realPipe, options, root.log)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "directory for finished panoramas")
	cmd.Flags().IntVar(&settleMs, "settle-ms", 0, "quiet period before stitching, in milliseconds")
	cmd.Flags().StringVarP(&blending, "blending", "b", "", "blending method (none|linear|multiband)")

	return cmd
}

func newJobsCmd(root *Root) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := root.store.RecentJobs(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no jobs recorded")
				return nil
			}
			for _, rec := range recs {
				line := fmt.Sprintf("%-40s %-8s %-10s %s", rec.ID, rec.JobType, rec.Status, rec.InputPath)
				if rec.Error != "" {
					line += "  error: " + rec.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of jobs to show")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate panostitch configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			fmt.Printf("Configuration:\n\n")
			fmt.Printf("Database Path: %s\n", cfg.Paths.DatabasePath)
			fmt.Printf("Default Output: %s\n", cfg.Paths.DefaultOutput)
			fmt.Printf("Parallel Jobs: %d\n", cfg.Processing.ParallelJobs)
			fmt.Printf("Log Level: %s\n", cfg.Logging.Level)
			fmt.Printf("Log Format: %s\n", cfg.Logging.Format)
			fmt.Printf("Detector: %s\n", cfg.Stitch.Detector)
			fmt.Printf("FAST Threshold: %g\n", cfg.Stitch.FastThreshold)
			fmt.Printf("Arc Length: %d\n", cfg.Stitch.FastArcLength)
			fmt.Printf("Harris Threshold: %g\n", cfg.Stitch.HarrisThreshold)
			fmt.Printf("Match Ratio: %g\n", cfg.Stitch.MatchRatio)
			fmt.Printf("Match Cutoff: %g\n", cfg.Stitch.MatchCutoff)
			fmt.Printf("RANSAC Trials: %d\n", cfg.Stitch.RansacMaxTrials)
			fmt.Printf("Blend Method: %s\n", cfg.Stitch.BlendMethod)
			fmt.Printf("Server Addr: %s\n", cfg.Server.Addr)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := pipeline.StitchOptions(&root.cfg.Stitch, nil); err != nil {
				return fmt.Errorf("invalid stitch configuration: %w", err)
			}
			root.log.Info("configuration validation", "status", "valid")
			fmt.Println("Configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Panostitch v1.0.0")
		},
	}
}
