package main

import (
	"context"
	"fmt"
	"os"

	"panostitch/internal/cli"
	"panostitch/internal/config"
	"panostitch/internal/logging"
	"panostitch/internal/pipeline"
	"panostitch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Logging.FileOutput {
		if l, err := logging.Setup(cfg); err == nil {
			log = l
		} else {
			log.Warn("file logging unavailable", "error", err)
		}
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		log.Warn("storage unavailable, continuing without persistence", "error", err)
		store = nil
	}
	defer store.Close()

	pipe := pipeline.New(context.Background(), cfg.Processing.ParallelJobs, log, store, &cfg.Stitch)
	defer pipe.Stop()

	rootCmd := cli.NewRootCmd(cfg, log, store, pipe)
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}
