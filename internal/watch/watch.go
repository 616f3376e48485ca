// Package watch monitors an incoming directory and submits a stitch
// job once a set of images has settled.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"panostitch/internal/fsutil"
	"panostitch/internal/pipeline"
)

// Watcher observes one directory for arriving images. After the
// settle period passes with no further writes, the directory is
// submitted as one stitch job.
type Watcher struct {
	dir     string
	settle  time.Duration
	outDir  string
	pipe    *pipeline.Pipeline
	log     *slog.Logger
	options map[string]any
}

// New creates a Watcher over dir. A non-positive settle falls back to
// two seconds.
func New(dir, outDir string, settle time.Duration, pipe *pipeline.Pipeline, options map[string]any, log *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		dir:     dir,
		settle:  settle,
		outDir:  outDir,
		pipe:    pipe,
		log:     log,
		options: options,
	}
}

// Run blocks until ctx is cancelled, submitting one stitch job per
// settled burst of image arrivals.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching directory", "dir", w.dir, "settle", w.settle)

	// The timer is armed by the first relevant event and re-armed by
	// each subsequent one; it fires only after a quiet period.
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !fsutil.IsImageFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			w.log.Debug("image event", "file", filepath.Base(event.Name), "op", event.Op.String())
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.settle)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			w.submit(pending)
			pending = make(map[string]struct{})
		}
	}
}

// submit turns one settled burst into jobs. RAW arrivals trigger a
// conversion job; the TIFFs it writes land in the same directory and
// re-arm the watcher, so the stitch follows in the next cycle.
func (w *Watcher) submit(pending map[string]struct{}) {
	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	raws, processed := fsutil.SeparateRAWAndProcessed(files)

	if len(raws) > 0 {
		job := pipeline.Job{
			ID:        pipeline.NewJobID("raw"),
			Type:      pipeline.JobRaw,
			InputPath: w.dir,
		}
		if err := w.pipe.Submit(job); err != nil {
			w.log.Error("failed to submit raw job", "error", err)
		} else {
			w.log.Info("submitted raw conversion", "id", job.ID, "raw_files", len(raws))
		}
		return
	}

	job := pipeline.Job{
		ID:        pipeline.NewJobID("stitch"),
		Type:      pipeline.JobStitch,
		InputPath: w.dir,
		Output:    w.outputPath(),
		Options:   w.options,
	}
	if err := w.pipe.Submit(job); err != nil {
		w.log.Error("failed to submit watch job", "error", err)
		return
	}
	w.log.Info("submitted stitch job", "id", job.ID, "new_files", len(processed))
}

func (w *Watcher) outputPath() string {
	if w.outDir == "" {
		return ""
	}
	name := time.Now().UTC().Format("panorama-20060102T150405.png")
	return filepath.Join(w.outDir, name)
}
