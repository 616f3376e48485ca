package imgio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/gographics/imagick.v3/imagick"

	"panostitch/internal/fsutil"
)

// ConvertRAW decodes a camera RAW file through ImageMagick and writes
// it as a 16-bit TIFF next to the requested output path.
func ConvertRAW(inputFile, outputFile string) error {
	if _, err := os.Stat(inputFile); err != nil {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(inputFile); err != nil {
		return fmt.Errorf("failed to read RAW file: %v", err)
	}

	// Strip EXIF, including orientation, so downstream alignment sees
	// the pixels as stored.
	if err := mw.StripImage(); err != nil {
		return fmt.Errorf("failed to strip metadata: %v", err)
	}
	if err := mw.SetImageFormat("TIFF"); err != nil {
		return fmt.Errorf("failed to set output format: %v", err)
	}
	if err := mw.SetImageDepth(16); err != nil {
		return fmt.Errorf("failed to set image depth: %v", err)
	}
	if err := mw.WriteImage(outputFile); err != nil {
		return fmt.Errorf("failed to write TIFF: %v", err)
	}
	return nil
}

// ConvertRAWBatch converts every RAW file directly under inputDir into
// a TIFF in outputDir, returning the written paths. Conversion stops
// on context cancellation; individual failures are logged and skipped.
func ConvertRAWBatch(ctx context.Context, inputDir, outputDir string, log *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", inputDir, err)
	}

	imagick.Initialize()
	defer imagick.Terminate()

	var converted []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(inputDir, e.Name())
		if !fsutil.IsRAWFile(path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return converted, err
		}

		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		outPath := filepath.Join(outputDir, base+".tiff")
		if err := ConvertRAW(path, outPath); err != nil {
			log.Warn("raw conversion failed", "file", path, "error", err)
			continue
		}
		log.Debug("raw converted", "file", path, "output", outPath)
		converted = append(converted, outPath)
	}
	if len(converted) == 0 {
		return nil, fmt.Errorf("no RAW files converted in %s", inputDir)
	}
	return converted, nil
}
