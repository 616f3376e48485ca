// Package imgio bridges on-disk image files and the in-memory float
// planes the stitching core works on.
package imgio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"panostitch/internal/fsutil"
	"panostitch/internal/imaging"
)

const jpegQuality = 92

// Load decodes the image at path into float planes in [0, 1].
func Load(path string) (*imaging.RGB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var src image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		src, err = tiff.Decode(f)
	case ".bmp":
		src, err = bmp.Decode(f)
	default:
		src, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(src), nil
}

// LoadDirectory loads every supported image directly under dir, sorted
// by file name. RAW files are skipped; convert them first. When maxDim
// is positive, images larger than maxDim on either side are scaled
// down proportionally.
func LoadDirectory(dir string, maxDim int) ([]*imaging.RGB, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !fsutil.IsImageFile(path) || fsutil.IsRAWFile(path) {
			continue
		}
		names = append(names, path)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no images in %s", dir)
	}

	images := make([]*imaging.RGB, 0, len(names))
	for _, name := range names {
		img, err := Load(name)
		if err != nil {
			return nil, nil, err
		}
		if maxDim > 0 {
			img = FitWithin(img, maxDim)
		}
		images = append(images, img)
	}
	return images, names, nil
}

// Save encodes img to path, choosing the format by extension. PNG is
// the fallback for unknown extensions.
func Save(img *imaging.RGB, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	out := ToImage(img)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, out, &jpeg.Options{Quality: jpegQuality})
	case ".tif", ".tiff":
		err = tiff.Encode(f, out, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		err = bmp.Encode(f, out)
	default:
		err = png.Encode(f, out)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// FromImage converts a decoded image into float planes in [0, 1].
func FromImage(src image.Image) *imaging.RGB {
	b := src.Bounds()
	out := imaging.NewRGB(b.Dx(), b.Dy())
	planes := out.Planes()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			planes[0].Set(x-b.Min.X, y-b.Min.Y, float64(r)/65535.0)
			planes[1].Set(x-b.Min.X, y-b.Min.Y, float64(g)/65535.0)
			planes[2].Set(x-b.Min.X, y-b.Min.Y, float64(bl)/65535.0)
		}
	}
	return out
}

// ToImage converts float planes back to an 8-bit RGBA image, clamping
// to [0, 1].
func ToImage(img *imaging.RGB) *image.RGBA {
	w, h := img.W(), img.H()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	planes := img.Planes()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := out.PixOffset(x, y)
			out.Pix[i+0] = to8(planes[0].At(x, y))
			out.Pix[i+1] = to8(planes[1].At(x, y))
			out.Pix[i+2] = to8(planes[2].At(x, y))
			out.Pix[i+3] = 255
		}
	}
	return out
}

// FitWithin scales img down so neither side exceeds maxDim, keeping
// the aspect ratio. Images already within the bound pass through.
func FitWithin(img *imaging.RGB, maxDim int) *imaging.RGB {
	w, h := img.W(), img.H()
	if w <= maxDim && h <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	src := ToImage(img)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return FromImage(dst)
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
