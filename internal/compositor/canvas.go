// Package compositor warps aligned images into a shared canvas and
// blends their overlap, either by distance feathering or by
// frequency-band (Laplacian pyramid) mixing.
package compositor

import (
	"fmt"
	"math"

	"panostitch/internal/homography"
	"panostitch/internal/imaging"
)

// BlendMethod selects the overlap blending strategy.
type BlendMethod string

const (
	// BlendNone lets the later image overwrite the earlier one.
	BlendNone BlendMethod = "none"
	// BlendLinear feathers by normalized distance-to-border weight.
	BlendLinear BlendMethod = "linear"
	// BlendMultiband mixes per frequency band via Laplacian pyramids.
	BlendMultiband BlendMethod = "multiband"
)

// ParseBlendMethod maps a config string to a BlendMethod.
func ParseBlendMethod(s string) (BlendMethod, error) {
	switch BlendMethod(s) {
	case BlendNone, BlendLinear, BlendMultiband:
		return BlendMethod(s), nil
	case "":
		return BlendLinear, nil
	}
	return "", fmt.Errorf("unknown blend method %q", s)
}

// Canvas is the shared output raster plus the world-to-pixel origin
// offset applied while warping into it.
type Canvas struct {
	Image   *imaging.RGB
	OffsetX float64
	OffsetY float64
}

// bounds is an axis-aligned box in world coordinates.
type bounds struct {
	minX, minY, maxX, maxY float64
}

func newBounds() bounds {
	return bounds{
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
	}
}

func (b *bounds) add(p homography.Point) {
	b.minX = math.Min(b.minX, p.X)
	b.minY = math.Min(b.minY, p.Y)
	b.maxX = math.Max(b.maxX, p.X)
	b.maxY = math.Max(b.maxY, p.Y)
}

func (b *bounds) pad(px float64) {
	b.minX -= px
	b.minY -= px
	b.maxX += px
	b.maxY += px
}

// size returns the pixel span covering the box inclusively.
func (b bounds) size() (w, h int) {
	w = int(math.Ceil(b.maxX)) - int(math.Floor(b.minX)) + 1
	h = int(math.Ceil(b.maxY)) - int(math.Floor(b.minY)) + 1
	return w, h
}

func (b bounds) origin() (x, y float64) {
	return math.Floor(b.minX), math.Floor(b.minY)
}

// addWarpedCorners extends b with the four image corners mapped
// through h.
func addWarpedCorners(b *bounds, w, h int, m homography.Matrix) {
	corners := []homography.Point{
		{X: 0, Y: 0},
		{X: float64(w - 1), Y: 0},
		{X: 0, Y: float64(h - 1)},
		{X: float64(w - 1), Y: float64(h - 1)},
	}
	for _, c := range corners {
		b.add(m.Apply(c))
	}
}

// warpInto resamples img into a w x h canvas whose origin sits at
// (ox, oy) in world coordinates, using inverse-mapped bilinear
// sampling through m (the transform placing img into world space).
// It returns the warped image and its binary validity mask, derived
// by pushing an all-ones plane through the same transform.
func warpInto(img *imaging.RGB, m homography.Matrix, w, h int, ox, oy float64) (*imaging.RGB, *imaging.Gray) {
	inv, ok := m.Inverse()
	if !ok {
		return imaging.NewRGB(w, h), imaging.NewGray(w, h)
	}

	out := imaging.NewRGB(w, h)
	mask := imaging.NewGray(w, h)
	planes := img.Planes()
	outPlanes := out.Planes()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := inv.Apply(homography.Point{X: float64(x) + ox, Y: float64(y) + oy})
			if _, in := planes[0].BilinearAt(src.X, src.Y); !in {
				continue
			}
			for i, p := range planes {
				v, _ := p.BilinearAt(src.X, src.Y)
				outPlanes[i].Set(x, y, v)
			}
			// An all-ones source plane resamples to exactly 1
			// everywhere inside the footprint.
			mask.Set(x, y, 1)
		}
	}
	return out, mask
}

// cropToContent trims the canvas to the bounding box of pixels whose
// luma exceeds minLuma, keeping a margin. An all-background canvas is
// returned unchanged.
func cropToContent(img *imaging.RGB, minLuma float64, margin int) *imaging.RGB {
	w, h := img.W(), img.H()
	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Luma(x, y) <= minLuma {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return img
	}
	minX = max(0, minX-margin)
	minY = max(0, minY-margin)
	maxX = min(w-1, maxX+margin)
	maxY = min(h-1, maxY+margin)

	out := imaging.NewRGB(maxX-minX+1, maxY-minY+1)
	srcPlanes := img.Planes()
	dstPlanes := out.Planes()
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for i := range srcPlanes {
				dstPlanes[i].Set(x-minX, y-minY, srcPlanes[i].At(x, y))
			}
		}
	}
	return out
}
