package compositor

import (
	"fmt"
	"math"

	"panostitch/internal/homography"
	"panostitch/internal/imaging"
)

const (
	// featherExponent shapes the distance-based weight falloff.
	featherExponent = 0.5
	// multiPadding pads the multi-image canvas on every side.
	multiPadding = 10
	// cropLumaMin and cropMargin control final content cropping.
	cropLumaMin = 0.01
	cropMargin  = 5
)

// BlendPair composites img2 onto img1 given the homography mapping
// img2 coordinates into img1's frame. The canvas covers the union of
// both warped footprints.
func BlendPair(img1, img2 *imaging.RGB, h homography.Matrix, method BlendMethod) (*Canvas, error) {
	if img1 == nil || img2 == nil {
		return nil, fmt.Errorf("compositor: nil input image")
	}

	box := newBounds()
	addWarpedCorners(&box, img1.W(), img1.H(), homography.Identity())
	addWarpedCorners(&box, img2.W(), img2.H(), h)
	w, hgt := box.size()
	ox, oy := box.origin()
	if w <= 0 || hgt <= 0 {
		return nil, fmt.Errorf("compositor: empty canvas bounds")
	}

	warped1, mask1 := warpInto(img1, homography.Identity(), w, hgt, ox, oy)
	warped2, mask2 := warpInto(img2, h, w, hgt, ox, oy)

	var out *imaging.RGB
	switch method {
	case BlendNone:
		out = overwrite(warped1, warped2, mask2)
	case BlendLinear:
		out = feather(warped1, mask1, warped2, mask2)
	case BlendMultiband:
		out = multiband(warped1, mask1, warped2, mask2)
	default:
		return nil, fmt.Errorf("compositor: unknown blend method %q", method)
	}
	return &Canvas{Image: out, OffsetX: ox, OffsetY: oy}, nil
}

// BlendMultiple composites n images through their cumulative
// homographies (first entry identity) into one padded canvas,
// accumulating weighted contributions, then crops to content.
func BlendMultiple(imgs []*imaging.RGB, hs []homography.Matrix, method BlendMethod) (*imaging.RGB, error) {
	if len(imgs) == 0 {
		return nil, fmt.Errorf("compositor: no images")
	}
	if len(imgs) != len(hs) {
		return nil, fmt.Errorf("compositor: %d images but %d transforms", len(imgs), len(hs))
	}

	box := newBounds()
	for i, img := range imgs {
		addWarpedCorners(&box, img.W(), img.H(), hs[i])
	}
	box.pad(multiPadding)
	w, h := box.size()
	ox, oy := box.origin()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("compositor: empty canvas bounds")
	}

	sum := imaging.NewRGB(w, h)
	weight := imaging.NewGray(w, h)
	for i, img := range imgs {
		warped, mask := warpInto(img, hs[i], w, h, ox, oy)
		wmap := mask
		if method == BlendLinear {
			wmap = featherWeight(mask)
		}
		sumPlanes := sum.Planes()
		for pi, p := range warped.Planes() {
			for j := range p.Pix {
				sumPlanes[pi].Pix[j] += p.Pix[j] * wmap.Pix[j]
			}
		}
		for j := range wmap.Pix {
			weight.Pix[j] += wmap.Pix[j]
		}
	}

	out := imaging.NewRGB(w, h)
	outPlanes := out.Planes()
	sumPlanes := sum.Planes()
	for j := range weight.Pix {
		total := weight.Pix[j]
		if total == 0 {
			total = 1
		}
		for pi := range outPlanes {
			outPlanes[pi].Pix[j] = sumPlanes[pi].Pix[j] / total
		}
	}
	out.Clamp01()
	return cropToContent(out, cropLumaMin, cropMargin), nil
}

// overwrite lays img2 over img1 wherever img2's mask is set.
func overwrite(img1, img2 *imaging.RGB, mask2 *imaging.Gray) *imaging.RGB {
	out := img1.Clone()
	outPlanes := out.Planes()
	for pi, p := range img2.Planes() {
		for j := range p.Pix {
			if mask2.Pix[j] > 0 {
				outPlanes[pi].Pix[j] = p.Pix[j]
			}
		}
	}
	return out
}

// featherWeight turns a binary validity mask into a smooth blend
// weight: normalized distance to the mask border, raised to the
// feather exponent.
func featherWeight(mask *imaging.Gray) *imaging.Gray {
	dist := imaging.DistanceTransform(mask)
	norm := imaging.Normalize01(dist)
	flat := true
	for _, v := range norm.Pix {
		if v != 0 {
			flat = false
			break
		}
	}
	// A borderless mask normalizes flat. Fall back to the mask itself
	// so full-coverage images keep unit weight.
	if flat {
		return mask.Clone()
	}
	for j, v := range norm.Pix {
		norm.Pix[j] = math.Pow(v, featherExponent)
	}
	return norm
}

// feather blends two warped images by re-normalized distance weights.
// Pixels where both weights vanish keep a unit denominator so the
// division is always defined.
func feather(img1 *imaging.RGB, mask1 *imaging.Gray, img2 *imaging.RGB, mask2 *imaging.Gray) *imaging.RGB {
	w1 := featherWeight(mask1)
	w2 := featherWeight(mask2)

	out := imaging.NewRGB(img1.W(), img1.H())
	outPlanes := out.Planes()
	p1 := img1.Planes()
	p2 := img2.Planes()
	for j := range w1.Pix {
		total := w1.Pix[j] + w2.Pix[j]
		if total == 0 {
			total = 1
		}
		for pi := range outPlanes {
			outPlanes[pi].Pix[j] = (p1[pi].Pix[j]*w1.Pix[j] + p2[pi].Pix[j]*w2.Pix[j]) / total
		}
	}
	out.Clamp01()
	return out
}

// multiband blends per frequency band: Laplacian pyramids of both
// images mixed level by level under Gaussian mask pyramids, then
// reconstructed and clamped.
func multiband(img1 *imaging.RGB, mask1 *imaging.Gray, img2 *imaging.RGB, mask2 *imaging.Gray) *imaging.RGB {
	g1 := BuildGaussian(mask1)
	g2 := BuildGaussian(mask2)

	out := imaging.NewRGB(img1.W(), img1.H())
	outPlanes := out.Planes()
	p1 := img1.Planes()
	p2 := img2.Planes()
	for pi := range outPlanes {
		l1 := BuildLaplacian(p1[pi])
		l2 := BuildLaplacian(p2[pi])
		blended := make([]*imaging.Gray, PyramidLevels)
		for lv := 0; lv < PyramidLevels; lv++ {
			band := imaging.NewGray(l1[lv].W, l1[lv].H)
			for j := range band.Pix {
				total := g1[lv].Pix[j] + g2[lv].Pix[j]
				if total == 0 {
					total = 1
				}
				band.Pix[j] = (l1[lv].Pix[j]*g1[lv].Pix[j] + l2[lv].Pix[j]*g2[lv].Pix[j]) / total
			}
			blended[lv] = band
		}
		outPlanes[pi].Pix = ReconstructLaplacian(blended).Pix
	}
	out.Clamp01()
	return out
}
