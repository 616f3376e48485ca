package imaging

import "math"

// SobelX computes the horizontal gradient with a 3x3 Sobel kernel.
// Edges are handled by clamping coordinates.
func SobelX(g *Gray) *Gray {
	out := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		ym := clampInt(y-1, 0, g.H-1)
		yp := clampInt(y+1, 0, g.H-1)
		for x := 0; x < g.W; x++ {
			xm := clampInt(x-1, 0, g.W-1)
			xp := clampInt(x+1, 0, g.W-1)
			v := -g.Pix[ym*g.W+xm] + g.Pix[ym*g.W+xp] +
				-2*g.Pix[y*g.W+xm] + 2*g.Pix[y*g.W+xp] +
				-g.Pix[yp*g.W+xm] + g.Pix[yp*g.W+xp]
			out.Pix[y*out.W+x] = v
		}
	}
	return out
}

// SobelY computes the vertical gradient with a 3x3 Sobel kernel.
func SobelY(g *Gray) *Gray {
	out := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		ym := clampInt(y-1, 0, g.H-1)
		yp := clampInt(y+1, 0, g.H-1)
		for x := 0; x < g.W; x++ {
			xm := clampInt(x-1, 0, g.W-1)
			xp := clampInt(x+1, 0, g.W-1)
			v := -g.Pix[ym*g.W+xm] - 2*g.Pix[ym*g.W+x] - g.Pix[ym*g.W+xp] +
				g.Pix[yp*g.W+xm] + 2*g.Pix[yp*g.W+x] + g.Pix[yp*g.W+xp]
			out.Pix[y*out.W+x] = v
		}
	}
	return out
}

// GaussianKernel returns a normalized 1D Gaussian kernel of the given
// odd size.
func GaussianKernel(size int, sigma float64) []float64 {
	if size%2 == 0 {
		size++
	}
	if sigma <= 0 {
		sigma = float64(size) / 3
	}
	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur smooths the plane with a separable Gaussian. Coordinates
// are clamped at the border.
func GaussianBlur(g *Gray, size int, sigma float64) *Gray {
	k := GaussianKernel(size, sigma)
	half := len(k) / 2

	tmp := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			acc := 0.0
			for i, w := range k {
				xs := clampInt(x+i-half, 0, g.W-1)
				acc += w * g.Pix[y*g.W+xs]
			}
			tmp.Pix[y*tmp.W+x] = acc
		}
	}
	out := NewGray(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			acc := 0.0
			for i, w := range k {
				ys := clampInt(y+i-half, 0, g.H-1)
				acc += w * tmp.Pix[ys*tmp.W+x]
			}
			out.Pix[y*out.W+x] = acc
		}
	}
	return out
}

// Downsample2 halves the plane: Gaussian pre-blur then 2x decimation.
func Downsample2(g *Gray) *Gray {
	blurred := GaussianBlur(g, 5, 1.0)
	w := (g.W + 1) / 2
	h := (g.H + 1) / 2
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.W+x] = blurred.Pix[clampInt(2*y, 0, g.H-1)*g.W+clampInt(2*x, 0, g.W-1)]
		}
	}
	return out
}

// ResizeBilinear rescales the plane to w x h with bilinear sampling.
func ResizeBilinear(g *Gray, w, h int) *Gray {
	out := NewGray(w, h)
	if g.W == 0 || g.H == 0 || w == 0 || h == 0 {
		return out
	}
	sx := 1.0
	sy := 1.0
	if w > 1 {
		sx = float64(g.W-1) / float64(w-1)
	}
	if h > 1 {
		sy = float64(g.H-1) / float64(h-1)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v, _ := g.BilinearAt(float64(x)*sx, float64(y)*sy)
			out.Pix[y*out.W+x] = v
		}
	}
	return out
}

// DistanceTransform computes an approximate Euclidean distance to the
// nearest zero pixel via a two-pass 3x4 chamfer. Pixels where the mask
// is zero get distance 0.
func DistanceTransform(mask *Gray) *Gray {
	const (
		straight = 3.0
		diagonal = 4.0
	)
	inf := float64(mask.W+mask.H) * diagonal
	d := NewGray(mask.W, mask.H)
	for i, v := range mask.Pix {
		if v > 0 {
			d.Pix[i] = inf
		}
	}

	// Forward pass: top-left to bottom-right.
	for y := 0; y < d.H; y++ {
		for x := 0; x < d.W; x++ {
			v := d.Pix[y*d.W+x]
			if v == 0 {
				continue
			}
			if x > 0 {
				v = math.Min(v, d.Pix[y*d.W+x-1]+straight)
			}
			if y > 0 {
				v = math.Min(v, d.Pix[(y-1)*d.W+x]+straight)
				if x > 0 {
					v = math.Min(v, d.Pix[(y-1)*d.W+x-1]+diagonal)
				}
				if x < d.W-1 {
					v = math.Min(v, d.Pix[(y-1)*d.W+x+1]+diagonal)
				}
			}
			d.Pix[y*d.W+x] = v
		}
	}
	// Backward pass.
	for y := d.H - 1; y >= 0; y-- {
		for x := d.W - 1; x >= 0; x-- {
			v := d.Pix[y*d.W+x]
			if v == 0 {
				continue
			}
			if x < d.W-1 {
				v = math.Min(v, d.Pix[y*d.W+x+1]+straight)
			}
			if y < d.H-1 {
				v = math.Min(v, d.Pix[(y+1)*d.W+x]+straight)
				if x < d.W-1 {
					v = math.Min(v, d.Pix[(y+1)*d.W+x+1]+diagonal)
				}
				if x > 0 {
					v = math.Min(v, d.Pix[(y+1)*d.W+x-1]+diagonal)
				}
			}
			d.Pix[y*d.W+x] = v
		}
	}
	for i := range d.Pix {
		d.Pix[i] /= straight
	}
	return d
}

// Normalize01 rescales the plane to [0,1] by min-max. Flat planes map
// to all zeros.
func Normalize01(g *Gray) *Gray {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range g.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := NewGray(g.W, g.H)
	span := hi - lo
	if span < 1e-12 {
		return out
	}
	for i, v := range g.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out
}

// LocalVariance3 returns the intensity variance over the 3x3
// neighborhood of (x, y), clamped at the border.
func LocalVariance3(g *Gray, x, y int) float64 {
	var sum, sumSq float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			v := g.Pix[clampInt(y+dy, 0, g.H-1)*g.W+clampInt(x+dx, 0, g.W-1)]
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / 9
	return sumSq/9 - mean*mean
}
