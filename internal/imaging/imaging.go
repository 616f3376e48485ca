// Package imaging provides the float-plane image types shared by the
// stitching core. Planes hold intensities in [0,1], row-major.
package imaging

import "math"

// Gray is a single-channel float64 plane.
type Gray struct {
	W, H int
	Pix  []float64
}

// NewGray allocates a zeroed W x H plane.
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x, y). Out-of-bounds reads return 0.
func (g *Gray) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return 0
	}
	return g.Pix[y*g.W+x]
}

// Set writes v at (x, y). Out-of-bounds writes are dropped.
func (g *Gray) Set(x, y int, v float64) {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return
	}
	g.Pix[y*g.W+x] = v
}

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	out := NewGray(g.W, g.H)
	copy(out.Pix, g.Pix)
	return out
}

// Fill sets every pixel to v.
func (g *Gray) Fill(v float64) {
	for i := range g.Pix {
		g.Pix[i] = v
	}
}

// BilinearAt samples the plane at a fractional coordinate. The second
// return value is false when (x, y) falls outside the plane.
func (g *Gray) BilinearAt(x, y float64) (float64, bool) {
	if x < 0 || y < 0 || x > float64(g.W-1) || y > float64(g.H-1) {
		return 0, false
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= g.W {
		x1 = g.W - 1
	}
	if y1 >= g.H {
		y1 = g.H - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	top := g.Pix[y0*g.W+x0]*(1-fx) + g.Pix[y0*g.W+x1]*fx
	bot := g.Pix[y1*g.W+x0]*(1-fx) + g.Pix[y1*g.W+x1]*fx
	return top*(1-fy) + bot*fy, true
}

// RGB is a three-plane color image. All planes share dimensions.
type RGB struct {
	R, G, B *Gray
}

// NewRGB allocates a zeroed W x H color image.
func NewRGB(w, h int) *RGB {
	return &RGB{R: NewGray(w, h), G: NewGray(w, h), B: NewGray(w, h)}
}

// W returns the image width.
func (m *RGB) W() int { return m.R.W }

// H returns the image height.
func (m *RGB) H() int { return m.R.H }

// Planes returns the channel planes in R, G, B order.
func (m *RGB) Planes() [3]*Gray { return [3]*Gray{m.R, m.G, m.B} }

// Clone returns a deep copy.
func (m *RGB) Clone() *RGB {
	return &RGB{R: m.R.Clone(), G: m.G.Clone(), B: m.B.Clone()}
}

// Luma returns the Rec.601 luma at (x, y).
func (m *RGB) Luma(x, y int) float64 {
	return 0.299*m.R.At(x, y) + 0.587*m.G.At(x, y) + 0.114*m.B.At(x, y)
}

// Grayscale collapses the image to a single luma plane.
func (m *RGB) Grayscale() *Gray {
	out := NewGray(m.W(), m.H())
	for y := 0; y < m.H(); y++ {
		for x := 0; x < m.W(); x++ {
			out.Pix[y*out.W+x] = m.Luma(x, y)
		}
	}
	return out
}

// Clamp01 clamps every channel into [0,1] in place.
func (m *RGB) Clamp01() {
	for _, p := range m.Planes() {
		for i, v := range p.Pix {
			if v < 0 {
				p.Pix[i] = 0
			} else if v > 1 {
				p.Pix[i] = 1
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
