package imaging

import (
	"math"
	"testing"
)

func TestBilinearAtInterpolates(t *testing.T) {
	g := NewGray(2, 2)
	g.Set(0, 0, 0)
	g.Set(1, 0, 1)
	g.Set(0, 1, 0)
	g.Set(1, 1, 1)

	v, ok := g.BilinearAt(0.5, 0.5)
	if !ok {
		t.Fatalf("expected in-bounds sample")
	}
	if math.Abs(v-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", v)
	}
}

func TestBilinearAtOutOfBounds(t *testing.T) {
	g := NewGray(4, 4)
	for _, c := range [][2]float64{{-0.1, 0}, {0, -0.1}, {3.1, 0}, {0, 3.1}} {
		if _, ok := g.BilinearAt(c[0], c[1]); ok {
			t.Fatalf("expected out-of-bounds at (%v, %v)", c[0], c[1])
		}
	}
	if _, ok := g.BilinearAt(3, 3); !ok {
		t.Fatalf("corner sample should be in bounds")
	}
}

func TestGrayscaleUsesLumaWeights(t *testing.T) {
	img := NewRGB(1, 1)
	img.R.Set(0, 0, 1)
	img.G.Set(0, 0, 1)
	img.B.Set(0, 0, 1)

	g := img.Grayscale()
	if math.Abs(g.At(0, 0)-1) > 1e-9 {
		t.Fatalf("white should map to luma 1, got %v", g.At(0, 0))
	}

	img.G.Set(0, 0, 0)
	img.B.Set(0, 0, 0)
	g = img.Grayscale()
	if math.Abs(g.At(0, 0)-0.299) > 1e-9 {
		t.Fatalf("pure red should map to 0.299, got %v", g.At(0, 0))
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := GaussianKernel(5, 1.0)
	if len(k) != 5 {
		t.Fatalf("expected size 5, got %d", len(k))
	}
	sum := 0.0
	for _, v := range k {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("kernel should sum to 1, got %v", sum)
	}
	if k[0] != k[4] || k[1] != k[3] {
		t.Fatalf("kernel should be symmetric: %v", k)
	}
}

func TestGaussianBlurPreservesConstant(t *testing.T) {
	g := NewGray(10, 10)
	g.Fill(0.4)
	out := GaussianBlur(g, 5, 1.0)
	for i, v := range out.Pix {
		if math.Abs(v-0.4) > 1e-9 {
			t.Fatalf("pixel %d drifted to %v", i, v)
		}
	}
}

func TestDownsample2Sizes(t *testing.T) {
	cases := [][4]int{
		{10, 10, 5, 5},
		{11, 9, 6, 5},
		{1, 1, 1, 1},
	}
	for _, c := range cases {
		out := Downsample2(NewGray(c[0], c[1]))
		if out.W != c[2] || out.H != c[3] {
			t.Fatalf("downsample of %dx%d: got %dx%d, want %dx%d",
				c[0], c[1], out.W, out.H, c[2], c[3])
		}
	}
}

func TestDistanceTransform(t *testing.T) {
	// A 5x1 strip with its left pixel outside the mask. Distances grow
	// by one unit per step.
	mask := NewGray(5, 1)
	for x := 1; x < 5; x++ {
		mask.Set(x, 0, 1)
	}
	d := DistanceTransform(mask)
	want := []float64{0, 1, 2, 3, 4}
	for x, w := range want {
		if math.Abs(d.At(x, 0)-w) > 1e-9 {
			t.Fatalf("distance at %d: got %v, want %v", x, d.At(x, 0), w)
		}
	}
}

func TestDistanceTransformDiagonal(t *testing.T) {
	mask := NewGray(3, 3)
	mask.Fill(1)
	mask.Set(0, 0, 0)
	d := DistanceTransform(mask)
	if math.Abs(d.At(1, 1)-4.0/3.0) > 1e-9 {
		t.Fatalf("diagonal step should cost 4/3, got %v", d.At(1, 1))
	}
}

func TestNormalize01(t *testing.T) {
	g := NewGray(3, 1)
	g.Set(0, 0, 2)
	g.Set(1, 0, 4)
	g.Set(2, 0, 6)
	n := Normalize01(g)
	want := []float64{0, 0.5, 1}
	for i, w := range want {
		if math.Abs(n.Pix[i]-w) > 1e-12 {
			t.Fatalf("pixel %d: got %v, want %v", i, n.Pix[i], w)
		}
	}
}

func TestNormalize01Flat(t *testing.T) {
	g := NewGray(4, 4)
	g.Fill(0.7)
	n := Normalize01(g)
	for i, v := range n.Pix {
		if v != 0 {
			t.Fatalf("flat plane should normalize to zeros, pixel %d = %v", i, v)
		}
	}
}

func TestResizeBilinearEndpoints(t *testing.T) {
	g := NewGray(4, 1)
	for x := 0; x < 4; x++ {
		g.Set(x, 0, float64(x))
	}
	out := ResizeBilinear(g, 7, 1)
	if out.At(0, 0) != 0 || math.Abs(out.At(6, 0)-3) > 1e-9 {
		t.Fatalf("endpoints should be preserved: %v ... %v", out.At(0, 0), out.At(6, 0))
	}
}

func TestClamp01(t *testing.T) {
	img := NewRGB(2, 1)
	img.R.Set(0, 0, -0.5)
	img.R.Set(1, 0, 1.5)
	img.Clamp01()
	if img.R.At(0, 0) != 0 || img.R.At(1, 0) != 1 {
		t.Fatalf("clamp failed: %v, %v", img.R.At(0, 0), img.R.At(1, 0))
	}
}
