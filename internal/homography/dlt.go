package homography

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SolveDLT computes the homography mapping src[i] to dst[i] with the
// Direct Linear Transform. It needs at least 4 correspondences and
// generalizes to overdetermined systems (k > 4) as a least-squares
// solve. Each correspondence contributes the two independent rows of
// the homogeneous cross-product constraint dst x (H*src) = 0; the
// solution is the right singular vector of the smallest singular
// value.
func SolveDLT(src, dst []Point) (Matrix, error) {
	if len(src) != len(dst) {
		return Identity(), fmt.Errorf("dlt: point count mismatch: %d vs %d", len(src), len(dst))
	}
	k := len(src)
	if k < 4 {
		return Identity(), fmt.Errorf("dlt: need at least 4 correspondences, got %d", k)
	}

	a := mat.NewDense(2*k, 9, nil)
	for i := 0; i < k; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{
			0, 0, 0,
			-x, -y, -1,
			v * x, v * y, v,
		})
		a.SetRow(2*i+1, []float64{
			x, y, 1,
			0, 0, 0,
			-u * x, -u * y, -u,
		})
	}

	// Full SVD: with the minimal 8x9 system the null direction lives
	// in the ninth right singular vector, which a thin SVD omits.
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Identity(), fmt.Errorf("dlt: SVD factorization failed")
	}
	var v mat.Dense
	svd.VTo(&v)

	var h Matrix
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}
	if h[8] == 0 {
		return Identity(), fmt.Errorf("dlt: degenerate solution, zero scale entry")
	}
	return h.normalized(), nil
}
