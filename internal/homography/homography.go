// Package homography implements robust 3x3 projective transform
// estimation between point correspondences: a minimal DLT solve via
// SVD null-space extraction wrapped in a RANSAC consensus loop.
package homography

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a 3x3 homography, row-major, normalized so the bottom-right
// entry is 1.
type Matrix [9]float64

// Point is a 2D image coordinate.
type Point struct {
	X, Y float64
}

// Validity bounds for an estimated homography. Models outside these
// are treated as degenerate and replaced with the identity.
const (
	minAbsDet = 0.01
	maxAbsDet = 100.0
	maxCond   = 1e6
)

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps p through the homography.
func (m Matrix) Apply(p Point) Point {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if w == 0 {
		return Point{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}
}

// Mul returns m ∘ other, i.e. the transform applying other first.
func (m Matrix) Mul(other Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += m[3*r+k] * other[3*k+c]
			}
			out[3*r+c] = sum
		}
	}
	return out.normalized()
}

// Inverse returns the inverse transform. Singular matrices return the
// identity and false.
func (m Matrix) Inverse() (Matrix, bool) {
	a := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Identity(), false
	}
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = inv.At(r, c)
		}
	}
	return out.normalized(), true
}

// Det returns the determinant.
func (m Matrix) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Valid reports whether the matrix satisfies the model invariants:
// finite entries, determinant magnitude within bounds, and condition
// number below the degeneracy cutoff.
func (m Matrix) Valid() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	det := math.Abs(m.Det())
	if det < minAbsDet || det > maxAbsDet {
		return false
	}

	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(3, 3, m[:]), mat.SVDNone) {
		return false
	}
	sv := svd.Values(nil)
	if sv[2] <= 0 {
		return false
	}
	return sv[0]/sv[2] <= maxCond
}

// normalized scales the matrix so the bottom-right entry is 1. A zero
// bottom-right entry leaves the matrix untouched; Valid catches it.
func (m Matrix) normalized() Matrix {
	if m[8] == 0 {
		return m
	}
	var out Matrix
	for i, v := range m {
		out[i] = v / m[8]
	}
	return out
}
