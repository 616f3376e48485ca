package features

import (
	"math"

	"panostitch/internal/imaging"
)

// Descriptor is an opaque fixed-length feature vector. The core only
// ever compares descriptors by Euclidean distance.
type Descriptor []float64

// Describer produces descriptors for keypoints. Implementations must
// return the subset of keypoints they could describe and one
// descriptor per returned keypoint, index-aligned.
type Describer interface {
	Describe(img *imaging.Gray, kps []Keypoint) ([]Keypoint, []Descriptor)
}

// PatchDescriber is the default descriptor engine: a mean/variance
// normalized square intensity patch around each keypoint.
type PatchDescriber struct {
	Radius int
}

// NewPatchDescriber returns a describer with the default patch radius.
func NewPatchDescriber() *PatchDescriber {
	return &PatchDescriber{Radius: 4}
}

// Describe implements Describer. Keypoints whose patch does not fit
// inside the image are dropped.
func (d *PatchDescriber) Describe(img *imaging.Gray, kps []Keypoint) ([]Keypoint, []Descriptor) {
	r := d.Radius
	if r <= 0 {
		r = 4
	}
	side := 2*r + 1

	valid := make([]Keypoint, 0, len(kps))
	descs := make([]Descriptor, 0, len(kps))
	for _, kp := range kps {
		if kp.X < r || kp.Y < r || kp.X >= img.W-r || kp.Y >= img.H-r {
			continue
		}
		vec := make(Descriptor, side*side)
		sum := 0.0
		i := 0
		for dy := -r; dy <= r; dy++ {
			row := (kp.Y + dy) * img.W
			for dx := -r; dx <= r; dx++ {
				v := img.Pix[row+kp.X+dx]
				vec[i] = v
				sum += v
				i++
			}
		}
		mean := sum / float64(len(vec))
		norm := 0.0
		for i, v := range vec {
			vec[i] = v - mean
			norm += vec[i] * vec[i]
		}
		norm = math.Sqrt(norm)
		if norm > 1e-12 {
			for i := range vec {
				vec[i] /= norm
			}
		}
		valid = append(valid, kp)
		descs = append(descs, vec)
	}
	return valid, descs
}

// euclidean returns the L2 distance between two descriptors.
func euclidean(a, b Descriptor) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
