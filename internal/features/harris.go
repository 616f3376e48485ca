package features

import (
	"panostitch/internal/imaging"
)

// harrisK is the standard Harris corner response constant.
const harrisK = 0.04

// HarrisResponse computes the dense Harris cornerness map of img,
// min-max normalized to [0,1]. The structure tensor is smoothed with a
// Gaussian whose kernel size is derived from the Harris threshold
// (threshold*1000 clamped to [3,7], forced odd) and sigma = size/3.
func HarrisResponse(img *imaging.Gray, threshold float64) *imaging.Gray {
	ix := imaging.SobelX(img)
	iy := imaging.SobelY(img)

	ixx := imaging.NewGray(img.W, img.H)
	iyy := imaging.NewGray(img.W, img.H)
	ixy := imaging.NewGray(img.W, img.H)
	for i := range ix.Pix {
		ixx.Pix[i] = ix.Pix[i] * ix.Pix[i]
		iyy.Pix[i] = iy.Pix[i] * iy.Pix[i]
		ixy.Pix[i] = ix.Pix[i] * iy.Pix[i]
	}

	size := harrisKernelSize(threshold)
	sigma := float64(size) / 3
	sxx := imaging.GaussianBlur(ixx, size, sigma)
	syy := imaging.GaussianBlur(iyy, size, sigma)
	sxy := imaging.GaussianBlur(ixy, size, sigma)

	resp := imaging.NewGray(img.W, img.H)
	for i := range resp.Pix {
		det := sxx.Pix[i]*syy.Pix[i] - sxy.Pix[i]*sxy.Pix[i]
		trace := sxx.Pix[i] + syy.Pix[i]
		resp.Pix[i] = det - harrisK*trace*trace
	}
	return imaging.Normalize01(resp)
}

func harrisKernelSize(threshold float64) int {
	size := int(threshold * 1000)
	if size < 3 {
		size = 3
	}
	if size > 7 {
		size = 7
	}
	if size%2 == 0 {
		size++
	}
	return size
}
