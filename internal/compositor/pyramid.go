package compositor

import "panostitch/internal/imaging"

// PyramidLevels is the fixed band count used for multiband blending.
const PyramidLevels = 4

// BuildLaplacian decomposes a plane into PyramidLevels band images,
// finest to coarsest. Every non-final level holds the detail lost by
// downsampling then upsampling at half resolution; the final level is
// the coarsest residual itself.
func BuildLaplacian(g *imaging.Gray) []*imaging.Gray {
	levels := make([]*imaging.Gray, PyramidLevels)
	cur := g.Clone()
	for i := 0; i < PyramidLevels-1; i++ {
		down := imaging.Downsample2(cur)
		up := imaging.ResizeBilinear(down, cur.W, cur.H)
		band := imaging.NewGray(cur.W, cur.H)
		for j := range band.Pix {
			band.Pix[j] = cur.Pix[j] - up.Pix[j]
		}
		levels[i] = band
		cur = down
	}
	levels[PyramidLevels-1] = cur
	return levels
}

// ReconstructLaplacian inverts BuildLaplacian: starting from the
// coarsest residual, each step upsamples the running image to the next
// finer band's size and adds the band.
func ReconstructLaplacian(levels []*imaging.Gray) *imaging.Gray {
	cur := levels[len(levels)-1].Clone()
	for i := len(levels) - 2; i >= 0; i-- {
		up := imaging.ResizeBilinear(cur, levels[i].W, levels[i].H)
		for j := range up.Pix {
			up.Pix[j] += levels[i].Pix[j]
		}
		cur = up
	}
	return cur
}

// BuildGaussian builds the matching PyramidLevels mask pyramid by
// iterative blur-and-halve.
func BuildGaussian(g *imaging.Gray) []*imaging.Gray {
	levels := make([]*imaging.Gray, PyramidLevels)
	levels[0] = imaging.GaussianBlur(g, 5, 1.0)
	for i := 1; i < PyramidLevels; i++ {
		levels[i] = imaging.Downsample2(levels[i-1])
	}
	return levels
}
