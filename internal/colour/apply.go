package colour

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

// applyChunk is the largest number of pixels matched against the palette per
// batched pass.
const applyChunk = 4096

// applyBudget caps the cross-term buffer, chunk x palette size, in float64s.
// Large palettes get proportionally smaller chunks.
const applyBudget = 1 << 20

// Apply returns a new image the size of img in which every pixel is replaced
// by its nearest palette colour under squared Euclidean RGB distance. On a
// tie the colour that comes first in the palette wins.
//
// Distances are evaluated a chunk of pixels at a time as
// |p|² - 2p·c + |c|², with every p·c of the chunk produced by one matrix
// product. |p|² is constant per pixel and left out of the comparison. For
// integral channel values every term is an exact float64 integer, so ties are
// exact too.
func Apply(p *Palette, img image.Image) (*imageutil.RGB, error) {
	if p.Len() == 0 {
		return nil, ErrEmptyPalette
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}

	src := imageutil.ToRGB(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := imageutil.NewRGB(image.Rect(0, 0, w, h))

	n := len(p.Colours)
	ct := mat.NewDense(3, n, nil)
	norms := make([]float64, n)
	out := make([][3]uint8, n)
	for j, c := range p.Colours {
		ct.Set(0, j, c.R)
		ct.Set(1, j, c.G)
		ct.Set(2, j, c.B)
		norms[j] = c.R*c.R + c.G*c.G + c.B*c.B
		out[j][0], out[j][1], out[j][2] = c.RGB8()
	}

	total := w * h
	chunk := max(1, min(applyChunk, total, applyBudget/n))
	px := make([]float64, chunk*3)
	cross := mat.NewDense(chunk, n, nil)

	// Walk the source in row-major order; x, y track the next pixel to load.
	x, y := 0, 0
	for start := 0; start < total; start += chunk {
		m := min(chunk, total-start)

		for i := range m {
			si := y*src.Stride + x*3
			px[i*3] = float64(src.Pix[si])
			px[i*3+1] = float64(src.Pix[si+1])
			px[i*3+2] = float64(src.Pix[si+2])
			if x++; x == w {
				x = 0
				y++
			}
		}

		pixels := mat.NewDense(m, 3, px[:m*3])
		dots := cross
		if m < chunk {
			dots = cross.Slice(0, m, 0, n).(*mat.Dense)
		}
		dots.Mul(pixels, ct)

		raw := dots.RawMatrix()
		for i := range m {
			row := raw.Data[i*raw.Stride : i*raw.Stride+n]
			best, bestDist := 0, math.Inf(1)
			for j, d := range row {
				if dist := norms[j] - 2*d; dist < bestDist {
					best, bestDist = j, dist
				}
			}
			di := (start + i) * 3
			c := out[best]
			dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = c[0], c[1], c[2]
		}
	}

	return dst, nil
}
