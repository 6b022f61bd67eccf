package image

import (
	"image"
	"image/color"
)

// RGB is an in-memory image of 8-bit red, green and blue samples with no
// alpha channel. It is the normalised form every palette operation works on.
type RGB struct {
	// Pix holds the image's pixels in R, G, B order. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

// NewRGB returns a new black RGB image with the given bounds.
func NewRGB(r image.Rectangle) *RGB {
	w, h := r.Dx(), r.Dy()
	return &RGB{
		Pix:    make([]uint8, 3*w*h),
		Stride: 3 * w,
		Rect:   r,
	}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color {
	return p.RGBAt(x, y)
}

// RGBAt returns the opaque colour of the pixel at (x, y).
func (p *RGB) RGBAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xff}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Set stores c at (x, y), discarding alpha.
func (p *RGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	p.SetRGB(x, y, n.R, n.G, n.B)
}

// SetRGB stores the given samples at (x, y).
func (p *RGB) SetRGB(x, y int, r, g, b uint8) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	s[0], s[1], s[2] = r, g, b
}

// Clone returns a deep copy of p.
func (p *RGB) Clone() *RGB {
	c := &RGB{
		Pix:    make([]uint8, len(p.Pix)),
		Stride: p.Stride,
		Rect:   p.Rect,
	}
	copy(c.Pix, p.Pix)
	return c
}

// ToRGB normalises img to exactly three channels. Alpha is dropped from the
// non-premultiplied colour, so a translucent pixel keeps its stored hue rather
// than being darkened. The result always has its origin at (0, 0). An *RGB that
// already starts at the origin is returned as-is; callers must not mutate it.
func ToRGB(img image.Image) *RGB {
	if rgb, ok := img.(*RGB); ok && rgb.Rect.Min == (image.Point{}) {
		return rgb
	}

	b := img.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = src.Pix[si], src.Pix[si+1], src.Pix[si+2]
				si += 4
				di += 3
			}
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				if a := src.Pix[si+3]; a == 0xff {
					dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = src.Pix[si], src.Pix[si+1], src.Pix[si+2]
				} else {
					n := color.NRGBAModel.Convert(color.RGBA{R: src.Pix[si], G: src.Pix[si+1], B: src.Pix[si+2], A: a}).(color.NRGBA)
					dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = n.R, n.G, n.B
				}
				si += 4
				di += 3
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			di := y * dst.Stride
			for x := 0; x < b.Dx(); x++ {
				n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				dst.Pix[di], dst.Pix[di+1], dst.Pix[di+2] = n.R, n.G, n.B
				di += 3
			}
		}
	}

	return dst
}
