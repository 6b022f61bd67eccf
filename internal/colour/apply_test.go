package colour

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"runtime"
	"testing"

	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

func primaries() *Palette {
	return NewPalette([]Colour{
		NewColour(255, 0, 0),
		NewColour(0, 255, 0),
		NewColour(0, 0, 255),
		NewColour(0, 0, 0),
	})
}

func randomImage(w, h int, seed int64) *imageutil.RGB {
	rng := rand.New(rand.NewSource(seed))
	img := imageutil.NewRGB(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	return img
}

func TestApplyScenario(t *testing.T) {
	target := image.NewRGBA(image.Rect(0, 0, 1, 1))
	target.SetRGBA(0, 0, color.RGBA{R: 200, G: 10, B: 10, A: 255})

	out, err := Apply(primaries(), target)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := out.RGBAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Apply() pixel = %v, want (255,0,0)", got)
	}
}

func TestApplyEndToEnd(t *testing.T) {
	p, err := newTestExtractor(t).Extract(quadrants(), 256)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	target := imageutil.NewRGB(image.Rect(0, 0, 1, 1))
	target.SetRGB(0, 0, 200, 10, 10)

	out, err := Apply(p, target)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := out.RGBAt(0, 0); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Apply() pixel = %v, want (255,0,0)", got)
	}
}

func TestApplyPreservesDimensions(t *testing.T) {
	sizes := []image.Rectangle{
		image.Rect(0, 0, 1, 1),
		image.Rect(0, 0, 3, 7),
		image.Rect(0, 0, 300, 20),
		image.Rect(10, 20, 75, 90),
	}

	for _, r := range sizes {
		t.Run(r.String(), func(t *testing.T) {
			img := image.NewNRGBA(r)
			out, err := Apply(primaries(), img)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if out.Bounds().Dx() != r.Dx() || out.Bounds().Dy() != r.Dy() {
				t.Errorf("Apply() size = %dx%d, want %dx%d",
					out.Bounds().Dx(), out.Bounds().Dy(), r.Dx(), r.Dy())
			}
		})
	}
}

func TestApplyClosure(t *testing.T) {
	// Larger than one batch so the partial last chunk is exercised too.
	img := randomImage(97, 61, 7)
	p := NewPalette([]Colour{
		NewColour(12, 200, 30),
		NewColour(250, 250, 250),
		NewColour(90, 10, 140),
		NewColour(0, 0, 0),
		NewColour(128, 128, 128),
	})

	out, err := Apply(p, img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for y := range out.Bounds().Dy() {
		for x := range out.Bounds().Dx() {
			c := out.RGBAt(x, y)
			if !p.Contains(NewColour(c.R, c.G, c.B)) {
				t.Fatalf("pixel (%d,%d) = %v is not a palette colour", x, y, c)
			}
		}
	}
}

func TestApplyMatchesScalarNearest(t *testing.T) {
	img := randomImage(130, 70, 11)
	p, err := newTestExtractor(t, WithSeed(3)).Extract(randomImage(64, 64, 5), 40)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	out, err := Apply(p, img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for y := range img.Bounds().Dy() {
		for x := range img.Bounds().Dx() {
			in := img.RGBAt(x, y)
			want := p.Colours[p.Nearest(NewColour(in.R, in.G, in.B))].ToRGB()
			got := out.RGBAt(x, y)
			if got.R != want.R || got.G != want.G || got.B != want.B {
				t.Fatalf("pixel (%d,%d): Apply = %v, scalar nearest = %v", x, y, got, want)
			}
		}
	}
}

func TestApplyIdentityOnPaletteImage(t *testing.T) {
	p := primaries()
	img := imageutil.NewRGB(image.Rect(0, 0, 5, 3))
	for y := range 3 {
		for x := range 5 {
			r, g, b := p.Colours[(x+y)%p.Len()].RGB8()
			img.SetRGB(x, y, r, g, b)
		}
	}

	out, err := Apply(p, img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !bytes.Equal(out.Pix, img.Pix) {
		t.Error("Apply() changed an image made only of palette colours")
	}
}

func TestApplyIdempotent(t *testing.T) {
	img := randomImage(50, 50, 99)
	p := NewPalette([]Colour{NewColour(10, 10, 10), NewColour(240, 30, 30), NewColour(30, 240, 200)})

	once, err := Apply(p, img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	twice, err := Apply(p, once)
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if !bytes.Equal(once.Pix, twice.Pix) {
		t.Error("Apply(P, Apply(P, img)) differs from Apply(P, img)")
	}
}

func TestApplyTieBreakPrefersEarlierColour(t *testing.T) {
	img := imageutil.NewRGB(image.Rect(0, 0, 1, 1))
	img.SetRGB(0, 0, 100, 50, 50)

	a := NewColour(90, 50, 50)
	b := NewColour(110, 50, 50)

	tests := []struct {
		name    string
		palette *Palette
		want    Colour
	}{
		{name: "a first", palette: NewPalette([]Colour{a, b}), want: a},
		{name: "b first", palette: NewPalette([]Colour{b, a}), want: b},
		{name: "a first after a far colour", palette: NewPalette([]Colour{NewColour(0, 255, 255), a, b}), want: a},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 50 {
				out, err := Apply(tt.palette, img)
				if err != nil {
					t.Fatalf("Apply failed: %v", err)
				}
				c := out.RGBAt(0, 0)
				if got := NewColour(c.R, c.G, c.B); got != tt.want {
					t.Fatalf("Apply() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	img := randomImage(8, 8, 1)
	before := img.Clone()

	if _, err := Apply(primaries(), img); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !bytes.Equal(before.Pix, img.Pix) {
		t.Error("Apply() mutated its input image")
	}
}

func TestApplyErrors(t *testing.T) {
	img := randomImage(2, 2, 1)

	if _, err := Apply(nil, img); !errors.Is(err, ErrEmptyPalette) {
		t.Errorf("Apply(nil palette) error = %v, want ErrEmptyPalette", err)
	}
	if _, err := Apply(NewPalette(nil), img); !errors.Is(err, ErrEmptyPalette) {
		t.Errorf("Apply(empty palette) error = %v, want ErrEmptyPalette", err)
	}
	if _, err := Apply(primaries(), nil); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Apply(nil image) error = %v, want ErrInvalidImage", err)
	}
	if _, err := Apply(primaries(), image.NewRGBA(image.Rectangle{})); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Apply(empty image) error = %v, want ErrInvalidImage", err)
	}
}

func TestApplyLargePaletteBoundsMemory(t *testing.T) {
	colours := make([]Colour, 1<<16)
	for i := range colours {
		colours[i] = NewColour(uint8(i>>8), uint8(i), uint8(i>>4))
	}
	p := NewPalette(colours)
	img := randomImage(32, 32, 1)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	out, err := Apply(p, img)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	runtime.ReadMemStats(&after)
	const limit = 64 << 20
	if alloc := after.TotalAlloc - before.TotalAlloc; alloc > limit {
		t.Errorf("Apply with %d colours allocated %d MiB, want at most %d MiB",
			p.Len(), alloc>>20, limit>>20)
	}

	for y := range 32 {
		for x := range 32 {
			in := img.RGBAt(x, y)
			want := p.Colours[p.Nearest(NewColour(in.R, in.G, in.B))].ToRGB()
			got := out.RGBAt(x, y)
			if got.R != want.R || got.G != want.G || got.B != want.B {
				t.Fatalf("pixel (%d,%d): Apply = %v, scalar nearest = %v", x, y, got, want)
			}
		}
	}
}

func BenchmarkApply(b *testing.B) {
	img := randomImage(1024, 768, 1)
	p, err := ExtractPalette(randomImage(256, 256, 2), 256)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for range b.N {
		if _, err := Apply(p, img); err != nil {
			b.Fatal(err)
		}
	}
}
