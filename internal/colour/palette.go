// Package colour provides palette extraction and nearest-colour remapping.
package colour

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrEmptyPalette is returned when an operation needs at least one colour.
	ErrEmptyPalette = errors.New("palette is empty")

	// ErrInvalidImage is returned for nil or zero-sized images.
	ErrInvalidImage = errors.New("image must be at least 1x1")
)

// Colour is a palette entry. Channels are stored as float64 in the 0-255
// range so squared differences never overflow or round.
type Colour struct {
	R, G, B float64
}

// NewColour builds a Colour from 8-bit channel values.
func NewColour(r, g, b uint8) Colour {
	return Colour{R: float64(r), G: float64(g), B: float64(b)}
}

// RGB8 returns the channels rounded to the nearest representable 8-bit value.
func (c Colour) RGB8() (r, g, b uint8) {
	return clamp8(c.R), clamp8(c.G), clamp8(c.B)
}

// RGBA implements color.Color. The colour is always opaque.
func (c Colour) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB8()
	return color.RGBA{R: r8, G: g8, B: b8, A: 0xff}.RGBA()
}

// Hex returns the colour as "#rrggbb".
func (c Colour) Hex() string {
	r, g, b := c.RGB8()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hex()
}

// ToRGB returns the colour as 8-bit RGB.
func (c Colour) ToRGB() RGB {
	r, g, b := c.RGB8()
	return RGB{R: r, G: g, B: b}
}

// DistanceSquared returns the squared Euclidean distance between c and o.
func (c Colour) DistanceSquared(o Colour) float64 {
	dr := c.R - o.R
	dg := c.G - o.G
	db := c.B - o.B
	return dr*dr + dg*dg + db*db
}

// ParseHex parses "#rgb" or "#rrggbb".
func ParseHex(s string) (Colour, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	cf, err := colorful.Hex(s)
	if err != nil {
		return Colour{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	r, g, b := cf.RGB255()
	return NewColour(r, g, b), nil
}

func clamp8(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

// Palette is an ordered collection of colours. Order matters only as the
// tie-break when two entries are equally close to a pixel.
type Palette struct {
	Colours []Colour
}

// NewPalette creates a new Palette with the given colours.
func NewPalette(colours []Colour) *Palette {
	return &Palette{
		Colours: colours,
	}
}

// Len returns the number of colours in the palette.
func (p *Palette) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Colours)
}

// Get returns the colour at the specified index.
func (p *Palette) Get(i int) (Colour, error) {
	if i < 0 || i >= p.Len() {
		return Colour{}, fmt.Errorf("index %d out of range (palette has %d colours)", i, p.Len())
	}
	return p.Colours[i], nil
}

// Contains reports whether c is exactly one of the palette's colours.
func (p *Palette) Contains(c Colour) bool {
	for _, pc := range p.Colours {
		if pc == c {
			return true
		}
	}
	return false
}

// Nearest returns the index of the colour closest to c, the first one on a tie.
// It scans linearly; Apply uses a batched form of the same rule for whole images.
func (p *Palette) Nearest(c Colour) int {
	ret, best := 0, math.Inf(1)
	for i, pc := range p.Colours {
		if d := c.DistanceSquared(pc); d < best {
			if d == 0 {
				return i
			}
			ret, best = i, d
		}
	}
	return ret
}

// Clone returns a copy that shares no storage with p.
func (p *Palette) Clone() *Palette {
	return NewPalette(append([]Colour(nil), p.Colours...))
}

// Equal reports whether both palettes hold the same colours in the same order.
func (p *Palette) Equal(o *Palette) bool {
	if p.Len() != o.Len() {
		return false
	}
	for i := range p.Colours {
		if p.Colours[i] != o.Colours[i] {
			return false
		}
	}
	return true
}

// RGB represents a color in RGB format.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String returns the RGB color as a string in the format "rgb(r, g, b)".
func (rgb RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B)
}

// Hex returns the RGB color as a hex string (e.g., "#1a2b3c").
func (rgb RGB) Hex() string {
	return NewColour(rgb.R, rgb.G, rgb.B).Hex()
}

// ToRGB converts a color.Color to RGB, discarding alpha.
func ToRGB(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// ToHex converts the palette colours to hex strings.
func (p *Palette) ToHex() []string {
	hexColours := make([]string, len(p.Colours))
	for i, c := range p.Colours {
		hexColours[i] = c.Hex()
	}
	return hexColours
}

// ToRGBSlice converts the palette colours to RGB structs.
func (p *Palette) ToRGBSlice() []RGB {
	rgbColours := make([]RGB, len(p.Colours))
	for i, c := range p.Colours {
		rgbColours[i] = c.ToRGB()
	}
	return rgbColours
}

// ParseHexPalette builds a palette from hex strings. Duplicates are dropped,
// keeping the first occurrence.
func ParseHexPalette(hexes []string) (*Palette, error) {
	colours := make([]Colour, 0, len(hexes))
	for _, h := range hexes {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		colours = append(colours, c)
	}
	if len(colours) == 0 {
		return nil, ErrEmptyPalette
	}
	return NewPalette(uniqueColours(colours)), nil
}

// uniqueColours drops repeated colours in place, keeping first occurrences.
func uniqueColours(colours []Colour) []Colour {
	seen := make(map[Colour]bool, len(colours))
	out := colours[:0]
	for _, c := range colours {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// ColourJSON represents a colour in JSON output format.
type ColourJSON struct {
	Hex string `json:"hex"`
	RGB RGB    `json:"rgb"`
}

// PaletteJSON represents the palette in JSON format.
type PaletteJSON struct {
	Count   int          `json:"count"`
	Colours []ColourJSON `json:"colours"`
}

// ToJSON converts the palette to indented JSON.
func (p *Palette) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p.jsonView(), "", "  ")
}

// MarshalJSON implements json.Marshaler.
func (p *Palette) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.jsonView())
}

// UnmarshalJSON implements json.Unmarshaler. Colours are read from their hex
// form, which is authoritative.
func (p *Palette) UnmarshalJSON(data []byte) error {
	var pj PaletteJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return fmt.Errorf("failed to parse palette JSON: %w", err)
	}
	hexes := make([]string, len(pj.Colours))
	for i, c := range pj.Colours {
		hexes[i] = c.Hex
		if hexes[i] == "" {
			hexes[i] = c.RGB.Hex()
		}
	}
	parsed, err := ParseHexPalette(hexes)
	if err != nil {
		return err
	}
	p.Colours = parsed.Colours
	return nil
}

// FromJSON decodes a palette produced by ToJSON.
func FromJSON(data []byte) (*Palette, error) {
	p := &Palette{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Palette) jsonView() PaletteJSON {
	colours := make([]ColourJSON, len(p.Colours))
	for i, c := range p.Colours {
		colours[i] = ColourJSON{
			Hex: c.Hex(),
			RGB: c.ToRGB(),
		}
	}
	return PaletteJSON{
		Count:   len(p.Colours),
		Colours: colours,
	}
}

// String returns a human-readable string representation of the palette.
func (p *Palette) String() string {
	if p.Len() == 0 {
		return "Empty palette"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Palette with %d colours:\n", len(p.Colours))
	for i, c := range p.Colours {
		rgb := c.ToRGB()
		fmt.Fprintf(&sb, "  %2d: %s (%s)\n", i+1, rgb.Hex(), rgb.String())
	}
	return sb.String()
}
