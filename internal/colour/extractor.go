package colour

import (
	"fmt"
	"image"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

const (
	// DefaultMaxColours is the palette size cap used when none is configured.
	DefaultMaxColours = 256

	// DefaultWorkSize is the side of the square every source is resized to
	// before colours are counted, bounding extraction cost.
	DefaultWorkSize = 256
)

// Extractor defines the interface for palette extraction.
type Extractor interface {
	// Extract extracts a palette of at most maxColours colours from an image.
	Extract(img image.Image, maxColours int) (*Palette, error)
}

// ExtractorConfig holds configuration for palette extraction.
type ExtractorConfig struct {
	MaxColours int
	WorkSize   int
	Kernel     imageutil.Kernel
}

// DefaultExtractorConfig returns the default extractor configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxColours: DefaultMaxColours,
		WorkSize:   DefaultWorkSize,
		Kernel:     imageutil.KernelNearest,
	}
}

// Validate validates the extractor configuration.
func (c ExtractorConfig) Validate() error {
	if c.WorkSize < 1 {
		return fmt.Errorf("work size must be at least 1, got %d", c.WorkSize)
	}
	if c.MaxColours < 1 {
		return fmt.Errorf("colour count must be at least 1, got %d", c.MaxColours)
	}
	if limit := c.WorkSize * c.WorkSize; c.MaxColours > limit {
		return fmt.Errorf("colour count too large: %d (maximum: %d)", c.MaxColours, limit)
	}
	if _, err := c.Kernel.Interpolator(); err != nil {
		return err
	}
	return nil
}

// Option configures a SampleExtractor.
type Option func(*SampleExtractor)

// WithRand injects the random source used for subsampling. The extractor
// serialises access to it.
func WithRand(r *rand.Rand) Option {
	return func(e *SampleExtractor) {
		e.rng = r
	}
}

// WithSeed makes subsampling reproducible for a given seed.
func WithSeed(seed int64) Option {
	return func(e *SampleExtractor) {
		e.rng = rand.New(rand.NewSource(seed)) // #nosec G404 -- sampling, not security
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger hclog.Logger) Option {
	return func(e *SampleExtractor) {
		e.logger = logger
	}
}

// SampleExtractor reduces an image to its distinct colours and, when there
// are too many, keeps a uniform random subset of them. Subsets are not
// weighted by pixel frequency, so dominant colours get no preference.
//
// Without WithRand or WithSeed the source is seeded from the clock and results
// are not reproducible between calls.
type SampleExtractor struct {
	config ExtractorConfig
	logger hclog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampleExtractor creates a SampleExtractor.
func NewSampleExtractor(config ExtractorConfig, opts ...Option) (*SampleExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid extractor configuration: %w", err)
	}

	e := &SampleExtractor{
		config: config,
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- sampling, not security
	}

	return e, nil
}

// Config returns the extractor's configuration.
func (e *SampleExtractor) Config() ExtractorConfig {
	return e.config
}

// Extract implements Extractor.
func (e *SampleExtractor) Extract(img image.Image, maxColours int) (*Palette, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidImage
	}
	if maxColours < 1 {
		return nil, fmt.Errorf("colour count must be at least 1, got %d", maxColours)
	}

	small, err := imageutil.Resize(img, e.config.WorkSize, e.config.WorkSize, e.config.Kernel)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	distinct := distinctColours(small)

	if len(distinct) > maxColours {
		e.mu.Lock()
		sampleWithoutReplacement(e.rng, distinct, maxColours)
		e.mu.Unlock()
		distinct = distinct[:maxColours]
	}

	colours := make([]Colour, len(distinct))
	for i, packed := range distinct {
		colours[i] = unpack(packed)
	}

	e.logger.Debug("extracted palette", "colours", len(colours), "max_colours", maxColours,
		"kernel", e.config.Kernel)

	return NewPalette(colours), nil
}

// ExtractPalette extracts a palette with the default configuration and an
// unseeded random source.
func ExtractPalette(img image.Image, maxColours int) (*Palette, error) {
	e, err := NewSampleExtractor(DefaultExtractorConfig())
	if err != nil {
		return nil, err
	}
	return e.Extract(img, maxColours)
}

// distinctColours returns each colour of img once, packed as 0xRRGGBB and
// sorted ascending, i.e. in (R, G, B) lexicographic order.
func distinctColours(img *imageutil.RGB) []uint32 {
	b := img.Bounds()
	seen := make(map[uint32]struct{}, 1024)
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+3*b.Dx()]
		for i := 0; i < len(row); i += 3 {
			seen[uint32(row[i])<<16|uint32(row[i+1])<<8|uint32(row[i+2])] = struct{}{}
		}
	}

	out := make([]uint32, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// sampleWithoutReplacement moves a uniform random k-subset of s into s[:k]
// using a partial Fisher-Yates shuffle.
func sampleWithoutReplacement(rng *rand.Rand, s []uint32, k int) {
	n := len(s)
	for i := 0; i < k && i < n-1; i++ {
		j := i + rng.Intn(n-i)
		s[i], s[j] = s[j], s[i]
	}
}

func unpack(c uint32) Colour {
	return NewColour(uint8(c>>16), uint8(c>>8), uint8(c))
}
