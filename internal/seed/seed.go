// Package seed derives the random seed used to subsample palettes, so that
// extraction can be made reproducible by content, by path or by value.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"math/rand"
	"path/filepath"
	"slices"
	"strings"
	"time"

	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

// Mode determines how the sampling seed is generated.
type Mode string

const (
	// ModeRandom uses a non-deterministic seed (varies each run).
	ModeRandom Mode = "random"
	// ModeContent derives the seed from a hash of the pixel data.
	ModeContent Mode = "content"
	// ModeFilepath derives the seed from a hash of the absolute file path or URL.
	ModeFilepath Mode = "filepath"
	// ModeManual uses a caller-provided seed value.
	ModeManual Mode = "manual"
)

// Config holds configuration for seed generation.
type Config struct {
	Mode  Mode   // Seed mode
	Value *int64 // Seed value (only used when Mode is ModeManual)
}

// Calculate determines the seed value based on the seed mode.
// img is required for ModeContent and source for ModeFilepath.
func Calculate(img image.Image, source string, config Config) (int64, error) {
	switch config.Mode {
	case ModeRandom, "":
		return GenerateRandomSeed(), nil
	case ModeContent:
		if img == nil {
			return 0, fmt.Errorf("image is required for content-based seed mode")
		}
		return CalculateContentSeed(img)
	case ModeFilepath:
		if source == "" {
			return 0, fmt.Errorf("image path is required for filepath-based seed mode")
		}
		return CalculateFilepathSeed(source)
	case ModeManual:
		if config.Value == nil {
			return 0, fmt.Errorf("seed value is required for manual seed mode")
		}
		return *config.Value, nil
	default:
		return 0, fmt.Errorf("unknown seed mode: %s", config.Mode)
	}
}

// CalculateContentSeed generates a deterministic seed from image content.
// Every pixel's RGB value is hashed along with the dimensions, so the same
// picture gives the same seed wherever it came from.
func CalculateContentSeed(img image.Image) (int64, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, fmt.Errorf("image cannot be empty")
	}

	rgb := imageutil.ToRGB(img)
	w, h := rgb.Bounds().Dx(), rgb.Bounds().Dy()
	hasher := sha256.New()

	dimBytes := make([]byte, 8)
	binary.LittleEndian.PutUint32(dimBytes[0:4], uint32(w)) // #nosec G115 -- image dimensions are safe to convert
	binary.LittleEndian.PutUint32(dimBytes[4:8], uint32(h)) // #nosec G115 -- image dimensions are safe to convert
	hasher.Write(dimBytes)

	for y := range h {
		hasher.Write(rgb.Pix[y*rgb.Stride : y*rgb.Stride+3*w])
	}

	return hashSeed(hasher.Sum(nil)), nil
}

// CalculateFilepathSeed generates a deterministic seed from the absolute file
// path. URLs are hashed as given.
func CalculateFilepathSeed(source string) (int64, error) {
	if source == "" {
		return 0, fmt.Errorf("image path cannot be empty")
	}

	key := source
	if !isURL(source) {
		if abs, err := filepath.Abs(source); err == nil {
			key = abs
		}
	}

	hash := sha256.Sum256([]byte(key))
	return hashSeed(hash[:]), nil
}

// GenerateRandomSeed generates a non-deterministic random seed.
func GenerateRandomSeed() int64 {
	// #nosec G404 -- Random seed generation is intentionally non-deterministic
	return time.Now().UnixNano() + int64(rand.Intn(1000000))
}

func hashSeed(hash []byte) int64 {
	return int64(binary.LittleEndian.Uint64(hash[:8])) // #nosec G115 -- hash conversion is safe
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// ValidModes returns a list of valid seed modes.
func ValidModes() []Mode {
	return []Mode{ModeRandom, ModeContent, ModeFilepath, ModeManual}
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(ValidModes(), mode) {
		return mode, nil
	}
	return "", fmt.Errorf("invalid seed mode: %s (valid: random, content, filepath, manual)", s)
}

// String implements pflag.Value.
func (m *Mode) String() string {
	if *m == "" {
		return string(ModeRandom)
	}
	return string(*m)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}
