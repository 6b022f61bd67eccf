package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format
	_ "image/jpeg" // Register JPEG format
	"image/png"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format
	_ "golang.org/x/image/tiff" // Register TIFF format
	_ "golang.org/x/image/webp" // Register WebP format
)

// ErrDecode matches every *DecodeError via errors.Is.
var ErrDecode = errors.New("invalid image")

// DecodeError reports bytes that could not be interpreted as an image.
type DecodeError struct {
	// Format is the detected format name, empty when the header was not recognised.
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("failed to decode image (format: %s): %v", e.Format, e.Err)
	}
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decode interprets data as an image file and returns it normalised to RGB.
// Supported formats: JPEG, PNG, GIF, WebP, BMP, TIFF.
func Decode(data []byte) (*RGB, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty image data")}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Format: format, Err: errors.New("image has no pixels")}
	}

	return ToRGB(img), nil
}

// DetectFormat returns the registered format name of data without decoding
// the pixels.
func DetectFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return format, nil
}

// EncodePNG losslessly encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{
		CompressionLevel: png.DefaultCompression,
		BufferPool:       pngPool,
	}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("could not encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
