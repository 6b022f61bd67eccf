// Package compression transparently compresses palette files whose names end
// in .gz or .xz.
package compression

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// MaxDecompressedBytes bounds how much a compressed palette file may expand to.
const MaxDecompressedBytes = 16 << 20

// ErrLimitExceeded is returned by LimitedReader once input runs past its limit.
var ErrLimitExceeded = errors.New("decompression size limit exceeded")

// Format is a supported compression format.
type Format string

const (
	// None means the file is stored as-is.
	None Format = ""
	// Gzip is RFC 1952 gzip.
	Gzip Format = "gz"
	// XZ is the xz container with LZMA2.
	XZ Format = "xz"
)

// Detect returns the compression format implied by path's extension.
func Detect(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".xz":
		return XZ
	default:
		return None
	}
}

// Strip returns path without a compression extension, so the inner format
// can be detected from what remains.
func Strip(path string) string {
	if Detect(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// NewReader wraps r in a decompressor for format. Output is capped at
// MaxDecompressedBytes. Closing the result releases the decompressor but
// does not close r.
func NewReader(format Format, r io.Reader) (io.ReadCloser, error) {
	switch format {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return readCloser{Reader: NewLimitedReader(gzr, MaxDecompressedBytes), Closer: gzr}, nil
	case XZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(NewLimitedReader(xzr, MaxDecompressedBytes)), nil
	default:
		return nil, fmt.Errorf("unsupported compression format: %q", format)
	}
}

// NewWriter wraps w in a compressor for format. The caller must Close the
// returned writer to flush it; closing does not close w.
func NewWriter(format Format, w io.Writer) (io.WriteCloser, error) {
	switch format {
	case None:
		return nopCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case XZ:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzw, nil
	default:
		return nil, fmt.Errorf("unsupported compression format: %q", format)
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// LimitedReader wraps an io.Reader and limits the total bytes that can be read.
// Unlike io.LimitedReader it fails loudly instead of reporting EOF, so a
// truncated palette is never mistaken for a complete one.
type LimitedReader struct {
	R         io.Reader
	Remaining int64
}

// Read implements io.Reader with size limits. Input of exactly the limit is
// accepted: once the budget is spent, one more byte is read to tell EOF
// apart from overflow.
func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Remaining <= 0 {
		var extra [1]byte
		n, err := l.R.Read(extra[:])
		switch {
		case n > 0:
			return 0, ErrLimitExceeded
		case err != nil:
			return 0, err
		default:
			return 0, nil
		}
	}
	if int64(len(p)) > l.Remaining {
		p = p[:l.Remaining]
	}
	n, err := l.R.Read(p)
	l.Remaining -= int64(n)
	return n, err
}

// NewLimitedReader creates a new LimitedReader with the specified size limit.
func NewLimitedReader(r io.Reader, maxBytes int64) *LimitedReader {
	return &LimitedReader{
		R:         r,
		Remaining: maxBytes,
	}
}
