// Package image provides utilities for loading, decoding, resizing and
// encoding the RGB images the palette pipeline works on.
package image

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	httputil "github.com/non4ik-sdk/palettron/internal/util/http"
	"github.com/non4ik-sdk/palettron/internal/util/imagecache"
)

// Loader handles loading images from various sources.
type Loader interface {
	// Load loads an image from the given path.
	Load(ctx context.Context, path string) (*RGB, error)
}

// FileLoader loads images from the local filesystem.
type FileLoader struct{}

// NewFileLoader creates a new FileLoader instance.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load loads an image from a file path.
func (l *FileLoader) Load(_ context.Context, path string) (*RGB, error) {
	if path == "" {
		return nil, fmt.Errorf("image path cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return Decode(data)
}

// ValidateImagePath checks that path is an HTTP(S) URL or a local file whose
// header decodes as a supported image format.
func ValidateImagePath(path string) error {
	if path == "" {
		return fmt.Errorf("image path cannot be empty")
	}

	// URLs are fetched later, once.
	if isURL(path) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("image file not found: %s", path)
		}
		return fmt.Errorf("failed to access image path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path) // #nosec G304 - User-specified image path, intended to be read
	if err != nil {
		return fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	if _, _, err := image.DecodeConfig(file); err != nil {
		return fmt.Errorf("unsupported or invalid image format: %w", err)
	}

	return nil
}

// IsImageMIME reports whether a declared MIME type names an image.
func IsImageMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/")
}

// SmartLoader loads images from both local files and HTTP(S) URLs.
type SmartLoader struct {
	fileLoader *FileLoader
	cache      *imagecache.CacheOptions
}

// SmartLoaderOption configures a SmartLoader.
type SmartLoaderOption func(*SmartLoader)

// WithCacheDir keeps downloaded images in dir and reuses them on later loads
// of the same URL. An empty dir selects the default user cache directory.
func WithCacheDir(dir string) SmartLoaderOption {
	return func(l *SmartLoader) {
		l.cache = &imagecache.CacheOptions{CacheDir: dir}
	}
}

// NewSmartLoader creates a new SmartLoader instance.
func NewSmartLoader(opts ...SmartLoaderOption) *SmartLoader {
	l := &SmartLoader{
		fileLoader: NewFileLoader(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads an image from either a local file path or HTTP(S) URL.
func (l *SmartLoader) Load(ctx context.Context, path string) (*RGB, error) {
	if isURL(path) {
		return l.loadFromURL(ctx, path)
	}
	return l.fileLoader.Load(ctx, path)
}

// loadFromURL fetches and decodes an image from an HTTP(S) URL.
func (l *SmartLoader) loadFromURL(ctx context.Context, url string) (*RGB, error) {
	if l.cache != nil {
		path, err := imagecache.DownloadAndCache(ctx, url, *l.cache)
		if err != nil {
			return nil, err
		}
		return l.fileLoader.Load(ctx, path)
	}

	data, err := httputil.Fetch(ctx, url, httputil.FetchOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image from URL: %w", err)
	}
	return Decode(data)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
