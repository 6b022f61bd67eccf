// Package imagecache keeps downloaded remote images on disk so repeated runs
// against the same URL skip the download.
package imagecache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	httputil "github.com/non4ik-sdk/palettron/internal/util/http"
)

// CacheOptions configures image caching behavior.
type CacheOptions struct {
	// CacheDir is the directory where images will be cached.
	// If empty, defaults to ~/.cache/palettron/images
	CacheDir string

	// Refresh downloads the image again even when a cached copy exists.
	Refresh bool

	// Fetch configures the download itself.
	Fetch httputil.FetchOptions
}

// DefaultCacheDir returns the default cache directory path.
func DefaultCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine cache directory: %w", err)
		}
		return filepath.Join(home, ".cache", "palettron", "images"), nil
	}
	return filepath.Join(cacheDir, "palettron", "images"), nil
}

// Filename returns the deterministic cache file name for url: a hash of the
// URL plus its original extension.
func Filename(url string) string {
	hash := sha256.Sum256([]byte(url))

	ext := filepath.Ext(url)
	if idx := strings.IndexAny(ext, "?#"); idx != -1 {
		ext = ext[:idx]
	}
	if ext == "" || len(ext) > 5 || strings.Contains(ext, "/") {
		ext = ".img"
	}

	return fmt.Sprintf("%x%s", hash[:16], strings.ToLower(ext))
}

// DownloadAndCache downloads a remote image into the cache directory and
// returns the local file path. A cached copy is reused unless opts.Refresh.
func DownloadAndCache(ctx context.Context, url string, opts CacheOptions) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("invalid URL: must start with http:// or https://")
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		defaultDir, err := DefaultCacheDir()
		if err != nil {
			return "", err
		}
		cacheDir = defaultDir
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil { // #nosec G301 - Cache directory needs standard permissions
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	cachedPath := filepath.Join(cacheDir, Filename(url))

	if !opts.Refresh {
		if info, err := os.Stat(cachedPath); err == nil && info.Mode().IsRegular() {
			return cachedPath, nil
		}
	}

	data, err := httputil.Fetch(ctx, url, opts.Fetch)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}

	// Concurrent runs must never see a half-written file.
	tmp, err := os.CreateTemp(cacheDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to write cached image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write cached image: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachedPath); err != nil {
		return "", fmt.Errorf("failed to write cached image: %w", err)
	}

	return cachedPath, nil
}
