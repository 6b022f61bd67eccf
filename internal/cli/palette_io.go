package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/non4ik-sdk/palettron/internal/colour"
	"github.com/non4ik-sdk/palettron/internal/compression"
)

// Palette output formats.
const (
	formatHex  = "hex"
	formatRGB  = "rgb"
	formatJSON = "json"
	formatPAL  = "pal"
)

var paletteExtensions = map[string]string{
	".hex":  formatHex,
	".txt":  formatHex,
	".json": formatJSON,
	".pal":  formatPAL,
}

// Preview modes for terminal colour swatches.
const (
	previewAuto   = "auto"
	previewAlways = "always"
	previewNever  = "never"
)

// ANSI escape codes for terminal colours.
const (
	ansiReset    = "\033[0m"
	ansiBgPrefix = "\033[48;2;"
	swatchWidth  = 8
)

// resolveFormat returns format, or the one implied by path when format is
// empty. Compression extensions are looked through.
func resolveFormat(format, path string) (string, error) {
	if format == "" {
		if f, ok := paletteExtensions[strings.ToLower(filepath.Ext(compression.Strip(path)))]; ok {
			return f, nil
		}
		return formatHex, nil
	}
	format = strings.ToLower(format)
	if !slices.Contains([]string{formatHex, formatRGB, formatJSON, formatPAL}, format) {
		return "", fmt.Errorf("unsupported format: %s (supported: hex, rgb, json, pal)", format)
	}
	return format, nil
}

// formatPalette renders the palette in the given format.
func formatPalette(p *colour.Palette, format string, preview bool) ([]byte, error) {
	switch format {
	case formatHex, formatRGB:
		var buf bytes.Buffer
		for _, c := range p.ToRGBSlice() {
			text := c.Hex()
			if format == formatRGB {
				text = c.String()
			}
			if preview {
				buf.WriteString(swatch(c) + "  ")
			}
			buf.WriteString(text + "\n")
		}
		return buf.Bytes(), nil
	case formatJSON:
		data, err := p.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return append(data, '\n'), nil
	case formatPAL:
		var buf bytes.Buffer
		if err := colour.WritePAL(&buf, p); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// swatch returns a solid block of c for a true-colour terminal.
func swatch(c colour.RGB) string {
	return fmt.Sprintf("%s%d;%d;%dm%s%s", ansiBgPrefix, c.R, c.G, c.B,
		strings.Repeat(" ", swatchWidth), ansiReset)
}

// wantPreview decides whether swatches are drawn for output going to w.
func wantPreview(mode string, w io.Writer) (bool, error) {
	switch mode {
	case previewAlways:
		return true, nil
	case previewNever:
		return false, nil
	case previewAuto:
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil // #nosec G115 -- file descriptors fit in int
	default:
		return false, fmt.Errorf("invalid preview mode: %s (valid: auto, always, never)", mode)
	}
}

// writeOutput writes data to path, compressing it when the path ends in .gz
// or .xz. An empty path or "-" means w.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}

	f, err := os.Create(path) // #nosec G304 -- output path chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	cw, err := compression.NewWriter(compression.Detect(path), f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := cw.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := cw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

// isPaletteFile reports whether path names a saved palette rather than an image.
func isPaletteFile(path string) bool {
	_, ok := paletteExtensions[strings.ToLower(filepath.Ext(compression.Strip(path)))]
	return ok
}

// readPaletteFile loads a palette written by the extract command.
func readPaletteFile(path string) (*colour.Palette, error) {
	f, err := os.Open(path) // #nosec G304 -- palette path chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open palette: %w", err)
	}
	defer f.Close()

	r, err := compression.NewReader(compression.Detect(path), f)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	format, err := resolveFormat("", path)
	if err != nil {
		return nil, err
	}

	switch format {
	case formatPAL:
		return colour.ReadPAL(r)
	case formatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read palette: %w", err)
		}
		return colour.FromJSON(data)
	default:
		return parseTextPalette(r)
	}
}

// parseTextPalette reads one colour per line, as "#rrggbb" or "rgb(r, g, b)".
// Blank lines and lines starting with "//" are skipped.
func parseTextPalette(r io.Reader) (*colour.Palette, error) {
	var hexes []string
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}
		if strings.HasPrefix(text, "rgb(") {
			var c colour.RGB
			if _, err := fmt.Sscanf(text, "rgb(%d, %d, %d)", &c.R, &c.G, &c.B); err != nil {
				return nil, fmt.Errorf("line %d: invalid colour %q", line, text)
			}
			text = c.Hex()
		}
		hexes = append(hexes, text)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}
	return colour.ParseHexPalette(hexes)
}
