package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/non4ik-sdk/palettron/internal/colour"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format  string
		path    string
		want    string
		wantErr bool
	}{
		{path: "", want: formatHex},
		{path: "colours.txt", want: formatHex},
		{path: "colours.JSON", want: formatJSON},
		{path: "colours.pal.xz", want: formatPAL},
		{path: "colours.json.gz", want: formatJSON},
		{path: "colours.png", want: formatHex},
		{format: "RGB", path: "colours.json", want: formatRGB},
		{format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.path, func(t *testing.T) {
			got, err := resolveFormat(tt.format, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveFormat(%q, %q) = %q, want %q", tt.format, tt.path, got, tt.want)
			}
		})
	}
}

func TestIsPaletteFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.hex":                      true,
		"a.pal.gz":                   true,
		"a.JSON.xz":                  true,
		"a.png":                      false,
		"a.jpg.gz":                   false,
		"https://example.com/a.webp": false,
	} {
		if got := isPaletteFile(path); got != want {
			t.Errorf("isPaletteFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestParseTextPalette(t *testing.T) {
	text := `// exported palette
#ff0000

rgb(0, 255, 0)
  #00F
#ff0000
`
	p, err := parseTextPalette(strings.NewReader(text))
	if err != nil {
		t.Fatalf("parseTextPalette failed: %v", err)
	}

	want := "#ff0000,#00ff00,#0000ff"
	if got := strings.Join(p.ToHex(), ","); got != want {
		t.Errorf("parseTextPalette() = %s, want %s", got, want)
	}

	if _, err := parseTextPalette(strings.NewReader("rgb(1, 2)\n")); err == nil {
		t.Error("parseTextPalette with short rgb() expected error")
	}
	if _, err := parseTextPalette(strings.NewReader("// nothing\n")); err == nil {
		t.Error("parseTextPalette with no colours expected error")
	}
}

func TestFormatPalettePreview(t *testing.T) {
	p := colour.NewPalette([]colour.Colour{colour.NewColour(1, 2, 3)})

	plain, err := formatPalette(p, formatHex, false)
	if err != nil {
		t.Fatalf("formatPalette failed: %v", err)
	}
	if string(plain) != "#010203\n" {
		t.Errorf("formatPalette() = %q, want #010203", plain)
	}

	withSwatch, err := formatPalette(p, formatRGB, true)
	if err != nil {
		t.Fatalf("formatPalette failed: %v", err)
	}
	if !strings.HasPrefix(string(withSwatch), ansiBgPrefix+"1;2;3m") || !strings.HasSuffix(string(withSwatch), "rgb(1, 2, 3)\n") {
		t.Errorf("formatPalette() = %q, want swatch then rgb()", withSwatch)
	}
}

func TestWantPreview(t *testing.T) {
	var buf bytes.Buffer

	if got, _ := wantPreview(previewAuto, &buf); got {
		t.Error("wantPreview(auto) = true for a buffer")
	}
	if got, _ := wantPreview(previewAlways, &buf); !got {
		t.Error("wantPreview(always) = false")
	}
	if _, err := wantPreview("loud", &buf); err == nil {
		t.Error("wantPreview(loud) expected error")
	}
}

func TestPaletteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := colour.NewPalette([]colour.Colour{
		colour.NewColour(255, 0, 0),
		colour.NewColour(0, 0, 0),
		colour.NewColour(17, 34, 51),
	})

	for _, name := range []string{"p.hex", "p.txt.gz", "p.json", "p.json.xz", "p.pal", "p.pal.gz", "p.pal.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			format, err := resolveFormat("", path)
			if err != nil {
				t.Fatalf("resolveFormat failed: %v", err)
			}
			data, err := formatPalette(p, format, false)
			if err != nil {
				t.Fatalf("formatPalette failed: %v", err)
			}
			if err := writeOutput(nil, path, data); err != nil {
				t.Fatalf("writeOutput failed: %v", err)
			}

			got, err := readPaletteFile(path)
			if err != nil {
				t.Fatalf("readPaletteFile failed: %v", err)
			}
			if !got.Equal(p) {
				t.Errorf("readPaletteFile() = %v, want %v", got.ToHex(), p.ToHex())
			}
		})
	}
}

func TestWriteOutputStdout(t *testing.T) {
	for _, path := range []string{"", "-"} {
		var buf bytes.Buffer
		if err := writeOutput(&buf, path, []byte("data")); err != nil {
			t.Fatalf("writeOutput(%q) failed: %v", path, err)
		}
		if buf.String() != "data" {
			t.Errorf("writeOutput(%q) wrote %q", path, buf.String())
		}
	}
}

func TestReadPaletteFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := readPaletteFile(path); err == nil {
		t.Error("readPaletteFile of corrupt gzip expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.IntP("colours", "c", 256, "")
		fs.String("addr", ":8080", "")
		return fs
	}

	t.Run("env fills unset flag", func(t *testing.T) {
		t.Setenv("PALETTRON_MAX_COLOURS", " 12 ")
		t.Setenv("PALETTRON_ADDR", "")
		fs := newFlags()
		if err := applyEnv(fs); err != nil {
			t.Fatalf("applyEnv failed: %v", err)
		}
		if got, _ := fs.GetInt("colours"); got != 12 {
			t.Errorf("colours = %d, want 12", got)
		}
		if got, _ := fs.GetString("addr"); got != ":8080" {
			t.Errorf("addr = %q, want default for empty env", got)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("PALETTRON_MAX_COLOURS", "12")
		fs := newFlags()
		if err := fs.Parse([]string{"-c", "3"}); err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if err := applyEnv(fs); err != nil {
			t.Fatalf("applyEnv failed: %v", err)
		}
		if got, _ := fs.GetInt("colours"); got != 3 {
			t.Errorf("colours = %d, want 3", got)
		}
	})

	t.Run("unbound flags ignored", func(t *testing.T) {
		t.Setenv("PALETTRON_REDIS_ADDR", "localhost:6379")
		if err := applyEnv(newFlags()); err != nil {
			t.Errorf("applyEnv failed: %v", err)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("PALETTRON_MAX_COLOURS", "many")
		err := applyEnv(newFlags())
		if err == nil || !strings.Contains(err.Error(), "PALETTRON_MAX_COLOURS") {
			t.Errorf("applyEnv() error = %v, want it to name PALETTRON_MAX_COLOURS", err)
		}
	})
}
