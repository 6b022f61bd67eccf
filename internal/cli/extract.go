package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type extractCmdOptions struct {
	*extractOptions
	format  string
	output  string
	preview string
}

func newExtractCmd(global *globalOptions) *cobra.Command {
	opts := &extractCmdOptions{extractOptions: newExtractOptions()}

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Extract a colour palette from an image",
		Long: `Extract the distinct colours of an image as a palette.

The image is resized to a --work-size square first. If it then holds more
than --colours distinct colours, a uniform random subset is kept. Use --seed
or --seed-mode to make the subset reproducible.

The image may be a local file or an http(s) URL.

Supported image formats: JPEG, PNG, GIF, WebP, BMP, TIFF

Examples:
  # Print up to 256 colours as hex
  palettron extract wallpaper.jpg

  # Keep 16 colours, the same 16 every run for this picture
  palettron extract -c 16 --seed-mode content wallpaper.jpg

  # Use a remote image, downloading it only once
  palettron extract --cache-dir ~/.cache/palettron https://example.com/art.png

  # Save as JSON, or as an xz-compressed RIFF palette
  palettron extract -o palette.json wallpaper.jpg
  palettron extract -o palette.pal.xz wallpaper.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, global, opts, args[0])
		},
	}

	fs := cmd.Flags()
	opts.addFlags(fs, true)
	opts.addLoaderFlags(fs)
	fs.StringVarP(&opts.format, "format", "f", "", "output format (hex, rgb, json, pal; default from --output extension, else hex)")
	fs.StringVarP(&opts.output, "output", "o", "", "output file, .gz and .xz are compressed (default: stdout)")
	fs.StringVar(&opts.preview, "preview", previewAuto, "show colour swatches on stdout (auto, always, never)")

	return cmd
}

func runExtract(cmd *cobra.Command, global *globalOptions, opts *extractCmdOptions, source string) error {
	if err := applyEnv(cmd.Flags()); err != nil {
		return err
	}
	logger := global.logger(cmd)

	if err := opts.config().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	format, err := resolveFormat(opts.format, opts.output)
	if err != nil {
		return err
	}
	preview := false
	if opts.output == "" && format != formatPAL {
		if preview, err = wantPreview(opts.preview, cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	logger.Debug("loading image", "source", source)
	loader, err := opts.loader(source)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	img, err := loader.Load(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	logger.Debug("image loaded", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	palette, err := opts.extract(cmd.Flags(), logger, img, source)
	if err != nil {
		return fmt.Errorf("failed to extract colours: %w", err)
	}
	logger.Info("extracted palette", "colours", palette.Len())

	data, err := formatPalette(palette, format, preview)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), opts.output, data); err != nil {
		return err
	}
	if opts.output != "" {
		logger.Info("wrote palette", "path", opts.output, "format", format)
	}
	return nil
}
