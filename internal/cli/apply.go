package cli

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/non4ik-sdk/palettron/internal/colour"
	imageutil "github.com/non4ik-sdk/palettron/internal/image"
)

type applyCmdOptions struct {
	*extractOptions
	palette string
	output  string
}

func newApplyCmd(global *globalOptions) *cobra.Command {
	opts := &applyCmdOptions{extractOptions: newExtractOptions()}

	cmd := &cobra.Command{
		Use:   "apply --palette <palette|image> <target>",
		Short: "Recolour an image with a palette",
		Long: `Replace every pixel of the target image with the nearest palette colour.

The palette is either a file written by "palettron extract" (.hex, .txt,
.json or .pal, optionally .gz or .xz compressed) or any other image, whose
palette is extracted first with the same flags as "extract".

The result is always written as PNG.

Examples:
  # Repaint photo.jpg with the colours of painting.png
  palettron apply -p painting.png -o out.png photo.jpg

  # Reuse a saved palette
  palettron extract -c 32 -o palette.json painting.png
  palettron apply -p palette.json -o out.png photo.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, global, opts, args[0])
		},
	}

	fs := cmd.Flags()
	opts.addFlags(fs, true)
	opts.addLoaderFlags(fs)
	fs.StringVarP(&opts.palette, "palette", "p", "", "palette file or palette source image (required)")
	fs.StringVarP(&opts.output, "output", "o", "", `output PNG file, "-" for stdout (required)`)
	_ = cmd.MarkFlagRequired("palette")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runApply(cmd *cobra.Command, global *globalOptions, opts *applyCmdOptions, target string) error {
	if err := applyEnv(cmd.Flags()); err != nil {
		return err
	}
	logger := global.logger(cmd)

	palette, err := loadPalette(cmd, logger, opts)
	if err != nil {
		return err
	}

	logger.Debug("loading target image", "source", target)
	loader, err := opts.loader(target)
	if err != nil {
		return fmt.Errorf("failed to load target image: %w", err)
	}
	img, err := loader.Load(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("failed to load target image: %w", err)
	}

	result, err := colour.Apply(palette, img)
	if err != nil {
		return fmt.Errorf("failed to apply palette: %w", err)
	}

	data, err := imageutil.EncodePNG(result)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), opts.output, data); err != nil {
		return err
	}

	logger.Info("recoloured image", "target", target, "colours", palette.Len(),
		"width", result.Bounds().Dx(), "height", result.Bounds().Dy())
	return nil
}

// loadPalette reads a saved palette, or extracts one from an image.
func loadPalette(cmd *cobra.Command, logger hclog.Logger, opts *applyCmdOptions) (*colour.Palette, error) {
	if isPaletteFile(opts.palette) {
		palette, err := readPaletteFile(opts.palette)
		if err != nil {
			return nil, fmt.Errorf("failed to read palette %s: %w", opts.palette, err)
		}
		logger.Debug("read palette", "path", opts.palette, "colours", palette.Len())
		return palette, nil
	}

	if err := opts.config().Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loader, err := opts.loader(opts.palette)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette image: %w", err)
	}
	img, err := loader.Load(cmd.Context(), opts.palette)
	if err != nil {
		return nil, fmt.Errorf("failed to load palette image: %w", err)
	}
	palette, err := opts.extract(cmd.Flags(), logger, img, opts.palette)
	if err != nil {
		return nil, fmt.Errorf("failed to extract colours: %w", err)
	}
	return palette, nil
}
