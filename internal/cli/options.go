package cli

import (
	"image"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"

	"github.com/non4ik-sdk/palettron/internal/colour"
	imageutil "github.com/non4ik-sdk/palettron/internal/image"
	"github.com/non4ik-sdk/palettron/internal/seed"
)

// extractOptions are the palette extraction flags shared by extract, apply
// and serve.
type extractOptions struct {
	colours  int
	workSize int
	kernel   imageutil.Kernel
	seedMode seed.Mode
	seed     int64
	cacheDir string
}

func newExtractOptions() *extractOptions {
	return &extractOptions{
		colours:  colour.DefaultMaxColours,
		workSize: colour.DefaultWorkSize,
		kernel:   imageutil.KernelNearest,
		seedMode: seed.ModeRandom,
	}
}

// addFlags registers the extraction flags on fs. Per-image seed modes make no
// sense for a long-running server, so serve leaves out --seed-mode.
func (o *extractOptions) addFlags(fs *pflag.FlagSet, withSeedMode bool) {
	fs.IntVarP(&o.colours, "colours", "c", o.colours, "maximum number of palette colours")
	fs.IntVar(&o.workSize, "work-size", o.workSize, "side of the square the palette source is resized to")
	fs.Var(&o.kernel, "kernel", "resize kernel (nearest, bilinear, catmullrom)")
	fs.Int64Var(&o.seed, "seed", 0, "seed for colour sampling (implies --seed-mode manual)")
	if withSeedMode {
		fs.Var(&o.seedMode, "seed-mode", "how the sampling seed is chosen (random, content, filepath, manual)")
	}
}

// addLoaderFlags registers the flags of commands that load images from paths
// or URLs.
func (o *extractOptions) addLoaderFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.cacheDir, "cache-dir", "", "keep images downloaded from URLs in this directory and reuse them")
}

// loader validates source and returns a loader for it.
func (o *extractOptions) loader(source string) (imageutil.Loader, error) {
	if err := imageutil.ValidateImagePath(source); err != nil {
		return nil, err
	}
	if o.cacheDir != "" {
		return imageutil.NewSmartLoader(imageutil.WithCacheDir(o.cacheDir)), nil
	}
	return imageutil.NewSmartLoader(), nil
}

func (o *extractOptions) config() colour.ExtractorConfig {
	return colour.ExtractorConfig{
		MaxColours: o.colours,
		WorkSize:   o.workSize,
		Kernel:     o.kernel,
	}
}

// resolveSeed picks the sampling seed for one extraction from img, loaded
// from source.
func (o *extractOptions) resolveSeed(fs *pflag.FlagSet, img image.Image, source string) (int64, error) {
	cfg := seed.Config{Mode: o.seedMode}
	if fs.Changed("seed") {
		if !fs.Changed("seed-mode") {
			cfg.Mode = seed.ModeManual
		}
		cfg.Value = &o.seed
	}
	return seed.Calculate(img, source, cfg)
}

// extract builds a seeded extractor for img and runs it.
func (o *extractOptions) extract(fs *pflag.FlagSet, logger hclog.Logger, img image.Image, source string) (*colour.Palette, error) {
	s, err := o.resolveSeed(fs, img, source)
	if err != nil {
		return nil, err
	}

	extractor, err := colour.NewSampleExtractor(o.config(),
		colour.WithSeed(s),
		colour.WithLogger(logger.Named("extract")),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("extracting palette", "source", source, "max_colours", o.colours, "seed", s)
	return extractor.Extract(img, o.colours)
}
