// Package cli provides the command-line interface for palettron.
package cli

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/non4ik-sdk/palettron/internal/version"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	verbose bool
	quiet   bool
	logJSON bool
}

// NewRootCmd builds the palettron command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "palettron",
		Short: "Recolour images with a palette taken from another image",
		Long: `Palettron takes the colours of one image and repaints another with them.

The palette is the set of distinct colours of the source image, randomly
thinned to at most --colours entries. Every pixel of the target image is
then replaced by the nearest palette colour.

Use "extract" and "apply" locally, or "serve" to run the two-step flow
over HTTP.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")
	pf.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")

	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newApplyCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

// logger returns the command logger. Logs go to stderr so stdout stays clean
// for palettes and images.
func (o *globalOptions) logger(cmd *cobra.Command) hclog.Logger {
	level := hclog.Info
	switch {
	case o.quiet:
		level = hclog.Error
	case o.verbose:
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "palettron",
		Level:      level,
		Output:     cmd.ErrOrStderr(),
		JSONFormat: o.logJSON,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
