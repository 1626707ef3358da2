package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/verso/internal/config"
	"github.com/conneroisu/verso/internal/logging"
	"github.com/conneroisu/verso/internal/site"
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Aliases: []string{"r", "build"},
	Short:   "Render every page into the output directory",
	Long: `Render loads layouts, partials and pages, runs each page through the
compile and render pipeline and writes the result to the output directory.

Examples:
  verso render                        # Render with .verso.yml settings
  verso render -o public              # Render into ./public
  verso render -k                     # Keep going past failing pages
  verso render -d title="My Site"     # Add app data visible to every page
  verso render -C ./docs --verbose    # Render the site rooted at ./docs`,
	RunE: runRender,
}

var renderFlags *StandardFlags

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = AddStandardFlags(renderCmd, "render", "verbosity")
}

func runRender(cmd *cobra.Command, args []string) error {
	if err := renderFlags.ValidateFlags(); err != nil {
		return err
	}

	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	renderFlags.Apply(cmd, cfg)

	b, err := newBuilder(cfg, logger, renderFlags)
	if err != nil {
		return err
	}

	result, err := b.Build(cmd.Context())
	if !renderFlags.Quiet {
		printResult(cmd.OutOrStdout(), b, result, renderFlags.Verbose)
	}
	return err
}

func newBuilder(cfg *config.Config, logger logging.Logger, flags *StandardFlags) (*site.Builder, error) {
	root, err := siteRoot()
	if err != nil {
		return nil, err
	}
	data, err := flags.DataMap()
	if err != nil {
		return nil, err
	}
	return site.New(site.Options{
		Config:    cfg,
		Logger:    logger,
		Root:      root,
		Data:      data,
		KeepGoing: flags.KeepGoing,
	})
}

func printResult(w io.Writer, b *site.Builder, result *site.Result, verbose bool) {
	if result == nil {
		return
	}
	if verbose {
		for _, p := range result.Pages {
			fmt.Fprintf(w, "   %s -> %s (%d bytes)\n", p.Key, p.Output, p.Size)
		}
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "   failed: %s\n", f.Error())
	}
	fmt.Fprintf(w, "Rendered %d page(s) to %s in %s\n",
		len(result.Pages), b.OutputDir(), result.Duration.Round(time.Millisecond))
}
