package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/verso/internal/config"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/logging"
	"github.com/conneroisu/verso/internal/site"
	"github.com/conneroisu/verso/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Render, then re-render whenever sources change",
	Long: `Watch renders the site once and then re-renders it whenever a page,
layout or partial changes. Changes are debounced (watch.debounce) and paths
matching watch.ignore are skipped.

Examples:
  verso watch                     # Watch the configured directories
  verso watch --verbose           # List changed files on every rebuild
  verso watch -k                  # Keep going past failing pages`,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "render", "verbosity")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return err
	}

	cfg, logger, closeLog, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closeLog()
	watchFlags.Apply(cmd, cfg)

	b, err := newBuilder(cfg, logger, watchFlags)
	if err != nil {
		return err
	}

	fileWatcher, err := newWatcher(cfg, logger, b)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	handler := errors.NewErrorHandler(logger)
	rebuild := func(ctx context.Context) {
		result, err := b.Build(ctx)
		if !watchFlags.Quiet {
			printResult(out, b, result, watchFlags.Verbose)
		}
		handler.Handle(ctx, err)
	}

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchFlags.Verbose {
			fmt.Fprintln(out, "File changes detected:")
			for _, event := range events {
				fmt.Fprintf(out, "   %s: %s\n", event.Type, event.Path)
			}
		} else if !watchFlags.Quiet {
			fmt.Fprintf(out, "%d file(s) changed\n", len(events))
		}
		rebuild(ctx)
		return nil
	})

	rebuild(ctx)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	if !watchFlags.Quiet {
		printWatching(out, fileWatcher)
	}
	<-ctx.Done()
	if !watchFlags.Quiet {
		fmt.Fprintln(out, "Stopping file watcher...")
	}
	return nil
}

// newWatcher watches the source directories of b. Missing directories are
// skipped with a warning.
func newWatcher(cfg *config.Config, logger logging.Logger, b *site.Builder) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ignore, err := watcher.IgnoreFilter(cfg.Watch.Ignore...)
	if err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("invalid watch.ignore: %w", err)
	}
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoBackupFilter)
	fileWatcher.AddFilter(ignore)
	fileWatcher.AddFilter(watcher.ExtensionFilter(cfg.Paths.Extensions...))

	for _, dir := range b.SourceDirs() {
		if err := fileWatcher.AddRecursive(dir); err != nil {
			logger.Warn(context.Background(), err, "cannot watch directory", "dir", dir)
		}
	}
	return fileWatcher, nil
}

func printWatching(w io.Writer, fw *watcher.FileWatcher) {
	for _, p := range fw.WatchList() {
		fmt.Fprintf(w, "   - Watching: %s\n", p)
	}
	fmt.Fprintln(w, "Watching for changes... (Press Ctrl+C to stop)")
}
