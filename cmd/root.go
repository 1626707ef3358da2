// Package cmd provides the command-line interface for verso.
//
// Configuration System:
//
//	Settings are read from several sources with clear precedence:
//	1. Command-line flags (--config, --log-level, ...) - highest priority
//	2. VERSO_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (VERSO_RENDER_TRIM, ...)
//	4. Configuration files (.verso.yml) - lowest priority
//
// Environment Variables:
//
//	VERSO_CONFIG_FILE: Path to custom configuration file
//	VERSO_PATHS_OUTPUT: Override the output directory
//	VERSO_LOG_LEVEL: Override the log level
//	VERSO_LOG_FILE: Mirror logs as JSON into a file
//	And every other key following the VERSO_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/verso/internal/config"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/logging"
)

var (
	cfgFile string
	rootDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "verso",
	Short: "Render collections of views through template engines and layouts",
	Long: `verso renders pages through pluggable template engines, wraps them in
nested layouts and runs every view through a load, compile and render
pipeline.

Quick Start:
  verso render                    Render pages into the output directory
  verso watch                     Render, then re-render on changes
  verso engines                   List registered engines

Project layout (configurable in .verso.yml):
  pages/      renderable views
  layouts/    layouts wrapping pages through {% body %}
  partials/   snippets available to every template
  dist/       rendered output`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it until an
// interrupt or termination signal arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .verso.yml in the site root, can also use VERSO_CONFIG_FILE env var)")
	flags.StringVarP(&rootDir, "root", "C", ".", "site root directory")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-file", "", "also write JSON logs to this file")

	AddFlagValidation(rootCmd, "log-format", func(format string) error {
		return ValidateFormat(format, []string{"text", "json"})
	})
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. VERSO_CONFIG_FILE environment variable
//  3. .verso.yml in the site root
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("VERSO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(rootDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("log.file", flags.Lookup("log-file"))

	if err := config.BindEnv(viper.GetViper()); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to bind environment:", err)
	}

	// a missing or unreadable file falls back to defaults
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger for a command.
// The returned func closes the log file, if any.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

// newLogger logs to w and, when log.file is set, mirrors every entry as
// JSON into that file.
func newLogger(w io.Writer, cfg *config.Config) (logging.Logger, func(), error) {
	console := logging.NewLogger(cfg.LoggerConfig(w))
	if cfg.Log.File == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.NewIOError(errors.ErrCodeWriteFailed, "failed to open log file", err).WithPath(cfg.Log.File)
	}
	fileConfig := cfg.LoggerConfig(f)
	fileConfig.Format = "json"

	logger := logging.NewMultiLogger(console, logging.NewLogger(fileConfig))
	return logger, func() { _ = f.Close() }, nil
}

// siteRoot returns the absolute site root.
func siteRoot() (string, error) {
	return filepath.Abs(rootDir)
}
