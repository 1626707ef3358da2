// Package config provides configuration management for verso using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration file is .verso.yml by default. Every key can be
// overridden with a VERSO_ prefixed environment variable, for example
// VERSO_RENDER_TRIM=true or VERSO_PATHS_OUTPUT=public.
package config

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/verso/internal/app"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/logging"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "VERSO"

// FileName is the default configuration file name without extension.
const FileName = ".verso"

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// keys lists every configuration key so environment overrides reach
// Unmarshal even when the key is absent from the file.
var keys = []string{
	"render.sync", "render.handlers", "render.async_helpers",
	"render.preserve_whitespace", "render.trim", "render.recompile",
	"render.layout_history", "render.render_layout", "render.engine",
	"render.layout_regex", "render.layout_tag", "render.layout_key",
	"render.default_layout",
	"paths.pages", "paths.layouts", "paths.partials", "paths.output",
	"paths.extensions",
	"log.level", "log.format", "log.file",
	"watch.debounce", "watch.ignore",
	"engines.sanitize",
}

// BindEnv enables VERSO_ prefixed overrides for every key.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

type Config struct {
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Paths   PathsConfig   `mapstructure:"paths" yaml:"paths"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Engines EnginesConfig `mapstructure:"engines" yaml:"engines"`

	layoutRegex *regexp.Regexp
}

type RenderConfig struct {
	Sync               bool     `mapstructure:"sync" yaml:"sync"`
	Handlers           []string `mapstructure:"handlers" yaml:"handlers"`
	AsyncHelpers       bool     `mapstructure:"async_helpers" yaml:"async_helpers"`
	PreserveWhitespace bool     `mapstructure:"preserve_whitespace" yaml:"preserve_whitespace"`
	Trim               bool     `mapstructure:"trim" yaml:"trim"`
	Recompile          bool     `mapstructure:"recompile" yaml:"recompile"`
	LayoutHistory      bool     `mapstructure:"layout_history" yaml:"layout_history"`
	RenderLayout       bool     `mapstructure:"render_layout" yaml:"render_layout"`
	Engine             string   `mapstructure:"engine" yaml:"engine"`
	LayoutRegex        string   `mapstructure:"layout_regex" yaml:"layout_regex"`
	LayoutTag          string   `mapstructure:"layout_tag" yaml:"layout_tag"`
	LayoutKey          string   `mapstructure:"layout_key" yaml:"layout_key"`
	DefaultLayout      string   `mapstructure:"default_layout" yaml:"default_layout"`
}

type PathsConfig struct {
	Pages      string   `mapstructure:"pages" yaml:"pages"`
	Layouts    string   `mapstructure:"layouts" yaml:"layouts"`
	Partials   string   `mapstructure:"partials" yaml:"partials"`
	Output     string   `mapstructure:"output" yaml:"output"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File additionally receives JSON logs when set.
	File string `mapstructure:"file" yaml:"file"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type EnginesConfig struct {
	// Sanitize runs rendered markdown through a UGC HTML policy.
	Sanitize bool `mapstructure:"sanitize" yaml:"sanitize"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// engine: false in YAML arrives as a bool
	if raw, ok := v.Get("render.engine").(bool); ok && !raw {
		config.Render.Engine = ""
	}
	if v.IsSet("render.handlers") && len(config.Render.Handlers) == 0 {
		config.Render.Handlers = v.GetStringSlice("render.handlers")
	}
	if v.IsSet("paths.extensions") && len(config.Paths.Extensions) == 0 {
		config.Paths.Extensions = v.GetStringSlice("paths.extensions")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration").WithCause(err)
	}
	return &config, nil
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Paths.Pages == "" {
		config.Paths.Pages = "pages"
	}
	if config.Paths.Layouts == "" {
		config.Paths.Layouts = "layouts"
	}
	if config.Paths.Partials == "" {
		config.Paths.Partials = "partials"
	}
	if config.Paths.Output == "" {
		config.Paths.Output = "dist"
	}
	if config.Render.LayoutKey == "" {
		config.Render.LayoutKey = "layout"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = 300 * time.Millisecond
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{".git", "node_modules"}
	}
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateRenderConfig(config); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	for name, p := range map[string]string{
		"pages":    config.Paths.Pages,
		"layouts":  config.Paths.Layouts,
		"partials": config.Paths.Partials,
		"output":   config.Paths.Output,
	} {
		if err := validatePath(p); err != nil {
			return fmt.Errorf("paths config: invalid %s path '%s': %w", name, p, err)
		}
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}
	if config.Log.File != "" {
		if err := validatePath(config.Log.File); err != nil {
			return fmt.Errorf("log config: invalid file '%s': %w", config.Log.File, err)
		}
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce cannot be negative")
	}
	return nil
}

func validateRenderConfig(config *Config) error {
	r := &config.Render
	if r.Sync && r.AsyncHelpers {
		return fmt.Errorf("async_helpers cannot be used with sync")
	}
	if r.LayoutRegex != "" {
		re, err := regexp.Compile(r.LayoutRegex)
		if err != nil {
			return fmt.Errorf("layout_regex: %w", err)
		}
		config.layoutRegex = re
	}
	for _, h := range r.Handlers {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("handlers cannot contain empty names")
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}
	return nil
}

// ToOptions converts the render settings into app options.
func (c *Config) ToOptions(logger logging.Logger) []app.Option {
	r := c.Render
	opts := []app.Option{
		app.Sync(r.Sync),
		app.Handlers(r.Handlers...),
		app.AsyncHelpers(r.AsyncHelpers),
		app.PreserveWhitespace(r.PreserveWhitespace),
		app.Trim(r.Trim),
		app.Recompile(r.Recompile),
		app.LayoutHistory(r.LayoutHistory),
		app.RenderLayout(r.RenderLayout),
		app.DefaultEngine(r.Engine),
		app.LayoutKey(r.LayoutKey),
		app.LayoutTag(r.LayoutTag),
	}
	if c.layoutRegex != nil {
		opts = append(opts, app.LayoutRegex(c.layoutRegex))
	}
	if logger != nil {
		opts = append(opts, app.WithLogger(logger))
	}
	return opts
}

// LoggerConfig builds the logger configuration writing to out.
func (c *Config) LoggerConfig(out io.Writer) *logging.LoggerConfig {
	level, _ := logging.ParseLevel(c.Log.Level)
	return &logging.LoggerConfig{
		Level:  level,
		Format: c.Log.Format,
		Output: out,
	}
}
