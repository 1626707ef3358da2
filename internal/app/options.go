package app

import (
	"maps"
	"regexp"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/layout"
	"github.com/conneroisu/verso/internal/logging"
)

// Config is the app-wide configuration. It is fixed once New returns.
type Config struct {
	// Sync restricts handlers and engines to their non-blocking forms.
	Sync bool
	// Handlers declares custom stage names next to the lifecycle stages.
	Handlers []string
	// Helpers are passed to every engine.
	Helpers map[string]any
	// AsyncHelpers allows context-taking helpers. Invalid with Sync.
	AsyncHelpers bool
	// PreserveWhitespace indents spliced content to the body marker.
	PreserveWhitespace bool
	// Trim trims composed contents.
	Trim bool
	// Recompile rebuilds cached compiled functions on every compile.
	Recompile bool
	// LayoutHistory keeps the applied layout names on View.LayoutStack.
	LayoutHistory bool
	// RenderLayout renders every layout through its engine before splicing.
	RenderLayout bool
	// Engine is the app default engine. Empty or "false" disables it.
	Engine string
	// LayoutRegex matches the body marker.
	LayoutRegex *regexp.Regexp
	// LayoutTag is a literal body marker, used when LayoutRegex is nil.
	LayoutTag string
	// LayoutKey names the data field holding a view's layout.
	LayoutKey string
	Logger    logging.Logger
}

// Option configures an App.
type Option func(*Config)

// Sync selects sync execution mode.
func Sync(on bool) Option {
	return func(c *Config) { c.Sync = on }
}

// Handlers declares custom stages.
func Handlers(names ...string) Option {
	return func(c *Config) { c.Handlers = append(c.Handlers, names...) }
}

// Helper adds one helper.
func Helper(name string, fn any) Option {
	return func(c *Config) {
		if c.Helpers == nil {
			c.Helpers = make(map[string]any)
		}
		c.Helpers[name] = fn
	}
}

// Helpers adds several helpers.
func Helpers(helpers map[string]any) Option {
	return func(c *Config) {
		if c.Helpers == nil {
			c.Helpers = make(map[string]any, len(helpers))
		}
		maps.Copy(c.Helpers, helpers)
	}
}

// AsyncHelpers allows context-taking helpers.
func AsyncHelpers(on bool) Option {
	return func(c *Config) { c.AsyncHelpers = on }
}

// PreserveWhitespace indents spliced layout content.
func PreserveWhitespace(on bool) Option {
	return func(c *Config) { c.PreserveWhitespace = on }
}

// Trim trims composed contents.
func Trim(on bool) Option {
	return func(c *Config) { c.Trim = on }
}

// Recompile forces engines to recompile on every compile.
func Recompile(on bool) Option {
	return func(c *Config) { c.Recompile = on }
}

// LayoutHistory keeps applied layout names on each view.
func LayoutHistory(on bool) Option {
	return func(c *Config) { c.LayoutHistory = on }
}

// RenderLayout renders layouts through their engines before splicing.
func RenderLayout(on bool) Option {
	return func(c *Config) { c.RenderLayout = on }
}

// DefaultEngine sets the app default engine.
func DefaultEngine(name string) Option {
	return func(c *Config) { c.Engine = name }
}

// LayoutRegex sets the body marker pattern.
func LayoutRegex(re *regexp.Regexp) Option {
	return func(c *Config) { c.LayoutRegex = re }
}

// LayoutTag sets a literal body marker.
func LayoutTag(tag string) Option {
	return func(c *Config) { c.LayoutTag = tag }
}

// LayoutKey sets the layout data field name.
func LayoutKey(key string) Option {
	return func(c *Config) { c.LayoutKey = key }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

func setup(c *Config, options ...Option) error {
	for _, opt := range options {
		opt(c)
	}

	if c.Sync && c.AsyncHelpers {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "asyncHelpers cannot be used in sync mode")
	}
	if c.Engine == "false" {
		c.Engine = ""
	}
	if c.LayoutKey == "" {
		c.LayoutKey = layout.DefaultKey
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	return nil
}
