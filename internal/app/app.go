// Package app is the render orchestrator. An App owns the engine registry,
// the app-scoped handler router and the collections of views, and runs
// views through the compile and render lifecycle:
//
//	preCompile, preLayout, onLayout (per layout), postLayout,
//	engine compile, postCompile, preRender, engine render, postRender
//
// Every stage runs the app handlers first and then the handlers of the
// view's collection. The first error aborts the lifecycle and is returned
// as is.
package app

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/layout"
	"github.com/conneroisu/verso/internal/logging"
	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

// App is a render orchestrator.
type App struct {
	cfg     Config
	mode    router.Mode
	engines *engines.Registry
	router  *router.Router
	logger  logging.Logger

	mu             sync.RWMutex
	collections    map[string]*Collection
	order          []string
	defaultLayouts layout.Table
	data           map[string]any
	collectionExts []CollectionExtension
}

// New creates an App. The execution mode is fixed here.
func New(options ...Option) (*App, error) {
	var cfg Config
	if err := setup(&cfg, options...); err != nil {
		return nil, err
	}

	mode := router.ModeAsync
	if cfg.Sync {
		mode = router.ModeSync
	}

	a := &App{
		cfg:            cfg,
		mode:           mode,
		engines:        engines.NewRegistry(nil),
		router:         router.New(mode, cfg.Handlers...),
		logger:         cfg.Logger.WithComponent("app"),
		collections:    make(map[string]*Collection),
		defaultLayouts: make(layout.Table),
		data:           make(map[string]any),
	}
	a.logger.Debug(context.Background(), "app created", "mode", mode.String())
	return a, nil
}

// Config returns a copy of the configuration.
func (a *App) Config() Config {
	cfg := a.cfg
	cfg.Helpers = maps.Clone(a.cfg.Helpers)
	cfg.Handlers = append([]string(nil), a.cfg.Handlers...)
	return cfg
}

// Mode returns the execution mode.
func (a *App) Mode() router.Mode {
	return a.mode
}

// Logger returns the app logger.
func (a *App) Logger() logging.Logger {
	return a.logger
}

// Engines returns the app engine registry.
func (a *App) Engines() *engines.Registry {
	return a.engines
}

// Engine registers an engine for the given extensions.
func (a *App) Engine(exts []string, engineLike any, settings map[string]any) error {
	if err := a.engines.Register(exts, engineLike, settings); err != nil {
		return err
	}
	a.logger.Debug(context.Background(), "registered engine", "exts", exts)
	return nil
}

// Router returns the app-scoped router.
func (a *App) Router() *router.Router {
	return a.router
}

// On registers an app-scoped handler. The pattern is parsed with
// router.Parse; an empty pattern matches every view.
func (a *App) On(stage, pattern string, h router.Handler) error {
	p, err := router.Parse(pattern)
	if err != nil {
		return err
	}
	return a.OnMatch(stage, p, h)
}

// OnMatch registers an app-scoped handler with a prepared pattern.
func (a *App) OnMatch(stage string, p router.Pattern, h router.Handler) error {
	if err := a.router.Register(stage, p, h); err != nil {
		return err
	}
	a.logger.Debug(context.Background(), "registered handler", "stage", stage, "pattern", fmt.Sprint(p))
	return nil
}

// Dispatch runs a stage for v across the app scope and the scope of the
// collection owning v.
func (a *App) Dispatch(ctx context.Context, stage string, v *view.View) error {
	return router.Dispatch(ctx, stage, v, a.scopes(a.owner(v))...)
}

// HandleOnce is Dispatch guarded by the view's handled flags.
func (a *App) HandleOnce(ctx context.Context, stage string, v *view.View) error {
	return router.HandleOnce(ctx, stage, v, a.scopes(a.owner(v))...)
}

func (a *App) scopes(c *Collection) []*router.Router {
	if c == nil {
		return []*router.Router{a.router}
	}
	return []*router.Router{a.router, c.router}
}

// Data returns app-level data, merged under collection and view data at
// render time.
func (a *App) Data() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.data)
}

// SetData stores an app-level data value.
func (a *App) SetData(key string, val any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = val
}

// Create makes a collection. Names are unique within an app.
func (a *App) Create(name string, kind view.Kind) (*Collection, error) {
	if name == "" {
		return nil, errors.NewValidationError(errors.ErrCodeDuplicateCollection, "collection name cannot be empty")
	}
	if kind == "" {
		kind = view.KindRenderable
	}
	if !kind.Valid() {
		return nil, errors.NewValidationError(errors.ErrCodeDuplicateCollection, fmt.Sprintf("invalid view kind %q", kind))
	}

	a.mu.Lock()
	if _, ok := a.collections[name]; ok {
		a.mu.Unlock()
		return nil, errors.NewValidationError(errors.ErrCodeDuplicateCollection, fmt.Sprintf("collection %q already exists", name))
	}
	c := newCollection(a, name, kind)
	a.collections[name] = c
	a.order = append(a.order, name)
	exts := append([]CollectionExtension(nil), a.collectionExts...)
	a.mu.Unlock()

	for _, ext := range exts {
		if err := c.Use(ext); err != nil {
			return nil, err
		}
	}
	a.logger.Debug(context.Background(), "created collection", "name", name, "kind", string(kind))
	return c, nil
}

// Collection returns a collection by name.
func (a *App) Collection(name string) (*Collection, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c, ok := a.collections[name]
	return c, ok
}

// Collections returns collections in creation order.
func (a *App) Collections() []*Collection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Collection, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.collections[name])
	}
	return out
}

func (a *App) owner(v *view.View) *Collection {
	if v == nil || v.Collection == "" {
		return nil
	}
	c, _ := a.Collection(v.Collection)
	return c
}

// SetDefaultLayout registers a layout used when no render option or layout
// collection provides the name.
func (a *App) SetDefaultLayout(name string, v *view.View) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v.Kind == "" || v.Kind == view.KindRenderable {
		v.Kind = view.KindLayout
	}
	a.defaultLayouts[name] = v
}

// Use applies an app extension. A returned collection extension is applied
// to every existing collection and remembered for future ones.
func (a *App) Use(ext AppExtension) error {
	colExt, err := ext.ExtendApp(a)
	if err != nil {
		return err
	}
	if colExt == nil {
		return nil
	}

	a.mu.Lock()
	a.collectionExts = append(a.collectionExts, colExt)
	a.mu.Unlock()

	for _, c := range a.Collections() {
		if err := c.Use(colExt); err != nil {
			return err
		}
	}
	return nil
}
