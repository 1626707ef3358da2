package app

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

// Collection is an ordered, keyed set of views sharing defaults.
type Collection struct {
	app     *App
	name    string
	kind    view.Kind
	engines *engines.Registry
	router  *router.Router

	mu            sync.RWMutex
	keys          []string
	views         map[string]*view.View
	renameKey     func(string) string
	defaultEngine string
	data          map[string]any
	viewExts      []ViewExtension
}

func newCollection(a *App, name string, kind view.Kind) *Collection {
	return &Collection{
		app:       a,
		name:      name,
		kind:      kind,
		engines:   engines.NewRegistry(a.engines),
		router:    router.New(a.mode, a.cfg.Handlers...),
		views:     make(map[string]*view.View),
		renameKey: func(k string) string { return k },
		data:      make(map[string]any),
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Kind returns the kind given to views added to the collection.
func (c *Collection) Kind() view.Kind { return c.kind }

// App returns the owning app.
func (c *Collection) App() *App { return c.app }

// SetRenameKey sets the function applied to keys on insert and lookup.
func (c *Collection) SetRenameKey(fn func(string) string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func(k string) string { return k }
	}
	c.renameKey = fn
}

// SetDefaultEngine sets the engine used by views that name none.
func (c *Collection) SetDefaultEngine(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultEngine = name
}

// DefaultEngine returns the collection default engine.
func (c *Collection) DefaultEngine() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultEngine
}

// Data returns a copy of the collection data.
func (c *Collection) Data() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.data)
}

// SetData stores a collection data value.
func (c *Collection) SetData(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
}

// Engine registers an engine for this collection only.
func (c *Collection) Engine(exts []string, engineLike any, settings map[string]any) error {
	return c.engines.Register(exts, engineLike, settings)
}

// Engines returns the collection registry. It falls back to the app's.
func (c *Collection) Engines() *engines.Registry {
	return c.engines
}

// Router returns the collection-scoped router.
func (c *Collection) Router() *router.Router {
	return c.router
}

// On registers a collection-scoped handler. It runs after the app handlers
// of the same stage.
func (c *Collection) On(stage, pattern string, h router.Handler) error {
	p, err := router.Parse(pattern)
	if err != nil {
		return err
	}
	return c.router.Register(stage, p, h)
}

// Use applies a collection extension. A returned view extension is applied
// to every existing view and to views added later.
func (c *Collection) Use(ext CollectionExtension) error {
	viewExt, err := ext.ExtendCollection(c)
	if err != nil {
		return err
	}
	if viewExt == nil {
		return nil
	}

	c.mu.Lock()
	c.viewExts = append(c.viewExts, viewExt)
	c.mu.Unlock()

	for _, v := range c.Views() {
		if err := viewExt.ExtendView(v); err != nil {
			return err
		}
	}
	return nil
}

// AddView inserts v under key, running onLoad before the view becomes
// visible. An empty key uses v.Path.
func (c *Collection) AddView(ctx context.Context, key string, v *view.View) (*view.View, error) {
	if v == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "cannot add a nil view")
	}
	if key == "" {
		key = v.Path
	}
	if key == "" {
		return nil, errors.ErrInvalidPath(key)
	}

	c.mu.RLock()
	key = c.renameKey(key)
	exts := slices.Clone(c.viewExts)
	c.mu.RUnlock()

	if v.Path == "" {
		v.Path = key
	}
	v.Key = key
	if c.kind != view.KindRenderable || v.Kind == "" {
		v.Kind = c.kind
	}
	v.Collection = c.name
	if v.Data == nil {
		v.Data = make(map[string]any)
	}

	for _, ext := range exts {
		if err := ext.ExtendView(v); err != nil {
			return nil, err
		}
	}

	if err := router.HandleOnce(ctx, router.OnLoad, v, c.app.router, c.router); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, exists := c.views[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.views[key] = v
	c.mu.Unlock()
	return v, nil
}

// Add creates a view from a path and contents and inserts it.
func (c *Collection) Add(ctx context.Context, p, contents string) (*view.View, error) {
	return c.AddView(ctx, "", view.NewString(p, contents))
}

// GetView finds a view by key, renamed key, path, basename or stem.
func (c *Collection) GetView(name string) (*view.View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.views[name]; ok {
		return v, true
	}
	if v, ok := c.views[c.renameKey(name)]; ok {
		return v, true
	}

	matchers := []func(*view.View) bool{
		func(v *view.View) bool { return v.Path == name },
		func(v *view.View) bool { return v.Basename() == name },
		func(v *view.View) bool { return v.Stem() == name },
	}
	for _, match := range matchers {
		for _, k := range c.keys {
			if v := c.views[k]; match(v) {
				return v, true
			}
		}
	}
	return nil, false
}

// Layout implements layout.Lookup.
func (c *Collection) Layout(name string) (*view.View, bool) {
	return c.GetView(name)
}

// DeleteView removes the view stored under key.
func (c *Collection) DeleteView(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.views[key]; !ok {
		key = c.renameKey(key)
		if _, ok := c.views[key]; !ok {
			return false
		}
	}
	delete(c.views, key)
	c.keys = slices.DeleteFunc(c.keys, func(k string) bool { return k == key })
	return true
}

// Views returns the views in insertion order.
func (c *Collection) Views() []*view.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*view.View, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.views[k])
	}
	return out
}

// Keys returns the keys in insertion order.
func (c *Collection) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Len returns the number of views.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *Collection) String() string {
	return fmt.Sprintf("<Collection %q kind=%s views=%d>", c.name, c.kind, c.Len())
}
