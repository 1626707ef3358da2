package app

import (
	"context"
	"maps"
	"slices"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/layout"
	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

// RenderOptions are per-call options.
type RenderOptions struct {
	// Engine asks for an engine by name, overriding view settings.
	Engine string
	// Layouts is consulted before layout collections and default layouts.
	Layouts layout.Lookup
	// History continues an earlier layout pass. Layouts already in it are
	// not applied again.
	History layout.History
	// Partials replaces the merged partials of the app.
	Partials map[string][]byte
	// Recompile rebuilds the compiled function for this call.
	Recompile bool
}

// pass is the state of one compile or render call.
type pass struct {
	v      *view.View
	col    *Collection
	scopes []*router.Router
	locals map[string]any
	merged map[string]any
	opts   *RenderOptions
	eopts  *engines.Options
}

func (a *App) newPass(ctx context.Context, v *view.View, locals map[string]any, opts *RenderOptions) (*pass, error) {
	if opts == nil {
		opts = &RenderOptions{}
	}
	col := a.owner(v)
	p := &pass{
		v:      v,
		col:    col,
		scopes: a.scopes(col),
		locals: locals,
		merged: a.mergeLocals(col, v, locals),
		opts:   opts,
	}

	partials := opts.Partials
	if partials == nil {
		var err error
		if partials, err = a.MergePartials(ctx); err != nil {
			return nil, err
		}
	}
	p.eopts = &engines.Options{
		Helpers:      a.cfg.Helpers,
		AsyncHelpers: a.cfg.AsyncHelpers,
		Partials:     partials,
		Recompile:    a.cfg.Recompile || opts.Recompile,
	}
	return p, nil
}

func (a *App) sync() bool {
	return a.mode == router.ModeSync
}

// Compile runs v through preCompile, the engine compile step, preLayout,
// the layout chain, postLayout and postCompile. The first engine compile
// runs only when v has no compiled function or recompile is set. When a
// layout was applied the composed contents are compiled again after
// postLayout, so the render step sees the page inside its layouts.
func (a *App) Compile(ctx context.Context, v *view.View, opts *RenderOptions) error {
	p, err := a.newPass(ctx, v, nil, opts)
	if err != nil {
		return err
	}
	_, err = a.compile(ctx, p)
	return err
}

// CompileAsync runs Compile on a new goroutine and reports to done, which
// is called from that goroutine. v belongs to the compile until done
// fires. It is not available in sync mode.
func (a *App) CompileAsync(ctx context.Context, v *view.View, opts *RenderOptions, done func(*view.View, error)) error {
	if a.sync() {
		return &errors.SyncCallbackMisuseError{Op: "compile"}
	}
	go func() {
		done(v, a.Compile(ctx, v, opts))
	}()
	return nil
}

func (a *App) compile(ctx context.Context, p *pass) (*engines.Engine, error) {
	v := p.v
	if err := router.Dispatch(ctx, router.PreCompile, v, p.scopes...); err != nil {
		return nil, err
	}

	e, err := a.compileEngine(ctx, p, nil, v.Fn == nil || p.eopts.Recompile)
	if err != nil {
		return nil, err
	}

	if err := router.Dispatch(ctx, router.PreLayout, v, p.scopes...); err != nil {
		return nil, err
	}
	var applied bool
	if v.Kind != view.KindPartial {
		history, err := a.applyLayout(ctx, p)
		if err != nil {
			return nil, err
		}
		applied = len(history) > len(p.opts.History)
	}
	if err := router.Dispatch(ctx, router.PostLayout, v, p.scopes...); err != nil {
		return nil, err
	}

	if applied || (e == nil && !v.IsNull()) {
		if e, err = a.compileEngine(ctx, p, e, applied || v.Fn == nil); err != nil {
			return nil, err
		}
	}

	if err := router.Dispatch(ctx, router.PostCompile, v, p.scopes...); err != nil {
		return nil, err
	}
	return e, nil
}

// compileEngine resolves the engine of p's view unless e is already known,
// and runs its compile step when force is set. Null views have no engine.
func (a *App) compileEngine(ctx context.Context, p *pass, e *engines.Engine, force bool) (*engines.Engine, error) {
	v := p.v
	if v.IsNull() {
		return e, nil
	}
	if e == nil {
		var err error
		if e, err = a.resolve(v, p.locals, p.opts.Engine, p.col); err != nil {
			return nil, err
		}
	}
	if force {
		if err := e.Compile(ctx, v, p.eopts, a.sync()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Render compiles v, then runs preRender, the engine render step and
// postRender. Locals are merged over app, collection and view data.
func (a *App) Render(ctx context.Context, v *view.View, locals map[string]any, opts *RenderOptions) error {
	err := a.render(ctx, v, locals, opts)
	if err != nil {
		a.logger.Error(ctx, err, "render failed", "path", v.Path, "collection", v.Collection)
	}
	return err
}

func (a *App) render(ctx context.Context, v *view.View, locals map[string]any, opts *RenderOptions) error {
	v.Locals = locals
	p, err := a.newPass(ctx, v, locals, opts)
	if err != nil {
		return err
	}

	e, err := a.compile(ctx, p)
	if err != nil {
		return err
	}
	if err := router.Dispatch(ctx, router.PreRender, v, p.scopes...); err != nil {
		return err
	}
	if e != nil && !v.IsNull() {
		if err := e.Render(ctx, v, p.merged, p.eopts, a.sync()); err != nil {
			return err
		}
	}
	return router.Dispatch(ctx, router.PostRender, v, p.scopes...)
}

// RenderAsync runs Render on a new goroutine and reports to done, which is
// called from that goroutine. v belongs to the render until done fires. It
// is not available in sync mode.
func (a *App) RenderAsync(ctx context.Context, v *view.View, locals map[string]any, opts *RenderOptions, done func(*view.View, error)) error {
	if a.sync() {
		return &errors.SyncCallbackMisuseError{Op: "render"}
	}
	go func() {
		done(v, a.Render(ctx, v, locals, opts))
	}()
	return nil
}

// RenderCollection renders a copy of every renderable view of a
// collection, in order. The stored views are left untouched.
func (a *App) RenderCollection(ctx context.Context, name string, locals map[string]any, opts *RenderOptions) ([]*view.View, error) {
	col, ok := a.Collection(name)
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidPath, "unknown collection "+name)
	}

	var out []*view.View
	for _, v := range col.Views() {
		if v.Kind != view.KindRenderable {
			continue
		}
		c := v.Clone()
		if err := a.Render(ctx, c, locals, opts); err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ApplyLayout wraps v with its layout chain, dispatching onLayout for each
// applied layout, and returns the extended history.
func (a *App) ApplyLayout(ctx context.Context, v *view.View, opts *RenderOptions) (layout.History, error) {
	p, err := a.newPass(ctx, v, v.Locals, opts)
	if err != nil {
		return nil, err
	}
	return a.applyLayout(ctx, p)
}

func (a *App) applyLayout(ctx context.Context, p *pass) (layout.History, error) {
	v := p.v
	stack := slices.Clone(p.opts.History)

	lopts := layout.Options{
		Layouts:            a.layouts(p.opts.Layouts),
		LayoutKey:          a.cfg.LayoutKey,
		History:            p.opts.History,
		Regex:              a.cfg.LayoutRegex,
		Tag:                a.cfg.LayoutTag,
		PreserveWhitespace: a.cfg.PreserveWhitespace,
		TrimContents:       a.cfg.Trim,
		OnLayout: func(ctx context.Context, v, _ *view.View, name string) error {
			stack = append(stack, name)
			v.LayoutStack = slices.Clone(stack)
			return router.Dispatch(ctx, router.OnLayout, v, p.scopes...)
		},
	}
	if a.cfg.RenderLayout {
		lopts.Transform = a.renderLayout(p)
	}

	history, err := layout.Apply(ctx, v, lopts)
	if err != nil {
		return history, err
	}
	if a.cfg.LayoutHistory {
		v.LayoutStack = slices.Clone(history)
	} else {
		v.LayoutStack = nil
	}
	return history, nil
}

// renderLayout renders a copy of each layout through the layout's own
// engine with the locals of the page being rendered.
func (a *App) renderLayout(p *pass) layout.TransformFunc {
	return func(ctx context.Context, lv *view.View) ([]byte, error) {
		c := lv.Clone()
		col := a.owner(lv)
		e, err := a.resolve(c, p.locals, "", col)
		if err != nil {
			return nil, err
		}
		if c.Fn == nil || p.eopts.Recompile {
			if err := e.Compile(ctx, c, p.eopts, a.sync()); err != nil {
				return nil, err
			}
		}
		if err := e.Render(ctx, c, p.merged, p.eopts, a.sync()); err != nil {
			return nil, err
		}
		return c.Contents, nil
	}
}

func (a *App) resolve(v *view.View, locals map[string]any, requested string, col *Collection) (*engines.Engine, error) {
	reg := a.engines
	req := engines.Request{Engine: requested, AppDefault: a.cfg.Engine}
	if col != nil {
		reg = col.engines
		req.CollectionDefault = col.DefaultEngine()
	}
	return reg.Resolve(v, locals, req)
}

func (a *App) mergeLocals(col *Collection, v *view.View, locals map[string]any) map[string]any {
	merged := a.Data()
	if col != nil {
		maps.Copy(merged, col.Data())
	}
	maps.Copy(merged, v.Data)
	maps.Copy(merged, locals)
	return merged
}

// layoutChain consults lookups in order.
type layoutChain []layout.Lookup

func (lc layoutChain) Layout(name string) (*view.View, bool) {
	for _, l := range lc {
		if v, ok := l.Layout(name); ok {
			return v, true
		}
	}
	return nil, false
}

// layouts builds the layout table of one call: explicit layouts, then
// layout collections in creation order, then default layouts.
func (a *App) layouts(explicit layout.Lookup) layout.Lookup {
	var chain layoutChain
	if explicit != nil {
		chain = append(chain, explicit)
	}
	for _, c := range a.Collections() {
		if c.Kind() == view.KindLayout {
			chain = append(chain, c)
		}
	}
	a.mu.RLock()
	chain = append(chain, maps.Clone(a.defaultLayouts))
	a.mu.RUnlock()
	return chain
}

// MergePartials collects the contents of partial views, keyed by stem and
// by key, dispatching onMerge for each. A view whose data sets nomerge
// after onMerge is left out.
func (a *App) MergePartials(ctx context.Context) (map[string][]byte, error) {
	partials := make(map[string][]byte)
	for _, col := range a.Collections() {
		for _, v := range col.Views() {
			if v.Kind != view.KindPartial || v.IsNull() {
				continue
			}
			if err := router.Dispatch(ctx, router.OnMerge, v, a.router, col.router); err != nil {
				return nil, err
			}
			if skip, _ := v.Get("nomerge"); skip == true {
				continue
			}
			partials[v.Stem()] = v.Contents
			partials[v.Key] = v.Contents
		}
	}
	return partials, nil
}
