// Package engines maps file extensions to template engines and resolves
// which engine applies to a view.
//
// An engine is any value implementing at least one of Compiler, Renderer,
// SyncCompiler or SyncRenderer, or a bare RenderFunc. Registration wraps it
// in an *Engine which picks the right capability for the app's execution
// mode.
package engines

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

// Options are passed to every engine call.
type Options struct {
	// Helpers are template functions made available to the engine.
	Helpers map[string]any
	// AsyncHelpers allows helpers that take the render context.
	AsyncHelpers bool
	// Partials maps partial names to their contents.
	Partials map[string][]byte
	// Settings are the values given when the engine was registered.
	Settings map[string]any
	// Recompile asks engines with their own caches to rebuild.
	Recompile bool
}

// Setting returns a registration setting.
func (o *Options) Setting(key string) (any, bool) {
	if o == nil || o.Settings == nil {
		return nil, false
	}
	v, ok := o.Settings[key]
	return v, ok
}

// Compiler compiles a view and stores the result in v.Fn. It may block.
type Compiler interface {
	Compile(ctx context.Context, v *view.View, opts *Options) error
}

// Renderer renders a view into v.Contents. It may block.
type Renderer interface {
	Render(ctx context.Context, v *view.View, locals map[string]any, opts *Options) error
}

// SyncCompiler is the non-blocking form of Compiler.
type SyncCompiler interface {
	CompileSync(v *view.View, opts *Options) error
}

// SyncRenderer is the non-blocking form of Renderer.
type SyncRenderer interface {
	RenderSync(v *view.View, locals map[string]any, opts *Options) error
}

// RenderFunc is the smallest engine: it turns a view and locals into output.
type RenderFunc func(v *view.View, locals map[string]any) ([]byte, error)

// RenderSync implements SyncRenderer.
func (f RenderFunc) RenderSync(v *view.View, locals map[string]any, _ *Options) error {
	out, err := f(v, locals)
	if err != nil {
		return err
	}
	v.Contents = out
	return nil
}

// Engine is a registered engine bound to an extension.
type Engine struct {
	ext      string
	impl     any
	settings map[string]any

	compile     Compiler
	render      Renderer
	compileSync SyncCompiler
	renderSync  SyncRenderer
}

func newEngine(ext string, engineLike any, settings map[string]any) (*Engine, error) {
	if fn, ok := engineLike.(func(*view.View, map[string]any) ([]byte, error)); ok {
		engineLike = RenderFunc(fn)
	}

	e := &Engine{ext: ext, impl: engineLike, settings: settings}
	e.compile, _ = engineLike.(Compiler)
	e.render, _ = engineLike.(Renderer)
	e.compileSync, _ = engineLike.(SyncCompiler)
	e.renderSync, _ = engineLike.(SyncRenderer)

	if e.compile == nil && e.render == nil && e.compileSync == nil && e.renderSync == nil {
		return nil, &errors.InvalidEngineError{Ext: ext, Value: engineLike}
	}
	return e, nil
}

// Ext returns the normalized extension the engine is registered under.
func (e *Engine) Ext() string { return e.ext }

// Impl returns the registered value.
func (e *Engine) Impl() any { return e.impl }

// Settings returns the registration settings.
func (e *Engine) Settings() map[string]any { return e.settings }

// CanCompile reports whether the engine has a compile step.
func (e *Engine) CanCompile() bool {
	return e.compile != nil || e.compileSync != nil
}

// SupportsSync reports whether the engine can run in sync mode.
func (e *Engine) SupportsSync() bool {
	if e.compile != nil && e.compileSync == nil {
		return false
	}
	if e.render != nil && e.renderSync == nil {
		return false
	}
	return true
}

func (e *Engine) options(opts *Options) *Options {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.Settings = e.settings
	return &o
}

// Compile runs the engine's compile step. Engines without one leave v.Fn
// untouched. Views with null contents are skipped.
func (e *Engine) Compile(ctx context.Context, v *view.View, opts *Options, sync bool) error {
	if v.IsNull() {
		return nil
	}
	o := e.options(opts)

	if sync {
		switch {
		case e.compileSync != nil:
			return e.compileSync.CompileSync(v, o)
		case e.compile != nil:
			return &errors.SyncCallbackMisuseError{Op: e.op("compile")}
		}
		return nil
	}

	switch {
	case e.compile != nil:
		return e.compile.Compile(ctx, v, o)
	case e.compileSync != nil:
		return e.compileSync.CompileSync(v, o)
	}
	return nil
}

// Render runs the engine's render step, falling back to the compiled
// function when the engine only compiles.
func (e *Engine) Render(ctx context.Context, v *view.View, locals map[string]any, opts *Options, sync bool) error {
	if v.IsNull() {
		return nil
	}
	o := e.options(opts)

	if sync {
		switch {
		case e.renderSync != nil:
			return e.renderSync.RenderSync(v, locals, o)
		case e.render != nil:
			return &errors.SyncCallbackMisuseError{Op: e.op("render")}
		}
	} else {
		switch {
		case e.render != nil:
			return e.render.Render(ctx, v, locals, o)
		case e.renderSync != nil:
			return e.renderSync.RenderSync(v, locals, o)
		}
	}

	if v.Fn == nil {
		return fmt.Errorf("engine %s has no render method and %q is not compiled", e.ext, v.Path)
	}
	out, err := v.Fn(ctx, locals)
	if err != nil {
		return err
	}
	v.Contents = out
	return nil
}

func (e *Engine) op(method string) string {
	return fmt.Sprintf("engine %q %s", e.ext, method)
}

// Normalize returns ext with a single leading dot.
func Normalize(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	return "." + strings.TrimLeft(ext, ".")
}
