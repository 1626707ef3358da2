// Package router implements the staged handler pipeline that views pass
// through while they are loaded, compiled and rendered.
//
// Handlers are registered per stage with a path pattern. A dispatch runs the
// matching handlers of each scope in order (the app scope first, then the
// owning collection's scope), each scope in registration order, one handler
// at a time. The first error stops the stage and is returned unchanged.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

// Lifecycle stages.
const (
	OnLoad      = "onLoad"
	PreCompile  = "preCompile"
	PreLayout   = "preLayout"
	OnLayout    = "onLayout"
	PostLayout  = "postLayout"
	OnMerge     = "onMerge"
	PostCompile = "postCompile"
	PreRender   = "preRender"
	PostRender  = "postRender"
)

// DefaultStages lists the built-in stages in lifecycle order.
var DefaultStages = []string{
	OnLoad, PreCompile, PreLayout, OnLayout, PostLayout,
	OnMerge, PostCompile, PreRender, PostRender,
}

// Mode says whether a handler or router may block.
type Mode int

const (
	// ModeAsync handlers take a context and may block.
	ModeAsync Mode = iota
	// ModeSync handlers complete without yielding.
	ModeSync
)

func (m Mode) String() string {
	if m == ModeSync {
		return "sync"
	}
	return "async"
}

// Handler is a middleware function bound to a stage.
type Handler interface {
	Mode() Mode
	ServeView(ctx context.Context, v *view.View, params Params) error
}

// HandlerFunc is a synchronous handler. Returning nil continues with the
// next handler, returning an error aborts the stage.
type HandlerFunc func(v *view.View, params Params) error

func (HandlerFunc) Mode() Mode { return ModeSync }

func (f HandlerFunc) ServeView(_ context.Context, v *view.View, params Params) error {
	return f(v, params)
}

// ContextHandlerFunc is a handler that may block on I/O and should honor
// ctx. It cannot run on a sync-mode router.
type ContextHandlerFunc func(ctx context.Context, v *view.View, params Params) error

func (ContextHandlerFunc) Mode() Mode { return ModeAsync }

func (f ContextHandlerFunc) ServeView(ctx context.Context, v *view.View, params Params) error {
	return f(ctx, v, params)
}

type route struct {
	pattern Pattern
	handler Handler
}

// Router holds the handlers of one scope.
type Router struct {
	mu     sync.RWMutex
	mode   Mode
	order  []string
	stages map[string][]route
}

// New creates a router with the default stages plus any custom stage names.
func New(mode Mode, custom ...string) *Router {
	r := &Router{
		mode:   mode,
		stages: make(map[string][]route, len(DefaultStages)+len(custom)),
	}
	r.DeclareStage(DefaultStages...)
	r.DeclareStage(custom...)
	return r
}

// Mode returns the execution mode of the router.
func (r *Router) Mode() Mode {
	return r.mode
}

// DeclareStage adds stage names. Declaring a known stage is a no-op.
func (r *Router) DeclareStage(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := r.stages[name]; ok {
			continue
		}
		r.stages[name] = nil
		r.order = append(r.order, name)
	}
}

// Stages returns the declared stages in declaration order.
func (r *Router) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// HasStage reports whether name was declared.
func (r *Router) HasStage(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.stages[name]
	return ok
}

// Register appends a handler to a stage. A nil pattern matches every path.
func (r *Router) Register(stage string, pattern Pattern, h Handler) error {
	if h == nil {
		return fmt.Errorf("register %s: nil handler", stage)
	}
	if pattern == nil {
		pattern = All
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	routes, ok := r.stages[stage]
	if !ok {
		return errors.ErrUnknownStage(stage)
	}
	r.stages[stage] = append(routes, route{pattern: pattern, handler: h})
	return nil
}

// Len returns the number of handlers on a stage.
func (r *Router) Len(stage string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages[stage])
}

func (r *Router) snapshot(stage string) ([]route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	routes, ok := r.stages[stage]
	if !ok {
		return nil, false
	}
	return append([]route(nil), routes...), true
}

// Handle runs the handlers of this scope for a stage.
func (r *Router) Handle(ctx context.Context, stage string, v *view.View) error {
	routes, ok := r.snapshot(stage)
	if !ok {
		return errors.ErrUnknownStage(stage)
	}

	path := v.Path
	if path == "" {
		path = v.Key
	}

	for _, rt := range routes {
		params, matched := rt.pattern.Match(path)
		if !matched {
			continue
		}
		if r.mode == ModeSync && rt.handler.Mode() != ModeSync {
			return &errors.SyncCallbackMisuseError{Op: stage}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := serve(ctx, rt.handler, v, params); err != nil {
			return err
		}
	}
	return nil
}

// serve runs a single handler. A panic carrying an error is returned as
// that error so thrown errors reach the caller unchanged.
func serve(ctx context.Context, h Handler, v *view.View, params Params) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.ServeView(ctx, v, params)
}

// Dispatch runs a stage across scopes in the given order. Nil routers are
// skipped.
func Dispatch(ctx context.Context, stage string, v *view.View, scopes ...*Router) error {
	for _, r := range scopes {
		if r == nil {
			continue
		}
		if err := r.Handle(ctx, stage, v); err != nil {
			return err
		}
	}
	return nil
}

// HandleOnce dispatches a stage unless it already ran for v. The stage is
// marked handled only after every handler succeeded.
func HandleOnce(ctx context.Context, stage string, v *view.View, scopes ...*Router) error {
	if v.IsHandled(stage) {
		return nil
	}
	if err := Dispatch(ctx, stage, v, scopes...); err != nil {
		return err
	}
	v.MarkHandled(stage)
	return nil
}
