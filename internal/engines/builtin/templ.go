package builtin

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/a-h/templ"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/view"
)

// TemplExts are the extensions the templ engine is registered for.
var TemplExts = []string{".templ"}

// ComponentFactory builds a templ component for one render.
type ComponentFactory func(locals map[string]any) templ.Component

type localsKey struct{}

// WithLocals stores render locals on ctx.
func WithLocals(ctx context.Context, locals map[string]any) context.Context {
	return context.WithValue(ctx, localsKey{}, locals)
}

// Locals returns the render locals stored on ctx, or nil.
func Locals(ctx context.Context) map[string]any {
	locals, _ := ctx.Value(localsKey{}).(map[string]any)
	return locals
}

// Templ renders compiled templ components. A view selects its component
// with the "component" data key, falling back to the file stem. The view's
// contents are passed to the component as its children, so a component can
// wrap markdown or another engine's output with { children... }.
//
// Templ has no sync form: in sync mode it fails with a callback misuse
// error.
type Templ struct {
	mu         sync.RWMutex
	components map[string]ComponentFactory
}

// NewTempl creates an empty templ engine.
func NewTempl() *Templ {
	return &Templ{components: make(map[string]ComponentFactory)}
}

// Component registers a factory under name.
func (e *Templ) Component(name string, f ComponentFactory) *Templ {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.components[name] = f
	return e
}

// Static registers a component that ignores locals.
func (e *Templ) Static(name string, c templ.Component) *Templ {
	return e.Component(name, func(map[string]any) templ.Component { return c })
}

// Render implements engines.Renderer.
func (e *Templ) Render(ctx context.Context, v *view.View, locals map[string]any, _ *engines.Options) error {
	raw, _ := v.Get("component")
	name, _ := raw.(string)
	if name == "" {
		name = v.Stem()
	}

	e.mu.RLock()
	factory, ok := e.components[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("templ component %q is not registered", name)
	}

	ctx = WithLocals(ctx, locals)
	ctx = templ.WithChildren(ctx, templ.Raw(v.Content()))

	var buf bytes.Buffer
	if err := factory(locals).Render(ctx, &buf); err != nil {
		return fmt.Errorf("error rendering templ component %q: %w", name, err)
	}
	v.Contents = buf.Bytes()
	return nil
}
