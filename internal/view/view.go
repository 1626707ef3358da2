// Package view defines the View record that flows through loading,
// compiling, layout composition and rendering.
//
// A View is plain data: any loader that fills Path, Contents, Data, Layout,
// Engine and Kind can feed the render pipeline. Contents of nil marks a
// virtual entry that is never handed to an engine.
package view

import (
	"context"
	"fmt"
	"maps"
	"path"
	"strings"
)

// Kind governs how a view takes part in rendering.
type Kind string

const (
	KindRenderable Kind = "renderable"
	KindLayout     Kind = "layout"
	KindPartial    Kind = "partial"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRenderable, KindLayout, KindPartial:
		return true
	}
	return false
}

// CompiledFunc is the cached result of an engine compile. It renders the
// compiled template with the merged locals.
type CompiledFunc func(ctx context.Context, locals map[string]any) ([]byte, error)

// Options holds per-view pipeline state.
type Options struct {
	// Handled records stages that ran through a run-once dispatch.
	Handled map[string]bool
}

// View is a single in-memory document.
type View struct {
	// Key is the lookup key inside the owning collection.
	Key string
	// Path drives Basename, Stem and Extname, and extension-based engine
	// resolution.
	Path string
	// Contents of nil means the view is virtual.
	Contents []byte
	// Data is front matter and other view-level values.
	Data map[string]any
	// Locals are the values supplied to the last render call.
	Locals map[string]any
	// Engine overrides extension-based engine resolution.
	Engine string
	// Layout names the layout wrapping this view.
	Layout LayoutRef
	Kind   Kind
	// Fn is invalidated only by the recompile option.
	Fn      CompiledFunc
	Options Options
	// LayoutStack lists applied layouts, innermost first. It is kept only
	// when layout history is enabled on the app.
	LayoutStack []string
	// Collection is the name of the owning collection, empty when detached.
	Collection string
}

// New creates a renderable view.
func New(p string, contents []byte) *View {
	return &View{
		Key:      p,
		Path:     p,
		Contents: contents,
		Data:     make(map[string]any),
		Kind:     KindRenderable,
	}
}

// NewString creates a renderable view from a string.
func NewString(p, contents string) *View {
	return New(p, []byte(contents))
}

// IsNull reports whether the view has no contents.
func (v *View) IsNull() bool {
	return v.Contents == nil
}

// Content returns the contents as a string.
func (v *View) Content() string {
	return string(v.Contents)
}

// SetContent replaces the contents.
func (v *View) SetContent(s string) {
	v.Contents = []byte(s)
}

// Basename returns the last element of Path.
func (v *View) Basename() string {
	if v.Path == "" {
		return ""
	}
	return path.Base(toSlash(v.Path))
}

// Extname returns the extension of Path, including the leading dot.
func (v *View) Extname() string {
	return path.Ext(v.Basename())
}

// Stem returns the basename without its extension.
func (v *View) Stem() string {
	base := v.Basename()
	return strings.TrimSuffix(base, path.Ext(base))
}

// Dirname returns the directory portion of Path.
func (v *View) Dirname() string {
	if v.Path == "" {
		return ""
	}
	return path.Dir(toSlash(v.Path))
}

// Get returns a data value.
func (v *View) Get(key string) (any, bool) {
	if v.Data == nil {
		return nil, false
	}
	val, ok := v.Data[key]
	return val, ok
}

// Set stores a data value.
func (v *View) Set(key string, val any) {
	if v.Data == nil {
		v.Data = make(map[string]any)
	}
	v.Data[key] = val
}

// IsHandled reports whether a run-once stage already ran for this view.
func (v *View) IsHandled(stage string) bool {
	return v.Options.Handled[stage]
}

// MarkHandled records a run-once stage.
func (v *View) MarkHandled(stage string) {
	if v.Options.Handled == nil {
		v.Options.Handled = make(map[string]bool)
	}
	v.Options.Handled[stage] = true
}

// Clone returns a copy that shares no mutable state with v. The compiled
// function is shared since it is immutable once built.
func (v *View) Clone() *View {
	c := *v
	if v.Contents != nil {
		c.Contents = append([]byte(nil), v.Contents...)
	}
	c.Data = maps.Clone(v.Data)
	c.Locals = maps.Clone(v.Locals)
	c.Options.Handled = maps.Clone(v.Options.Handled)
	c.LayoutStack = append([]string(nil), v.LayoutStack...)
	return &c
}

func (v *View) String() string {
	return fmt.Sprintf("<View %q kind=%s layout=%s>", v.Path, v.Kind, v.Layout)
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
