package builtin

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/view"
)

var (
	// HTMLExts are the extensions the html/template engine is registered for.
	HTMLExts = []string{".html", ".gohtml", ".tmpl", ".tpl"}
	// TextExts are the extensions the text/template engine is registered for.
	TextExts = []string{".txt", ".text"}
)

// HTML compiles views with html/template. Partials become named templates
// that views can include with {{template "name" .}}.
type HTML struct{}

// NewHTML creates the html/template engine.
func NewHTML() *HTML {
	return &HTML{}
}

// CompileSync implements engines.SyncCompiler.
func (e *HTML) CompileSync(v *view.View, opts *engines.Options) error {
	funcs, ctxHelpers, err := funcMap(opts)
	if err != nil {
		return err
	}

	tpl, err := htmltemplate.New(v.Path).Funcs(funcs).Parse(v.Content())
	if err != nil {
		return fmt.Errorf("error parsing template '%s': %w", v.Path, err)
	}
	for _, name := range partialNames(opts) {
		if tpl.Lookup(name) != nil {
			continue
		}
		if _, err := tpl.New(name).Parse(string(opts.Partials[name])); err != nil {
			return fmt.Errorf("error parsing partial '%s': %w", name, err)
		}
	}

	name := v.Path
	v.Fn = func(ctx context.Context, locals map[string]any) ([]byte, error) {
		// html/template refuses to clone once executed, so the parsed
		// original is never run directly.
		t, err := tpl.Clone()
		if err != nil {
			return nil, fmt.Errorf("error cloning template '%s': %w", name, err)
		}
		if len(ctxHelpers) > 0 {
			t = t.Funcs(bind(ctx, ctxHelpers))
		}

		var buf bytes.Buffer
		if err := t.Execute(&buf, locals); err != nil {
			return nil, fmt.Errorf("error rendering '%s': %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil
}

// Text compiles views with text/template. Output is not escaped.
type Text struct{}

// NewText creates the text/template engine.
func NewText() *Text {
	return &Text{}
}

// CompileSync implements engines.SyncCompiler.
func (e *Text) CompileSync(v *view.View, opts *engines.Options) error {
	funcs, ctxHelpers, err := funcMap(opts)
	if err != nil {
		return err
	}

	tpl, err := texttemplate.New(v.Path).Funcs(funcs).Parse(v.Content())
	if err != nil {
		return fmt.Errorf("error parsing template '%s': %w", v.Path, err)
	}
	for _, name := range partialNames(opts) {
		if tpl.Lookup(name) != nil {
			continue
		}
		if _, err := tpl.New(name).Parse(string(opts.Partials[name])); err != nil {
			return fmt.Errorf("error parsing partial '%s': %w", name, err)
		}
	}

	name := v.Path
	v.Fn = func(ctx context.Context, locals map[string]any) ([]byte, error) {
		t := tpl
		if len(ctxHelpers) > 0 {
			clone, err := tpl.Clone()
			if err != nil {
				return nil, fmt.Errorf("error cloning template '%s': %w", name, err)
			}
			t = clone.Funcs(bind(ctx, ctxHelpers))
		}

		var buf bytes.Buffer
		if err := t.Execute(&buf, locals); err != nil {
			return nil, fmt.Errorf("error rendering '%s': %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil
}

func partialNames(opts *engines.Options) []string {
	if opts == nil || len(opts.Partials) == 0 {
		return nil
	}
	names := make([]string, 0, len(opts.Partials))
	for name := range opts.Partials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
