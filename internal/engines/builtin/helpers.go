// Package builtin provides the engines verso registers out of the box:
// html/template and text/template for markup, goldmark for markdown, and a
// templ adapter for compiled templ components.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/verso/internal/engines"
)

// ContextHelper is a helper that receives the render context. It is only
// bound when async helpers are enabled.
type ContextHelper func(ctx context.Context, args ...any) (any, error)

// DefaultHelpers returns the helpers every Go template engine starts with.
func DefaultHelpers() map[string]any {
	title := cases.Title(language.English)
	return map[string]any{
		"title": func(s string) string { return title.String(s) },
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"default": func(def, val any) any {
			if val == nil || val == "" {
				return def
			}
			return val
		},
	}
}

// funcMap merges default and configured helpers. Context helpers are
// replaced by placeholders so templates parse; bind swaps in the real
// functions for one render.
func funcMap(opts *engines.Options) (funcs map[string]any, ctxHelpers map[string]ContextHelper, err error) {
	funcs = DefaultHelpers()
	if opts == nil {
		return funcs, nil, nil
	}

	for name, h := range opts.Helpers {
		switch fn := h.(type) {
		case ContextHelper:
			if err := requireAsync(opts, name); err != nil {
				return nil, nil, err
			}
			if ctxHelpers == nil {
				ctxHelpers = make(map[string]ContextHelper)
			}
			ctxHelpers[name] = fn
			funcs[name] = placeholder(name)
		case func(context.Context, ...any) (any, error):
			if err := requireAsync(opts, name); err != nil {
				return nil, nil, err
			}
			if ctxHelpers == nil {
				ctxHelpers = make(map[string]ContextHelper)
			}
			ctxHelpers[name] = fn
			funcs[name] = placeholder(name)
		default:
			funcs[name] = h
		}
	}
	return funcs, ctxHelpers, nil
}

func requireAsync(opts *engines.Options, name string) error {
	if !opts.AsyncHelpers {
		return fmt.Errorf("helper %q takes a context but async helpers are disabled", name)
	}
	return nil
}

func placeholder(name string) func(...any) (any, error) {
	return func(...any) (any, error) {
		return nil, fmt.Errorf("helper %q called outside a render", name)
	}
}

func bind(ctx context.Context, helpers map[string]ContextHelper) map[string]any {
	bound := make(map[string]any, len(helpers))
	for name, h := range helpers {
		h := h
		bound[name] = func(args ...any) (any, error) {
			return h(ctx, args...)
		}
	}
	return bound
}
