package builtin

import (
	"github.com/conneroisu/verso/internal/engines"
)

// RegisterDefaults registers the html, text and markdown engines. The templ
// engine needs components and is registered by the caller.
func RegisterDefaults(r *engines.Registry, sanitizeMarkdown bool) error {
	if err := r.Register(HTMLExts, NewHTML(), nil); err != nil {
		return err
	}
	if err := r.Register(TextExts, NewText(), nil); err != nil {
		return err
	}
	return r.Register(MarkdownExts, NewMarkdown(), map[string]any{SettingSanitize: sanitizeMarkdown})
}
