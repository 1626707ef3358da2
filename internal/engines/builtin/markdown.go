package builtin

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/conneroisu/verso/internal/engines"
	"github.com/conneroisu/verso/internal/view"
)

// MarkdownExts are the extensions the markdown engine is registered for.
var MarkdownExts = []string{".md", ".markdown"}

// SettingSanitize is the registration setting that runs rendered markdown
// through a UGC sanitizer.
const SettingSanitize = "sanitize"

// Markdown renders GitHub flavored markdown with goldmark. Raw HTML is kept
// so layouts and partials can be embedded; register the engine with
// {"sanitize": true} for untrusted input.
type Markdown struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewMarkdown creates the markdown engine.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// RenderSync implements engines.SyncRenderer. Locals are not interpolated.
func (e *Markdown) RenderSync(v *view.View, _ map[string]any, opts *engines.Options) error {
	var buf bytes.Buffer
	if err := e.md.Convert(v.Contents, &buf); err != nil {
		return fmt.Errorf("failed to render markdown '%s': %w", v.Path, err)
	}

	if sanitize, _ := settingBool(opts, SettingSanitize); sanitize {
		v.Contents = e.sanitizer.SanitizeBytes(buf.Bytes())
		return nil
	}
	v.Contents = buf.Bytes()
	return nil
}

func settingBool(opts *engines.Options, key string) (bool, bool) {
	val, ok := opts.Setting(key)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}
