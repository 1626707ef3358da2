// Package layout composes a view with the chain of layouts it names.
//
// Each layout carries a body marker ({% body %} by default). Applying a
// layout replaces the marker with the current contents; the layout's own
// layout is then applied to the result, and so on until the chain ends.
// The names applied so far form a History which guards against cycles.
package layout

import (
	"bytes"
	"context"
	"regexp"
	"slices"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

// DefaultTag is the body marker used when no regex or tag is configured.
const DefaultTag = "{% body %}"

// DefaultRegex matches the default marker with optional inner whitespace.
var DefaultRegex = regexp.MustCompile(`\{%\s*body\s*%\}`)

// DefaultKey is the layout field name.
const DefaultKey = "layout"

// History lists applied layout names, innermost first.
type History []string

// Contains reports whether name was already applied.
func (h History) Contains(name string) bool {
	return slices.Contains(h, name)
}

// Lookup finds layouts by name.
type Lookup interface {
	Layout(name string) (*view.View, bool)
}

// Table is a Lookup backed by a map.
type Table map[string]*view.View

// Layout implements Lookup.
func (t Table) Layout(name string) (*view.View, bool) {
	v, ok := t[name]
	return v, ok && v != nil
}

// TransformFunc produces the contents spliced around the body, typically by
// rendering the layout through its engine.
type TransformFunc func(ctx context.Context, layout *view.View) ([]byte, error)

// NotifyFunc is called after each layout is applied to v.
type NotifyFunc func(ctx context.Context, v *view.View, layout *view.View, name string) error

// Options configure Apply.
type Options struct {
	Layouts Lookup
	// LayoutKey names the field holding the layout name. For the default
	// key the View.Layout field wins over Data["layout"].
	LayoutKey string
	// History carries names applied by earlier calls. Apply never mutates
	// the slice passed in.
	History History
	// Regex matches the body marker. Takes precedence over Tag.
	Regex *regexp.Regexp
	// Tag is a literal body marker.
	Tag                string
	PreserveWhitespace bool
	TrimContents       bool
	Transform          TransformFunc
	OnLayout           NotifyFunc
}

func (o *Options) marker() (*regexp.Regexp, string) {
	switch {
	case o.Regex != nil:
		return o.Regex, o.Regex.String()
	case o.Tag != "":
		return regexp.MustCompile(regexp.QuoteMeta(o.Tag)), o.Tag
	default:
		return DefaultRegex, DefaultTag
	}
}

// RefOf returns the layout requested by v under key.
func RefOf(v *view.View, key string) view.LayoutRef {
	if key == "" {
		key = DefaultKey
	}
	if key == DefaultKey && v.Layout.IsSet() {
		return v.Layout
	}
	if val, ok := v.Get(key); ok {
		return view.ParseLayoutRef(val)
	}
	return view.LayoutRef{}
}

// Apply wraps v.Contents with its layout chain and returns the extended
// history.
//
// A view without a layout, or with layouts suppressed, is left alone. A
// view with null contents is passed through once its layout is found.
// Layouts already present in the history are not applied again, so passing
// the returned history back in makes a repeated call a no-op while a fresh
// history wraps the contents again.
func Apply(ctx context.Context, v *view.View, opts Options) (History, error) {
	history := slices.Clone(opts.History)

	name, ok := RefOf(v, opts.LayoutKey).Name()
	if !ok {
		return history, nil
	}

	layout, err := find(opts.Layouts, name, v)
	if err != nil {
		return history, err
	}

	if v.IsNull() {
		return history, nil
	}

	re, tag := opts.marker()
	contents := v.Contents
	applied := len(history)

	for !history.Contains(name) {
		if err := ctx.Err(); err != nil {
			return history, err
		}

		wrapper := layout.Contents
		if opts.Transform != nil {
			if wrapper, err = opts.Transform(ctx, layout); err != nil {
				return history, err
			}
		}

		spliced, ok := splice(wrapper, contents, re, opts.PreserveWhitespace)
		if !ok {
			return history, &errors.BodyTagNotFoundError{Tag: tag, Layout: name}
		}
		contents = spliced
		history = append(history, name)

		if opts.OnLayout != nil {
			if err := opts.OnLayout(ctx, v, layout, name); err != nil {
				return history, err
			}
		}

		next, ok := RefOf(layout, opts.LayoutKey).Name()
		if !ok {
			break
		}
		if layout, err = find(opts.Layouts, next, layout); err != nil {
			return history, err
		}
		name = next
	}

	if len(history) == applied {
		return history, nil
	}
	if opts.TrimContents {
		contents = bytes.TrimSpace(contents)
	}
	v.Contents = contents
	return history, nil
}

func find(layouts Lookup, name string, owner *view.View) (*view.View, error) {
	var (
		layout *view.View
		ok     bool
	)
	if layouts != nil {
		layout, ok = layouts.Layout(name)
	}
	if !ok {
		p := owner.Path
		if p == "" {
			p = owner.Key
		}
		return nil, &errors.LayoutNotFoundError{Name: name, Path: p}
	}
	if layout.Contents == nil {
		return nil, &errors.InvalidLayoutContentsError{Name: name}
	}
	return layout, nil
}

// splice replaces the first marker in wrapper with body. With indent set,
// body lines after the first get the marker's leading whitespace when the
// marker starts its line.
func splice(wrapper, body []byte, re *regexp.Regexp, indent bool) ([]byte, bool) {
	loc := re.FindIndex(wrapper)
	if loc == nil {
		return nil, false
	}

	if indent {
		if ws := leadingWhitespace(wrapper, loc[0]); len(ws) > 0 {
			sep := append([]byte{'\n'}, ws...)
			body = bytes.ReplaceAll(body, []byte{'\n'}, sep)
		}
	}

	out := make([]byte, 0, len(wrapper)-(loc[1]-loc[0])+len(body))
	out = append(out, wrapper[:loc[0]]...)
	out = append(out, body...)
	out = append(out, wrapper[loc[1]:]...)
	return out, true
}

func leadingWhitespace(b []byte, at int) []byte {
	start := bytes.LastIndexByte(b[:at], '\n') + 1
	ws := b[start:at]
	for _, c := range ws {
		if c != ' ' && c != '\t' {
			return nil
		}
	}
	return ws
}
