package view

import (
	"fmt"
	"strings"
)

type layoutState uint8

const (
	layoutUnset layoutState = iota
	layoutNamed
	layoutSuppressed
)

// LayoutRef is the layout a view asks for: nothing, a named layout, or an
// explicit suppression. The zero value is unset.
type LayoutRef struct {
	name  string
	state layoutState
}

// Named refers to a layout by name. An empty name is unset.
func Named(name string) LayoutRef {
	if name == "" {
		return LayoutRef{}
	}
	return LayoutRef{name: name, state: layoutNamed}
}

// Suppressed disables layout application for a view.
func Suppressed() LayoutRef {
	return LayoutRef{state: layoutSuppressed}
}

// ParseLayoutRef converts a loosely typed front matter value.
//
// false, nil and the strings "false" and "null" suppress layouts. The
// string forms exist because front matter parsers often hand back strings.
// true carries no name and is treated as unset.
func ParseLayoutRef(val any) LayoutRef {
	switch v := val.(type) {
	case nil:
		return Suppressed()
	case LayoutRef:
		return v
	case bool:
		if !v {
			return Suppressed()
		}
		return LayoutRef{}
	case string:
		switch strings.TrimSpace(v) {
		case "false", "null":
			return Suppressed()
		}
		return Named(v)
	case fmt.Stringer:
		return ParseLayoutRef(v.String())
	default:
		return Named(fmt.Sprint(v))
	}
}

// Name returns the layout name if the ref is named.
func (r LayoutRef) Name() (string, bool) {
	return r.name, r.state == layoutNamed
}

// IsSet reports whether the ref is anything but unset.
func (r LayoutRef) IsSet() bool {
	return r.state != layoutUnset
}

// IsSuppressed reports whether layouts are disabled.
func (r LayoutRef) IsSuppressed() bool {
	return r.state == layoutSuppressed
}

func (r LayoutRef) String() string {
	switch r.state {
	case layoutNamed:
		return r.name
	case layoutSuppressed:
		return "false"
	default:
		return ""
	}
}
