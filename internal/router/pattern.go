package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Params holds values bound by a pattern match.
type Params map[string]string

// Pattern decides whether a handler applies to a view path.
type Pattern interface {
	Match(path string) (Params, bool)
	String() string
}

type allPattern struct{}

func (allPattern) Match(string) (Params, bool) { return Params{}, true }
func (allPattern) String() string              { return "**" }

// All matches every path.
var All Pattern = allPattern{}

// Parse picks a pattern kind from its text: route templates when a segment
// starts with ':', globs otherwise. The empty string matches everything.
func Parse(s string) (Pattern, error) {
	if s == "" || s == "**" {
		return All, nil
	}
	for _, seg := range strings.Split(s, "/") {
		if strings.HasPrefix(seg, ":") {
			return Route(s)
		}
	}
	return Glob(s)
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

type regexpPattern struct {
	re   *regexp.Regexp
	text string
}

// Regexp matches paths against re. Named groups become params; unnamed
// groups are bound by their index.
func Regexp(re *regexp.Regexp) Pattern {
	return &regexpPattern{re: re, text: re.String()}
}

func (p *regexpPattern) Match(path string) (Params, bool) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(Params, len(m)-1)
	for i, name := range p.re.SubexpNames() {
		if i == 0 {
			continue
		}
		if name == "" {
			name = strconv.Itoa(i)
		}
		params[name] = m[i]
	}
	return params, true
}

func (p *regexpPattern) String() string { return p.text }

type globPattern struct {
	glob     string
	baseOnly bool
}

// Glob compiles a doublestar glob. '*' and '?' stay within a path segment
// while '**' crosses segments. Braces pick alternatives and brackets match
// a character class. A glob without a slash is matched against the
// basename.
func Glob(glob string) (Pattern, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid glob %q: %w", glob, doublestar.ErrBadPattern)
	}
	return &globPattern{
		glob:     glob,
		baseOnly: !strings.Contains(glob, "/"),
	}, nil
}

func (p *globPattern) Match(path string) (Params, bool) {
	path = strings.ReplaceAll(path, "\\", "/")
	if p.baseOnly {
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			path = path[i+1:]
		}
	}
	if ok, err := doublestar.Match(p.glob, path); err != nil || !ok {
		return nil, false
	}
	return Params{}, true
}

func (p *globPattern) String() string { return p.glob }

type routePattern struct {
	re    *regexp.Regexp
	names []string
	text  string
}

// Route compiles a route template such as "/blog/:slug/index.html". Each
// ":name" segment binds one path segment.
func Route(tmpl string) (Pattern, error) {
	var (
		b     strings.Builder
		names []string
		seen  = make(map[string]bool)
	)
	b.WriteString("^")
	for i, seg := range strings.Split(tmpl, "/") {
		if i > 0 {
			b.WriteString("/")
		}
		if !strings.HasPrefix(seg, ":") {
			b.WriteString(regexp.QuoteMeta(seg))
			continue
		}
		name := seg[1:]
		if name == "" {
			return nil, fmt.Errorf("invalid route %q: empty parameter name", tmpl)
		}
		if seen[name] {
			return nil, fmt.Errorf("invalid route %q: duplicate parameter %q", tmpl, name)
		}
		seen[name] = true
		names = append(names, name)
		b.WriteString("([^/]+)")
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid route %q: %w", tmpl, err)
	}
	return &routePattern{re: re, names: names, text: tmpl}, nil
}

func (p *routePattern) Match(path string) (Params, bool) {
	m := p.re.FindStringSubmatch(strings.ReplaceAll(path, "\\", "/"))
	if m == nil {
		return nil, false
	}
	params := make(Params, len(p.names))
	for i, name := range p.names {
		params[name] = m[i+1]
	}
	return params, true
}

func (p *routePattern) String() string { return p.text }
