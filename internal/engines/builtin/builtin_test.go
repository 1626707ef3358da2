package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/verso/internal/engines"
	verrors "github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

func render(t *testing.T, r *engines.Registry, v *view.View, locals map[string]any, opts *engines.Options, sync bool) string {
	t.Helper()
	e, err := r.Resolve(v, locals, engines.Request{})
	require.NoError(t, err)
	require.NoError(t, e.Compile(context.Background(), v, opts, sync))
	require.NoError(t, e.Render(context.Background(), v, locals, opts, sync))
	return v.Content()
}

func defaults(t *testing.T, sanitize bool) *engines.Registry {
	t.Helper()
	r := engines.NewRegistry(nil)
	require.NoError(t, RegisterDefaults(r, sanitize))
	return r
}

func TestHTMLEngine(t *testing.T) {
	r := defaults(t, false)

	v := view.NewString("page.html", `<h1>{{title .name}}</h1><p>{{.body}}</p>`)
	out := render(t, r, v, map[string]any{"name": "hello world", "body": "<b>x</b>"}, nil, true)
	assert.Equal(t, "<h1>Hello World</h1><p>&lt;b&gt;x&lt;/b&gt;</p>", out)
}

func TestHTMLEngineRendersTwice(t *testing.T) {
	r := defaults(t, false)
	e, _ := r.Get("html")

	v := view.NewString("page.html", `{{.n}}`)
	require.NoError(t, e.Compile(context.Background(), v, nil, true))
	fn := v.Fn

	for i := range 3 {
		out, err := fn(context.Background(), map[string]any{"n": i})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), string(out))
	}
}

func TestHTMLEnginePartials(t *testing.T) {
	r := defaults(t, false)
	opts := &engines.Options{Partials: map[string][]byte{
		"nav": []byte(`<nav>{{.site}}</nav>`),
	}}

	v := view.NewString("page.html", `{{template "nav" .}}<main/>`)
	out := render(t, r, v, map[string]any{"site": "verso"}, opts, true)
	assert.Equal(t, "<nav>verso</nav><main/>", out)
}

func TestHTMLEngineParseError(t *testing.T) {
	r := defaults(t, false)
	e, _ := r.Get("html")

	err := e.Compile(context.Background(), view.NewString("bad.html", "{{.x"), nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.html")
}

func TestTextEngineHelpers(t *testing.T) {
	r := defaults(t, false)
	opts := &engines.Options{Helpers: map[string]any{
		"shout": func(s string) string { return strings.ToUpper(s) + "!" },
	}}

	v := view.NewString("note.txt", `{{shout .name}} <{{lower "ABC"}}> {{default "anon" .missing}}`)
	out := render(t, r, v, map[string]any{"name": "bob"}, opts, true)
	assert.Equal(t, "BOB! <abc> anon", out)
}

func TestContextHelpers(t *testing.T) {
	r := defaults(t, false)

	type key struct{}
	helper := ContextHelper(func(ctx context.Context, args ...any) (any, error) {
		return fmt.Sprintf("%v:%v", ctx.Value(key{}), args[0]), nil
	})

	t.Run("rejected without async helpers", func(t *testing.T) {
		e, _ := r.Get("txt")
		opts := &engines.Options{Helpers: map[string]any{"who": helper}}
		err := e.Compile(context.Background(), view.NewString("a.txt", `{{who 1}}`), opts, true)
		assert.Error(t, err)
	})

	t.Run("bound per render", func(t *testing.T) {
		e, _ := r.Get("txt")
		opts := &engines.Options{Helpers: map[string]any{"who": helper}, AsyncHelpers: true}
		v := view.NewString("a.txt", `{{who 1}}`)
		require.NoError(t, e.Compile(context.Background(), v, opts, false))

		ctx := context.WithValue(context.Background(), key{}, "alice")
		require.NoError(t, e.Render(ctx, v, nil, opts, false))
		assert.Equal(t, "alice:1", v.Content())
	})

	t.Run("html engine", func(t *testing.T) {
		e, _ := r.Get("html")
		opts := &engines.Options{Helpers: map[string]any{"who": helper}, AsyncHelpers: true}
		v := view.NewString("a.html", `<p>{{who 2}}</p>`)
		require.NoError(t, e.Compile(context.Background(), v, opts, false))

		ctx := context.WithValue(context.Background(), key{}, "carol")
		require.NoError(t, e.Render(ctx, v, nil, opts, false))
		assert.Equal(t, "<p>carol:2</p>", v.Content())
	})
}

func TestMarkdownEngine(t *testing.T) {
	r := defaults(t, false)

	v := view.NewString("post.md", "# Title\n\nSome *text* and <span class=\"x\">raw</span>\n")
	out := render(t, r, v, nil, nil, true)
	assert.Contains(t, out, `<h1 id="title">Title</h1>`)
	assert.Contains(t, out, "<em>text</em>")
	assert.Contains(t, out, `<span class="x">raw</span>`)
}

func TestMarkdownSanitize(t *testing.T) {
	r := defaults(t, true)

	v := view.NewString("post.md", "hello <script>alert(1)</script>\n")
	out := render(t, r, v, nil, nil, true)
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "<script>")
}

func TestMarkdownKeepsLayoutMarker(t *testing.T) {
	r := defaults(t, false)

	v := view.NewString("layout.md", "# Site\n\n{% body %}\n")
	out := render(t, r, v, nil, nil, true)
	assert.Contains(t, out, "{% body %}")
}

func wrapper(ctx context.Context, w io.Writer) error {
	if _, err := io.WriteString(w, "<article>"); err != nil {
		return err
	}
	if err := templ.GetChildren(ctx).Render(ctx, w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</article>")
	return err
}

func TestTemplEngine(t *testing.T) {
	te := NewTempl().
		Static("article", templ.ComponentFunc(wrapper)).
		Component("greet", func(locals map[string]any) templ.Component {
			return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
				_, err := fmt.Fprintf(w, "hi %v/%v", locals["name"], Locals(ctx)["name"])
				return err
			})
		})

	r := engines.NewRegistry(nil)
	require.NoError(t, r.Register(TemplExts, te, nil))

	v := view.NewString("article.templ", "<p>body</p>")
	assert.Equal(t, "<article><p>body</p></article>", render(t, r, v, nil, nil, false))

	g := view.NewString("x.templ", "")
	g.Set("component", "greet")
	assert.Equal(t, "hi ann/ann", render(t, r, g, map[string]any{"name": "ann"}, nil, false))
}

func TestTemplEngineErrors(t *testing.T) {
	te := NewTempl().Static("boom", templ.ComponentFunc(func(context.Context, io.Writer) error {
		return errors.New("boom")
	}))
	r := engines.NewRegistry(nil)
	require.NoError(t, r.Register(TemplExts, te, nil))
	e, _ := r.Get("templ")

	err := e.Render(context.Background(), view.NewString("missing.templ", "x"), nil, nil, false)
	assert.ErrorContains(t, err, `"missing" is not registered`)

	err = e.Render(context.Background(), view.NewString("boom.templ", "x"), nil, nil, false)
	assert.ErrorContains(t, err, "boom")

	err = e.Render(context.Background(), view.NewString("boom.templ", "x"), nil, nil, true)
	var sm *verrors.SyncCallbackMisuseError
	assert.ErrorAs(t, err, &sm)
}
