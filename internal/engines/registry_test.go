package engines

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

// upper is a sync-only engine with a compile step.
type upper struct{}

func (upper) CompileSync(v *view.View, _ *Options) error {
	src := v.Content()
	v.Fn = func(_ context.Context, _ map[string]any) ([]byte, error) {
		return []byte(strings.ToUpper(src)), nil
	}
	return nil
}

// asyncOnly only exposes context-taking methods.
type asyncOnly struct{}

func (asyncOnly) Compile(context.Context, *view.View, *Options) error { return nil }
func (asyncOnly) Render(_ context.Context, v *view.View, _ map[string]any, _ *Options) error {
	v.SetContent("async:" + v.Content())
	return nil
}

func echo(v *view.View, locals map[string]any) ([]byte, error) {
	return []byte(v.Content() + "|" + stringValue(locals, "name")), nil
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ".hbs", Normalize("hbs"))
	assert.Equal(t, ".hbs", Normalize(".hbs"))
	assert.Equal(t, ".hbs", Normalize("..hbs"))
	assert.Equal(t, "", Normalize("  "))
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register([]string{"html", ".htm"}, RenderFunc(echo), map[string]any{"x": 1}))

	e, ok := r.Get(".html")
	require.True(t, ok)
	assert.Equal(t, ".html", e.Ext())
	assert.Equal(t, map[string]any{"x": 1}, e.Settings())

	_, ok = r.Get("htm")
	assert.True(t, ok)
	assert.Equal(t, []string{".htm", ".html"}, r.Extensions())
}

func TestRegisterBareFunction(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register([]string{"txt"}, echo, nil))

	e, _ := r.Get("txt")
	v := view.NewString("a.txt", "hi")
	require.NoError(t, e.Render(context.Background(), v, map[string]any{"name": "bob"}, nil, true))
	assert.Equal(t, "hi|bob", v.Content())
	assert.False(t, e.CanCompile())
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Register([]string{"bad"}, "not an engine", nil)
	var ie *verrors.InvalidEngineError
	require.ErrorAs(t, err, &ie)

	assert.Error(t, r.Register(nil, RenderFunc(echo), nil))
	assert.Error(t, r.Register([]string{""}, RenderFunc(echo), nil))
}

func TestParentFallback(t *testing.T) {
	parent := NewRegistry(nil)
	require.NoError(t, parent.Register([]string{"html"}, RenderFunc(echo), nil))
	child := NewRegistry(parent)
	require.NoError(t, child.Register([]string{"md"}, upper{}, nil))

	_, ok := child.Get("html")
	assert.True(t, ok)
	_, ok = parent.Get("md")
	assert.False(t, ok)
	assert.Equal(t, []string{".html", ".md"}, child.Extensions())
}

func TestResolvePrecedence(t *testing.T) {
	r := NewRegistry(nil)
	for _, ext := range []string{"req", "view", "data", "locals", "col", "app", "html"} {
		require.NoError(t, r.Register([]string{ext}, RenderFunc(echo), nil))
	}

	build := func() *view.View {
		v := view.NewString("a.html", "")
		v.Engine = "view"
		v.Set("engine", "data")
		return v
	}
	locals := map[string]any{"engine": "locals"}
	req := Request{Engine: "req", CollectionDefault: "col", AppDefault: "app"}

	e, err := r.Resolve(build(), locals, req)
	require.NoError(t, err)
	assert.Equal(t, ".req", e.Ext())

	req.Engine = ""
	e, _ = r.Resolve(build(), locals, req)
	assert.Equal(t, ".view", e.Ext())

	v := build()
	v.Engine = ""
	e, _ = r.Resolve(v, locals, req)
	assert.Equal(t, ".data", e.Ext())

	delete(v.Data, "engine")
	e, _ = r.Resolve(v, locals, req)
	assert.Equal(t, ".locals", e.Ext())

	e, _ = r.Resolve(v, nil, req)
	assert.Equal(t, ".col", e.Ext())

	req.CollectionDefault = ""
	e, _ = r.Resolve(v, nil, req)
	assert.Equal(t, ".app", e.Ext())

	e, _ = r.Resolve(v, nil, Request{})
	assert.Equal(t, ".html", e.Ext())
}

func TestResolveErrors(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Resolve(&view.View{Contents: []byte("x")}, nil, Request{})
	var re *verrors.EngineResolutionError
	require.ErrorAs(t, err, &re)

	_, err = r.Resolve(view.NewString("foo.bar", "x"), nil, Request{})
	var nf *verrors.EngineNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "cannot find an engine for: .bar")
}

func TestEngineModes(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register([]string{"up"}, upper{}, nil))
	require.NoError(t, r.Register([]string{"async"}, asyncOnly{}, nil))

	up, _ := r.Get("up")
	assert.True(t, up.SupportsSync())
	v := view.NewString("a.up", "abc")
	require.NoError(t, up.Compile(context.Background(), v, nil, true))
	require.NoError(t, up.Render(context.Background(), v, nil, nil, true))
	assert.Equal(t, "ABC", v.Content())

	async, _ := r.Get("async")
	assert.False(t, async.SupportsSync())
	err := async.Render(context.Background(), view.NewString("a.async", "x"), nil, nil, true)
	var sm *verrors.SyncCallbackMisuseError
	require.ErrorAs(t, err, &sm)
	assert.Contains(t, err.Error(), "is sync and does not take a callback function")

	w := view.NewString("a.async", "x")
	require.NoError(t, async.Render(context.Background(), w, nil, nil, false))
	assert.Equal(t, "async:x", w.Content())
}

func TestEngineSkipsNullContents(t *testing.T) {
	r := NewRegistry(nil)
	called := false
	require.NoError(t, r.Register([]string{"html"}, RenderFunc(func(*view.View, map[string]any) ([]byte, error) {
		called = true
		return nil, nil
	}), nil))

	e, _ := r.Get("html")
	v := view.New("dir.html", nil)
	require.NoError(t, e.Render(context.Background(), v, nil, nil, false))
	assert.False(t, called)
	assert.Nil(t, v.Contents)
}

func TestRenderWithoutFn(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register([]string{"up"}, upper{}, nil))

	e, _ := r.Get("up")
	err := e.Render(context.Background(), view.NewString("a.up", "x"), nil, nil, false)
	assert.Error(t, err)
}

func TestOptionsSetting(t *testing.T) {
	var o *Options
	_, ok := o.Setting("x")
	assert.False(t, ok)

	o = &Options{Settings: map[string]any{"x": 2}}
	val, ok := o.Setting("x")
	assert.True(t, ok)
	assert.Equal(t, 2, val)
}
