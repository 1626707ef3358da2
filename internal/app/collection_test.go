package app

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

func TestCollectionLookup(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	v, err := col.Add(context.Background(), "content/blog/post.html", "x")
	require.NoError(t, err)
	assert.Equal(t, "pages", v.Collection)
	assert.Equal(t, view.KindRenderable, v.Kind)

	tests := []struct {
		name  string
		found bool
	}{
		{"content/blog/post.html", true},
		{"post.html", true},
		{"post", true},
		{"other", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := col.GetView(tt.name)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Same(t, v, got)
			}
		})
	}
}

func TestCollectionRenameKey(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)
	col.SetRenameKey(func(k string) string {
		return strings.TrimSuffix(path.Base(k), path.Ext(k))
	})

	v, err := col.Add(context.Background(), "a/b/home.html", "x")
	require.NoError(t, err)
	assert.Equal(t, "home", v.Key)
	assert.Equal(t, "a/b/home.html", v.Path)
	assert.Equal(t, []string{"home"}, col.Keys())

	got, ok := col.GetView("x/y/home.txt")
	require.True(t, ok)
	assert.Same(t, v, got)

	assert.True(t, col.DeleteView("z/home.md"))
	assert.Equal(t, 0, col.Len())
	assert.False(t, col.DeleteView("home"))
}

func TestCollectionOrderAndReplace(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	for _, p := range []string{"c.html", "a.html", "b.html"} {
		_, err := col.Add(context.Background(), p, p)
		require.NoError(t, err)
	}
	_, err = col.Add(context.Background(), "a.html", "replaced")
	require.NoError(t, err)

	assert.Equal(t, []string{"c.html", "a.html", "b.html"}, col.Keys())
	views := col.Views()
	require.Len(t, views, 3)
	assert.Equal(t, "replaced", views[1].Content())

	assert.True(t, col.DeleteView("a.html"))
	assert.Equal(t, []string{"c.html", "b.html"}, col.Keys())
}

func TestCollectionKindDefaults(t *testing.T) {
	a := newTestApp(t)
	layouts, err := a.Create("layouts", view.KindLayout)
	require.NoError(t, err)

	v, err := layouts.Add(context.Background(), "base.html", "{% body %}")
	require.NoError(t, err)
	assert.Equal(t, view.KindLayout, v.Kind)

	v, ok := layouts.Layout("base")
	require.True(t, ok)
	assert.Equal(t, "base.html", v.Path)
}

func TestAddViewRunsOnLoadOnce(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	var calls []string
	require.NoError(t, a.On(router.OnLoad, "", router.HandlerFunc(func(v *view.View, _ router.Params) error {
		calls = append(calls, "app:"+v.Key)
		return nil
	})))
	require.NoError(t, col.On(router.OnLoad, "*.html", router.HandlerFunc(func(v *view.View, _ router.Params) error {
		calls = append(calls, "collection:"+v.Key)
		return nil
	})))

	v := view.NewString("a.html", "x")
	_, err = col.AddView(context.Background(), "", v)
	require.NoError(t, err)
	_, err = col.AddView(context.Background(), "", v)
	require.NoError(t, err)

	assert.Equal(t, []string{"app:a.html", "collection:a.html"}, calls)
	assert.True(t, v.IsHandled(router.OnLoad))
}

func TestAddViewOnLoadFailureHidesView(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	boom := errors.New("reject")
	require.NoError(t, col.On(router.OnLoad, "draft-*", router.HandlerFunc(func(*view.View, router.Params) error {
		return boom
	})))

	_, err = col.Add(context.Background(), "draft-1.html", "x")
	assert.Same(t, boom, err)
	_, ok := col.GetView("draft-1.html")
	assert.False(t, ok)
}

func TestAddViewValidation(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	_, err = col.AddView(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = col.AddView(context.Background(), "", &view.View{Contents: []byte("x")})
	assert.Error(t, err)

	v, err := col.AddView(context.Background(), "virtual", &view.View{})
	require.NoError(t, err)
	assert.Equal(t, "virtual", v.Path)
	assert.NotNil(t, v.Data)
}

func TestCollectionData(t *testing.T) {
	a := newTestApp(t)
	col, err := a.Create("pages", view.KindRenderable)
	require.NoError(t, err)

	col.SetData("title", "Pages")
	data := col.Data()
	data["title"] = "mutated"
	assert.Equal(t, "Pages", col.Data()["title"])
	assert.Contains(t, col.String(), `"pages"`)
	assert.Same(t, a, col.App())
}
