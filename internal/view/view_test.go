package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewPathDerivations(t *testing.T) {
	tests := []struct {
		path     string
		basename string
		stem     string
		ext      string
		dir      string
	}{
		{"pages/about.html", "about.html", "about", ".html", "pages"},
		{"/abs/blog/post.md", "post.md", "post", ".md", "/abs/blog"},
		{"README", "README", "README", "", "."},
		{`win\dir\file.tmpl`, "file.tmpl", "file", ".tmpl", "win/dir"},
		{"", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v := NewString(tt.path, "x")
			assert.Equal(t, tt.basename, v.Basename())
			assert.Equal(t, tt.stem, v.Stem())
			assert.Equal(t, tt.ext, v.Extname())
			assert.Equal(t, tt.dir, v.Dirname())
		})
	}
}

func TestViewNullContents(t *testing.T) {
	v := New("dir", nil)
	assert.True(t, v.IsNull())

	empty := NewString("empty.html", "")
	assert.False(t, empty.IsNull(), "an empty string is still a buffer")
}

func TestViewClone(t *testing.T) {
	v := NewString("a.html", "hello")
	v.Set("title", "A")
	v.MarkHandled("onLoad")
	v.LayoutStack = []string{"default"}

	c := v.Clone()
	c.Contents[0] = 'J'
	c.Set("title", "B")
	c.MarkHandled("preRender")
	c.LayoutStack[0] = "other"

	assert.Equal(t, "hello", v.Content())
	title, ok := v.Get("title")
	require.True(t, ok)
	assert.Equal(t, "A", title)
	assert.False(t, v.IsHandled("preRender"))
	assert.Equal(t, []string{"default"}, v.LayoutStack)
}

func TestHandledFlags(t *testing.T) {
	v := NewString("a.html", "")
	assert.False(t, v.IsHandled("onLoad"))
	v.MarkHandled("onLoad")
	assert.True(t, v.IsHandled("onLoad"))
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindRenderable.Valid())
	assert.True(t, KindLayout.Valid())
	assert.True(t, KindPartial.Valid())
	assert.False(t, Kind("page").Valid())
}
