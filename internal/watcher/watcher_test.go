package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	assert.NotNil(t, fw.watcher)
	assert.NotNil(t, fw.debouncer)
	assert.NotNil(t, fw.logger)
	assert.Empty(t, fw.filters)
	assert.Empty(t, fw.handlers)
	assert.Equal(t, 100*time.Millisecond, fw.debouncer.delay)
}

func TestAddPath(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	require.NoError(t, fw.AddPath(dir))
	assert.Contains(t, fw.WatchList(), dir)

	assert.Error(t, fw.AddPath(""))
	assert.Error(t, fw.AddPath("../outside"))
}

func TestAddRecursiveSkipsHidden(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages", "blog"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))

	require.NoError(t, fw.AddRecursive(dir))
	list := fw.WatchList()
	assert.Contains(t, list, dir)
	assert.Contains(t, list, filepath.Join(dir, "pages"))
	assert.Contains(t, list, filepath.Join(dir, "pages", "blog"))
	assert.NotContains(t, list, filepath.Join(dir, ".git"))
}

func TestDebouncerBatchesAndSorts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "b.html"})
	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "a.html"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.html"})

	select {
	case events := <-d.Output():
		require.Len(t, events, 2)
		assert.Equal(t, "a.html", events[0].Path)
		assert.Equal(t, "b.html", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestWatcherDeliversChanges(t *testing.T) {
	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	dir := t.TempDir()
	require.NoError(t, fw.AddRecursive(dir))
	fw.AddFilter(ExtensionFilter(".html"))

	var (
		mu    sync.Mutex
		paths []string
	)
	got := make(chan struct{}, 1)
	fw.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		for _, e := range events {
			paths = append(paths, filepath.Base(e.Path))
		}
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0o644))

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "index.html")
	assert.NotContains(t, paths, "skip.txt")
}

func TestExtensionFilter(t *testing.T) {
	f := ExtensionFilter("html", ".md")
	assert.True(t, f("pages/index.html"))
	assert.True(t, f("pages/post.md"))
	assert.False(t, f("pages/style.css"))
	assert.True(t, ExtensionFilter()("anything"))
}

func TestIgnoreFilter(t *testing.T) {
	f, err := IgnoreFilter("node_modules", "*.tmp")
	require.NoError(t, err)

	assert.False(t, f("site/node_modules/x/index.html"))
	assert.False(t, f("pages/draft.tmp"))
	assert.True(t, f("pages/index.html"))
}

func TestNoHiddenFilter(t *testing.T) {
	assert.False(t, NoHiddenFilter("pages/.draft.html"))
	assert.False(t, NoHiddenFilter(".git/HEAD"))
	assert.True(t, NoHiddenFilter("./pages/index.html"))
	assert.True(t, NoHiddenFilter("pages/index.html"))
}

func TestNoBackupFilter(t *testing.T) {
	assert.False(t, NoBackupFilter("index.html~"))
	assert.False(t, NoBackupFilter(".index.html.swp"))
	assert.True(t, NoBackupFilter("index.html"))
}
