// Package site builds a directory of pages, layouts and partials into an
// output directory using an app.App.
//
// Three collections are created: "layouts" (layout kind), "partials"
// (partial kind) and "pages" (renderable). Every renderable page is
// rendered with the merged partials and written under the output directory
// with an .html extension, text pages keeping theirs.
package site

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/conneroisu/verso/internal/app"
	"github.com/conneroisu/verso/internal/config"
	"github.com/conneroisu/verso/internal/engines/builtin"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/layout"
	"github.com/conneroisu/verso/internal/loader"
	"github.com/conneroisu/verso/internal/logging"
	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

// Collection names created by the builder.
const (
	Pages    = "pages"
	Layouts  = "layouts"
	Partials = "partials"
)

// Options configure a Builder.
type Options struct {
	Config *config.Config
	Logger logging.Logger
	// Root is the directory relative paths are resolved against.
	Root string
	// FS replaces the file system rooted at Root for reading sources.
	FS fs.FS
	// Templ provides components for .templ pages.
	Templ *builtin.Templ
	// AppOptions are applied after the options derived from Config.
	AppOptions []app.Option
	// Data is stored as app data, visible to every page.
	Data map[string]any
	// KeepGoing renders every page and reports all failures at the end.
	KeepGoing bool
}

// Page is a written output file.
type Page struct {
	Key    string
	Output string
	Size   int
}

// Result describes one build.
type Result struct {
	Pages    []Page
	Failures []errors.RenderFailure
	Duration time.Duration
}

// Builder renders a site.
type Builder struct {
	cfg       *config.Config
	logger    logging.Logger
	root      string
	fsys      fs.FS
	templ     *builtin.Templ
	appOpts   []app.Option
	data      map[string]any
	keepGoing bool
}

// New creates a Builder. A nil config uses config.Default.
func New(opts Options) (*Builder, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	root := opts.Root
	if root == "" {
		root = "."
	}
	templ := opts.Templ
	if templ == nil {
		templ = builtin.NewTempl()
	}

	return &Builder{
		cfg:       cfg,
		logger:    logger.WithComponent("site"),
		root:      root,
		fsys:      opts.FS,
		templ:     templ,
		appOpts:   opts.AppOptions,
		data:      opts.Data,
		keepGoing: opts.KeepGoing,
	}, nil
}

// OutputDir returns the directory pages are written to.
func (b *Builder) OutputDir() string {
	return b.resolve(b.cfg.Paths.Output)
}

// SourceDirs returns the page, layout and partial directories on disk.
func (b *Builder) SourceDirs() []string {
	return []string{
		b.resolve(b.cfg.Paths.Pages),
		b.resolve(b.cfg.Paths.Layouts),
		b.resolve(b.cfg.Paths.Partials),
	}
}

func (b *Builder) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.root, p)
}

// source returns the file system and directory to load p from.
func (b *Builder) source(p string) (fs.FS, string) {
	if b.fsys != nil {
		return b.fsys, path.Clean(filepath.ToSlash(p))
	}
	if filepath.IsAbs(p) {
		return os.DirFS(p), "."
	}
	return os.DirFS(b.root), path.Clean(filepath.ToSlash(p))
}

// NewApp creates an app with the builtin engines registered.
func (b *Builder) NewApp() (*app.App, error) {
	opts := append(b.cfg.ToOptions(b.logger), app.Helpers(builtin.DefaultHelpers()))
	opts = append(opts, b.appOpts...)

	a, err := app.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := builtin.RegisterDefaults(a.Engines(), b.cfg.Engines.Sanitize); err != nil {
		return nil, err
	}
	for k, val := range b.data {
		a.SetData(k, val)
	}
	if !a.Config().Sync {
		if err := a.Engine(builtin.TemplExts, b.templ, nil); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Load creates an app and loads layouts, partials and pages into it.
func (b *Builder) Load(ctx context.Context) (*app.App, error) {
	a, err := b.NewApp()
	if err != nil {
		return nil, err
	}

	sources := []struct {
		name string
		kind view.Kind
		dir  string
	}{
		{Layouts, view.KindLayout, b.cfg.Paths.Layouts},
		{Partials, view.KindPartial, b.cfg.Paths.Partials},
		{Pages, view.KindRenderable, b.cfg.Paths.Pages},
	}

	for _, src := range sources {
		col, err := a.Create(src.name, src.kind)
		if err != nil {
			return nil, err
		}
		if src.name == Pages && b.cfg.Render.DefaultLayout != "" {
			if err := b.defaultLayout(col); err != nil {
				return nil, err
			}
		}

		fsys, dir := b.source(src.dir)
		views, err := loader.LoadInto(ctx, col, fsys, dir, loader.Options{
			Extensions: b.cfg.Paths.Extensions,
			Ignore:     b.cfg.Watch.Ignore,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", src.name, err)
		}
		b.logger.Debug(ctx, "loaded views", "collection", src.name, "dir", src.dir, "count", len(views))
	}
	return a, nil
}

// defaultLayout gives pages without a layout the configured default.
func (b *Builder) defaultLayout(col *app.Collection) error {
	name := b.cfg.Render.DefaultLayout
	key := b.cfg.Render.LayoutKey
	return col.On(router.OnLoad, "", router.HandlerFunc(func(v *view.View, _ router.Params) error {
		if layout.RefOf(v, key).IsSet() {
			return nil
		}
		v.Set(key, name)
		return nil
	}))
}

// Build loads the sources and renders every page.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	a, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}
	return b.Render(ctx, a)
}

// Render renders the renderable pages of a and writes them out. Without
// KeepGoing the first failure stops the build.
func (b *Builder) Render(ctx context.Context, a *app.App) (*Result, error) {
	start := time.Now()
	result := &Result{}

	pages, ok := a.Collection(Pages)
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", Pages)
	}
	partials, err := a.MergePartials(ctx)
	if err != nil {
		return nil, err
	}
	opts := &app.RenderOptions{Partials: partials}

	outDir := b.OutputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "failed to create output directory", err).WithPath(outDir)
	}

	collector := errors.NewErrorCollector()
	for _, v := range pages.Views() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if v.Kind != view.KindRenderable {
			continue
		}

		page, err := b.renderPage(ctx, a, v, opts, outDir)
		if err != nil {
			if !b.keepGoing {
				return result, err
			}
			collector.Add(v.Collection, v.Path, err)
			continue
		}
		result.Pages = append(result.Pages, page)
	}

	result.Failures = collector.Failures()
	result.Duration = time.Since(start)
	b.logger.Info(ctx, "site rendered",
		"pages", len(result.Pages),
		"failures", len(result.Failures),
		"duration", result.Duration.String(),
	)
	return result, collector.Err()
}

func (b *Builder) renderPage(ctx context.Context, a *app.App, v *view.View, opts *app.RenderOptions, outDir string) (Page, error) {
	c := v.Clone()
	if err := a.Render(ctx, c, nil, opts); err != nil {
		return Page{}, err
	}

	rel := OutputPath(c.Key)
	out := filepath.Join(outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Page{}, errors.NewIOError(errors.ErrCodeWriteFailed, "failed to create directory", err).WithPath(rel)
	}
	if err := os.WriteFile(out, c.Contents, 0o644); err != nil {
		return Page{}, errors.NewIOError(errors.ErrCodeWriteFailed, "failed to write page", err).WithPath(rel)
	}
	return Page{Key: c.Key, Output: rel, Size: len(c.Contents)}, nil
}

// OutputPath maps a page key to its output path. Text pages keep their
// extension, everything else becomes .html.
func OutputPath(key string) string {
	key = filepath.ToSlash(key)
	ext := path.Ext(key)
	if ext == ".html" || slices.Contains(builtin.TextExts, ext) {
		return key
	}
	return strings.TrimSuffix(key, ext) + ".html"
}
