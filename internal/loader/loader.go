// Package loader reads views from a file system. Files may start with a
// YAML front matter block whose values become view data.
package loader

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/verso/internal/app"
	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/router"
	"github.com/conneroisu/verso/internal/view"
)

// Options control which files are loaded.
type Options struct {
	// Extensions limits loading to these extensions. Empty loads every
	// file.
	Extensions []string
	// Ignore skips files and directories matching any of these globs.
	Ignore []string
	// Kind overrides the kind of every loaded view.
	Kind view.Kind
}

// Load walks dir inside fsys and returns its views keyed by their path
// relative to dir. Hidden files and directories are skipped. A missing dir
// yields no views.
func Load(fsys fs.FS, dir string, opts Options) ([]*view.View, error) {
	if dir == "" {
		dir = "."
	}
	dir = path.Clean(filepath.ToSlash(dir))

	ignore := make([]router.Pattern, 0, len(opts.Ignore))
	for _, g := range opts.Ignore {
		p, err := router.Glob(g)
		if err != nil {
			return nil, err
		}
		ignore = append(ignore, p)
	}

	var views []*view.View
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// skip hidden files and directories.
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel := relative(dir, p)
		for _, pat := range ignore {
			if _, ok := pat.Match(rel); ok && p != dir {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() || !validExt(opts.Extensions, path.Ext(p)) {
			return nil
		}

		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.NewIOError(errors.ErrCodeFileNotFound, "error reading file", err).WithPath(p)
		}
		v, err := Parse(rel, raw)
		if err != nil {
			return err
		}
		if opts.Kind != "" {
			v.Kind = opts.Kind
		}
		views = append(views, v)
		return nil
	})
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) && len(views) == 0 {
			return nil, nil
		}
		return nil, err
	}
	return views, nil
}

// LoadInto loads views and adds them to col, running onLoad for each.
func LoadInto(ctx context.Context, col *app.Collection, fsys fs.FS, dir string, opts Options) ([]*view.View, error) {
	views, err := Load(fsys, dir, opts)
	if err != nil {
		return nil, err
	}
	added := make([]*view.View, 0, len(views))
	for _, v := range views {
		if _, err := col.AddView(ctx, v.Path, v); err != nil {
			return added, err
		}
		added = append(added, v)
	}
	return added, nil
}

func relative(dir, p string) string {
	if dir == "." {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
}

func validExt(exts []string, ext string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if "."+strings.TrimLeft(e, ".") == ext {
			return true
		}
	}
	return false
}
