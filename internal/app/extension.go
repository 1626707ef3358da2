package app

import "github.com/conneroisu/verso/internal/view"

// AppExtension adds capabilities to an App. It may return a
// CollectionExtension which is applied to every current and future
// collection of the app.
type AppExtension interface {
	ExtendApp(a *App) (CollectionExtension, error)
}

// CollectionExtension adds capabilities to a Collection. It may return a
// ViewExtension which is applied to every current and future view of the
// collection.
type CollectionExtension interface {
	ExtendCollection(c *Collection) (ViewExtension, error)
}

// ViewExtension adds capabilities to a single view.
type ViewExtension interface {
	ExtendView(v *view.View) error
}

// AppExtensionFunc adapts a function to AppExtension.
type AppExtensionFunc func(a *App) (CollectionExtension, error)

func (f AppExtensionFunc) ExtendApp(a *App) (CollectionExtension, error) { return f(a) }

// CollectionExtensionFunc adapts a function to CollectionExtension.
type CollectionExtensionFunc func(c *Collection) (ViewExtension, error)

func (f CollectionExtensionFunc) ExtendCollection(c *Collection) (ViewExtension, error) {
	return f(c)
}

// ViewExtensionFunc adapts a function to ViewExtension.
type ViewExtensionFunc func(v *view.View) error

func (f ViewExtensionFunc) ExtendView(v *view.View) error { return f(v) }
