package errors

import (
	"errors"
	"fmt"
)

// EngineResolutionError reports that no engine could be determined for a
// view: it has neither a path nor an explicit engine name.
type EngineResolutionError struct {
	Key string
}

func (e *EngineResolutionError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cannot resolve an engine for view %q: expected a path or an engine name", e.Key)
	}
	return "cannot resolve an engine: expected view.path or an engine name"
}

// EngineNotFoundError reports an extension with no registered engine.
type EngineNotFoundError struct {
	Ext string
}

func (e *EngineNotFoundError) Error() string {
	return "cannot find an engine for: " + e.Ext
}

// InvalidEngineError reports a value passed to engine registration that
// exposes none of the engine capabilities.
type InvalidEngineError struct {
	Ext   string
	Value any
}

func (e *InvalidEngineError) Error() string {
	return fmt.Sprintf("expected engine %q to be a render function or to implement compile or render, got %T", e.Ext, e.Value)
}

// LayoutNotFoundError reports a layout name that is missing from the
// layout table.
type LayoutNotFoundError struct {
	Name string
	Path string
}

func (e *LayoutNotFoundError) Error() string {
	return fmt.Sprintf("layout %q is defined on %q but cannot be found", e.Name, e.Path)
}

// InvalidLayoutContentsError reports a layout whose contents are null.
type InvalidLayoutContentsError struct {
	Name string
}

func (e *InvalidLayoutContentsError) Error() string {
	if e.Name == "" {
		return "expected layout.contents to be a buffer"
	}
	return fmt.Sprintf("expected layout.contents to be a buffer (layout %q)", e.Name)
}

// BodyTagNotFoundError reports a layout without the configured body marker.
type BodyTagNotFoundError struct {
	Tag    string
	Layout string
}

func (e *BodyTagNotFoundError) Error() string {
	return fmt.Sprintf("cannot find tag %q in layout %q", e.Tag, e.Layout)
}

// SyncCallbackMisuseError reports an asynchronous call, handler or engine
// used while the app runs in sync mode.
type SyncCallbackMisuseError struct {
	Op string
}

func (e *SyncCallbackMisuseError) Error() string {
	return e.Op + " is sync and does not take a callback function"
}

// IsLayoutError checks if an error came from layout resolution.
func IsLayoutError(err error) bool {
	var (
		nf *LayoutNotFoundError
		ic *InvalidLayoutContentsError
		bt *BodyTagNotFoundError
	)
	return errors.As(err, &nf) || errors.As(err, &ic) || errors.As(err, &bt)
}

// IsEngineError checks if an error came from engine resolution or registration.
func IsEngineError(err error) bool {
	var (
		re *EngineResolutionError
		nf *EngineNotFoundError
		ie *InvalidEngineError
	)
	return errors.As(err, &re) || errors.As(err, &nf) || errors.As(err, &ie)
}

// IsSyncMisuse checks if an error reports an async call in sync mode.
func IsSyncMisuse(err error) bool {
	var sm *SyncCallbackMisuseError
	return errors.As(err, &sm)
}
