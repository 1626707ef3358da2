package engines

import (
	"sort"
	"sync"

	"github.com/conneroisu/verso/internal/errors"
	"github.com/conneroisu/verso/internal/view"
)

// Registry maps extensions to engines. A registry may have a parent which
// is consulted for extensions it does not register itself, so collection
// overrides sit on top of the app registry.
type Registry struct {
	mu      sync.RWMutex
	parent  *Registry
	engines map[string]*Engine
}

// NewRegistry creates a registry. parent may be nil.
func NewRegistry(parent *Registry) *Registry {
	return &Registry{
		parent:  parent,
		engines: make(map[string]*Engine),
	}
}

// Register binds engineLike to each extension.
func (r *Registry) Register(exts []string, engineLike any, settings map[string]any) error {
	if len(exts) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidEngine, "engine registration needs at least one extension")
	}

	built := make(map[string]*Engine, len(exts))
	for _, raw := range exts {
		ext := Normalize(raw)
		if ext == "" {
			return errors.NewValidationError(errors.ErrCodeInvalidEngine, "empty engine extension")
		}
		e, err := newEngine(ext, engineLike, settings)
		if err != nil {
			return err
		}
		built[ext] = e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for ext, e := range built {
		r.engines[ext] = e
	}
	return nil
}

// Get returns the engine for ext, consulting the parent registry.
func (r *Registry) Get(ext string) (*Engine, bool) {
	ext = Normalize(ext)
	r.mu.RLock()
	e, ok := r.engines[ext]
	r.mu.RUnlock()
	if ok {
		return e, true
	}
	if r.parent != nil {
		return r.parent.Get(ext)
	}
	return nil, false
}

// Extensions lists every extension visible from this registry, sorted.
func (r *Registry) Extensions() []string {
	seen := make(map[string]bool)
	for cur := r; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for ext := range cur.engines {
			seen[ext] = true
		}
		cur.mu.RUnlock()
	}

	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Request carries the non-view inputs of engine resolution.
type Request struct {
	// Engine is an engine the caller asked for explicitly.
	Engine string
	// CollectionDefault is the owning collection's default engine.
	CollectionDefault string
	// AppDefault is the app-wide default engine.
	AppDefault string
}

// Resolve picks the engine for v. The first non-empty name wins, in order:
// the requested engine, v.Engine, v.Data["engine"], locals["engine"], the
// collection default, the app default, the extension of v.Path.
func (r *Registry) Resolve(v *view.View, locals map[string]any, req Request) (*Engine, error) {
	name := firstNonEmpty(
		req.Engine,
		v.Engine,
		stringValue(v.Data, "engine"),
		stringValue(locals, "engine"),
		req.CollectionDefault,
		req.AppDefault,
		v.Extname(),
	)
	if name == "" {
		return nil, &errors.EngineResolutionError{Key: v.Key}
	}

	ext := Normalize(name)
	e, ok := r.Get(ext)
	if !ok {
		return nil, &errors.EngineNotFoundError{Ext: ext}
	}
	return e, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
