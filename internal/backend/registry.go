package backend

import (
	"fmt"
	"sort"
	"sync"
	"opacbridge/internal/opac"
)

// Factory constructs an adapter for a library, it should only fail when the
// library configuration is unusable.
type Factory func(lib opac.Library, deps Deps) (API, error)

// Registry maps the `api` name of a library to the adapter implementing it.
type Registry struct {
	mutex     sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register panics when name is taken, registration happens at startup.
func (r *Registry) Register(name string, factory Factory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.factories[name]; ok {
		panic(fmt.Sprintf("backend %q registered twice", name))
	}
	r.factories[name] = factory
}

func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Supports(lib opac.Library) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.factories[lib.API]
	return ok
}

// New constructs a fresh adapter instance for lib.
func (r *Registry) New(lib opac.Library, deps Deps) (API, error) {
	r.mutex.RLock()
	factory, ok := r.factories[lib.API]
	r.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("library %s: unknown api %q", lib.Ident, lib.API)
	}
	api, err := factory(lib, deps)
	if err != nil {
		return nil, fmt.Errorf("library %s: %w", lib.Ident, err)
	}
	return api, nil
}
