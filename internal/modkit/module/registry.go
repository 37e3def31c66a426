package module

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named modules for bootstrap wiring
// modules register once; duplicate names are a programmer error
type Registry struct {
	mu   sync.RWMutex
	mods map[string]Module
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry { return &Registry{mods: map[string]Module{}} }

// Add registers m under m.Name and panics on a duplicate
func (r *Registry) Add(m Module) Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.mods[m.Name()]; dup {
		panic(fmt.Sprintf("module: %q registered twice", m.Name()))
	}
	r.mods[m.Name()] = m
	return m
}

// Get returns the module registered as name
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[name]
	return m, ok
}

// MustGet fails fast on an unknown module name
func (r *Registry) MustGet(name string) Module {
	m, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("module: %q is not registered", name))
	}
	return m
}

// Names lists registered modules in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.mods))
	for n := range r.mods {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// PortsAs fetches the named module's ports as T
func PortsAs[T any](r *Registry, name string) (T, bool) {
	var zero T
	m, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	return PortsOf[T](m)
}
