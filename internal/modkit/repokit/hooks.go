package repokit

import (
	"context"
	"slices"
	"sync"
)

// Hook runs inside the unit of work that is about to persist v and may mutate it
// returning an error aborts the write
type Hook[T any] func(ctx context.Context, q Queryer, v T) error

// Hooks is an ordered, named chain of pre-commit hooks
// registering a name twice or unregistering an absent name is a no-op
type Hooks[T any] struct {
	mu    sync.RWMutex
	order []string
	fns   map[string]Hook[T]
}

// Register appends fn under name; reports false when name was already present
func (h *Hooks[T]) Register(name string, fn Hook[T]) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = map[string]Hook[T]{}
	}
	if _, ok := h.fns[name]; ok {
		return false
	}
	h.fns[name] = fn
	h.order = append(h.order, name)
	return true
}

// Unregister removes name; reports false when it was not present
func (h *Hooks[T]) Unregister(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.fns[name]; !ok {
		return false
	}
	delete(h.fns, name)
	h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == name })
	return true
}

// Registered reports whether name is in the chain
func (h *Hooks[T]) Registered(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.fns[name]
	return ok
}

// Names lists hooks in run order
func (h *Hooks[T]) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}

// Run calls every hook in registration order and stops at the first error
// the chain is snapshotted first so hooks may (un)register without deadlocking
func (h *Hooks[T]) Run(ctx context.Context, q Queryer, v T) error {
	h.mu.RLock()
	chain := make([]Hook[T], 0, len(h.order))
	for _, n := range h.order {
		chain = append(chain, h.fns[n])
	}
	h.mu.RUnlock()

	for _, fn := range chain {
		if err := fn(ctx, q, v); err != nil {
			return err
		}
	}
	return nil
}
