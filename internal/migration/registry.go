package migration

import (
	"fmt"
	"sync"
)

// Constructor builds a fresh migration instance.
type Constructor func() Migration

// Registry maps migration names to constructors, in registration order.
type Registry struct {
	mu    sync.RWMutex
	names []string
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: map[string]Constructor{}}
}

func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("migration registry: name and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ctors[name]; ok {
		return fmt.Errorf("migration %q already registered", name)
	}
	r.names = append(r.names, name)
	r.ctors[name] = ctor
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

func (r *Registry) Build(name string) (Migration, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown migration %q", name)
	}
	return ctor(), nil
}

// Next returns the migration registered after name, or "" for the last one.
func (r *Registry) Next(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, n := range r.names {
		if n == name && i+1 < len(r.names) {
			return r.names[i+1]
		}
	}
	return ""
}

func (r *Registry) First() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.names) == 0 {
		return ""
	}
	return r.names[0]
}
