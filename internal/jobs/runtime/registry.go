package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Handler runs the scheduled actions registered under Hook.
type Handler interface {
	Hook() string
	Run(ctx *Context) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc struct {
	Name string
	Fn   func(ctx *Context) error
}

func (h HandlerFunc) Hook() string           { return h.Name }
func (h HandlerFunc) Run(ctx *Context) error { return h.Fn(ctx) }

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	hook := h.Hook()
	if hook == "" {
		return fmt.Errorf("handler Hook() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[hook]; exists {
		return fmt.Errorf("handler already registered for hook=%s", hook)
	}
	r.handlers[hook] = h
	return nil
}

func (r *Registry) Get(hook string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[hook]
	return h, ok
}

func (r *Registry) Hooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
