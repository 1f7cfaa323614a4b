package mcpservice

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Handler serves one JSON-RPC method. It receives the raw params of the
// request (nil when absent) and returns a value that is marshalled into the
// result member of the response. Returning a *jsonrpc.Error selects the error
// code sent to the peer; any other error is reported as an internal error.
type Handler interface {
	Handle(ctx context.Context, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Handle calls f(ctx, params).
func (f HandlerFunc) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	return f(ctx, params)
}

// HandlerEntry maps a method name to its handler.
type HandlerEntry struct {
	Method  string
	Handler Handler
}

// Registry collects handlers before a Server or Dispatcher is built from it.
// Registering a method that already exists replaces the earlier handler: the
// last registration wins. Registries are safe for concurrent use, but
// dispatchers copy the table at construction so later registrations do not
// affect them.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]HandlerEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]HandlerEntry)}
}

// Register adds or replaces the handler for method.
func (r *Registry) Register(method string, h Handler) {
	if h == nil {
		panic("mcpservice: nil handler for method " + method)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[method] = HandlerEntry{Method: method, Handler: h}
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(method string, fn func(ctx context.Context, params json.RawMessage) (any, error)) {
	r.Register(method, HandlerFunc(fn))
}

// Lookup returns the entry registered for method.
func (r *Registry) Lookup(method string) (HandlerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[method]
	return e, ok
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for m := range r.entries {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) snapshot() map[string]HandlerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HandlerEntry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
