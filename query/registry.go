package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownOperation is returned when no handler is registered for a
// request name.
var ErrUnknownOperation = errors.New("query: unknown operation")

// HandlerFunc is a type-erased operation handler: it accepts the raw
// JSON payload and returns the raw JSON result.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps operation names to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register registers a raw handler under name, replacing any previous
// registration.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// RegisterTyped registers a typed handler. The generic handler is
// wrapped in a closure that JSON-unmarshals the payload into P before
// calling it and JSON-marshals the returned value.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterTyped[P, R any](r *Registry, name string, handler func(ctx context.Context, p P) (R, error)) {
	h := func(ctx context.Context, payload []byte) ([]byte, error) {
		var p P
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("query: unmarshal payload for %q: %w", name, err)
			}
		}

		result, err := handler(ctx, p)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("query: marshal result for %q: %w", name, err)
		}
		return data, nil
	}

	r.Register(name, h)
}
