package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lumapix/lumapix/internal/photostore"
)

// ErrBackendNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]func(BackendConfig) (photostore.Store, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]func(BackendConfig) (photostore.Store, error)),
	}
}

// Register registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory func(BackendConfig) (photostore.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// Names returns the registered backend names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Create instantiates a backend using the factory registered under cfg.Name.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) Create(cfg BackendConfig) (photostore.Store, error) {
	r.mu.RLock()
	factory, ok := r.backends[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Name)
	}
	return factory(cfg)
}
