// Package registry exposes the photo pipeline to external automation.
//
// The central type is [Registry], an explicit, constructible table of named
// [Action] values with register, unregister, and get operations. [Pipeline]
// implements the actual calls — search, bulk selection, and bulk execution —
// and installs them into a Registry. Hosts that want a process-wide surface
// use the optional default-registry adapter ([SetDefault], [Invoke]); the
// registry itself has no global state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Action is a named capability an external caller can invoke.
type Action struct {
	// Name identifies the action within a registry.
	Name string

	// Description is a human-readable summary for discovery.
	Description string

	// Handler runs the action. Params are call arguments as loosely typed
	// key-value pairs; the returned value is action-specific.
	Handler func(ctx context.Context, params map[string]any) (any, error)
}

// Registry is an explicit table of named actions. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{actions: map[string]Action{}}
}

// Register adds an action. Registering an empty name, a nil handler, or a
// name that is already taken is an error.
func (r *Registry) Register(a Action) error {
	if a.Name == "" {
		return fmt.Errorf("registry: action name must not be empty")
	}
	if a.Handler == nil {
		return fmt.Errorf("registry: action %q has no handler", a.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[a.Name]; ok {
		return fmt.Errorf("registry: action %q already registered", a.Name)
	}
	r.actions[a.Name] = a
	return nil
}

// Unregister removes an action and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[name]; !ok {
		return false
	}
	delete(r.actions, name)
	return true
}

// Get returns the named action.
func (r *Registry) Get(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the named action. An unknown name fails with
// [ErrOperationNotSupported].
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: no action %q", ErrOperationNotSupported, name)
	}
	return a.Handler(ctx, params)
}
