package registry

import (
	"context"
	"fmt"
	"sync"
)

// The default-registry adapter gives hosts a process-wide entry point
// without baking global state into [Registry] itself. Nothing in this
// package depends on it.

var (
	defaultMu  sync.RWMutex
	defaultReg *Registry
)

// SetDefault installs r as the process-wide registry. Passing nil clears
// it.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultReg = r
	defaultMu.Unlock()
}

// Default returns the process-wide registry, or nil if none is installed.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}

// Invoke calls a named action on the process-wide registry.
func Invoke(ctx context.Context, action string, params map[string]any) (any, error) {
	r := Default()
	if r == nil {
		return nil, fmt.Errorf("registry: no default registry installed")
	}
	return r.Call(ctx, action, params)
}
