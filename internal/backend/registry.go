package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a Backend from its configuration.
type Factory func(cfg Config) (Backend, error)

// Registry maps driver names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs the factory for a driver, replacing any previous one.
func (r *Registry) Register(driver string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[driver] = factory
}

// Open creates a backend for cfg.Driver.
func (r *Registry) Open(cfg Config) (Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported backend driver: %q (available: %v)", cfg.Driver, r.Drivers())
	}
	b, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Driver, err)
	}
	return b, nil
}

// Drivers returns the registered driver names sorted.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
