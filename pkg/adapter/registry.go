// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

var (
	// ErrUnknownModule is the sentinel error wrapped by UnknownModuleError.
	ErrUnknownModule = errors.New("unknown module")
	// ErrDuplicateModule is returned when registering a name twice.
	ErrDuplicateModule = errors.New("module already registered")
)

type (
	// Registry maps module names to adapters. It is safe for concurrent use.
	Registry struct {
		mu       sync.RWMutex
		adapters map[string]Adapter
	}

	// UnknownModuleError is returned when no adapter is registered under Name.
	UnknownModuleError struct {
		Name      string
		Available []string
	}
)

// NewRegistry returns a registry holding adapters. It panics on duplicate names.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Default returns a new registry holding the builtin modules.
func Default() *Registry {
	return NewRegistry(Passthrough{}, Lint{})
}

// Register adds a under a.Name().
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, a.Name())
	}
	r.adapters[a.Name()] = a
	return nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Get is Lookup returning an *UnknownModuleError on a miss.
func (r *Registry) Get(name string) (Adapter, error) {
	if a, ok := r.Lookup(name); ok {
		return a, nil
	}
	return nil, &UnknownModuleError{Name: name, Available: r.Names()}
}

// Names returns the registered module names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.adapters))
}

// Error implements the error interface for UnknownModuleError.
func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module %q (available: %v)", e.Name, e.Available)
}

// Unwrap returns ErrUnknownModule for errors.Is() compatibility.
func (e *UnknownModuleError) Unwrap() error { return ErrUnknownModule }
