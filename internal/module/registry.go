package module

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps module names to descriptors so configuration fragments can
// reference modules by name.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module. Registering a nil module or a name twice is an error.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return fmt.Errorf("cannot register nil module")
	}
	name := m.Meta().Name
	if name == "" {
		return fmt.Errorf("cannot register module without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("module %s already registered", name)
	}
	r.modules[name] = m
	return nil
}

// MustRegister is Register for init-time wiring. It panics on error.
func (r *Registry) MustRegister(mods ...Module) {
	for _, m := range mods {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
