package hive

import "sync"

// Instance is the opaque per-service state a module's hooks operate on.
// The core never inspects it.
type Instance any

// CreateFunc builds a fresh Instance for a new service. A module that omits
// Create gets a non-nil placeholder instance supplied by the loader.
type CreateFunc func() Instance

// InitFunc wires an Instance into a running Context, parsing the launch
// parameter string. A module must supply Init; returning an error aborts
// context creation.
type InitFunc func(inst Instance, ctx *Context, param string) error

// ReleaseFunc tears down an Instance when its owning context's ref count
// reaches zero. Optional.
type ReleaseFunc func(inst Instance, ctx *Context)

// SignalFunc delivers an out-of-band signal (SIGNAL command) to a running
// Instance. Optional.
type SignalFunc func(inst Instance, ctx *Context, signal int)

// Module is the capability record the loader produces for a named module:
// a small vtable of optional function pointers, matching the ABI the
// runtime depends on (create?, init, release?, signal?).
type Module struct {
	Name    string
	Create  CreateFunc
	Init    InitFunc
	Release ReleaseFunc
	Signal  SignalFunc
}

// ModuleRegistry caches Module factories by name, load-once, reuse-instance
// semantics matching the original loader's "search loaded modules by name
// first" behavior. Safe for concurrent Create calls.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewModuleRegistry builds an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]*Module)}
}

// Register adds or replaces the Module known under m.Name.
func (r *ModuleRegistry) Register(m *Module) error {
	if m.Init == nil {
		return ErrModuleInitNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name] = m
	return nil
}

// Lookup returns the Module registered under name, or ErrModuleNotFound.
func (r *ModuleRegistry) Lookup(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, ErrModuleNotFound
	}
	return m, nil
}

// placeholderInstance is handed to a Context whose module has no Create
// hook, so instance is never nil.
type placeholderInstance struct{}
