package schema

// AppState is the read view of a composition pass handed to descriptor
// factories and router builders.
type AppState interface {
	// Module returns a module registered in the current pass.
	Module(name string) (*Descriptor, bool)

	// ModuleConfig returns the composition-level config of a module.
	ModuleConfig(name string) Config

	// Loaded returns the names of the completed modules in load order.
	Loaded() []string
}

// Host is the runtime the composed modules are installed into.
type Host interface {
	RegisterComponent(name string, component any)

	// MockServer returns the server handed to module mock initializers,
	// or nil when mocking is disabled.
	MockServer() any

	// Store returns the host's state store, handed to router builders.
	Store() any
}

// Factory builds a descriptor from the composition state.
type Factory func(app AppState, host Host) (*Descriptor, error)

// Entry is a descriptor table value: either a static descriptor or a factory.
type Entry struct {
	Descriptor *Descriptor
	Factory    Factory
}

// Static wraps a descriptor.
func Static(d *Descriptor) Entry {
	return Entry{Descriptor: d}
}

// Dynamic wraps a factory.
func Dynamic(f Factory) Entry {
	return Entry{Factory: f}
}

// IsZero reports whether the entry holds neither a descriptor nor a factory.
func (e Entry) IsZero() bool {
	return e.Descriptor == nil && e.Factory == nil
}
