package bootstrap

import (
	"sort"
	"sync"

	"github.com/artpar/modcompose/core/schema"
)

// StaticHost is a schema.Host that records registered components. It has no
// mock server and no state store.
type StaticHost struct {
	mu         sync.Mutex
	components map[string]any
}

// NewStaticHost creates an empty host.
func NewStaticHost() *StaticHost {
	return &StaticHost{components: make(map[string]any)}
}

// RegisterComponent records a component. Later registrations replace earlier ones.
func (h *StaticHost) RegisterComponent(name string, component any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component
}

// Component returns a registered component.
func (h *StaticHost) Component(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.components[name]
	return c, ok
}

// ComponentNames returns the registered component names, sorted.
func (h *StaticHost) ComponentNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MockServer returns nil: mocks are not initialized.
func (h *StaticHost) MockServer() any { return nil }

// Store returns nil.
func (h *StaticHost) Store() any { return nil }

var _ schema.Host = (*StaticHost)(nil)
