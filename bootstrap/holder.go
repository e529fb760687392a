package bootstrap

import (
	"sync"

	"github.com/artpar/modcompose/core/compose"
)

// Holder publishes the last successful composition result. Published results
// are never mutated.
type Holder struct {
	mu  sync.RWMutex
	res *compose.Result
}

// Publish replaces the current result.
func (h *Holder) Publish(res *compose.Result) {
	h.mu.Lock()
	h.res = res
	h.mu.Unlock()
}

// Current returns the published result, or nil before the first pass.
func (h *Holder) Current() *compose.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.res
}
