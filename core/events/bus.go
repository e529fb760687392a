// Package events provides a publish/subscribe bus for composition lifecycle
// events. The bus implements the composition and reload observer contracts
// so one bus can fan a pass out to metrics, logs and other listeners.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/artpar/modcompose/ports"
	"github.com/rs/zerolog"
)

// Event names.
const (
	PassCompleted   = "pass.completed"
	PassFailed      = "pass.failed"
	ReloadSucceeded = "reload.succeeded"
	ReloadFailed    = "reload.failed"
	SourcesChanged  = "sources.changed"
	ConfigChanged   = "config.changed"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "pass.completed").
	Name string

	// At is when the event was published.
	At time.Time

	// Stats is set for pass events.
	Stats ports.PassStats

	// Err is set for failure events.
	Err error
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "pass.failed" - exact match
//   - "pass.*" - all pass events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers.
// Handlers are called synchronously in registration order, exact matches
// first. Handler errors are logged and do not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	matched := b.match(event.Name)
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Int("handlers", len(matched)).
		Msg("event emitted")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.match(event)) > 0
}

func (b *Bus) match(name string) []Handler {
	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if group, _, ok := strings.Cut(name, "."); ok {
		matched = append(matched, b.handlers[group+".*"]...)
	}
	return append(matched, b.handlers["*"]...)
}

// Observe forwards pass events to obs and, when obs also counts reloads,
// reload events too.
func (b *Bus) Observe(obs ports.CompositionObserver) {
	b.Subscribe("pass.*", func(ctx context.Context, e Event) error {
		switch e.Name {
		case PassCompleted:
			obs.PassCompleted(e.Stats)
		case PassFailed:
			obs.PassFailed(e.Stats, e.Err)
		}
		return nil
	})

	reloads, ok := obs.(interface {
		ReloadSucceeded()
		ReloadFailed()
	})
	if !ok {
		return
	}
	b.Subscribe("reload.*", func(ctx context.Context, e Event) error {
		switch e.Name {
		case ReloadSucceeded:
			reloads.ReloadSucceeded()
		case ReloadFailed:
			reloads.ReloadFailed()
		}
		return nil
	})
}

// PassCompleted publishes a pass.completed event.
func (b *Bus) PassCompleted(stats ports.PassStats) {
	b.Publish(context.Background(), Event{Name: PassCompleted, Stats: stats})
}

// PassFailed publishes a pass.failed event.
func (b *Bus) PassFailed(stats ports.PassStats, err error) {
	b.Publish(context.Background(), Event{Name: PassFailed, Stats: stats, Err: err})
}

// ReloadSucceeded publishes a reload.succeeded event.
func (b *Bus) ReloadSucceeded() {
	b.Publish(context.Background(), Event{Name: ReloadSucceeded})
}

// ReloadFailed publishes a reload.failed event.
func (b *Bus) ReloadFailed() {
	b.Publish(context.Background(), Event{Name: ReloadFailed})
}

// Ensure interface compliance.
var _ ports.CompositionObserver = (*Bus)(nil)
