// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/modcompose/ports"
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Stepping is a test clock that starts at a fixed instant and moves forward
// by Step every time it is read, so pass durations are predictable.
type Stepping struct {
	Step time.Duration

	mu      sync.Mutex
	current time.Time
}

// NewStepping creates a stepping clock.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{Step: step, current: start}
}

// Now returns the current instant and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.current
	s.current = s.current.Add(s.Step)
	return now
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Stepping)(nil)
)
