// Package idgen generates composition pass IDs.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/artpar/modcompose/ports"
	"github.com/google/uuid"
)

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = Fixed("")
	_ ports.IDGenerator = (*Sequential)(nil)
)

// UUID yields version 7 UUIDs. They are time ordered, so pass IDs recorded
// in the snapshot history sort by creation.
type UUID struct{}

func (UUID) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Only fails when the random source does.
		return uuid.NewString()
	}
	return id.String()
}

// Fixed returns the same ID every time. The composer uses it to hand a
// pass ID chosen before loading to the composition itself.
type Fixed string

func (f Fixed) New() string { return string(f) }

// Sequential yields prefix1, prefix2 and so on. Safe for concurrent use.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

func NewSequential(prefix string) *Sequential { return &Sequential{prefix: prefix} }

func (s *Sequential) New() string { return s.prefix + strconv.FormatUint(s.n.Add(1), 10) }

// Reset makes the next ID prefix1 again.
func (s *Sequential) Reset() { s.n.Store(0) }
