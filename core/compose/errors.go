package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/modcompose/core/routing"
	"github.com/artpar/modcompose/core/schema"
)

// Sentinel errors. Every failure aborts the pass.
var (
	ErrNotFound     = errors.New("module not found")
	ErrLoadFailed   = errors.New("module load failed")
	ErrCycle        = errors.New("dependency cycle")
	ErrPrecondition = errors.New("composition precondition failed")

	ErrDependency = schema.ErrInvalidDependency
	ErrReference  = routing.ErrReference
)

// LoadError is returned when a module cannot be loaded from the store.
type LoadError struct {
	Name     string
	Original string
	Err      error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to load module: `%s`", e.Name)
	if e.Original != "" && e.Original != e.Name {
		fmt.Fprintf(&b, " (from `%s`)", e.Original)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// CycleError is returned when a module depends on itself, directly or not.
// Cycle lists the dependency chain, starting and ending with the same name.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCycle }
