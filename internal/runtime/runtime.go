// Package runtime is the harness around a JIT'd module: it allocates
// the cell tape, computes the interior starting offset, invokes the
// compiled function, and returns the final cell value.
package runtime

import (
	goruntime "runtime"

	"bf/internal/jit"
)

// Tape is a flat array of 64-bit cells and an interior starting offset,
// matching the Rust reference's hardcoded 2^27-cell buffer with a
// 9,000,000 starting offset. Both are configurable via bf.json; see
// internal/build.
type Tape struct {
	cells  []int64
	offset int
}

// NewTape allocates a zero-initialized tape of the given size with the
// given interior starting offset.
func NewTape(cells, offset int) *Tape {
	return &Tape{cells: make([]int64, cells), offset: offset}
}

// StartPointer returns the address of the starting cell. internal/jit
// bakes this address into the compiled function's prologue before the
// Module is ever callable, so by the time Run is reached the function
// already knows where its tape lives.
func (t *Tape) StartPointer() *int64 {
	return &t.cells[t.offset]
}

// Run invokes mod's compiled function and returns the value of the
// cell the pointer ends on. tape must be the same Tape whose
// StartPointer address was baked into mod at jit.Finalize time; it's
// held live here with runtime.KeepAlive since nothing else references
// it once the call is in flight, and Go's GC doesn't know the compiled
// code holds a raw pointer into its backing array.
func Run(mod *jit.Module, tape *Tape) int64 {
	result := mod.Fn()
	goruntime.KeepAlive(tape)
	return result
}
