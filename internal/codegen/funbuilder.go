package codegen

import (
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// FuncBuilder is the per-function codegen cursor: it pairs a FunEnv
// (declared shape) with a wasm.CodeWriter (the instruction stream being
// produced) and the current VarEnv, plus a handle back to the owning
// ModuleEnv for cross-function concerns (builtins, static data, the
// function table). This is the wasm32-backend analogue of the teacher's
// per-function fields on CodeGen (curFunc, curFrameSize, ...), except
// split into its own value since this backend threads environments
// explicitly rather than mutating one global CodeGen (spec §9).
type FuncBuilder struct {
	Env  *ModuleEnv
	Fn   *FunEnv
	W    *wasm.CodeWriter
	Vars *VarEnv

	// MultiValue toggles whether UnboxedTuple may cross WebAssembly
	// block boundaries directly (spec §4.2). When false, tuple crossing
	// is simulated by stashing components through dedicated scratch
	// globals.
	MultiValue bool

	// scratchGlobals holds the i32 globals used to simulate multi-value
	// returns when MultiValue is false, allocated lazily and reused.
	scratchGlobals []int
}

// NewFuncBuilder starts a new function body with the given parameter and
// declared-return-arity shape.
func NewFuncBuilder(env *ModuleEnv, name string, paramCount, retArity int, multiValue bool) *FuncBuilder {
	return &FuncBuilder{
		Env:        env,
		Fn:         &FunEnv{Name: name, ParamCount: paramCount, RetArity: retArity},
		W:          &wasm.CodeWriter{},
		Vars:       NewVarEnv(),
		MultiValue: multiValue,
	}
}

// scratchGlobal returns the i-th multi-value stash global, allocating it
// in the owning module if it doesn't exist yet.
func (fb *FuncBuilder) scratchGlobal(i int) int {
	for len(fb.scratchGlobals) <= i {
		idx := fb.Env.AddGlobal(wasm.TypeI32, true, 0)
		fb.scratchGlobals = append(fb.scratchGlobals, idx)
	}
	return fb.scratchGlobals[i]
}

// StashTuple pops n words off the operand stack (in reverse, since the
// top of stack is the last-pushed word) into scratch globals, used when
// MultiValue is disabled and an UnboxedTuple must cross a block
// boundary.
func (fb *FuncBuilder) StashTuple(n int) {
	for i := n - 1; i >= 0; i-- {
		fb.W.GlobalSet(uint32(fb.scratchGlobal(i)))
	}
}

// UnstashTuple pushes n words back from scratch globals in original
// order, undoing StashTuple.
func (fb *FuncBuilder) UnstashTuple(n int) {
	for i := 0; i < n; i++ {
		fb.W.GlobalGet(uint32(fb.scratchGlobal(i)))
	}
}

// Finish assembles the complete code-section entry for this function:
// local declarations (grouped by run of identical type) plus body plus
// the trailing `end`.
func (fb *FuncBuilder) Finish() []byte {
	var counts []uint32
	var types []byte
	i := 0
	for i < len(fb.Fn.LocalTypes) {
		t := fb.Fn.LocalTypes[i]
		j := i
		for j < len(fb.Fn.LocalTypes) && fb.Fn.LocalTypes[j] == t {
			j++
		}
		counts = append(counts, uint32(j-i))
		types = append(types, t)
		i = j
	}
	return wasm.EncodeFuncBody(counts, types, fb.W.Buf)
}
