package codegen

import (
	"fmt"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// RepKind enumerates the stack-representation lattice of spec §3.4.
type RepKind int

const (
	RepVanilla RepKind = iota
	RepUnboxedWord64
	RepUnboxedWord32
	RepUnboxedTuple
	RepUnreachable
	RepStaticThing
)

// Rep is a value in transit's stack representation. UnboxedTuple's
// arity is carried in N; StaticThing's payload is carried in Static.
type Rep struct {
	Kind   RepKind
	N      int // RepUnboxedTuple: word count
	Static StaticThing
}

func Vanilla() Rep                  { return Rep{Kind: RepVanilla} }
func UnboxedWord64() Rep            { return Rep{Kind: RepUnboxedWord64} }
func UnboxedWord32() Rep            { return Rep{Kind: RepUnboxedWord32} }
func UnboxedTuple(n int) Rep        { return Rep{Kind: RepUnboxedTuple, N: n} }
func Unreachable() Rep              { return Rep{Kind: RepUnreachable} }
func StaticThingRep(s StaticThing) Rep { return Rep{Kind: RepStaticThing, Static: s} }

// WordCount returns how many WebAssembly operand-stack slots a value in
// this representation occupies.
func (r Rep) WordCount() int {
	switch r.Kind {
	case RepVanilla, RepUnboxedWord64, RepUnboxedWord32:
		return 1
	case RepUnboxedTuple:
		return r.N
	case RepUnreachable:
		return 0
	case RepStaticThing:
		return 0
	default:
		return 0
	}
}

// Join picks the more general of two representations where control-flow
// paths merge (spec §3.4). Unreachable absorbs any other; otherwise a
// mismatch joins to Vanilla, since vanilla is the only representation
// every other representation can always be coerced into.
func Join(a, b Rep) Rep {
	if a.Kind == RepUnreachable {
		return b
	}
	if b.Kind == RepUnreachable {
		return a
	}
	if a.Kind == b.Kind {
		switch a.Kind {
		case RepUnboxedTuple:
			if a.N == b.N {
				return a
			}
			return Vanilla()
		case RepStaticThing:
			// Two different static things still join to Vanilla: only a
			// single, statically-known call site may use StaticThing
			// directly (spec §4.2).
			return Vanilla()
		default:
			return a
		}
	}
	return Vanilla()
}

// Drop emits the wasm-level drop(s) needed to discard a value held in
// rep, per spec §3.4.
func Drop(w *wasm.CodeWriter, r Rep) {
	switch r.Kind {
	case RepVanilla, RepUnboxedWord64, RepUnboxedWord32:
		w.Drop()
	case RepUnboxedTuple:
		for i := 0; i < r.N; i++ {
			w.Drop()
		}
	case RepUnreachable, RepStaticThing:
		// no runtime footprint
	}
}

// Adjust emits the coercion from rep `from` to rep `to` onto fb's current
// function body, per spec §4.2. The value(s) in `from` representation
// must already be on the operand stack; on return the value(s) are in
// `to` representation.
func (fb *FuncBuilder) Adjust(from, to Rep, multiValue bool) error {
	if from.Kind == RepUnreachable {
		// already unreachable: the rest of the block is dead, nothing
		// further needs to type-check against `to`.
		return nil
	}
	if to.Kind == RepUnreachable {
		fb.W.Unreachable()
		return nil
	}
	if sameRep(from, to) {
		return nil
	}

	switch {
	case from.Kind == RepUnboxedWord64 && to.Kind == RepVanilla:
		fb.boxWord64()
		return nil
	case from.Kind == RepVanilla && to.Kind == RepUnboxedWord64:
		fb.unboxWord64()
		return nil
	case from.Kind == RepUnboxedWord32 && to.Kind == RepVanilla:
		fb.boxWord32()
		return nil
	case from.Kind == RepVanilla && to.Kind == RepUnboxedWord32:
		fb.unboxWord32()
		return nil
	case from.Kind == RepUnboxedTuple && to.Kind == RepVanilla:
		return fb.tupleToVanilla(from.N)
	case from.Kind == RepVanilla && to.Kind == RepUnboxedTuple:
		return fb.vanillaToTuple(to.N)
	case from.Kind == RepStaticThing && to.Kind == RepVanilla:
		return fb.materializeStatic(from.Static)
	case from.Kind == RepUnboxedTuple && to.Kind == RepUnboxedTuple:
		if from.N != to.N {
			return fmt.Errorf("codegen: cannot adjust UnboxedTuple arity %d to %d", from.N, to.N)
		}
		return nil
	default:
		return fmt.Errorf("codegen: no coercion from %v to %v", from, to)
	}
}

func sameRep(a, b Rep) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == RepUnboxedTuple {
		return a.N == b.N
	}
	return true
}

// boxWord64/unboxWord64 and boxWord32/unboxWord32 delegate to Numerics'
// small-word representation (spec §4.2, §4.3).
func (fb *FuncBuilder) boxWord64() { EmitBoxWord64(fb) }
func (fb *FuncBuilder) unboxWord64() { EmitUnboxWord64(fb) }
func (fb *FuncBuilder) boxWord32() { EmitBoxWord32(fb) }
func (fb *FuncBuilder) unboxWord32() { EmitUnboxWord32(fb) }

// tupleToVanilla allocates an Array-tagged heap tuple from n words
// already on the stack (in order elem0..elem(n-1)) and leaves a single
// vanilla pointer.
func (fb *FuncBuilder) tupleToVanilla(n int) error {
	return EmitTupleToVanilla(fb, n)
}

// vanillaToTuple decomposes a heap tuple pointer into its n component
// words.
func (fb *FuncBuilder) vanillaToTuple(n int) error {
	return EmitVanillaToTuple(fb, n)
}

// materializeStatic emits the Vanilla-representation materialization of
// a StaticThing (spec §4.2): a static function becomes a captureless
// closure; a public method becomes the pair (self, field-name) encoded
// as a tuple; a static message becomes its function index — but the
// latter is only ever valid at closed call sites and must not reach
// Adjust (enforced by the closure compiler, spec §4.8).
func (fb *FuncBuilder) materializeStatic(s StaticThing) error {
	switch s.Kind {
	case StaticFun:
		return EmitClosureNoCaptures(fb, s.FuncIdx)
	case StaticMethod:
		return EmitMethodReference(fb, s.FieldName)
	case StaticSelf:
		return EmitSelfReference(fb)
	case StaticMessage:
		return fmt.Errorf("codegen: static message %d materialized outside a closed call site", s.FuncIdx)
	default:
		return fmt.Errorf("codegen: unknown StaticThing kind %d", s.Kind)
	}
}
