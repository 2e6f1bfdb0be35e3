package codegen

import (
	"fmt"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// Closures (spec §4.8). A closure is a Closure-tagged heap object: word
// 0 the tag, word 1 the function-table slot of its entry trampoline,
// word 2 the captured-variable count, words 3.. the captured values in
// declaration order. Calling a closure means loading its table slot and
// issuing call_indirect with the closure pointer itself prepended as
// the first argument, so the callee can read its own captures back out.

// EmitClosureNoCaptures builds a Closure object with zero captures for
// a top-level function, used when a static function value needs to
// flow through Vanilla representation (spec §4.2's StaticFun
// materialization, e.g. passed as a first-class value rather than
// called directly).
func EmitClosureNoCaptures(fb *FuncBuilder, funcIdx int) error {
	return EmitClosureWithCaptures(fb, funcIdx, nil)
}

// EmitClosureWithCaptures allocates a Closure object capturing the
// locals named in captureLocals (already holding Vanilla values), and
// leaves the skewed pointer to the new closure on the stack (spec
// §4.8 "Closures").
func EmitClosureWithCaptures(fb *FuncBuilder, funcIdx int, captureLocals []uint32) error {
	w := fb.W
	slot := fb.Env.TableSlot(funcIdx)
	n := len(captureLocals)

	fb.Env.Heap().Alloc(fb, 3+n)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$clos_ptr")
	w.LocalSet(ptr)

	w.LocalGet(ptr)
	w.I32Const(int32(TagClosure))
	w.I32Store(2, 1)

	w.LocalGet(ptr)
	w.I32Const(int32(slot))
	w.I32Store(2, uint32(1+WordSize))

	w.LocalGet(ptr)
	w.I32Const(int32(n))
	w.I32Store(2, uint32(1+2*WordSize))

	for i, cl := range captureLocals {
		w.LocalGet(ptr)
		w.LocalGet(cl)
		w.I32Store(2, uint32(1+WordSize*(3+i)))
	}

	w.LocalGet(ptr)
	return nil
}

// EmitLoadCapture loads the i-th captured value out of a closure
// pointer held in closPtrLocal, used at the top of a closure's entry
// trampoline to recover its environment (spec §4.8).
func EmitLoadCapture(fb *FuncBuilder, closPtrLocal uint32, i int) {
	w := fb.W
	w.LocalGet(closPtrLocal)
	w.I32Load(2, uint32(1+WordSize*(3+i)))
}

// EmitCallClosure emits a closure call: argument words must already be
// on the stack (closure pointer first as the implicit environment
// argument, then the declared parameters), and the table slot is read
// from the closure object at runtime via call_indirect (spec §4.8
// "Closure call" — one of the three call-site shapes).
func EmitCallClosure(fb *FuncBuilder, closPtrLocal uint32, typeIdx uint32) {
	w := fb.W
	w.LocalGet(closPtrLocal)
	w.I32Load(2, uint32(1+WordSize)) // table slot
	w.CallIndirect(typeIdx, 0)
}

// EmitDirectCall emits the direct-static-call shape: a plain wasm call
// to a known function index, skipping the closure/environment
// indirection entirely (spec §4.8 "Direct call" — used whenever the
// callee is a statically resolvable, non-captured function).
func EmitDirectCall(fb *FuncBuilder, funcIdx int) {
	fb.W.Call(uint32(funcIdx))
}

// EmitSharedRemoteCall emits the third call-site shape: a cross-canister
// (actor) call lowered to the host's call_simple system import, with
// reply/reject callback function indices supplied by the async-lowering
// pass (spec §4.8 "Shared/remote call", §4.10 async lowering).
func EmitSharedRemoteCall(fb *FuncBuilder, calleePrincipalLocal, calleeNameLocal uint32, argsPtrLocal, argsLenLocal uint32, replyFuncIdx, rejectFuncIdx, replCtxLocal uint32) {
	w := fb.W
	w.LocalGet(calleePrincipalLocal)
	w.LocalGet(calleeNameLocal)
	w.LocalGet(argsPtrLocal)
	w.LocalGet(argsLenLocal)
	w.I32Const(int32(replyFuncIdx))
	w.LocalGet(replCtxLocal)
	w.I32Const(int32(rejectFuncIdx))
	w.LocalGet(replCtxLocal)
	fb.Env.CallHost(fb, "ic0", "call_simple")
}

// EmitMethodReference materializes a reference to a shared public method
// named field on the current actor (spec §4.8 StaticMethod, §4.9 "Actor
// & message support" — "public field export"), as a 2-tuple of (self,
// field-name hash) that the async-call compiler can later turn into a
// call_simple.
func EmitMethodReference(fb *FuncBuilder, fieldName string) error {
	w := fb.W
	selfLoc, ok := fb.Vars.Lookup("$self")
	if !ok {
		return fmt.Errorf("codegen: method reference to %q outside an actor body", fieldName)
	}
	if selfLoc.Kind != LocLocal {
		return fmt.Errorf("codegen: unexpected $self location kind %d", selfLoc.Kind)
	}
	w.LocalGet(selfLoc.LocalIdx)
	w.I32Const(int32(FieldHash(fieldName)))
	return EmitTupleToVanilla(fb, 2)
}

// EmitSelfReference materializes the actor's own principal reference
// (spec §4.8 StaticSelf), read out of the reserved $self local.
func EmitSelfReference(fb *FuncBuilder) error {
	selfLoc, ok := fb.Vars.Lookup("$self")
	if !ok {
		return fmt.Errorf("codegen: self reference outside an actor body")
	}
	fb.W.LocalGet(selfLoc.LocalIdx)
	return nil
}
