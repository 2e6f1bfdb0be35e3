package codegen

import "github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"

// Garbage collection (spec §4.4, §4.10): a semi-space copying collector
// emitted as a single wasm function. Roots are (a) the RTS closure
// table (spec §6.1 closure_table_loc/closure_table_size — the
// continuations `remember_closure` stashes for cross-message async
// replies/rejects) and (b) a caller-supplied list of mutable i32
// globals that hold static MutBox pointers (spec §4.10 "all pointer
// slots inside the static memory region" — this backend keeps
// actor-level `var`s in dedicated globals rather than a flat scanned
// byte region, so the root set is the list of those globals' indices).

// GCLayout names the two fixed semi-space base globals, ToSpaceBase and
// FromSpaceBase, which NewGCLayout installs alongside the ordinary
// allocation globals from HeapLayout; they are never swapped.
type GCLayout struct {
	ToSpaceBase   int // immutable i32 global: base address of the inactive semi-space
	FromSpaceBase int // immutable i32 global: base address of the active semi-space
	SemispaceSize int32
}

// NewGCLayout reserves the two semi-space base globals, each
// semispaceWords*WordSize bytes apart starting at heapBase.
func NewGCLayout(env *ModuleEnv, heapBase int32, semispaceWords int32) *GCLayout {
	size := semispaceWords * WordSize
	return &GCLayout{
		ToSpaceBase:   env.AddGlobal(wasm.TypeI32, false, heapBase+size),
		FromSpaceBase: env.AddGlobal(wasm.TypeI32, false, heapBase),
		SemispaceSize: size,
	}
}

// BuildCollectorBody emits the body of the `__gc_collect` function:
// evacuate the RTS closure table and every global in staticRoots, then
// scan to-space Cheney-style from its start to the current allocation
// edge, evacuating every pointer field discovered along the way, until
// the scan catches up with the allocation edge.
//
// This is registered as a builtin (spec §4.1's BuiltIn tri-state
// registry) so that it is only ever compiled once no matter how many
// call sites trigger a collection.
func BuildCollectorBody(env *ModuleEnv, gc *GCLayout, hl *HeapLayout, staticRoots []uint32) BuiltinThunk {
	return func(m *ModuleEnv) []byte {
		fb := NewFuncBuilder(m, "__gc_collect", 0, 0, false)
		w := fb.W

		scan := fb.Fn.AddLocal(wasm.TypeI32, "$gc_scan")
		free := fb.Fn.AddLocal(wasm.TypeI32, "$gc_free")

		w.GlobalGet(uint32(gc.ToSpaceBase))
		w.LocalSet(scan)
		w.GlobalGet(uint32(gc.ToSpaceBase))
		w.LocalSet(free)

		for _, g := range staticRoots {
			evacuateGlobalRoot(fb, gc, g, free)
		}
		evacuateClosureTable(fb, gc, free)

		w.Loop(wasm.TypeBlockVoid)
		w.LocalGet(scan)
		w.LocalGet(free)
		w.Op(wasm.OpI32LtU)
		w.If(wasm.TypeBlockVoid)
		scanOneObject(fb, gc, scan, free)
		w.Br(1)
		w.End()
		w.End()

		// No semispace swap: ToSpaceBase/FromSpaceBase are fixed
		// immutable globals, so this collection copies the live
		// to-space words back over from-space right here and resets the
		// heap pointer past them, keeping both semispaces at their
		// original fixed addresses between collections.
		liveWords := fb.Fn.AddLocal(wasm.TypeI32, "$gc_live_words")
		w.LocalGet(free)
		w.GlobalGet(uint32(gc.ToSpaceBase))
		w.Op(wasm.OpI32Sub)
		w.I32Const(int32(WordSize))
		w.Op(wasm.OpI32DivU)
		w.LocalSet(liveWords)
		copyBackWords(fb, gc.FromSpaceBase, gc.ToSpaceBase, liveWords)

		newHeapPtr := fb.Fn.AddLocal(wasm.TypeI32, "$gc_new_heap_ptr")
		w.GlobalGet(uint32(gc.FromSpaceBase))
		w.LocalGet(liveWords)
		w.I32Const(int32(WordSize))
		w.Op(wasm.OpI32Mul)
		w.Op(wasm.OpI32Add)
		w.LocalSet(newHeapPtr)
		w.LocalGet(newHeapPtr)
		w.GlobalSet(uint32(hl.HeapPtrGlobal))

		return fb.Finish()
	}
}

// copyBackWords emits a runtime loop copying nLocal words from the
// to-space base to the from-space base, so live data that was evacuated
// during this cycle ends up back at the heap's normal starting address
// for the next message (spec §4.10 step 4, "memcpy'd back over
// from-space").
func copyBackWords(fb *FuncBuilder, fromSpaceGlobal, toSpaceGlobal int, nLocal uint32) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$gc_copyback_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(nLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	w.GlobalGet(uint32(fromSpaceGlobal))
	w.LocalGet(i)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)

	w.GlobalGet(uint32(toSpaceGlobal))
	w.LocalGet(i)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)
	w.I32Load(2, 0)
	w.I32Store(2, 0)

	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// evacuateGlobalRoot evacuates the pointer held in a mutable i32 global
// (a static MutBox cell backing an actor-level `var`, spec §4.7
// StoreStatic) in place.
func evacuateGlobalRoot(fb *FuncBuilder, gc *GCLayout, globalIdx uint32, freeLocal uint32) {
	w := fb.W
	val := fb.Fn.AddLocal(wasm.TypeI32, "$gc_root_val")
	w.GlobalGet(globalIdx)
	w.LocalSet(val)

	w.LocalGet(val)
	w.I32Const(0b10)
	w.Op(wasm.OpI32And)
	w.If(wasm.TypeBlockVoid)
	EmitEvacuate(fb, gc, val, freeLocal)
	w.LocalGet(val)
	w.GlobalSet(globalIdx)
	w.End()
}

// evacuateClosureTable walks the RTS closure table (spec §6.1
// closure_table_loc/closure_table_size), evacuating every occupied
// slot. The table holds skewed pointers to the 2-element
// reply/reject-continuation arrays `remember_closure` stashed (spec
// §4.11); an empty slot holds the scalar 0 and is skipped.
func evacuateClosureTable(fb *FuncBuilder, gc *GCLayout, freeLocal uint32) {
	w := fb.W
	loc, ok := fb.Env.ImportIdx("rts", "closure_table_loc")
	sizeIdx, ok2 := fb.Env.ImportIdx("rts", "closure_table_size")
	if !ok || !ok2 {
		return
	}

	base := fb.Fn.AddLocal(wasm.TypeI32, "$gc_ctbl_base")
	w.Call(uint32(loc))
	w.LocalSet(base)

	count := fb.Fn.AddLocal(wasm.TypeI32, "$gc_ctbl_count")
	w.Call(uint32(sizeIdx))
	w.LocalSet(count)

	i := fb.Fn.AddLocal(wasm.TypeI32, "$gc_ctbl_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(count)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	off := fb.Fn.AddLocal(wasm.TypeI32, "$gc_ctbl_off")
	w.LocalGet(i)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.LocalSet(off)
	evacuateFieldDynamic(fb, gc, freeLocal, base, off)

	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// EmitEvacuate copies the heap object pointed to by ptrLocal into
// to-space at the current free edge (if not already forwarded) and
// overwrites ptrLocal with the new (skewed) location, bumping freeLocal
// past the copy. If the object at ptrLocal already carries an
// Indirection tag, that is a forwarding pointer already installed by an
// earlier evacuation of the same object through a different reference,
// and we just follow it (spec §4.4 "Indirection/forwarding-pointer
// handling").
func EmitEvacuate(fb *FuncBuilder, gc *GCLayout, ptrLocal, freeLocal uint32) {
	w := fb.W
	tag := fb.Fn.AddLocal(wasm.TypeI32, "$gc_tag")
	w.LocalGet(ptrLocal)
	w.I32Load(2, 1)
	w.LocalSet(tag)

	w.LocalGet(tag)
	w.I32Const(int32(TagIndirection))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	w.LocalGet(ptrLocal)
	w.I32Load(2, uint32(1+WordSize))
	w.LocalSet(ptrLocal)
	w.Else()

	size := fb.Fn.AddLocal(wasm.TypeI32, "$gc_size")
	objectWordSizeAt(fb, ptrLocal, tag, size, 1)

	newPtr := fb.Fn.AddLocal(wasm.TypeI32, "$gc_newptr")
	w.LocalGet(freeLocal)
	w.LocalSet(newPtr)

	memcpyWordsFromSkewed(fb, newPtr, ptrLocal, size)

	w.LocalGet(freeLocal)
	w.LocalGet(size)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)
	w.LocalSet(freeLocal)

	w.LocalGet(ptrLocal)
	w.I32Const(int32(TagIndirection))
	w.I32Store(2, 1)
	w.LocalGet(ptrLocal)
	w.LocalGet(newPtr)
	w.I32Const(1)
	w.Op(wasm.OpI32Sub)
	w.I32Store(2, uint32(1+WordSize))

	w.LocalGet(newPtr)
	w.I32Const(1)
	w.Op(wasm.OpI32Sub)
	w.LocalSet(ptrLocal)
	w.End()
}

// memcpyWordsFromSkewed copies nLocal words from a skewed source
// pointer (read through the +1 skew adjustment) to an unskewed
// destination address, used to relocate a variable-sized heap object
// whose word count is only known at runtime.
func memcpyWordsFromSkewed(fb *FuncBuilder, dstLocal, srcSkewedLocal, nLocal uint32) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$gc_copy_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(nLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	w.LocalGet(dstLocal)
	w.LocalGet(i)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)

	w.LocalGet(srcSkewedLocal)
	w.LocalGet(i)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.Op(wasm.OpI32Add)
	w.I32Load(2, 0)
	w.I32Store(2, 0)

	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// objectWordSizeAt computes (onto sizeLocal) the total word count of
// the heap object at base, given its already-loaded tag, per the fixed
// or length-prefixed layouts of spec §3.2. skew is 1 when base is a
// skewed pointer (the +1 unskew adjustment belongs in every load
// offset) or 0 when base is already a raw to-space address (as during
// Cheney scanning, where the scan cursor points directly at each
// object's tag word).
func objectWordSizeAt(fb *FuncBuilder, base, tagLocal, sizeLocal uint32, skew int32) {
	w := fb.W
	off := func(wordIdx int32) uint32 { return uint32(skew + wordIdx*WordSize) }

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagArray))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.LocalGet(base)
	w.I32Load(2, off(1))
	w.I32Const(2)
	w.Op(wasm.OpI32Add)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagObject))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.LocalGet(base)
	w.I32Load(2, off(1))
	w.I32Const(2)
	w.Op(wasm.OpI32Mul)
	w.I32Const(2)
	w.Op(wasm.OpI32Add)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagClosure))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.LocalGet(base)
	w.I32Load(2, off(2))
	w.I32Const(3)
	w.Op(wasm.OpI32Add)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagBlob))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.LocalGet(base)
	w.I32Load(2, off(1))
	w.I32Const(int32(WordSize - 1))
	w.Op(wasm.OpI32Add)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32DivU)
	w.I32Const(2)
	w.Op(wasm.OpI32Add)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagInt))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(3)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagVariant))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(3)
	w.Else()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagBigInt))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(5)
	w.Else()
	w.I32Const(2) // MutBox, ObjInd, Some, SmallWord, Indirection
	w.End()
	w.End()
	w.End()
	w.End()
	w.End()
	w.End()
	w.End()
	w.LocalSet(sizeLocal)
}

// evacuateField evacuates the pointer-or-scalar word stored at a fixed
// byte offset within base (a raw to-space address), leaving the field
// untouched if it is a scalar.
func evacuateField(fb *FuncBuilder, gc *GCLayout, freeLocal, base uint32, byteOffset int32) {
	w := fb.W
	val := fb.Fn.AddLocal(wasm.TypeI32, "$gc_field_val")
	w.LocalGet(base)
	w.I32Load(2, uint32(byteOffset))
	w.LocalSet(val)

	w.LocalGet(val)
	w.I32Const(0b10)
	w.Op(wasm.OpI32And)
	w.If(wasm.TypeBlockVoid)
	EmitEvacuate(fb, gc, val, freeLocal)
	w.LocalGet(base)
	w.LocalGet(val)
	w.I32Store(2, uint32(byteOffset))
	w.End()
}

// evacuateFieldDynamic is evacuateField for a byte offset only known at
// runtime (held in offLocal), used for Array elements, Object field
// values, Closure captures, and closure-table slots.
func evacuateFieldDynamic(fb *FuncBuilder, gc *GCLayout, freeLocal, base, offLocal uint32) {
	w := fb.W
	addr := fb.Fn.AddLocal(wasm.TypeI32, "$gc_field_addr")
	w.LocalGet(base)
	w.LocalGet(offLocal)
	w.Op(wasm.OpI32Add)
	w.LocalSet(addr)

	val := fb.Fn.AddLocal(wasm.TypeI32, "$gc_field_val")
	w.LocalGet(addr)
	w.I32Load(2, 0)
	w.LocalSet(val)

	w.LocalGet(val)
	w.I32Const(0b10)
	w.Op(wasm.OpI32And)
	w.If(wasm.TypeBlockVoid)
	EmitEvacuate(fb, gc, val, freeLocal)
	w.LocalGet(addr)
	w.LocalGet(val)
	w.I32Store(2, 0)
	w.End()
}

// scanDynamicRun evacuates countLocal consecutive pointer-or-scalar
// fields, stride words apart, starting at word index firstWord within
// base (a raw to-space address) — used for Array elements (stride 1),
// Object field values (stride 2, skipping the interleaved hash words),
// and Closure captures (stride 1).
func scanDynamicRun(fb *FuncBuilder, gc *GCLayout, base, freeLocal uint32, firstWord, stride int, countLocal uint32) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$gc_field_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(countLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	off := fb.Fn.AddLocal(wasm.TypeI32, "$gc_field_off")
	w.LocalGet(i)
	w.I32Const(int32(stride))
	w.Op(wasm.OpI32Mul)
	w.I32Const(int32(firstWord))
	w.Op(wasm.OpI32Add)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.LocalSet(off)

	evacuateFieldDynamic(fb, gc, freeLocal, base, off)

	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// evacuateBigIntDigits fixes up a BigInt's digits-pointer field (spec
// §3.2 "digits-pointer (to a Blob payload address, stored unskewed)"):
// it is an interior pointer into a Blob's payload rather than a pointer
// to the Blob's own header, so evacuating the Blob it belongs to
// requires subtracting the header-to-payload offset first and adding
// it back afterward (spec §4.10 "a specialised evacuation routine that
// subtracts and re-adds the offset").
func evacuateBigIntDigits(fb *FuncBuilder, gc *GCLayout, freeLocal, base uint32) {
	w := fb.W
	const digitsFieldWord = 4
	const blobPayloadOff = int32(1 + 2*WordSize) // skew + tag + length

	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$gc_digits_ptr")
	w.LocalGet(base)
	w.I32Load(2, uint32(digitsFieldWord*WordSize))
	w.LocalSet(ptr)

	w.LocalGet(ptr)
	w.I32Const(blobPayloadOff)
	w.Op(wasm.OpI32Sub)
	w.LocalSet(ptr) // now the Blob's own skewed pointer

	EmitEvacuate(fb, gc, ptr, freeLocal)

	w.LocalGet(base)
	w.LocalGet(ptr)
	w.I32Const(blobPayloadOff)
	w.Op(wasm.OpI32Add)
	w.I32Store(2, uint32(digitsFieldWord*WordSize))
}

// scanObjectFields evacuates every pointer-bearing field of the object
// at base (a raw to-space address) once its tag is known, dispatching
// per spec §3.2's per-tag layout.
func scanObjectFields(fb *FuncBuilder, gc *GCLayout, base, tagLocal, freeLocal uint32) {
	w := fb.W

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagArray))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	n := fb.Fn.AddLocal(wasm.TypeI32, "$gc_arr_n")
	w.LocalGet(base)
	w.I32Load(2, uint32(WordSize))
	w.LocalSet(n)
	scanDynamicRun(fb, gc, base, freeLocal, 2, 1, n)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagObject))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	n2 := fb.Fn.AddLocal(wasm.TypeI32, "$gc_obj_n")
	w.LocalGet(base)
	w.I32Load(2, uint32(WordSize))
	w.LocalSet(n2)
	scanDynamicRun(fb, gc, base, freeLocal, 3, 2, n2)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagClosure))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	n3 := fb.Fn.AddLocal(wasm.TypeI32, "$gc_clos_n")
	w.LocalGet(base)
	w.I32Load(2, uint32(2*WordSize))
	w.LocalSet(n3)
	scanDynamicRun(fb, gc, base, freeLocal, 3, 1, n3)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagVariant))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	evacuateField(fb, gc, freeLocal, base, 2*WordSize)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagMutBox))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	evacuateField(fb, gc, freeLocal, base, WordSize)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagSome))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	evacuateField(fb, gc, freeLocal, base, WordSize)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagObjInd))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	evacuateField(fb, gc, freeLocal, base, WordSize)
	w.End()

	w.LocalGet(tagLocal)
	w.I32Const(int32(TagBigInt))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	evacuateBigIntDigits(fb, gc, freeLocal, base)
	w.End()
}

// scanOneObject scans the object at scanLocal (a raw to-space address),
// evacuating every pointer field it contains, then advances scanLocal
// past it (Cheney's "scan catches up with free" invariant — newly
// evacuated objects land beyond free, so the loop in
// BuildCollectorBody keeps calling this until scan == free).
func scanOneObject(fb *FuncBuilder, gc *GCLayout, scanLocal, freeLocal uint32) {
	w := fb.W
	tag := fb.Fn.AddLocal(wasm.TypeI32, "$gc_scan_tag")
	w.LocalGet(scanLocal)
	w.I32Load(2, 0)
	w.LocalSet(tag)

	size := fb.Fn.AddLocal(wasm.TypeI32, "$gc_scan_size")
	objectWordSizeAt(fb, scanLocal, tag, size, 0)

	scanObjectFields(fb, gc, scanLocal, tag, freeLocal)

	w.LocalGet(scanLocal)
	w.LocalGet(size)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)
	w.LocalSet(scanLocal)
}
