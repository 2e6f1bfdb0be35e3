package codegen

import (
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// Tag is the one-word discriminator every heap object begins with
// (spec §3.2). The closed set matches spec exactly; adding a tag here
// without adding it to every exhaustive switch in gc.go/values.go is a
// bug, not a feature.
type Tag int32

const (
	TagObject Tag = iota + 1
	TagObjInd
	TagArray
	TagInt
	TagMutBox
	TagClosure
	TagSome
	TagVariant
	TagBlob
	TagIndirection
	TagSmallWord
	TagBigInt
)

// WordSize is the WebAssembly memory word size for this backend: a
// 32-bit linear memory, so one word is 4 bytes (spec §3, wasm32 target).
const WordSize = 4

// HeapLayout carries the module-wide heap bookkeeping: the globals for
// the end-of-heap bump pointer and the allocation counter, set up once
// by the compile driver before any function that allocates is compiled.
type HeapLayout struct {
	HeapPtrGlobal   int // mutable i32: next free word, as an unskewed byte offset
	AllocWordsGlobal int // mutable i64: monotone allocation counter (spec §4.4)
	HeapBase        int32
}

// NewHeapLayout installs the heap-pointer and allocation-counter globals
// at heapBase (the end of static memory, per spec §4.1/§4.4) and returns
// the layout handle used by Alloc and the GC.
func NewHeapLayout(env *ModuleEnv, heapBase int32) *HeapLayout {
	hl := &HeapLayout{HeapBase: heapBase}
	hl.HeapPtrGlobal = env.AddGlobal(wasm.TypeI32, true, heapBase)
	hl.AllocWordsGlobal = env.AddGlobal(wasm.TypeI64, true, 0)
	return hl
}

// Skew converts an unskewed byte offset to a skewed pointer value
// (spec §3.1: "a heap object physically at offset i is referenced by
// the value i-1").
func Skew(off int32) int32 { return off - 1 }

// Unskew converts a skewed pointer back to an unskewed byte offset.
func Unskew(ptr int32) int32 { return ptr + 1 }

// Alloc emits code that allocates n words, growing linear memory if
// necessary, and leaves the skewed pointer to the new object on the
// stack (spec §4.4 alloc(n)). The allocation-size counter is updated by
// n words.
func (hl *HeapLayout) Alloc(fb *FuncBuilder, n int) {
	w := fb.W
	bytes := int32(n * WordSize)

	// old_ptr = heap_ptr; new_ptr = old_ptr + bytes
	w.GlobalGet(uint32(hl.HeapPtrGlobal))
	tmp := fb.Fn.AddLocal(wasm.TypeI32, "$alloc_old")
	w.LocalSet(tmp)

	w.LocalGet(tmp)
	w.I32Const(bytes)
	w.Op(wasm.OpI32Add)
	w.GlobalSet(uint32(hl.HeapPtrGlobal))

	hl.growIfNeeded(fb)

	// allocation counter += n words
	w.GlobalGet(uint32(hl.AllocWordsGlobal))
	w.I64Const(int64(n))
	w.Op(wasm.OpI64Add)
	w.GlobalSet(uint32(hl.AllocWordsGlobal))

	// leave skewed pointer to old_ptr
	w.LocalGet(tmp)
	w.I32Const(1)
	w.Op(wasm.OpI32Sub)
}

// growIfNeeded emits a check that the updated heap pointer still fits in
// the current memory size, growing by whole 64KiB pages if not (spec
// §4.4: "grow the WebAssembly memory if needed (page size 64 KiB)").
func (hl *HeapLayout) growIfNeeded(fb *FuncBuilder) {
	w := fb.W
	// if heap_ptr > memory.size * 65536 then memory.grow(1) [repeat via loop]
	w.Loop(wasm.TypeBlockVoid)
	w.GlobalGet(uint32(hl.HeapPtrGlobal))
	w.Op(wasm.OpMemorySize)
	w.I32Const(16) // log2(65536)
	w.Op(wasm.OpI32Shl)
	w.Op(wasm.OpI32GtU)
	w.If(wasm.TypeBlockVoid)
	w.I32Const(1)
	w.Op(wasm.OpMemoryGrow)
	w.Drop()
	w.Br(1) // continue the loop
	w.End() // if
	w.End() // loop
}

// DynAllocBytes rounds n up to a word multiple and allocates that many
// words, for callers sizing a Blob payload (spec §4.4 dyn_alloc_bytes).
func (hl *HeapLayout) DynAllocBytes(fb *FuncBuilder, n int) {
	words := (n + WordSize - 1) / WordSize
	hl.Alloc(fb, words)
}

// EmitStoreTag writes tag into word 0 at the unskewed heap address held
// in ptrLocal (it stores at offset 0, so a skewed pointer as left by
// Alloc lands one byte early).
func EmitStoreTag(fb *FuncBuilder, ptrLocal uint32, tag Tag) {
	w := fb.W
	w.LocalGet(ptrLocal)
	w.I32Const(int32(tag))
	w.I32Store(2, 0)
}

// MemcpyWords emits an unrolled copy of n words from src to dst, both
// unskewed i32 addresses held in locals (spec §4.4
// memcpy/memcpy_words_skewed): one i32.load/i32.store pair per word, no
// loop and no byte-wise copy, assuming only word granularity.
func MemcpyWords(fb *FuncBuilder, dstLocal, srcLocal uint32, n int) {
	w := fb.W
	for i := 0; i < n; i++ {
		w.LocalGet(dstLocal)
		w.LocalGet(srcLocal)
		w.I32Load(2, uint32(i*WordSize))
		w.I32Store(2, uint32(i*WordSize))
	}
}

// StackWithWords reserves n words of scratch space via a temporary
// local-backed allocation, invokes emit with the address available as a
// local, and leaves no residue once emit returns (spec §4.4
// Stack.with_words). Because this backend has no dedicated shadow-stack
// region (unlike the teacher's native backends), scratch space is just
// heap-allocated with Alloc and abandoned to the next GC cycle;
// it is only ever used for transient encode/decode buffers that do not
// outlive the current message (spec §4.9).
func (hl *HeapLayout) StackWithWords(fb *FuncBuilder, n int, emit func(addrLocal uint32)) {
	hl.Alloc(fb, n)
	addr := fb.Fn.AddLocal(wasm.TypeI32, "$scratch")
	fb.W.LocalSet(addr)
	emit(addr)
}

// EmitTupleToVanilla allocates an Array-tagged heap tuple from n words
// already on the operand stack (elem0 pushed first, elem(n-1) last) and
// leaves a single skewed pointer (spec §4.2 UnboxedTuple -> Vanilla).
func EmitTupleToVanilla(fb *FuncBuilder, n int) error {
	w := fb.W
	locals := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		locals[i] = fb.Fn.AddLocal(wasm.TypeI32, "$tup_elem")
		w.LocalSet(locals[i])
	}
	hl := fb.Env.Heap()
	hl.Alloc(fb, n+2)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$tup_ptr")
	w.LocalSet(ptr)

	// word 0 (unskewed offset 0, i.e. byte offset 1 from the skewed ptr): tag
	w.LocalGet(ptr)
	w.I32Const(int32(TagArray))
	w.I32Store(2, 1)
	// word 1: length n
	w.LocalGet(ptr)
	w.I32Const(int32(n))
	w.I32Store(2, uint32(1+WordSize))
	// words 2..2+n-1: elements
	for i := 0; i < n; i++ {
		w.LocalGet(ptr)
		w.LocalGet(locals[i])
		w.I32Store(2, uint32(1+WordSize*(2+i)))
	}
	w.LocalGet(ptr)
	return nil
}

// EmitVanillaToTuple decomposes a heap tuple pointer (a skewed pointer
// to an Array-tagged object of length n) into its n component words, in
// order (spec §4.2 Vanilla -> UnboxedTuple).
func EmitVanillaToTuple(fb *FuncBuilder, n int) error {
	w := fb.W
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$tup_src")
	w.LocalSet(ptr)
	for i := 0; i < n; i++ {
		w.LocalGet(ptr)
		w.I32Load(2, uint32(1+WordSize*(2+i)))
	}
	return nil
}
