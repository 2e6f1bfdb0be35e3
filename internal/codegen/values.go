package codegen

import (
	"sort"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// RuntimeValues covers the Vanilla-representation encoding of every
// heap value shape besides Int/BigInt (handled in numerics.go) and
// Closure (handled in closures.go): Blob, Text (a Blob subtype at
// runtime), Array, Object, Variant, Option, and MutBox (spec §4.5).

// EmitBlobLiteral allocates a Blob-tagged object holding data and
// leaves its skewed pointer on the stack (spec §3.2 Blob layout: tag,
// byte length, payload bytes padded to a word boundary).
func EmitBlobLiteral(fb *FuncBuilder, data []byte) error {
	ptr, err := fb.Env.AddStaticBytes(encodeBlobBytes(data))
	if err != nil {
		return err
	}
	fb.W.I32Const(ptr)
	return nil
}

// encodeBlobBytes prepends the Blob header (tag, length) to data,
// producing the exact byte image a static data segment can hold.
func encodeBlobBytes(data []byte) []byte {
	out := make([]byte, 8+len(data))
	putLE32(out[0:4], int32(TagBlob))
	putLE32(out[4:8], int32(len(data)))
	copy(out[8:], data)
	return out
}

func putLE32(b []byte, v int32) {
	u := uint32(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

// EmitBlobLen loads a Blob/Text pointer's byte length.
func EmitBlobLen(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+WordSize))
}

// EmitBlobPayloadAddr converts a Blob/Text skewed pointer on the stack
// into the unskewed address of its first payload byte: +1 to unskew,
// +8 to skip the two header words (tag, length).
func EmitBlobPayloadAddr(fb *FuncBuilder) {
	w := fb.W
	w.I32Const(1 + 2*WordSize)
	w.Op(wasm.OpI32Add)
}

// EmitTextConcat concatenates two Text pointers already on the stack
// (lhs then rhs) into a freshly allocated Blob (spec §4.3 PrimOp
// OpConcat). Text is UTF-8 bytes with no extra structure, so concat is
// just a length-sum allocation plus two memcpys.
func EmitTextConcat(fb *FuncBuilder) error {
	w := fb.W
	rhs := fb.Fn.AddLocal(wasm.TypeI32, "$concat_rhs")
	lhs := fb.Fn.AddLocal(wasm.TypeI32, "$concat_lhs")
	w.LocalSet(rhs)
	w.LocalSet(lhs)

	lhsLen := fb.Fn.AddLocal(wasm.TypeI32, "$concat_lhs_len")
	w.LocalGet(lhs)
	EmitBlobLen(fb)
	w.LocalSet(lhsLen)

	rhsLen := fb.Fn.AddLocal(wasm.TypeI32, "$concat_rhs_len")
	w.LocalGet(rhs)
	EmitBlobLen(fb)
	w.LocalSet(rhsLen)

	totalLen := fb.Fn.AddLocal(wasm.TypeI32, "$concat_total_len")
	w.LocalGet(lhsLen)
	w.LocalGet(rhsLen)
	w.Op(wasm.OpI32Add)
	w.LocalSet(totalLen)

	hl := fb.Env.Heap()
	totalWords := fb.Fn.AddLocal(wasm.TypeI32, "$concat_words")
	w.LocalGet(totalLen)
	w.I32Const(int32(WordSize - 1))
	w.Op(wasm.OpI32Add)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32DivU)
	w.I32Const(2)
	w.Op(wasm.OpI32Add) // + 2 header words
	w.LocalSet(totalWords)

	// alloc takes a compile-time word count normally; here the count is
	// dynamic, so grow linear memory conservatively for the max possible
	// size before bumping by the exact amount. growIfNeeded is re-used by
	// bumping the heap pointer by totalWords*WordSize directly instead of
	// calling Alloc(fb, n) with a constant n.
	w.GlobalGet(uint32(hl.HeapPtrGlobal))
	dst := fb.Fn.AddLocal(wasm.TypeI32, "$concat_dst")
	w.LocalSet(dst)
	w.LocalGet(dst)
	w.LocalGet(totalWords)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)
	w.GlobalSet(uint32(hl.HeapPtrGlobal))
	hl.growIfNeeded(fb)

	w.LocalGet(dst)
	w.I32Const(int32(TagBlob))
	w.I32Store(2, 0)
	w.LocalGet(dst)
	w.LocalGet(totalLen)
	w.I32Store(2, uint32(WordSize))

	// byte-wise copy of lhs then rhs payload (simple, no alignment
	// assumption on the dynamic length).
	emitBytewiseCopy(fb, dst, lhs, lhsLen, 2*WordSize, 2*WordSize)
	copyOff := fb.Fn.AddLocal(wasm.TypeI32, "$concat_off2")
	w.LocalGet(dst)
	w.I32Const(int32(2 * WordSize))
	w.Op(wasm.OpI32Add)
	w.LocalGet(lhsLen)
	w.Op(wasm.OpI32Add)
	w.LocalSet(copyOff)
	emitBytewiseCopyDynamic(fb, copyOff, rhs, rhsLen, 2*WordSize)

	w.LocalGet(dst)
	w.I32Const(1)
	w.Op(wasm.OpI32Sub) // skew
	return nil
}

// emitBytewiseCopy copies lenLocal bytes from (srcPtr's payload + srcOff)
// to (dstAddr + dstOff) with a byte loop, used by text concatenation.
func emitBytewiseCopy(fb *FuncBuilder, dstAddr, srcPtr, lenLocal uint32, dstOff, srcOff int) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$copy_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(lenLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)
	w.LocalGet(dstAddr)
	w.I32Const(int32(dstOff))
	w.Op(wasm.OpI32Add)
	w.LocalGet(i)
	w.Op(wasm.OpI32Add)
	w.LocalGet(srcPtr)
	w.I32Const(int32(1 + srcOff))
	w.Op(wasm.OpI32Add)
	w.LocalGet(i)
	w.Op(wasm.OpI32Add)
	w.I32Load8U(0, 0)
	w.I32Store8(0, 0)
	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// emitBytewiseCopyDynamic is emitBytewiseCopy for a dynamic destination
// base (an already-computed address local rather than dstAddr+dstOff).
func emitBytewiseCopyDynamic(fb *FuncBuilder, dstAddrLocal, srcPtr, lenLocal uint32, srcOff int) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$copy2_i")
	w.I32Const(0)
	w.LocalSet(i)
	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(lenLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)
	w.LocalGet(dstAddrLocal)
	w.LocalGet(i)
	w.Op(wasm.OpI32Add)
	w.LocalGet(srcPtr)
	w.I32Const(int32(1 + srcOff))
	w.Op(wasm.OpI32Add)
	w.LocalGet(i)
	w.Op(wasm.OpI32Add)
	w.I32Load8U(0, 0)
	w.I32Store8(0, 0)
	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}

// EmitArrayLen loads an Array pointer's element count (spec §3.2 Array
// layout: tag, length, elements — shared with tuples, spec §4.2's
// UnboxedTuple <-> Vanilla coercion reuses this same layout).
func EmitArrayLen(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+WordSize))
}

// EmitArrayIndex loads element i (already on stack as an i32 index,
// array pointer pushed first) with a bounds check that traps out of
// range (spec §4.5 "Array indexing").
func EmitArrayIndex(fb *FuncBuilder) error {
	w := fb.W
	idx := fb.Fn.AddLocal(wasm.TypeI32, "$idx_i")
	arr := fb.Fn.AddLocal(wasm.TypeI32, "$idx_arr")
	w.LocalSet(idx)
	w.LocalSet(arr)

	w.LocalGet(idx)
	w.LocalGet(arr)
	EmitArrayLen(fb)
	w.Op(wasm.OpI32GeU)
	w.If(wasm.TypeBlockVoid)
	EmitTrap(fb, "array index out of bounds")
	w.End()

	w.LocalGet(arr)
	w.LocalGet(idx)
	w.I32Const(int32(WordSize))
	w.Op(wasm.OpI32Mul)
	w.Op(wasm.OpI32Add)
	w.I32Load(2, uint32(1+2*WordSize))
	return nil
}

// sortedObjectFields returns fields sorted by FieldHash(Name) ascending,
// matching the heap layout invariant of spec §3.2(a); ties (hash
// collisions) are broken by name to keep the order deterministic.
func sortedObjectFields(fields []FieldEntry) []FieldEntry {
	out := make([]FieldEntry, len(fields))
	copy(out, fields)
	sort.Slice(out, func(i, j int) bool {
		hi, hj := FieldHash(out[i].Name), FieldHash(out[j].Name)
		if hi != hj {
			return hi < hj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FieldEntry pairs a field name with the local holding its
// already-computed Vanilla value (or, for a mutable field, the MutBox
// pointer — spec §4.5 "mutable fields are boxed through an extra
// indirection").
type FieldEntry struct {
	Name    string
	Local   uint32
	Mutable bool
}

// EmitObjectLiteral allocates an Object-tagged heap value: tag, field
// count, then (hash, value) pairs sorted by hash (spec §3.2 Object
// layout, §4.5). Mutable fields are first boxed into a MutBox.
func EmitObjectLiteral(fb *FuncBuilder, fields []FieldEntry) error {
	w := fb.W
	sorted := sortedObjectFields(fields)
	n := len(sorted)

	// box mutable fields first, replacing each local with its MutBox
	// pointer local.
	boxed := make([]uint32, n)
	for i, f := range sorted {
		if f.Mutable {
			loc := fb.Fn.AddLocal(wasm.TypeI32, "$mutbox")
			EmitMutBoxNew(fb, f.Local)
			w.LocalSet(loc)
			boxed[i] = loc
		} else {
			boxed[i] = f.Local
		}
	}

	fb.Env.Heap().Alloc(fb, 2+2*n)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$obj_ptr")
	w.LocalSet(ptr)

	w.LocalGet(ptr)
	w.I32Const(int32(TagObject))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.I32Const(int32(n))
	w.I32Store(2, uint32(1+WordSize))

	for i, f := range sorted {
		base := 1 + WordSize*(2+2*i)
		w.LocalGet(ptr)
		w.I32Const(int32(FieldHash(f.Name)))
		w.I32Store(2, uint32(base))
		w.LocalGet(ptr)
		w.LocalGet(boxed[i])
		w.I32Store(2, uint32(base+WordSize))
	}

	w.LocalGet(ptr)
	return nil
}

// EmitObjectFieldGet looks up name in an Object pointer on the stack via
// linear scan over the sorted (hash, value) pairs — the object's field
// count is runtime data, so unlike EmitObjectLiteral this cannot
// binary-search at compile time without knowing the static type's field
// list; callers that do know the static Type should instead compute the
// field's fixed offset directly (spec §4.5 "field access is a constant
// offset once the type is known").
func EmitObjectFieldGet(fb *FuncBuilder, name string, mutable bool) error {
	w := fb.W
	obj := fb.Fn.AddLocal(wasm.TypeI32, "$objget_ptr")
	w.LocalSet(obj)

	n := fb.Fn.AddLocal(wasm.TypeI32, "$objget_n")
	w.LocalGet(obj)
	w.I32Load(2, uint32(1+WordSize))
	w.LocalSet(n)

	i := fb.Fn.AddLocal(wasm.TypeI32, "$objget_i")
	w.I32Const(0)
	w.LocalSet(i)

	found := fb.Fn.AddLocal(wasm.TypeI32, "$objget_found")
	w.I32Const(0)
	w.LocalSet(found)

	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(n)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	w.LocalGet(obj)
	w.LocalGet(i)
	w.I32Const(2 * WordSize)
	w.Op(wasm.OpI32Mul)
	w.I32Const(int32(1 + 2*WordSize))
	w.Op(wasm.OpI32Add)
	w.Op(wasm.OpI32Add)
	w.I32Load(2, 0)
	w.I32Const(int32(FieldHash(name)))
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeBlockVoid)
	w.I32Const(1)
	w.LocalSet(found)
	w.Else()
	w.LocalGet(i)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(2)
	w.End()
	w.End()
	w.End()

	w.LocalGet(found)
	w.Op(wasm.OpI32Eqz)
	w.If(wasm.TypeBlockVoid)
	EmitTrap(fb, "object field not found: "+name)
	w.End()

	w.LocalGet(obj)
	w.LocalGet(i)
	w.I32Const(2 * WordSize)
	w.Op(wasm.OpI32Mul)
	w.I32Const(int32(1 + 2*WordSize + WordSize))
	w.Op(wasm.OpI32Add)
	w.Op(wasm.OpI32Add)
	w.I32Load(2, 0)

	if mutable {
		EmitMutBoxGet(fb)
	}
	return nil
}

// EmitMutBoxNew allocates a MutBox holding the value in valLocal (spec
// §3.2 MutBox: tag plus one payload word, used for `var`-bound locals
// that escape to the heap).
func EmitMutBoxNew(fb *FuncBuilder, valLocal uint32) {
	w := fb.W
	fb.Env.Heap().Alloc(fb, 2)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$mutbox_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I32Const(int32(TagMutBox))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.LocalGet(valLocal)
	w.I32Store(2, uint32(1+WordSize))
	w.LocalGet(ptr)
}

// EmitMutBoxGet dereferences a MutBox pointer on the stack.
func EmitMutBoxGet(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+WordSize))
}

// EmitMutBoxSet stores newValLocal into the MutBox pointer on the stack.
func EmitMutBoxSet(fb *FuncBuilder, ptrLocal, newValLocal uint32) {
	w := fb.W
	w.LocalGet(ptrLocal)
	w.LocalGet(newValLocal)
	w.I32Store(2, uint32(1+WordSize))
}

// EmitVariantLiteral allocates a Variant-tagged heap value holding tag's
// hash and an optional payload (spec §3.2 Variant layout, §4.5 "tagged
// union"). A payload-less tag still reserves the payload word, storing
// the canonical unit scalar, to keep the layout fixed-shape.
func EmitVariantLiteral(fb *FuncBuilder, tagName string, payloadLocal *uint32) {
	w := fb.W
	fb.Env.Heap().Alloc(fb, 3)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$var_ptr")
	w.LocalSet(ptr)

	w.LocalGet(ptr)
	w.I32Const(int32(TagVariant))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.I32Const(int32(FieldHash(tagName)))
	w.I32Store(2, uint32(1+WordSize))
	w.LocalGet(ptr)
	if payloadLocal != nil {
		w.LocalGet(*payloadLocal)
	} else {
		w.I32Const(ScalarFalse)
	}
	w.I32Store(2, uint32(1+2*WordSize))

	w.LocalGet(ptr)
}

// EmitVariantTagHash loads a Variant pointer's tag hash.
func EmitVariantTagHash(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+WordSize))
}

// EmitVariantPayload loads a Variant pointer's payload word.
func EmitVariantPayload(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+2*WordSize))
}

// EmitSomeLiteral wraps a value in an Option (spec §3.2 Some layout);
// the value is on the stack already. null itself is the raw scalar
// ScalarNull and never reaches this path.
func EmitSomeLiteral(fb *FuncBuilder) {
	w := fb.W
	val := fb.Fn.AddLocal(wasm.TypeI32, "$some_val")
	w.LocalSet(val)
	fb.Env.Heap().Alloc(fb, 2)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$some_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I32Const(int32(TagSome))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.LocalGet(val)
	w.I32Store(2, uint32(1+WordSize))
	w.LocalGet(ptr)
}

// EmitSomePayload loads a Some pointer's wrapped value.
func EmitSomePayload(fb *FuncBuilder) {
	fb.W.I32Load(2, uint32(1+WordSize))
}

// EmitIsNull tests whether a Vanilla value on the stack is the raw null
// scalar (spec §3.1 "the constant 5 ... represents null").
func EmitIsNull(fb *FuncBuilder) {
	w := fb.W
	w.I32Const(ScalarNull)
	w.Op(wasm.OpI32Eq)
}
