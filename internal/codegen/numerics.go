package codegen

import (
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// === Compact bignum (spec §4.3) ===

// CompactShift is the uniform "unboxed scalar is shifted left by 2"
// convention of spec §3.1, applied to compact Nat/Int so that bit 1 (the
// scalar/pointer discriminator) is always clear. We resolve spec §4.3's
// "(mantissa << 2) | sign_bit" phrasing as this same uniform left-shift
// rather than a separate sign-bit field — see DESIGN.md — since a plain
// arithmetic left/right shift already recovers the sign through two's
// complement and keeps every scalar's tag bit in the same bit position.
const CompactShift = 2

// CompactMin and CompactMax bound the range representable without
// boxing to a BigInt: a 32-bit word reserves 2 low bits, leaving 30
// signed bits after the shift.
const (
	CompactMin int64 = -(1 << 29)
	CompactMax int64 = (1 << 29) - 1
)

// CompactFits reports whether v can be represented unboxed.
func CompactFits(v int64) bool {
	return v >= CompactMin && v <= CompactMax
}

// EncodeCompact returns the raw scalar word for a value known to satisfy
// CompactFits.
func EncodeCompact(v int64) int32 {
	return int32(v) << CompactShift
}

// DecodeCompact recovers the signed value from a raw compact scalar.
func DecodeCompact(raw int32) int64 {
	return int64(raw >> CompactShift)
}

// EmitConstInt emits a constant Nat/Int value in Vanilla representation:
// a compact scalar if it fits, otherwise a call into the RTS to build a
// BigInt from the 64-bit value (spec §4.3's "otherwise ... delegated
// to the external RTS").
func EmitConstInt(fb *FuncBuilder, v int64) {
	if CompactFits(v) {
		fb.W.I32Const(EncodeCompact(v))
		return
	}
	// Out of compact range: materialize via rts.bigint_of_word64_signed
	// on the 64-bit literal; the result is left on the stack as a boxed
	// BigInt.
	fb.W.I64Const(v)
	fb.Env.CallRTS(fb, "bigint_of_word64_signed", 1, 1)
}

// BinOp enumerates the binary arithmetic/comparison ops Numerics
// compiles via the fast/slow path split of spec §4.3.
type BinOp int

const (
	NumAdd BinOp = iota
	NumSub
	NumMul
	NumDiv
	NumMod
	NumPow
)

// rtsBigintName maps a BinOp to its RTS entry point name (spec §6.1).
func rtsBigintName(op BinOp) string {
	switch op {
	case NumAdd:
		return "bigint_add"
	case NumSub:
		return "bigint_sub"
	case NumMul:
		return "bigint_mul"
	case NumDiv:
		return "bigint_div"
	case NumMod:
		return "bigint_rem"
	case NumPow:
		return "bigint_pow"
	default:
		return "bigint_add"
	}
}

// EmitCompactBinOp emits the fast/slow-path dispatch for a Nat/Int
// binary operator over two already-on-stack Vanilla operands, leaving a
// single Vanilla result (spec §4.3 "Every binary op inspects both
// operands"). lhsLocal/rhsLocal must be fresh locals the caller has
// already populated from the stack (order: lhs then rhs).
func EmitCompactBinOp(fb *FuncBuilder, op BinOp, lhsLocal, rhsLocal uint32, trapOnDivZero bool) {
	w := fb.W

	if op == NumPow {
		// Exponentiation always goes through the RTS bignum path: unlike
		// Add/Sub/Mul/Div/Mod, a compact-word fast path for `^` needs an
		// actual repeated-squaring loop (spec §4.3's estimator), not a
		// single 64-bit instruction, so there is no safe way to fold it
		// into the single-instruction fast/slow dispatch below. Routing
		// it here unconditionally also sidesteps the fast path's "both
		// scalar" stack-shape assumptions, which a unboxed pow loop would
		// not fit without its own result-width handling.
		liftToBigInt(fb, lhsLocal)
		liftToBigInt(fb, rhsLocal)
		fb.Env.CallRTS(fb, rtsBigintName(op), 2, 1)
		return
	}

	// Fast path test: both operands scalar (bit 1 clear on both).
	w.LocalGet(lhsLocal)
	w.LocalGet(rhsLocal)
	w.Op(wasm.OpI32Or)
	w.I32Const(0b10)
	w.Op(wasm.OpI32And)
	w.Op(wasm.OpI32Eqz) // true (1) iff both are scalars
	w.If(wasm.TypeI32)

	// --- fast path: sign-extend both to i64 in the high bits (rotate so
	// the compact payload occupies bits [2,32) of a 64-bit lane,
	// matching spec's "value is in the high 63 bits and LSB 0") then
	// perform the 64-bit op and test re-compactability.
	w.LocalGet(lhsLocal)
	w.I64ExtendI32S()
	w.LocalGet(rhsLocal)
	w.I64ExtendI32S()
	switch op {
	case NumAdd:
		w.Op(wasm.OpI64Add)
	case NumSub:
		w.Op(wasm.OpI64Sub)
	case NumMul:
		// multiplying two already-shifted-by-2 values doubles the shift;
		// undo one factor of the shift before multiplying.
		w.I64Const(CompactShift)
		w.Op(wasm.OpI64ShrS)
		w.Op(wasm.OpI64Mul)
	case NumDiv, NumMod:
		if trapOnDivZero {
			EmitTrapIfZero(fb, rhsLocal, "division by zero")
		}
		// Stack right now holds [lhs64, rhs64] (pushed above). Stash both
		// so each can be decoded (shifted right by CompactShift)
		// independently before the division, rather than shifting
		// whichever happens to be on top twice in a row.
		rhsWide := fb.Fn.AddLocal(wasm.TypeI64, "$divmod_rhs")
		lhsWide := fb.Fn.AddLocal(wasm.TypeI64, "$divmod_lhs")
		w.LocalSet(rhsWide)
		w.LocalSet(lhsWide)

		w.LocalGet(lhsWide)
		w.I64Const(CompactShift)
		w.Op(wasm.OpI64ShrS)
		w.LocalGet(rhsWide)
		w.I64Const(CompactShift)
		w.Op(wasm.OpI64ShrS)
		if op == NumDiv {
			w.Op(wasm.OpI64DivS)
		} else {
			w.Op(wasm.OpI64RemS)
		}
		// Re-tag the (untagged) quotient/remainder back into compact form.
		w.I64Const(CompactShift)
		w.Op(wasm.OpI64Shl)
	}
	resultLocal := fb.Fn.AddLocal(wasm.TypeI64, "$binop_wide")
	w.LocalSet(resultLocal)

	// Test whether the 64-bit result still fits in 30 signed bits after
	// undoing the shift; if so, wrap to i32 and use directly, else undo
	// the shift and box the wide result as a BigInt.
	w.LocalGet(resultLocal)
	w.I64Const(CompactMin << CompactShift)
	w.Op(wasm.OpI64GeS)
	w.LocalGet(resultLocal)
	w.I64Const((CompactMax + 1) << CompactShift)
	w.Op(wasm.OpI64LtS)
	w.Op(wasm.OpI32And)
	w.If(wasm.TypeI32)
	w.LocalGet(resultLocal)
	w.I32WrapI64()
	w.Else()
	w.LocalGet(resultLocal)
	w.I64Const(CompactShift)
	w.Op(wasm.OpI64ShrS)
	fb.Env.CallRTS(fb, "bigint_of_word64_signed", 1, 1) // box the decoded wide result
	w.End()

	w.Else()
	// --- slow path: lift both operands to heap bignums (boxed already,
	// or compact promoted via bigint_of_word64_signed) and call the RTS.
	liftToBigInt(fb, lhsLocal)
	liftToBigInt(fb, rhsLocal)
	fb.Env.CallRTS(fb, rtsBigintName(op), 2, 1)
	// attempt to compactify; rts owns the boxed/unboxed decision in the
	// real RTS, so here we just surface its result directly.
	w.End()
}

// liftToBigInt ensures the value in local is a heap BigInt, promoting a
// compact scalar via the RTS if needed.
func liftToBigInt(fb *FuncBuilder, local uint32) {
	w := fb.W
	w.LocalGet(local)
	w.I32Const(0b10)
	w.Op(wasm.OpI32And)
	w.If(wasm.TypeI32)
	w.LocalGet(local) // already a pointer (BigInt)
	w.Else()
	w.LocalGet(local)
	w.I64ExtendI32S()
	w.I64Const(CompactShift)
	w.Op(wasm.OpI64ShrS)
	fb.Env.CallRTS(fb, "bigint_of_word64_signed", 1, 1)
	w.End()
}

// EmitTrapIfZero emits a runtime trap if the value in local (a compact
// scalar) is zero, with msg as the trap payload (spec §8 scenario 3,
// "assert (1/0 == 1)").
func EmitTrapIfZero(fb *FuncBuilder, local uint32, msg string) {
	w := fb.W
	w.LocalGet(local)
	w.Op(wasm.OpI32Eqz)
	w.If(wasm.TypeBlockVoid)
	EmitTrap(fb, msg)
	w.End()
}

// EmitTrap emits a call to the host `trap` import with msg as payload
// (spec §6.2, §7 stratum 3). The driver must declare the "ic0.trap"
// import before compiling any function body that can reach a trap site.
func EmitTrap(fb *FuncBuilder, msg string) {
	ptr, _ := fb.Env.AddStaticBytes([]byte(msg))
	fb.W.I32Const(ptr)
	fb.W.I32Const(int32(len(msg)))
	fb.Env.CallHost(fb, "ic0", "trap")
	fb.W.Unreachable()
}

// === Exponentiation estimator (spec §4.3) ===

// UseUnboxedPow decides, given an estimate of the base's bit width and
// the (non-negative) exponent, whether to use the unboxed repeated-
// squaring loop or fall back to the RTS bignum power.
func UseUnboxedPow(baseBits, exp, bitwidth, guard int) bool {
	return baseBits*exp <= bitwidth-guard
}

// === Fixed-width arithmetic (Int8/16/32/64, Nat8/16/32/64, Word*) ===

// FixedWidthOverflowTraps reports whether op on a value of the given bit
// width, computed at the given wider precision, overflowed. It is a
// host-side predicate, called by tests; no code in this package emits
// a matching runtime check.
func FixedWidthOverflowTraps(signed bool, bits int, wide int64) bool {
	if signed {
		lo := -(int64(1) << uint(bits-1))
		hi := (int64(1) << uint(bits-1)) - 1
		return wide < lo || wide > hi
	}
	hi := (int64(1) << uint(bits)) - 1
	return wide < 0 || wide > hi
}

// MaskShiftAmount masks a shift/rotate count to the operand's bit width,
// per spec §4.3 ("shift/rotate counts are masked to the type's width").
func MaskShiftAmount(amount, bits int) int {
	return amount & (bits - 1)
}

// === Small-word boxing (SmallWord tag) ===

// EmitBoxWord32 allocates a SmallWord heap object from an i32 on the
// stack and leaves a skewed pointer (spec §4.2 UnboxedWord32 -> Vanilla,
// §3.2 SmallWord layout).
func EmitBoxWord32(fb *FuncBuilder) {
	w := fb.W
	val := fb.Fn.AddLocal(wasm.TypeI32, "$box32_val")
	w.LocalSet(val)
	fb.Env.Heap().Alloc(fb, 2)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$box32_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I32Const(int32(TagSmallWord))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.LocalGet(val)
	w.I32Store(2, uint32(1+WordSize))
	w.LocalGet(ptr)
}

// EmitUnboxWord32 loads the payload out of a SmallWord pointer on the
// stack (spec §4.2 Vanilla -> UnboxedWord32).
func EmitUnboxWord32(fb *FuncBuilder) {
	w := fb.W
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$unbox32_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I32Load(2, uint32(1+WordSize))
}

// EmitBoxWord64 allocates an Int-tagged heap object (64-bit payload)
// from an i64 on the stack (spec §3.2 Int layout, §4.2 UnboxedWord64 ->
// Vanilla).
func EmitBoxWord64(fb *FuncBuilder) {
	w := fb.W
	val := fb.Fn.AddLocal(wasm.TypeI64, "$box64_val")
	w.LocalSet(val)
	fb.Env.Heap().Alloc(fb, 3)
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$box64_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I32Const(int32(TagInt))
	w.I32Store(2, 1)
	w.LocalGet(ptr)
	w.LocalGet(val)
	w.I64Store(2, uint32(1+WordSize))
	w.LocalGet(ptr)
}

// EmitUnboxWord64 loads the 64-bit payload out of an Int-tagged pointer.
func EmitUnboxWord64(fb *FuncBuilder) {
	w := fb.W
	ptr := fb.Fn.AddLocal(wasm.TypeI32, "$unbox64_ptr")
	w.LocalSet(ptr)
	w.LocalGet(ptr)
	w.I64Load(2, uint32(1+WordSize))
}

// === Char (spec §4.3) ===

// ValidCodePoint reports whether cp is a valid Unicode scalar value for
// the Char type: [0,0xD800) union [0xE000,0x10FFFF].
func ValidCodePoint(cp uint32) bool {
	if cp < 0xD800 {
		return true
	}
	if cp >= 0xE000 && cp <= 0x10FFFF {
		return true
	}
	return false
}

// EncodeChar returns the scalar word for a Char: a 21-bit code point
// left-shifted by 8 bits (spec §4.3).
func EncodeChar(cp uint32) int32 {
	return int32(cp << 8)
}

// DecodeChar recovers the code point from a Char scalar word.
func DecodeChar(raw int32) uint32 {
	return uint32(raw) >> 8
}
