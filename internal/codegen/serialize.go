package codegen

import (
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// Serialization implements the self-describing wire format of spec
// §4.9: a magic header, a type table (negative-sleb128 primitive codes,
// composite codes for record/variant/vector/option), a leb128 argument
// count, and the values themselves. This file builds the type-table
// prefix on the host (TypeTableBuilder.Encode) and provides the decode
// rule predicates and UTF-8 validation; it does not encode or decode
// values.

// WireMagic is the four-byte header every serialized argument/result
// blob starts with.
var WireMagic = [4]byte{'D', 'I', 'D', 'L'}

// Primitive type codes (negative sleb128, spec §4.9).
const (
	TypeCodeNull    = -1
	TypeCodeBool    = -2
	TypeCodeNat     = -3
	TypeCodeInt     = -4
	TypeCodeNat8    = -5
	TypeCodeNat16   = -6
	TypeCodeNat32   = -7
	TypeCodeNat64   = -8
	TypeCodeInt8    = -9
	TypeCodeInt16   = -10
	TypeCodeInt32   = -11
	TypeCodeInt64   = -12
	TypeCodeFloat32 = -13
	TypeCodeFloat64 = -14
	TypeCodeText    = -15
	TypeCodeReserved = -16
	TypeCodeEmpty   = -17
	TypeCodePrincipal = -24
)

// Composite type codes (non-negative indices into the type table follow
// a small fixed set of constructor codes).
const (
	TypeCodeOpt    = -18
	TypeCodeVec    = -19
	TypeCodeRecord = -20
	TypeCodeVariant = -21
	TypeCodeFunc   = -22
	TypeCodeService = -23
)

// primitiveCode maps a Kind to its wire primitive code, or (0, false)
// if the Kind is a composite type requiring a type-table entry.
func primitiveCode(k ir.Kind) (int, bool) {
	switch k {
	case ir.KindNull:
		return TypeCodeNull, true
	case ir.KindBool:
		return TypeCodeBool, true
	case ir.KindNat:
		return TypeCodeNat, true
	case ir.KindInt:
		return TypeCodeInt, true
	case ir.KindNat8:
		return TypeCodeNat8, true
	case ir.KindNat16:
		return TypeCodeNat16, true
	case ir.KindNat32:
		return TypeCodeNat32, true
	case ir.KindNat64:
		return TypeCodeNat64, true
	case ir.KindInt8:
		return TypeCodeInt8, true
	case ir.KindInt16:
		return TypeCodeInt16, true
	case ir.KindInt32:
		return TypeCodeInt32, true
	case ir.KindInt64:
		return TypeCodeInt64, true
	case ir.KindText, ir.KindBlob:
		return TypeCodeText, true
	case ir.KindEmpty:
		return TypeCodeEmpty, true
	case ir.KindAny:
		return TypeCodeReserved, true
	default:
		return 0, false
	}
}

// TypeTableBuilder accumulates the composite type-table entries needed
// to describe a set of argument/result types, deduplicating structural
// repeats (spec §4.9 "the type table is built once per distinct
// composite shape").
type TypeTableBuilder struct {
	entries []typeTableEntry
	index   map[string]int
}

type typeTableEntry struct {
	code int32
	args []int32 // type-table indices or primitive codes, meaning depends on code
}

func NewTypeTableBuilder() *TypeTableBuilder {
	return &TypeTableBuilder{index: map[string]int{}}
}

// Intern returns the argument-position reference (a primitive code, if
// t is primitive, or a non-negative type-table index otherwise) for t,
// registering new composite entries as needed.
func (b *TypeTableBuilder) Intern(t *ir.Type) int32 {
	if code, ok := primitiveCode(t.Kind); ok {
		return int32(code)
	}
	key := structuralKey(t)
	if idx, ok := b.index[key]; ok {
		return int32(idx)
	}
	idx := len(b.entries)
	b.entries = append(b.entries, typeTableEntry{}) // placeholder, reserved for recursive refs
	b.index[key] = idx

	var e typeTableEntry
	switch t.Kind {
	case ir.KindOption:
		e = typeTableEntry{code: TypeCodeOpt, args: []int32{b.Intern(t.Elem)}}
	case ir.KindArray:
		e = typeTableEntry{code: TypeCodeVec, args: []int32{b.Intern(t.Elem)}}
	case ir.KindObject:
		args := make([]int32, 0, 2*len(t.Fields))
		for _, f := range t.Fields {
			args = append(args, int32(FieldHash(f.Name)), b.Intern(f.Type))
		}
		e = typeTableEntry{code: TypeCodeRecord, args: args}
	case ir.KindTuple:
		args := make([]int32, 0, 2*len(t.Components))
		for i, c := range t.Components {
			args = append(args, int32(i), b.Intern(c))
		}
		e = typeTableEntry{code: TypeCodeRecord, args: args}
	case ir.KindVariant:
		args := make([]int32, 0, 2*len(t.Tags))
		for _, tg := range t.Tags {
			args = append(args, int32(FieldHash(tg.Name)), b.Intern(tg.Type))
		}
		e = typeTableEntry{code: TypeCodeVariant, args: args}
	default:
		e = typeTableEntry{code: TypeCodeEmpty}
	}
	b.entries[idx] = e
	return int32(idx)
}

// structuralKey produces a stable dedup key for a composite type.
func structuralKey(t *ir.Type) string {
	switch t.Kind {
	case ir.KindOption:
		return "opt(" + structuralRefKey(t.Elem) + ")"
	case ir.KindArray:
		return "vec(" + structuralRefKey(t.Elem) + ")"
	case ir.KindObject:
		s := "rec("
		for _, f := range t.Fields {
			s += f.Name + ":" + structuralRefKey(f.Type) + ","
		}
		return s + ")"
	case ir.KindTuple:
		s := "tup("
		for _, c := range t.Components {
			s += structuralRefKey(c) + ","
		}
		return s + ")"
	case ir.KindVariant:
		s := "var("
		for _, tg := range t.Tags {
			s += tg.Name + ":" + structuralRefKey(tg.Type) + ","
		}
		return s + ")"
	default:
		return t.Name
	}
}

func structuralRefKey(t *ir.Type) string {
	if code, ok := primitiveCode(t.Kind); ok {
		return "p" + itoa(code)
	}
	return structuralKey(t)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Encode assembles the complete wire bytes for the type table: magic,
// leb128 table length, each entry's sleb128 code plus its args, then the
// leb128 argument-type-reference list for argTypes.
func (b *TypeTableBuilder) Encode(argTypes []*ir.Type) []byte {
	refs := make([]int32, len(argTypes))
	for i, t := range argTypes {
		refs[i] = b.Intern(t)
	}

	var out []byte
	out = append(out, WireMagic[:]...)
	out = wasm.AppendULEB128(out, uint32(len(b.entries)))
	for _, e := range b.entries {
		out = wasm.AppendSLEB128(out, e.code)
		out = wasm.AppendULEB128(out, uint32(len(e.args)))
		for _, a := range e.args {
			out = wasm.AppendSLEB128(out, a)
		}
	}
	out = wasm.AppendULEB128(out, uint32(len(refs)))
	for _, r := range refs {
		out = wasm.AppendSLEB128(out, r)
	}
	return out
}

// === Subtyping-aware decode rules (spec §4.9) ===

// NatFitsInt reports whether a wire Nat value may be consumed where an
// Int is expected — always true, since Int is a strict supertype of Nat
// on the wire (spec §4.9 "nat -> int").
func NatFitsInt() bool { return true }

// RecordToleratesExtraFields reports whether decoding a record with more
// wire fields than the expected static type is legal: it always is,
// extra fields are simply skipped (spec §4.9 "record extra-field
// tolerance").
func RecordToleratesExtraFields() bool { return true }

// VariantUnknownTagTraps reports whether an unrecognized variant tag
// must trap when decoded against a closed expected variant type (spec
// §4.9 "variant unknown-tag trap").
func VariantUnknownTagTraps() bool { return true }

// AnySkipsStructure reports whether the Any (reserved) type accepts and
// discards any wire value without inspecting its structure (spec §4.9
// "Any structural skip").
func AnySkipsStructure() bool { return true }

// EmitValidateUTF8 emits a byte-scan loop that traps if the bytes at
// [addrLocal, addrLocal+lenLocal) are not well-formed UTF-8 (spec §4.9
// "Text decoding validates UTF-8"). This performs only the structural
// checks that matter for a trap/no-trap decision: continuation-byte
// count per leading byte and no orphan continuation bytes; it does not
// reject overlong encodings, which the spec leaves unspecified.
func EmitValidateUTF8(fb *FuncBuilder, addrLocal, lenLocal uint32) {
	w := fb.W
	i := fb.Fn.AddLocal(wasm.TypeI32, "$utf8_i")
	w.I32Const(0)
	w.LocalSet(i)

	w.Loop(wasm.TypeBlockVoid)
	w.LocalGet(i)
	w.LocalGet(lenLocal)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeBlockVoid)

	lead := fb.Fn.AddLocal(wasm.TypeI32, "$utf8_lead")
	w.LocalGet(addrLocal)
	w.LocalGet(i)
	w.Op(wasm.OpI32Add)
	w.I32Load8U(0, 0)
	w.LocalSet(lead)

	cont := fb.Fn.AddLocal(wasm.TypeI32, "$utf8_cont")
	w.LocalGet(lead)
	w.I32Const(0x80)
	w.Op(wasm.OpI32LtU)
	w.If(wasm.TypeI32)
	w.I32Const(0)
	w.Else()
	w.LocalGet(lead)
	w.I32Const(0xE0)
	w.Op(wasm.OpI32And)
	w.I32Const(0xC0)
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(1)
	w.Else()
	w.LocalGet(lead)
	w.I32Const(0xF0)
	w.Op(wasm.OpI32And)
	w.I32Const(0xE0)
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(2)
	w.Else()
	w.LocalGet(lead)
	w.I32Const(0xF8)
	w.Op(wasm.OpI32And)
	w.I32Const(0xF0)
	w.Op(wasm.OpI32Eq)
	w.If(wasm.TypeI32)
	w.I32Const(3)
	w.Else()
	w.I32Const(-1)
	w.End()
	w.End()
	w.End()
	w.LocalSet(cont)

	w.LocalGet(cont)
	w.I32Const(0)
	w.Op(wasm.OpI32LtS)
	w.If(wasm.TypeBlockVoid)
	EmitTrap(fb, "invalid utf-8")
	w.End()

	w.LocalGet(i)
	w.LocalGet(cont)
	w.I32Const(1)
	w.Op(wasm.OpI32Add)
	w.Op(wasm.OpI32Add)
	w.LocalSet(i)
	w.Br(1)
	w.End()
	w.End()
}
