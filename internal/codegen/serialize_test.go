package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

func TestPrimitiveCodesAreNegative(t *testing.T) {
	kinds := []ir.Kind{
		ir.KindNull, ir.KindBool, ir.KindNat, ir.KindInt,
		ir.KindNat8, ir.KindNat64, ir.KindInt8, ir.KindInt64,
		ir.KindText, ir.KindEmpty,
	}
	for _, k := range kinds {
		code, ok := primitiveCode(k)
		if !ok {
			t.Errorf("Kind %v should have a primitive code", k)
			continue
		}
		if code >= 0 {
			t.Errorf("primitive code for %v = %d, want negative", k, code)
		}
	}
}

func TestCompositeKindsHaveNoPrimitiveCode(t *testing.T) {
	for _, k := range []ir.Kind{ir.KindArray, ir.KindObject, ir.KindVariant, ir.KindOption, ir.KindTuple} {
		if _, ok := primitiveCode(k); ok {
			t.Errorf("composite Kind %v unexpectedly has a primitive code", k)
		}
	}
}

func TestTypeTableInternDedupsStructurallyIdenticalTypes(t *testing.T) {
	b := NewTypeTableBuilder()
	natTy := &ir.Type{Kind: ir.KindNat}
	opt1 := &ir.Type{Kind: ir.KindOption, Elem: natTy}
	opt2 := &ir.Type{Kind: ir.KindOption, Elem: &ir.Type{Kind: ir.KindNat}}

	ref1 := b.Intern(opt1)
	ref2 := b.Intern(opt2)
	if ref1 != ref2 {
		t.Errorf("structurally identical opt(nat) types interned to different refs: %d != %d", ref1, ref2)
	}
}

func TestTypeTableInternDistinguishesShapes(t *testing.T) {
	b := NewTypeTableBuilder()
	optNat := &ir.Type{Kind: ir.KindOption, Elem: &ir.Type{Kind: ir.KindNat}}
	vecNat := &ir.Type{Kind: ir.KindArray, Elem: &ir.Type{Kind: ir.KindNat}}

	r1 := b.Intern(optNat)
	r2 := b.Intern(vecNat)
	if r1 == r2 {
		t.Error("opt(nat) and vec(nat) must not share a type-table entry")
	}
}

func TestEncodeStartsWithMagic(t *testing.T) {
	b := NewTypeTableBuilder()
	out := b.Encode([]*ir.Type{{Kind: ir.KindNat}})
	if len(out) < 4 || string(out[:4]) != string(WireMagic[:]) {
		t.Errorf("Encode output does not start with DIDL magic: %v", out[:4])
	}
}

func TestSubtypingRulesHold(t *testing.T) {
	if !NatFitsInt() {
		t.Error("nat must be decodable where int is expected")
	}
	if !RecordToleratesExtraFields() {
		t.Error("records must tolerate extra wire fields")
	}
	if !VariantUnknownTagTraps() {
		t.Error("an unrecognized variant tag must trap")
	}
	if !AnySkipsStructure() {
		t.Error("Any must skip structure without inspecting it")
	}
}
