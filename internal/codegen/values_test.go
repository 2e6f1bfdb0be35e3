package codegen

import "testing"

func TestSortedObjectFieldsStable(t *testing.T) {
	fields := []FieldEntry{
		{Name: "b"},
		{Name: "a"},
		{Name: "c"},
	}
	first := sortedObjectFields(fields)
	second := sortedObjectFields(fields)
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("sortedObjectFields is not deterministic across calls at index %d", i)
		}
	}
}

func TestEmitObjectLiteralProducesCode(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 0, 1, false)

	v1 := fb.Fn.AddLocal(0x7f, "$v1")
	v2 := fb.Fn.AddLocal(0x7f, "$v2")
	fields := []FieldEntry{
		{Name: "x", Local: v1},
		{Name: "y", Local: v2},
	}
	before := len(fb.W.Buf)
	if err := EmitObjectLiteral(fb, fields); err != nil {
		t.Fatalf("EmitObjectLiteral: %v", err)
	}
	if len(fb.W.Buf) == before {
		t.Error("EmitObjectLiteral should emit allocation and store instructions")
	}
}

func TestEncodeBlobBytesHeaderLength(t *testing.T) {
	data := []byte("hello")
	out := encodeBlobBytes(data)
	if len(out) != 8+len(data) {
		t.Fatalf("encodeBlobBytes length = %d, want %d", len(out), 8+len(data))
	}
	gotLen := int32(out[4]) | int32(out[5])<<8 | int32(out[6])<<16 | int32(out[7])<<24
	if int(gotLen) != len(data) {
		t.Errorf("encoded length field = %d, want %d", gotLen, len(data))
	}
}
