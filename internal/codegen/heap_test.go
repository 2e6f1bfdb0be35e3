package codegen

import "testing"

func TestSkewUnskewRoundTrip(t *testing.T) {
	for _, off := range []int32{0, 4, 8, 1024, 1 << 20} {
		if got := Unskew(Skew(off)); got != off {
			t.Errorf("Unskew(Skew(%d)) = %d", off, got)
		}
	}
}

func TestSkewIsAlwaysOddParity(t *testing.T) {
	// word-aligned offsets end in 0b00; skewing subtracts 1, giving 0b11
	// in the low two bits, the pointer tag this backend relies on.
	for _, off := range []int32{0, 4, 8, 12} {
		skewed := Skew(off)
		if skewed&0b11 != 0b11 {
			t.Errorf("Skew(%d) = %#x, want low two bits 0b11", off, skewed)
		}
	}
}

func TestNewHeapLayoutInstallsTwoGlobals(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 64)
	if hl.HeapPtrGlobal == hl.AllocWordsGlobal {
		t.Error("heap pointer and allocation counter must be distinct globals")
	}
	if hl.HeapBase != 64 {
		t.Errorf("HeapBase = %d, want 64", hl.HeapBase)
	}
}

func TestDynAllocBytesRoundsUpToWords(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 0, 1, false)

	before := len(fb.W.Buf)
	hl.DynAllocBytes(fb, 1) // 1 byte still needs a whole word
	if len(fb.W.Buf) == before {
		t.Error("DynAllocBytes(1) should emit allocation code")
	}
}
