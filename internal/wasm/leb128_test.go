package wasm

import "testing"

func TestULEB128RoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 127, 128, 300, 65535, 1 << 20, 0xFFFFFFFF}
	for _, v := range cases {
		buf := AppendULEB128(nil, v)
		got, next := DecodeULEB128(buf, 0)
		if got != v {
			t.Errorf("DecodeULEB128(AppendULEB128(%d)) = %d", v, got)
		}
		if next != len(buf) {
			t.Errorf("DecodeULEB128(%d) consumed to %d, want %d", v, next, len(buf))
		}
	}
}

func TestSLEB128RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 63, -64, 64, -65, 1 << 20, -(1 << 20), 0x7fffffff, -0x80000000}
	for _, v := range cases {
		buf := AppendSLEB128(nil, v)
		got, next := DecodeSLEB128(buf, 0)
		if got != v {
			t.Errorf("DecodeSLEB128(AppendSLEB128(%d)) = %d", v, got)
		}
		if next != len(buf) {
			t.Errorf("DecodeSLEB128(%d) consumed to %d, want %d", v, next, len(buf))
		}
	}
}

func TestULEB128SizeMatchesEncoding(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 1 << 28} {
		buf := AppendULEB128(nil, v)
		if got := ULEB128Size(v); got != len(buf) {
			t.Errorf("ULEB128Size(%d) = %d, want %d", v, got, len(buf))
		}
	}
}

func TestSmallValuesEncodeToOneByte(t *testing.T) {
	for v := uint32(0); v < 128; v++ {
		if n := len(AppendULEB128(nil, v)); n != 1 {
			t.Errorf("value %d encoded to %d bytes, want 1", v, n)
		}
	}
}

func TestDecodeULEB128SequentialReads(t *testing.T) {
	var buf []byte
	buf = AppendULEB128(buf, 42)
	buf = AppendULEB128(buf, 300)
	v1, off := DecodeULEB128(buf, 0)
	if v1 != 42 {
		t.Fatalf("first value = %d, want 42", v1)
	}
	v2, _ := DecodeULEB128(buf, off)
	if v2 != 300 {
		t.Fatalf("second value = %d, want 300", v2)
	}
}
