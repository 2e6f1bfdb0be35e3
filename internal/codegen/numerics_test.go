package codegen

import "testing"

func TestCompactRangeBoundaries(t *testing.T) {
	if !CompactFits(CompactMin) {
		t.Errorf("CompactMin %d should fit", CompactMin)
	}
	if !CompactFits(CompactMax) {
		t.Errorf("CompactMax %d should fit", CompactMax)
	}
	if CompactFits(CompactMin - 1) {
		t.Errorf("CompactMin-1 %d should not fit", CompactMin-1)
	}
	if CompactFits(CompactMax + 1) {
		t.Errorf("CompactMax+1 %d should not fit", CompactMax+1)
	}
}

func TestCompactEncodeDecodeRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, CompactMin, CompactMax, CompactMin + 1, CompactMax - 1}
	for _, v := range cases {
		raw := EncodeCompact(v)
		got := DecodeCompact(raw)
		if got != v {
			t.Errorf("DecodeCompact(EncodeCompact(%d)) = %d", v, got)
		}
	}
}

func TestCompactEncodingClearsScalarBit(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 100, -100} {
		raw := EncodeCompact(v)
		if !IsScalarBits(raw) {
			t.Errorf("EncodeCompact(%d) = %#x is not tagged as a scalar", v, raw)
		}
	}
}

func TestFixedWidthOverflowTraps(t *testing.T) {
	cases := []struct {
		signed bool
		bits   int
		wide   int64
		want   bool
	}{
		{true, 8, 127, false},
		{true, 8, 128, true},
		{true, 8, -128, false},
		{true, 8, -129, true},
		{false, 8, 255, false},
		{false, 8, 256, true},
		{false, 8, -1, true},
	}
	for _, c := range cases {
		got := FixedWidthOverflowTraps(c.signed, c.bits, c.wide)
		if got != c.want {
			t.Errorf("FixedWidthOverflowTraps(%v, %d, %d) = %v, want %v", c.signed, c.bits, c.wide, got, c.want)
		}
	}
}

func TestMaskShiftAmount(t *testing.T) {
	cases := []struct{ amount, bits, want int }{
		{3, 8, 3},
		{8, 8, 0},
		{9, 8, 1},
		{40, 32, 8},
	}
	for _, c := range cases {
		if got := MaskShiftAmount(c.amount, c.bits); got != c.want {
			t.Errorf("MaskShiftAmount(%d, %d) = %d, want %d", c.amount, c.bits, got, c.want)
		}
	}
}

func TestValidCodePoint(t *testing.T) {
	valid := []uint32{0, 'A', 0xD7FF, 0xE000, 0x10FFFF}
	for _, cp := range valid {
		if !ValidCodePoint(cp) {
			t.Errorf("ValidCodePoint(%#x) = false, want true", cp)
		}
	}
	invalid := []uint32{0xD800, 0xDFFF, 0x110000}
	for _, cp := range invalid {
		if ValidCodePoint(cp) {
			t.Errorf("ValidCodePoint(%#x) = true, want false", cp)
		}
	}
}

func TestCharEncodeDecodeRoundTrip(t *testing.T) {
	for _, cp := range []uint32{0, 'a', 0x1F600, 0x10FFFF} {
		raw := EncodeChar(cp)
		if got := DecodeChar(raw); got != cp {
			t.Errorf("DecodeChar(EncodeChar(%#x)) = %#x", cp, got)
		}
	}
}

func TestUseUnboxedPow(t *testing.T) {
	if !UseUnboxedPow(4, 10, 64, 2) {
		t.Error("small base/exp should fit the unboxed loop")
	}
	if UseUnboxedPow(20, 20, 64, 2) {
		t.Error("large base/exp should overflow the unboxed loop's budget")
	}
}
