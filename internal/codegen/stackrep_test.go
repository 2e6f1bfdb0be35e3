package codegen

import "testing"

func TestJoinIdentical(t *testing.T) {
	cases := []Rep{Vanilla(), UnboxedWord64(), UnboxedWord32(), UnboxedTuple(3)}
	for _, r := range cases {
		if got := Join(r, r); !sameRep(got, r) {
			t.Errorf("Join(%v, %v) = %v, want %v", r, r, got, r)
		}
	}
}

func TestJoinUnreachableAbsorbs(t *testing.T) {
	for _, r := range []Rep{Vanilla(), UnboxedWord32(), UnboxedTuple(2)} {
		if got := Join(Unreachable(), r); !sameRep(got, r) {
			t.Errorf("Join(Unreachable, %v) = %v, want %v", r, got, r)
		}
		if got := Join(r, Unreachable()); !sameRep(got, r) {
			t.Errorf("Join(%v, Unreachable) = %v, want %v", r, got, r)
		}
	}
}

func TestJoinMismatchFallsBackToVanilla(t *testing.T) {
	cases := []struct{ a, b Rep }{
		{UnboxedWord64(), UnboxedWord32()},
		{UnboxedTuple(2), UnboxedTuple(3)},
		{Vanilla(), UnboxedWord64()},
	}
	for _, c := range cases {
		got := Join(c.a, c.b)
		if got.Kind != RepVanilla {
			t.Errorf("Join(%v, %v) = %v, want Vanilla", c.a, c.b, got)
		}
	}
}

func TestJoinSameArityTuplesStayTuples(t *testing.T) {
	got := Join(UnboxedTuple(4), UnboxedTuple(4))
	if got.Kind != RepUnboxedTuple || got.N != 4 {
		t.Errorf("Join(UnboxedTuple(4), UnboxedTuple(4)) = %v, want UnboxedTuple(4)", got)
	}
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		r    Rep
		want int
	}{
		{Vanilla(), 1},
		{UnboxedWord64(), 1},
		{UnboxedWord32(), 1},
		{UnboxedTuple(0), 0},
		{UnboxedTuple(5), 5},
		{Unreachable(), 0},
	}
	for _, c := range cases {
		if got := c.r.WordCount(); got != c.want {
			t.Errorf("%v.WordCount() = %d, want %d", c.r, got, c.want)
		}
	}
}

func TestAdjustSameRepIsNoop(t *testing.T) {
	fb := NewFuncBuilder(NewModuleEnv(), "$t", 0, 1, false)
	before := len(fb.W.Buf)
	if err := fb.Adjust(Vanilla(), Vanilla(), false); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if len(fb.W.Buf) != before {
		t.Errorf("Adjust(Vanilla, Vanilla) emitted %d bytes, want 0", len(fb.W.Buf)-before)
	}
}

func TestAdjustIncompatibleTuplesErrors(t *testing.T) {
	fb := NewFuncBuilder(NewModuleEnv(), "$t", 0, 1, false)
	if err := fb.Adjust(UnboxedTuple(2), UnboxedTuple(3), false); err == nil {
		t.Error("Adjust(UnboxedTuple(2), UnboxedTuple(3)) should error on arity mismatch")
	}
}

func TestAdjustToUnreachableEmitsUnreachable(t *testing.T) {
	fb := NewFuncBuilder(NewModuleEnv(), "$t", 0, 1, false)
	if err := fb.Adjust(Vanilla(), Unreachable(), false); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if len(fb.W.Buf) == 0 {
		t.Error("Adjust(Vanilla, Unreachable) should emit an unreachable instruction")
	}
}
