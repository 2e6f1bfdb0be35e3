package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

func TestBuiltinTriStatePromotion(t *testing.T) {
	env := NewModuleEnv()

	if _, ok := env.BuiltinStateOf("foo"); ok {
		t.Fatal("foo should not be registered yet")
	}

	calls := 0
	thunk := func(m *ModuleEnv) []byte {
		calls++
		return []byte{wasm.OpEnd}
	}

	idx1 := env.BuiltIn("foo", nil, nil, thunk)
	state, ok := env.BuiltinStateOf("foo")
	if !ok || state != BuiltinPending {
		t.Fatalf("after first registration: state=%v ok=%v, want Pending", state, ok)
	}
	if calls != 0 {
		t.Fatalf("thunk ran %d times before second lookup, want 0", calls)
	}

	idx2 := env.BuiltIn("foo", nil, nil, nil)
	if idx1 != idx2 {
		t.Fatalf("BuiltIn returned different indices for the same name: %d != %d", idx1, idx2)
	}
	state, ok = env.BuiltinStateOf("foo")
	if !ok || state != BuiltinDefined {
		t.Fatalf("after second lookup: state=%v ok=%v, want Defined", state, ok)
	}
	if calls != 1 {
		t.Fatalf("thunk ran %d times, want exactly 1", calls)
	}

	env.BuiltIn("foo", nil, nil, nil)
	if calls != 1 {
		t.Fatalf("thunk ran again on a third lookup: calls=%d, want 1", calls)
	}
}

func TestBuiltinDeclaredWithoutThunk(t *testing.T) {
	env := NewModuleEnv()
	env.BuiltIn("bar", nil, nil, nil)
	state, ok := env.BuiltinStateOf("bar")
	if !ok || state != BuiltinDeclared {
		t.Fatalf("state=%v ok=%v, want Declared", state, ok)
	}
}

func TestAddFuncImportAfterNonImportPanics(t *testing.T) {
	env := NewModuleEnv()
	env.AddFun("f", nil, nil, []byte{wasm.OpEnd})

	defer func() {
		if recover() == nil {
			t.Error("AddFuncImport after a non-import function should panic")
		}
	}()
	env.AddFuncImport("env", "late", nil, nil)
}

func TestReserveStaticMemoryAfterFreezeErrors(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	if _, err := env.ReserveStaticMemory(4); err == nil {
		t.Error("reserving static memory after freeze should error")
	}
}

func TestAddStaticBytesDedups(t *testing.T) {
	env := NewModuleEnv()
	p1, err := env.AddStaticBytes([]byte("hello"))
	if err != nil {
		t.Fatalf("AddStaticBytes: %v", err)
	}
	p2, err := env.AddStaticBytes([]byte("hello"))
	if err != nil {
		t.Fatalf("AddStaticBytes: %v", err)
	}
	if p1 != p2 {
		t.Errorf("identical content got different pointers: %d != %d", p1, p2)
	}
}

func TestAddMutableStaticBytesNeverDedups(t *testing.T) {
	env := NewModuleEnv()
	p1, _ := env.AddMutableStaticBytes([]byte("x"))
	p2, _ := env.AddMutableStaticBytes([]byte("x"))
	if p1 == p2 {
		t.Error("mutable static allocations with identical content must not alias")
	}
}

func TestTableSlotDedupsByFuncIndex(t *testing.T) {
	env := NewModuleEnv()
	s1 := env.TableSlot(5)
	s2 := env.TableSlot(5)
	s3 := env.TableSlot(6)
	if s1 != s2 {
		t.Errorf("same func index got different slots: %d != %d", s1, s2)
	}
	if s3 == s1 {
		t.Error("different func indices should get different table slots")
	}
}

func TestFinishErrorsOnUnfilledReservation(t *testing.T) {
	env := NewModuleEnv()
	env.ReserveFun("never_filled", nil, nil)
	if _, err := env.Finish(); err == nil {
		t.Error("Finish should error when a reserved function was never filled")
	}
}
