package codegen

import "testing"

func TestTableSlotReusedAcrossClosureEmits(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)

	fb := NewFuncBuilder(env, "$t", 0, 1, false)
	if err := EmitClosureNoCaptures(fb, 3); err != nil {
		t.Fatalf("EmitClosureNoCaptures: %v", err)
	}
	if err := EmitClosureNoCaptures(fb, 3); err != nil {
		t.Fatalf("EmitClosureNoCaptures: %v", err)
	}
	if len(env.tableEntries) != 1 {
		t.Errorf("table has %d entries after two closures over the same function, want 1", len(env.tableEntries))
	}
}

func TestTableSlotDistinctForDifferentFunctions(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)

	fb := NewFuncBuilder(env, "$t", 0, 1, false)
	if err := EmitClosureNoCaptures(fb, 1); err != nil {
		t.Fatalf("EmitClosureNoCaptures: %v", err)
	}
	if err := EmitClosureNoCaptures(fb, 2); err != nil {
		t.Fatalf("EmitClosureNoCaptures: %v", err)
	}
	if len(env.tableEntries) != 2 {
		t.Errorf("table has %d entries after two distinct functions, want 2", len(env.tableEntries))
	}
}

func TestMethodReferenceRequiresSelfBinding(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 0, 1, false)

	if err := EmitMethodReference(fb, "greet"); err == nil {
		t.Error("EmitMethodReference outside an actor body (no $self bound) should error")
	}
}

func TestSelfReferenceRequiresSelfBinding(t *testing.T) {
	env := NewModuleEnv()
	fb := NewFuncBuilder(env, "$t", 0, 1, false)
	if err := EmitSelfReference(fb); err == nil {
		t.Error("EmitSelfReference outside an actor body should error")
	}
}
