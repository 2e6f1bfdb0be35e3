package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

func TestNewGCLayoutSpacesTwoSemispacesApart(t *testing.T) {
	env := NewModuleEnv()
	gc := NewGCLayout(env, 1024, 256)
	if gc.SemispaceSize != 256*WordSize {
		t.Errorf("SemispaceSize = %d, want %d", gc.SemispaceSize, 256*WordSize)
	}
	if gc.ToSpaceBase == gc.FromSpaceBase {
		t.Error("to-space and from-space globals must be distinct")
	}
}

func TestBuildCollectorBodyProducesNonEmptyFunction(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	gc := NewGCLayout(env, 0, 64)

	thunk := BuildCollectorBody(env, gc, hl, nil)
	body := thunk(env)
	if len(body) == 0 {
		t.Error("collector body must not be empty")
	}
}

func TestEmitEvacuateFollowsIndirectionTag(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	gc := NewGCLayout(env, 0, 64)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)
	free := fb.Fn.AddLocal(wasm.TypeI32, "$free")

	before := len(fb.W.Buf)
	EmitEvacuate(fb, gc, 0, free)
	if len(fb.W.Buf) == before {
		t.Error("EmitEvacuate should emit a tag check and branch")
	}
}

func TestBuildCollectorBodyScansStaticRootAndClosureTable(t *testing.T) {
	env := NewModuleEnv()
	env.AddFuncImport("rts", "closure_table_loc", nil, []byte{wasm.TypeI32})
	env.AddFuncImport("rts", "closure_table_size", nil, []byte{wasm.TypeI32})
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	gc := NewGCLayout(env, 0, 64)
	root := env.AddGlobal(wasm.TypeI32, true, 0)

	thunk := BuildCollectorBody(env, gc, hl, []uint32{uint32(root)})
	body := thunk(env)
	if len(body) == 0 {
		t.Error("collector body must not be empty")
	}
}
