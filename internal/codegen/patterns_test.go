package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

func TestCompileWildPatternCannotFail(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	fb.W.LocalGet(0)
	r, err := CompilePattern(fb, &ir.Pattern{Kind: ir.PatWild}, fb.Vars, 0)
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	if r.CanFail {
		t.Error("wildcard pattern must compile as CannotFail")
	}
}

func TestCompileVarPatternBindsLocation(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	fb.W.LocalGet(0)
	r, err := CompilePattern(fb, &ir.Pattern{Kind: ir.PatVar, Name: "v"}, fb.Vars, 0)
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	if _, ok := r.Bindings.Lookup("v"); !ok {
		t.Error("PatVar should bind its name in the resulting environment")
	}
}

func TestCompileLiteralPatternCanFail(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	fb.W.LocalGet(0)
	r, err := CompilePattern(fb, &ir.Pattern{Kind: ir.PatLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: true}, fb.Vars, 0)
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	if !r.CanFail {
		t.Error("literal pattern must compile as CanFail")
	}
}

func TestCompileAltPatternRejectsBindingArms(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	pat := &ir.Pattern{
		Kind:  ir.PatAlt,
		Left:  &ir.Pattern{Kind: ir.PatLit, Type: &ir.Type{Kind: ir.KindBool}},
		Right: &ir.Pattern{Kind: ir.PatVar, Name: "oops"},
	}
	fb.W.LocalGet(0)
	if _, err := CompilePattern(fb, pat, fb.Vars, 0); err == nil {
		t.Error("alternation with a binding arm must be rejected")
	}
}

func TestCompileAltPatternSuccessfulMatch(t *testing.T) {
	env := NewModuleEnv()
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	pat := &ir.Pattern{
		Kind:  ir.PatAlt,
		Left:  &ir.Pattern{Kind: ir.PatLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: true},
		Right: &ir.Pattern{Kind: ir.PatLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: false},
	}
	fb.W.Block(wasm.TypeBlockVoid) // the failDepth=0 branch target a real caller (e.g. a switch arm) would supply
	fb.W.LocalGet(0)
	r, err := CompilePattern(fb, pat, fb.Vars, 0)
	fb.W.End()
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	if !r.CanFail {
		t.Error("alternation of two literal patterns must compile as CanFail")
	}
}

func TestOrTrapWrapsCanFailPattern(t *testing.T) {
	env := NewModuleEnv()
	env.AddFuncImport("ic0", "trap", []byte{wasm.TypeI32, wasm.TypeI32}, nil)
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	fb := NewFuncBuilder(env, "$t", 1, 1, false)

	fb.W.LocalGet(0)
	before := len(fb.W.Buf)
	_, err := OrTrap(fb, &ir.Pattern{Kind: ir.PatLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: true}, fb.Vars, "match failure")
	if err != nil {
		t.Fatalf("OrTrap: %v", err)
	}
	if len(fb.W.Buf) == before {
		t.Error("OrTrap should emit code for the pattern test plus the trap fallback")
	}
}
