package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

func TestExportNamePrefixes(t *testing.T) {
	cases := []struct {
		sharing ir.Sharing
		want    string
	}{
		{ir.SharingQuery, "canister_query greet"},
		{ir.SharingUpdate, "canister_update greet"},
		{ir.SharingOneway, "canister_update greet"},
	}
	for _, c := range cases {
		if got := ExportName("greet", c.sharing); got != c.want {
			t.Errorf("ExportName(greet, %v) = %q, want %q", c.sharing, got, c.want)
		}
	}
}

func TestCompileActorSkipsUnexposedFields(t *testing.T) {
	env := newTestModuleEnvWithHostImports()

	fields := []ir.ActorFieldInit{
		{Name: "hidden", Exposed: false},
	}
	called := false
	err := CompileActor(env, fields, nil, func(fb *FuncBuilder, body *ir.Expr) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("CompileActor: %v", err)
	}
	if called {
		t.Error("CompileActor must not compile unexposed fields")
	}
}

func TestCompileActorExportsPublicMethod(t *testing.T) {
	env := newTestModuleEnvWithHostImports()

	fields := []ir.ActorFieldInit{
		{Name: "greet", Exposed: true, Sharing: ir.SharingUpdate, Value: &ir.Expr{Kind: ir.ExprFunc, FuncBody: &ir.Expr{Kind: ir.ExprLit}}},
	}
	err := CompileActor(env, fields, nil, func(fb *FuncBuilder, body *ir.Expr) error {
		return nil
	})
	if err != nil {
		t.Fatalf("CompileActor: %v", err)
	}
}

func TestErrorValueTagsSystemOrigin(t *testing.T) {
	env := newTestModuleEnvWithHostImports()
	fb := NewFuncBuilder(env, "$t", 1, 1, false)
	code := fb.Fn.AddLocal(0x7f, "$code")

	before := len(fb.W.Buf)
	if err := ErrorValue(fb, true, code, "boom"); err != nil {
		t.Fatalf("ErrorValue: %v", err)
	}
	if len(fb.W.Buf) == before {
		t.Error("ErrorValue should emit tuple and variant construction code")
	}
}

func newTestModuleEnvWithHostImports() *ModuleEnv {
	env := NewModuleEnv()
	env.AddFuncImport("ic0", "trap", []byte{0x7f, 0x7f}, nil)
	env.AddFuncImport("ic0", "msg_arg_data_size", nil, []byte{0x7f})
	env.AddFuncImport("ic0", "msg_arg_data_copy", []byte{0x7f, 0x7f, 0x7f}, nil)
	env.AddFuncImport("ic0", "call_simple", []byte{0x7f, 0x7f, 0x7f, 0x7f, 0x7f}, []byte{0x7f})
	env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, 0)
	env.SetHeap(hl)
	return env
}
