package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

func TestCompileLitBoolAndNull(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)

	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: true}); err != nil {
		t.Fatalf("CompileExpr bool literal: %v", err)
	}
	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNull}}); err != nil {
		t.Fatalf("CompileExpr null literal: %v", err)
	}
}

func TestCompileLitSmallNat(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)
	before := len(fb.W.Buf)
	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 42}); err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if len(fb.W.Buf) == before {
		t.Error("compiling an integer literal should emit code")
	}
}

func TestCompileVarUnbound(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)
	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprVar, Name: "nope"}); err == nil {
		t.Error("referencing an unbound variable must error")
	}
}

func TestCompileVarLocal(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 1, 1, false)
	fb.Vars = fb.Vars.Bind("x", Location{Kind: LocLocal, LocalIdx: 0})
	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprVar, Name: "x"}); err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
}

func TestCompileIfBothBranches(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)
	e := &ir.Expr{
		Kind: ir.ExprIf,
		Cond: &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindBool}, LitBool: true},
		Then: &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 1},
		Else: &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 2},
	}
	if err := c.CompileExpr(fb, e); err != nil {
		t.Fatalf("CompileExpr if: %v", err)
	}
}

func TestCompileArithAdd(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)
	e := &ir.Expr{
		Kind: ir.ExprPrim,
		Op:   ir.OpAdd,
		Args: []*ir.Expr{
			{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 1},
			{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 2},
		},
	}
	if err := c.CompileExpr(fb, e); err != nil {
		t.Fatalf("CompileExpr add: %v", err)
	}
}

func TestCompileIgnoreDropsValue(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 0, false)
	e := &ir.Expr{Kind: ir.ExprIgnore, Body: &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 1}}
	if err := c.CompileExpr(fb, e); err != nil {
		t.Fatalf("CompileExpr ignore: %v", err)
	}
}

func TestCompileBlockBoxesCapturedVar(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 1, false)
	e := &ir.Expr{
		Kind: ir.ExprBlock,
		Decls: []*ir.Decl{
			{Kind: ir.DeclVar, Name: "counter", Value: &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 0}},
			{Kind: ir.DeclFunc, Name: "bump", Value: &ir.Expr{
				Kind:     ir.ExprFunc,
				FuncBody: &ir.Expr{Kind: ir.ExprVar, Name: "counter"},
			}},
		},
		Result: &ir.Expr{Kind: ir.ExprVar, Name: "counter"},
	}
	if err := c.CompileExpr(fb, e); err != nil {
		t.Fatalf("CompileExpr block: %v", err)
	}
}

func TestCompileAssignToUnboundVarErrors(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 0, false)
	e := &ir.Expr{
		Kind: ir.ExprAssign,
		LHS:  &ir.Expr{Kind: ir.ExprVar, Name: "nope"},
		RHS:  &ir.Expr{Kind: ir.ExprLit, Type: &ir.Type{Kind: ir.KindNat}, LitNat: 1},
	}
	if err := c.CompileExpr(fb, e); err == nil {
		t.Error("assigning to an unbound variable must error")
	}
}

func TestCompileUnsupportedExprKindErrors(t *testing.T) {
	c := NewCompiler()
	fb := NewFuncBuilder(c.Env, "$t", 0, 0, false)
	if err := c.CompileExpr(fb, &ir.Expr{Kind: ir.ExprKind(9999)}); err == nil {
		t.Error("an unrecognized expression kind must error rather than silently compiling")
	}
}
