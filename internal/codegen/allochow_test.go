package codegen

import (
	"testing"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

func TestJoinHowPrefersMoreExpensive(t *testing.T) {
	cases := []struct {
		a, b, want How
	}{
		{HowAbsent, HowLocalImmut, HowLocalImmut},
		{HowLocalMut, HowStoreHeap, HowStoreHeap},
		{HowStoreStatic, HowAbsent, HowStoreStatic},
		{HowLocalImmut, HowLocalImmut, HowLocalImmut},
	}
	for _, c := range cases {
		if got := JoinHow(c.a, c.b); got != c.want {
			t.Errorf("JoinHow(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestConvergeUncapturedFuncIsAbsent(t *testing.T) {
	decls := []*ir.Decl{
		{Kind: ir.DeclFunc, Name: "f", Value: &ir.Expr{Kind: ir.ExprFunc, FuncBody: &ir.Expr{Kind: ir.ExprLit}}},
	}
	a := NewAnalysis()
	a.Converge(decls, false)
	if a.How["f"] != HowAbsent {
		t.Errorf("uncaptured top-level function How = %v, want HowAbsent", a.How["f"])
	}
}

func TestConvergeCapturedVarNeedsHeap(t *testing.T) {
	decls := []*ir.Decl{
		{Kind: ir.DeclVar, Name: "counter", Value: &ir.Expr{Kind: ir.ExprLit}},
		{
			Kind: ir.DeclFunc,
			Name: "bump",
			Value: &ir.Expr{
				Kind: ir.ExprFunc,
				FuncBody: &ir.Expr{
					Kind: ir.ExprVar,
					Name: "counter",
				},
			},
		},
	}
	a := NewAnalysis()
	a.Converge(decls, false)
	if !a.Captured["counter"] {
		t.Fatal("counter should be detected as captured by the bump closure")
	}
	if a.How["counter"] != HowStoreHeap {
		t.Errorf("captured var How = %v, want HowStoreHeap", a.How["counter"])
	}
}

func TestConvergeActorLevelAlwaysStatic(t *testing.T) {
	decls := []*ir.Decl{
		{Kind: ir.DeclLet, Name: "x", Value: &ir.Expr{Kind: ir.ExprLit}},
	}
	a := NewAnalysis()
	a.Converge(decls, true)
	if a.How["x"] != HowStoreStatic {
		t.Errorf("actor-level decl How = %v, want HowStoreStatic", a.How["x"])
	}
}

func TestConvergeUncapturedVarIsLocalMut(t *testing.T) {
	decls := []*ir.Decl{
		{Kind: ir.DeclVar, Name: "i", Value: &ir.Expr{Kind: ir.ExprLit}},
	}
	a := NewAnalysis()
	a.Converge(decls, false)
	if a.How["i"] != HowLocalMut {
		t.Errorf("uncaptured var How = %v, want HowLocalMut", a.How["i"])
	}
}
