package codegen

import "testing"

func TestBindShadowsWithoutMutatingParent(t *testing.T) {
	parent := NewVarEnv()
	child := parent.Bind("x", Location{Kind: LocLocal, LocalIdx: 1})

	if _, ok := parent.Lookup("x"); ok {
		t.Error("Bind must not mutate the parent environment")
	}
	loc, ok := child.Lookup("x")
	if !ok || loc.LocalIdx != 1 {
		t.Errorf("child.Lookup(x) = %v, %v", loc, ok)
	}
}

func TestFunctionBoundaryDropsLocalsKeepsStatics(t *testing.T) {
	env := NewVarEnv().
		Bind("local1", Location{Kind: LocLocal}).
		Bind("heapind1", Location{Kind: LocHeapInd}).
		Bind("static1", Location{Kind: LocStatic})

	after := env.FunctionBoundary()
	if _, ok := after.Lookup("local1"); ok {
		t.Error("FunctionBoundary should drop LocLocal bindings")
	}
	if _, ok := after.Lookup("heapind1"); ok {
		t.Error("FunctionBoundary should drop LocHeapInd bindings")
	}
	if _, ok := after.Lookup("static1"); !ok {
		t.Error("FunctionBoundary should preserve LocStatic bindings")
	}
}

func TestEnterBlockIncreasesDepthAndBranchDepth(t *testing.T) {
	env := NewVarEnv()
	inner := env.EnterBlock("loop1")
	lh, ok := inner.LookupLabel("loop1")
	if !ok {
		t.Fatal("label not found after EnterBlock")
	}
	deeper := inner.EnterBlock("")
	deeper = deeper.EnterBlock("")
	if got := deeper.BranchDepth(lh); got != 2 {
		t.Errorf("BranchDepth after two more nested blocks = %d, want 2", got)
	}
}

func TestLocationIsLocal(t *testing.T) {
	cases := []struct {
		loc  Location
		want bool
	}{
		{Location{Kind: LocLocal}, true},
		{Location{Kind: LocHeapInd}, true},
		{Location{Kind: LocStatic}, false},
		{Location{Kind: LocDeferred, IsLocalFlag: true}, true},
		{Location{Kind: LocDeferred, IsLocalFlag: false}, false},
	}
	for _, c := range cases {
		if got := c.loc.IsLocal(); got != c.want {
			t.Errorf("Location{%v}.IsLocal() = %v, want %v", c.loc.Kind, got, c.want)
		}
	}
}
