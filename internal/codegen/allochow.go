package codegen

import "github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"

// AllocHow decides, for each declaration in a block, how its storage
// will be realized (spec §4.7): a plain wasm local (LocalImmut), a
// mutable wasm local (LocalMut) when no inner closure captures it, a
// heap-boxed MutBox reached through a local pointer (StoreHeap) when a
// nested closure captures a `var`, or static memory (StoreStatic) for
// actor-level fields that outlive any single message. A function
// declaration that no closure in the group captures gets "absent"; its
// own free variables are not examined. The driver does not consult
// "absent": such a function is still built as a closure in a local, and
// its calls do not resolve to StaticFun.
type How int

const (
	HowAbsent How = iota
	HowLocalImmut
	HowLocalMut
	HowStoreHeap
	HowStoreStatic
)

// howRank orders Hows from cheapest to most expensive, for the join
// rule below (spec §4.7 "join prefers the more expensive allocation
// whenever declarations in different branches disagree").
func howRank(h How) int {
	switch h {
	case HowAbsent:
		return 0
	case HowLocalImmut:
		return 1
	case HowLocalMut:
		return 2
	case HowStoreHeap:
		return 3
	case HowStoreStatic:
		return 4
	default:
		return 0
	}
}

// JoinHow combines the Hows two branches independently computed for the
// same declaration name, preferring the more expensive allocation.
func JoinHow(a, b How) How {
	if howRank(a) >= howRank(b) {
		return a
	}
	return b
}

// Analysis is the fixed-point result of AllocHow over one function or
// actor body: a mapping from declaration name to its chosen How,
// together with the set of names captured by at least one nested
// function literal (these can never be HowLocalImmut once captured by a
// `var`-mutating closure, forcing HowStoreHeap).
type Analysis struct {
	How      map[string]How
	Captured map[string]bool
}

// NewAnalysis starts an empty fixed-point state.
func NewAnalysis() *Analysis {
	return &Analysis{How: map[string]How{}, Captured: map[string]bool{}}
}

// Converge runs the AllocHow fixed-point computation over decls: each
// pass re-derives every declaration's How from the current Captured set
// and the declaration's own Kind/mutability, then recomputes Captured
// from which names appear free inside any ExprFunc; iteration stops once
// neither map changes (spec §4.7 "AllocHow is a fixed point because
// capture analysis and allocation choice are mutually dependent").
func (a *Analysis) Converge(decls []*ir.Decl, isActorLevel bool) {
	for {
		changed := a.stepCapture(decls)
		changed = a.stepHow(decls, isActorLevel) || changed
		if !changed {
			return
		}
	}
}

// stepCapture recomputes the Captured set from the current decl list,
// returning whether it changed from the previous iteration.
func (a *Analysis) stepCapture(decls []*ir.Decl) bool {
	newCaptured := map[string]bool{}
	for _, d := range decls {
		collectFreeVarsInClosures(d.Value, newCaptured)
	}
	changed := len(newCaptured) != len(a.Captured)
	if !changed {
		for k := range newCaptured {
			if !a.Captured[k] {
				changed = true
				break
			}
		}
	}
	a.Captured = newCaptured
	return changed
}

// stepHow recomputes each declaration's How given the current Captured
// set, returning whether any entry changed.
func (a *Analysis) stepHow(decls []*ir.Decl, isActorLevel bool) bool {
	changed := false
	for _, d := range decls {
		var want How
		switch {
		case isActorLevel:
			want = HowStoreStatic
		case d.Kind == ir.DeclFunc && !a.Captured[d.Name]:
			want = HowAbsent
		case d.Kind == ir.DeclVar && a.Captured[d.Name]:
			want = HowStoreHeap
		case d.Kind == ir.DeclVar:
			want = HowLocalMut
		default:
			want = HowLocalImmut
		}
		prev, ok := a.How[d.Name]
		joined := want
		if ok {
			joined = JoinHow(prev, want)
		}
		if joined != prev {
			changed = true
		}
		a.How[d.Name] = joined
	}
	return changed
}

// collectFreeVarsInClosures walks e looking for ExprFunc literals and
// records every name referenced inside one that isn't one of that
// literal's own parameters or nested declarations — a coarse but sound
// over-approximation of free-variable capture (spec §4.7 names this the
// "capture analysis" companion to AllocHow; exact scoping is the front
// end's job, this pass only needs a conservative superset).
func collectFreeVarsInClosures(e *ir.Expr, out map[string]bool) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ir.ExprFunc:
		bound := map[string]bool{}
		for _, p := range e.FuncParams {
			bound[p.Name] = true
		}
		collectAllVars(e.FuncBody, bound, out)
	case ir.ExprBlock:
		for _, d := range e.Decls {
			collectFreeVarsInClosures(d.Value, out)
		}
		collectFreeVarsInClosures(e.Result, out)
	case ir.ExprIf:
		collectFreeVarsInClosures(e.Cond, out)
		collectFreeVarsInClosures(e.Then, out)
		collectFreeVarsInClosures(e.Else, out)
	case ir.ExprSwitch:
		collectFreeVarsInClosures(e.Scrutinee, out)
		for _, c := range e.Cases {
			collectFreeVarsInClosures(c.Body, out)
		}
	case ir.ExprLoop, ir.ExprLabel:
		collectFreeVarsInClosures(e.Body, out)
	case ir.ExprPrim, ir.ExprArray, ir.ExprTuple:
		for _, a := range e.Args {
			collectFreeVarsInClosures(a, out)
		}
		for _, el := range e.Elems {
			collectFreeVarsInClosures(el, out)
		}
	case ir.ExprCall:
		collectFreeVarsInClosures(e.Callee, out)
		for _, a := range e.CallArgs {
			collectFreeVarsInClosures(a, out)
		}
	case ir.ExprObject:
		for _, f := range e.Fields {
			collectFreeVarsInClosures(f.Value, out)
		}
	case ir.ExprDot:
		collectFreeVarsInClosures(e.Base, out)
	case ir.ExprIdx:
		collectFreeVarsInClosures(e.Base, out)
		collectFreeVarsInClosures(e.Index, out)
	case ir.ExprAssign:
		collectFreeVarsInClosures(e.LHS, out)
		collectFreeVarsInClosures(e.RHS, out)
	case ir.ExprIgnore, ir.ExprAnnot, ir.ExprBreak:
		collectFreeVarsInClosures(e.Body, out)
	}
}

// collectAllVars walks e (the body of a function literal) collecting
// every ExprVar name not in bound.
func collectAllVars(e *ir.Expr, bound map[string]bool, out map[string]bool) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ir.ExprVar:
		if !bound[e.Name] {
			out[e.Name] = true
		}
	case ir.ExprFunc:
		inner := map[string]bool{}
		for k := range bound {
			inner[k] = true
		}
		for _, p := range e.FuncParams {
			inner[p.Name] = true
		}
		collectAllVars(e.FuncBody, inner, out)
	case ir.ExprBlock:
		inner := map[string]bool{}
		for k := range bound {
			inner[k] = true
		}
		for _, d := range e.Decls {
			collectAllVars(d.Value, inner, out)
			inner[d.Name] = true
		}
		collectAllVars(e.Result, inner, out)
	case ir.ExprIf:
		collectAllVars(e.Cond, bound, out)
		collectAllVars(e.Then, bound, out)
		collectAllVars(e.Else, bound, out)
	case ir.ExprSwitch:
		collectAllVars(e.Scrutinee, bound, out)
		for _, c := range e.Cases {
			collectAllVars(c.Body, bound, out)
		}
	case ir.ExprLoop, ir.ExprLabel:
		collectAllVars(e.Body, bound, out)
	case ir.ExprPrim:
		for _, a := range e.Args {
			collectAllVars(a, bound, out)
		}
	case ir.ExprArray, ir.ExprTuple:
		for _, el := range e.Elems {
			collectAllVars(el, bound, out)
		}
	case ir.ExprCall:
		collectAllVars(e.Callee, bound, out)
		for _, a := range e.CallArgs {
			collectAllVars(a, bound, out)
		}
	case ir.ExprObject:
		for _, f := range e.Fields {
			collectAllVars(f.Value, bound, out)
		}
	case ir.ExprDot:
		collectAllVars(e.Base, bound, out)
	case ir.ExprIdx:
		collectAllVars(e.Base, bound, out)
		collectAllVars(e.Index, bound, out)
	case ir.ExprAssign:
		collectAllVars(e.LHS, bound, out)
		collectAllVars(e.RHS, bound, out)
	case ir.ExprIgnore, ir.ExprAnnot, ir.ExprBreak:
		collectAllVars(e.Body, bound, out)
	}
}
