package codegen

import (
	"fmt"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

// Pattern compilation (spec §4.6). A pattern compiles to one of two
// shapes: CannotFail, which just binds variables and falls through, or
// CanFail, which additionally emits a runtime test and branches to a
// failure continuation on mismatch. Composing two CanFail patterns
// (tuple elements, sequential alternation) chains their failure
// branches; OrTrap turns a CanFail pattern into a CannotFail one by
// making the failure branch an unconditional trap (used for `let`
// patterns that the type checker has already proven exhaustive).

// MatchResult is the outcome of compiling a pattern: CanFail reports
// whether a runtime test was emitted, and Bindings carries the
// VarEnv produced by binding the pattern's identifiers once matched.
type MatchResult struct {
	CanFail  bool
	Bindings *VarEnv
}

// CompilePattern compiles pat against a scrutinee already on the stack,
// binding identifiers into vars and branching failDepth levels out (a
// `br` target) if the match fails. CannotFail patterns (Wild, Var,
// Tuple/Object of only CannotFail subpatterns) ignore failDepth
// entirely — no branch is ever emitted for them.
func CompilePattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	switch pat.Kind {
	case ir.PatWild:
		fb.W.Drop()
		return MatchResult{Bindings: vars}, nil

	case ir.PatVar:
		loc := fb.bindScrutineeToLocal(pat.Name)
		return MatchResult{Bindings: vars.Bind(pat.Name, loc)}, nil

	case ir.PatAnnot:
		return CompilePattern(fb, pat.Sub, vars, failDepth)

	case ir.PatLit:
		return compileLitPattern(fb, pat, vars, failDepth)

	case ir.PatOption:
		return compileOptionPattern(fb, pat, vars, failDepth)

	case ir.PatTag:
		return compileTagPattern(fb, pat, vars, failDepth)

	case ir.PatTuple:
		return compileTuplePattern(fb, pat, vars, failDepth)

	case ir.PatObject:
		return compileObjectPattern(fb, pat, vars, failDepth)

	case ir.PatAlt:
		return compileAltPattern(fb, pat, vars, failDepth)

	default:
		return MatchResult{}, fmt.Errorf("codegen: unknown pattern kind %d", pat.Kind)
	}
}

// bindScrutineeToLocal stashes the current stack top into a fresh local
// and returns a Location referring to it.
func (fb *FuncBuilder) bindScrutineeToLocal(name string) Location {
	local := fb.Fn.AddLocal(wasm.TypeI32, "$pat_"+name)
	fb.W.LocalSet(local)
	return Location{Kind: LocLocal, LocalIdx: local}
}

func compileLitPattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	w := fb.W
	switch {
	case pat.LitIsNull:
		w.I32Const(ScalarNull)
	case pat.Type != nil && pat.Type.Kind == ir.KindBool:
		if pat.LitBool {
			w.I32Const(ScalarTrue)
		} else {
			w.I32Const(ScalarFalse)
		}
	default:
		w.I64Const(int64(pat.LitNat))
		w.I64Const(CompactShift)
		w.Op(wasm.OpI64Shl)
		w.I32WrapI64()
	}
	w.Op(wasm.OpI32Eq)
	w.Op(wasm.OpI32Eqz)
	w.BrIf(failDepth)
	return MatchResult{CanFail: true, Bindings: vars}, nil
}

func compileOptionPattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	w := fb.W
	scrut := fb.Fn.AddLocal(wasm.TypeI32, "$pat_opt_scrut")
	w.LocalSet(scrut)

	w.LocalGet(scrut)
	EmitIsNull(fb)
	w.BrIf(failDepth)

	w.LocalGet(scrut)
	EmitSomePayload(fb)
	return CompilePattern(fb, pat.Sub, vars, failDepth)
}

func compileTagPattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	w := fb.W
	scrut := fb.Fn.AddLocal(wasm.TypeI32, "$pat_tag_scrut")
	w.LocalSet(scrut)

	w.LocalGet(scrut)
	EmitVariantTagHash(fb)
	w.I32Const(int32(FieldHash(pat.Tag)))
	w.Op(wasm.OpI32Ne)
	w.BrIf(failDepth)

	if pat.Payload == nil {
		return MatchResult{CanFail: true, Bindings: vars}, nil
	}
	w.LocalGet(scrut)
	EmitVariantPayload(fb)
	return CompilePattern(fb, pat.Payload, vars, failDepth)
}

func compileTuplePattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	w := fb.W
	n := len(pat.Elems)
	locals := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		locals[i] = fb.Fn.AddLocal(wasm.TypeI32, "$pat_tup_elem")
		w.LocalSet(locals[i])
	}
	canFail := false
	for i, sub := range pat.Elems {
		w.LocalGet(locals[i])
		r, err := CompilePattern(fb, sub, vars, failDepth)
		if err != nil {
			return MatchResult{}, err
		}
		vars = r.Bindings
		canFail = canFail || r.CanFail
	}
	return MatchResult{CanFail: canFail, Bindings: vars}, nil
}

func compileObjectPattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	w := fb.W
	obj := fb.Fn.AddLocal(wasm.TypeI32, "$pat_obj_scrut")
	w.LocalSet(obj)

	canFail := false
	for _, of := range pat.ObjFields {
		w.LocalGet(obj)
		if err := EmitObjectFieldGet(fb, of.Name, false); err != nil {
			return MatchResult{}, err
		}
		r, err := CompilePattern(fb, of.Pat, vars, failDepth)
		if err != nil {
			return MatchResult{}, err
		}
		vars = r.Bindings
		canFail = canFail || r.CanFail
	}
	return MatchResult{CanFail: canFail, Bindings: vars}, nil
}

// compileAltPattern compiles `pat1 or pat2` (spec §4.6): since alt arms
// may not bind identifiers (enforced by the caller checking
// BindsIdentifiers before reaching here), both arms share the same
// failure continuation structure — try the left arm; on failure,
// restore the scrutinee and try the right arm; only if both fail do we
// branch out to failDepth.
func compileAltPattern(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, failDepth uint32) (MatchResult, error) {
	if pat.Left.BindsIdentifiers() || pat.Right.BindsIdentifiers() {
		return MatchResult{}, fmt.Errorf("codegen: alternation pattern arms may not bind identifiers")
	}
	w := fb.W
	scrut := fb.Fn.AddLocal(wasm.TypeI32, "$pat_alt_scrut")
	w.LocalSet(scrut)

	w.Block(wasm.TypeBlockVoid) // matched
	w.Block(wasm.TypeBlockVoid) // left-failed
	w.LocalGet(scrut)
	if _, err := CompilePattern(fb, pat.Left, vars, 0); err != nil {
		return MatchResult{}, err
	}
	w.Br(1)
	w.End() // left-failed target
	w.LocalGet(scrut)
	// Only the "matched" block is still open here ("left-failed" was
	// just closed above), one level deeper than the nesting failDepth
	// was measured against at compileAltPattern's own call site.
	if _, err := CompilePattern(fb, pat.Right, vars, failDepth+1); err != nil {
		return MatchResult{}, err
	}
	w.End() // matched

	return MatchResult{CanFail: true, Bindings: vars}, nil
}

// OrTrap wraps a CanFail pattern's failure branch with an unconditional
// trap, producing a CannotFail compile suitable for `let`/function
// parameter patterns the type checker has already proven exhaustive
// (spec §4.6 "OrTrap composition").
func OrTrap(fb *FuncBuilder, pat *ir.Pattern, vars *VarEnv, msg string) (*VarEnv, error) {
	w := fb.W
	scrut := fb.Fn.AddLocal(wasm.TypeI32, "$ortrap_scrut")
	w.LocalSet(scrut)
	w.Block(wasm.TypeBlockVoid) // matched
	w.Block(wasm.TypeBlockVoid) // failed
	w.LocalGet(scrut)
	r, err := CompilePattern(fb, pat, vars, 0)
	if err != nil {
		return nil, err
	}
	w.Br(1)
	w.End() // failed target
	if r.CanFail {
		EmitTrap(fb, msg)
	}
	w.End() // matched
	return r.Bindings, nil
}
