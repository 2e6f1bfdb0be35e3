package codegen

import (
	"fmt"
	"sort"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// Compiler holds the module-wide state of one compile: the module under
// construction with its imports, the heap layout and the collector
// layout. NewCompilerWithSemispace sets these up and CompileExpr lowers
// expressions; cmd/motokoc runs the pipeline (CompileActor over the
// actor fields, then Env.Finish and Encode).
type Compiler struct {
	Env *ModuleEnv
	HL  *HeapLayout
	GC  *GCLayout

	funcTypeIdx uint32 // shared closure-call signature: (i32) -> (i32)
}

// defaultSemispaceWords sizes each of the collector's two semispaces
// when the caller (e.g. motokoc's CLI) doesn't size memory explicitly.
const defaultSemispaceWords = 1 << 14

// NewCompiler declares the fixed set of RTS and host imports (spec
// §6.1, §6.2) before any non-import function can be registered, then
// installs the heap layout at the resulting end-of-static-memory. It
// is a convenience wrapper over NewCompilerWithSemispace using a
// default semispace size.
func NewCompiler() *Compiler {
	return NewCompilerWithSemispace(defaultSemispaceWords)
}

// NewCompilerWithSemispace is NewCompiler with an explicit semispace
// size (in words), so a driver such as motokoc's -semispace-words flag
// can size the copying collector's two semispaces.
func NewCompilerWithSemispace(semispaceWords int32) *Compiler {
	env := NewModuleEnv()
	declareRTSImports(env)
	declareHostImports(env)

	heapBase := env.GetEndOfStaticMemory()
	hl := NewHeapLayout(env, heapBase)
	env.SetHeap(hl)

	gc := NewGCLayout(env, heapBase, semispaceWords)
	env.BuiltIn(gcCollectBuiltinName, nil, nil, BuildCollectorBody(env, gc, hl, nil))

	c := &Compiler{Env: env, HL: hl, GC: gc}
	c.funcTypeIdx = uint32(env.FuncType([]byte{wasm.TypeI32}, []byte{wasm.TypeI32}))
	return c
}

// declareRTSImports registers the external bignum/text runtime support
// library's entry points (spec §6.1) that numerics.go and values.go
// call into on their slow paths.
func declareRTSImports(env *ModuleEnv) {
	i32, i64 := []byte{wasm.TypeI32}, []byte{wasm.TypeI64}
	env.AddFuncImport("rts", "bigint_of_word64_signed", i64, i32)
	env.AddFuncImport("rts", "bigint_add", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_sub", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_mul", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_div", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_rem", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_pow", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_to_word64_signed", i32, i64)
	env.AddFuncImport("rts", "bigint_eq", []byte{wasm.TypeI32, wasm.TypeI32}, i32)
	env.AddFuncImport("rts", "bigint_lt", []byte{wasm.TypeI32, wasm.TypeI32}, i32)

	// Closure-table bookkeeping backing async continuations (spec §4.8
	// "Shared/remote call", §4.10 GC root set): remember_closure stashes
	// a closure pointer and returns a stable handle for call_simple's
	// callback argument; recall_closure is its counterpart on message
	// reentry; closure_table_loc/closure_table_size let the collector
	// walk every live slot as a root.
	env.AddFuncImport("rts", "remember_closure", i32, i32)
	env.AddFuncImport("rts", "recall_closure", i32, i32)
	env.AddFuncImport("rts", "closure_table_loc", nil, i32)
	env.AddFuncImport("rts", "closure_table_size", nil, i32)
	env.AddFuncImport("rts", "closure_count", nil, i32)
}

// gcCollectBuiltinName is the builtin registered once per module by
// NewCompilerWithSemispace and invoked by actor.go after every
// write-mode message (spec §4.11).
const gcCollectBuiltinName = "__gc_collect"

// declareHostImports registers the canister system API calls (spec
// §6.2) that actor.go and numerics.go's trap path reach for.
func declareHostImports(env *ModuleEnv) {
	i32 := []byte{wasm.TypeI32}
	none := []byte{}
	env.AddFuncImport("ic0", "trap", []byte{wasm.TypeI32, wasm.TypeI32}, none)
	env.AddFuncImport("ic0", "msg_arg_data_size", none, i32)
	env.AddFuncImport("ic0", "msg_arg_data_copy", []byte{wasm.TypeI32, wasm.TypeI32, wasm.TypeI32}, none)
	env.AddFuncImport("ic0", "msg_reply", none, none)
	env.AddFuncImport("ic0", "msg_reply_data_append", []byte{wasm.TypeI32, wasm.TypeI32}, none)
	env.AddFuncImport("ic0", "msg_reject", []byte{wasm.TypeI32, wasm.TypeI32}, none)
	env.AddFuncImport("ic0", "call_simple", []byte{
		wasm.TypeI32, wasm.TypeI32, wasm.TypeI32, wasm.TypeI32, wasm.TypeI32, wasm.TypeI32,
	}, i32)
}

// CompileExpr compiles e, leaving its value on the stack in Vanilla
// representation unless a more specific representation is requested by
// the caller via Adjust afterward (spec §4.2's "codegen targets Vanilla
// by default, narrowing only where StackRep analysis has already
// proven it safe" — this driver keeps things simple and always targets
// Vanilla; it does not perform that narrowing).
func (c *Compiler) CompileExpr(fb *FuncBuilder, e *ir.Expr) error {
	w := fb.W
	switch e.Kind {
	case ir.ExprLit:
		return c.compileLit(fb, e)

	case ir.ExprVar:
		loc, ok := fb.Vars.Lookup(e.Name)
		if !ok {
			return fmt.Errorf("codegen: unbound variable %q", e.Name)
		}
		return c.emitLoadLocation(fb, loc)

	case ir.ExprPrim:
		return c.compilePrim(fb, e)

	case ir.ExprCall:
		return c.compileCall(fb, e)

	case ir.ExprFunc:
		return c.compileFuncLiteral(fb, e)

	case ir.ExprBlock:
		return c.compileBlock(fb, e)

	case ir.ExprIf:
		return c.compileIf(fb, e)

	case ir.ExprSwitch:
		return c.compileSwitch(fb, e)

	case ir.ExprLoop:
		return c.compileLoop(fb, e)

	case ir.ExprLabel:
		return c.compileLabel(fb, e)

	case ir.ExprBreak:
		lh, ok := fb.Vars.LookupLabel(e.Label)
		if !ok {
			return fmt.Errorf("codegen: unbound label %q", e.Label)
		}
		if e.Body != nil {
			if err := c.CompileExpr(fb, e.Body); err != nil {
				return err
			}
		}
		w.Br(fb.Vars.BranchDepth(lh))
		return nil

	case ir.ExprObject:
		return c.compileObjectLit(fb, e)

	case ir.ExprArray, ir.ExprTuple:
		for _, el := range e.Elems {
			if err := c.CompileExpr(fb, el); err != nil {
				return err
			}
		}
		return EmitTupleToVanilla(fb, len(e.Elems))

	case ir.ExprDot:
		if err := c.CompileExpr(fb, e.Base); err != nil {
			return err
		}
		return EmitObjectFieldGet(fb, e.FieldName, fieldIsMutable(e.Base.Type, e.FieldName))

	case ir.ExprIdx:
		if err := c.CompileExpr(fb, e.Base); err != nil {
			return err
		}
		if err := c.CompileExpr(fb, e.Index); err != nil {
			return err
		}
		return EmitArrayIndex(fb)

	case ir.ExprAssign:
		return c.compileAssign(fb, e)

	case ir.ExprAsyncCall:
		return EmitAsyncCallLowering(fb, e, c.CompileExpr)

	case ir.ExprIgnore:
		if err := c.CompileExpr(fb, e.Body); err != nil {
			return err
		}
		w.Drop()
		return nil

	case ir.ExprAnnot:
		return c.CompileExpr(fb, e.Body)

	default:
		return fmt.Errorf("codegen: expression kind %d not yet lowered by this driver", e.Kind)
	}
}

func fieldIsMutable(t *ir.Type, name string) bool {
	if t == nil {
		return false
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Mutable
		}
	}
	return false
}

func (c *Compiler) emitLoadLocation(fb *FuncBuilder, loc Location) error {
	w := fb.W
	switch loc.Kind {
	case LocLocal:
		w.LocalGet(loc.LocalIdx)
		return nil
	case LocHeapInd:
		w.LocalGet(loc.LocalIdx)
		EmitMutBoxGet(fb)
		return nil
	case LocStatic:
		w.I32Const(loc.StaticPtr)
		return nil
	case LocDeferred:
		return loc.Materialize(fb)
	default:
		return fmt.Errorf("codegen: unknown location kind %d", loc.Kind)
	}
}

func (c *Compiler) compileLit(fb *FuncBuilder, e *ir.Expr) error {
	w := fb.W
	switch e.Type.Kind {
	case ir.KindBool:
		if e.LitBool {
			w.I32Const(ScalarTrue)
		} else {
			w.I32Const(ScalarFalse)
		}
	case ir.KindNull:
		w.I32Const(ScalarNull)
	case ir.KindText, ir.KindBlob:
		return EmitBlobLiteral(fb, []byte(e.LitText))
	case ir.KindChar:
		w.I32Const(EncodeChar(uint32(e.LitNat)))
	default:
		if e.LitIsBig {
			return fmt.Errorf("codegen: big literal constants require decimal-string RTS construction, not yet wired")
		}
		EmitConstInt(fb, int64(e.LitNat))
	}
	return nil
}

func (c *Compiler) compilePrim(fb *FuncBuilder, e *ir.Expr) error {
	for _, a := range e.Args {
		if err := c.CompileExpr(fb, a); err != nil {
			return err
		}
	}
	w := fb.W
	switch e.Op {
	case ir.OpConcat:
		return EmitTextConcat(fb)
	case ir.OpArrayLen:
		EmitArrayLen(fb)
		return nil
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpPow:
		return c.compileArithPrim(fb, e)
	case ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return c.compileCompare(fb, e)
	case ir.OpNot:
		w.I32Const(1)
		w.Op(wasm.OpI32Xor)
		return nil
	case ir.OpNeg:
		operand := fb.Fn.AddLocal(wasm.TypeI32, "$neg_operand")
		w.LocalSet(operand)
		zero := fb.Fn.AddLocal(wasm.TypeI32, "$neg_zero")
		w.I32Const(0)
		w.LocalSet(zero)
		EmitCompactBinOp(fb, NumSub, zero, operand, false)
		return nil
	default:
		return fmt.Errorf("codegen: primop %d not yet lowered", e.Op)
	}
}

func (c *Compiler) compileArithPrim(fb *FuncBuilder, e *ir.Expr) error {
	w := fb.W
	rhs := fb.Fn.AddLocal(wasm.TypeI32, "$arith_rhs")
	lhs := fb.Fn.AddLocal(wasm.TypeI32, "$arith_lhs")
	w.LocalSet(rhs)
	w.LocalSet(lhs)

	var op BinOp
	switch e.Op {
	case ir.OpAdd:
		op = NumAdd
	case ir.OpSub:
		op = NumSub
	case ir.OpMul:
		op = NumMul
	case ir.OpDiv:
		op = NumDiv
	case ir.OpMod:
		op = NumMod
	case ir.OpPow:
		op = NumPow
	}
	EmitCompactBinOp(fb, op, lhs, rhs, true)
	return nil
}

func (c *Compiler) compileCompare(fb *FuncBuilder, e *ir.Expr) error {
	w := fb.W
	var cmp byte
	switch e.Op {
	case ir.OpEq:
		cmp = wasm.OpI32Eq
	case ir.OpNeq:
		cmp = wasm.OpI32Ne
	case ir.OpLt:
		cmp = wasm.OpI32LtS
	case ir.OpLe:
		cmp = wasm.OpI32LeS
	case ir.OpGt:
		cmp = wasm.OpI32GtS
	case ir.OpGe:
		cmp = wasm.OpI32GeS
	}
	w.Op(cmp)
	return nil
}

func (c *Compiler) compileCall(fb *FuncBuilder, e *ir.Expr) error {
	for _, a := range e.CallArgs {
		if err := c.CompileExpr(fb, a); err != nil {
			return err
		}
	}
	if e.Callee.Kind == ir.ExprVar {
		if loc, ok := fb.Vars.Lookup(e.Callee.Name); ok && loc.Kind == LocDeferred && loc.Rep.Kind == RepStaticThing && loc.Rep.Static.Kind == StaticFun {
			EmitDirectCall(fb, loc.Rep.Static.FuncIdx)
			return nil
		}
	}
	if err := c.CompileExpr(fb, e.Callee); err != nil {
		return err
	}
	closLocal := fb.Fn.AddLocal(wasm.TypeI32, "$call_clos")
	fb.W.LocalSet(closLocal)
	EmitCallClosure(fb, closLocal, c.funcTypeIdx)
	return nil
}

// compileFuncLiteral compiles an ExprFunc into its own wasm function and
// wraps it as a Closure object (spec §4.8). Free variables of FuncBody
// that resolve to a Local/HeapInd binding in the enclosing scope are
// captured by value into the Closure's capture slots (param 0 of the
// inner function is always the closure pointer itself, the implicit
// environment argument EmitCallClosure supplies); free variables that
// resolve to a Static/Deferred binding need no capturing since
// FunctionBoundary already carries those across unchanged. A captured
// HeapInd binding carries its MutBox pointer, not its current value, so
// mutations made through the box after the closure is built are still
// visible to it (spec §4.7 "a `var` captured by a nested closure needs
// heap storage").
func (c *Compiler) compileFuncLiteral(fb *FuncBuilder, e *ir.Expr) error {
	bound := map[string]bool{}
	for _, p := range e.FuncParams {
		bound[p.Name] = true
	}
	free := map[string]bool{}
	collectAllVars(e.FuncBody, bound, free)

	type capture struct {
		name string
		loc  Location
	}
	var captures []capture
	for name := range free {
		if loc, ok := fb.Vars.Lookup(name); ok && (loc.Kind == LocLocal || loc.Kind == LocHeapInd) {
			captures = append(captures, capture{name, loc})
		}
	}
	sort.Slice(captures, func(i, j int) bool { return captures[i].name < captures[j].name })

	captureLocals := make([]uint32, len(captures))
	for i, cp := range captures {
		fb.W.LocalGet(cp.loc.LocalIdx)
		local := fb.Fn.AddLocal(wasm.TypeI32, "$cap_"+cp.name)
		fb.W.LocalSet(local)
		captureLocals[i] = local
	}

	inner := NewFuncBuilder(c.Env, "$lambda", len(e.FuncParams)+1, 1, fb.MultiValue)
	inner.Vars = fb.Vars.FunctionBoundary()
	for i, p := range e.FuncParams {
		inner.Vars = inner.Vars.Bind(p.Name, Location{Kind: LocLocal, LocalIdx: uint32(i + 1)})
	}
	for i, cp := range captures {
		slot := inner.Fn.AddLocal(wasm.TypeI32, "$cap_"+cp.name)
		EmitLoadCapture(inner, 0, i)
		inner.W.LocalSet(slot)
		inner.Vars = inner.Vars.Bind(cp.name, Location{Kind: cp.loc.Kind, LocalIdx: slot})
	}
	if err := c.CompileExpr(inner, e.FuncBody); err != nil {
		return err
	}
	idx := c.Env.AddFun("$lambda", make([]byte, len(e.FuncParams)+1), []byte{wasm.TypeI32}, inner.Finish())
	return EmitClosureWithCaptures(fb, idx, captureLocals)
}

func (c *Compiler) compileBlock(fb *FuncBuilder, e *ir.Expr) error {
	saved := fb.Vars

	// AllocHow (spec §4.7): a `var` captured by a nested closure needs
	// heap storage reachable through its MutBox, since the closure's own
	// copy of a plain local would go stale the moment the enclosing
	// function mutates it. Everything else keeps the simpler plain-local
	// binding compileDecl already used before this analysis existed.
	analysis := NewAnalysis()
	analysis.Converge(e.Decls, false)

	for _, d := range e.Decls {
		if err := c.compileDecl(fb, d, analysis.How[d.Name]); err != nil {
			fb.Vars = saved
			return err
		}
	}
	err := c.CompileExpr(fb, e.Result)
	fb.Vars = saved
	return err
}

func (c *Compiler) compileDecl(fb *FuncBuilder, d *ir.Decl, how How) error {
	switch d.Kind {
	case ir.DeclFunc:
		if err := c.compileFuncLiteral(fb, d.Value); err != nil {
			return err
		}
		local := fb.Fn.AddLocal(wasm.TypeI32, "$"+d.Name)
		fb.W.LocalSet(local)
		fb.Vars = fb.Vars.Bind(d.Name, Location{Kind: LocLocal, LocalIdx: local})
		return nil
	case ir.DeclIgnore:
		if err := c.CompileExpr(fb, d.Value); err != nil {
			return err
		}
		fb.W.Drop()
		return nil
	default:
		if err := c.CompileExpr(fb, d.Value); err != nil {
			return err
		}
		if how == HowStoreHeap {
			val := fb.Fn.AddLocal(wasm.TypeI32, "$"+d.Name+"_init")
			fb.W.LocalSet(val)
			EmitMutBoxNew(fb, val)
			box := fb.Fn.AddLocal(wasm.TypeI32, "$"+d.Name+"_box")
			fb.W.LocalSet(box)
			fb.Vars = fb.Vars.Bind(d.Name, Location{Kind: LocHeapInd, LocalIdx: box})
			return nil
		}
		local := fb.Fn.AddLocal(wasm.TypeI32, "$"+d.Name)
		fb.W.LocalSet(local)
		fb.Vars = fb.Vars.Bind(d.Name, Location{Kind: LocLocal, LocalIdx: local})
		return nil
	}
}

func (c *Compiler) compileIf(fb *FuncBuilder, e *ir.Expr) error {
	if err := c.CompileExpr(fb, e.Cond); err != nil {
		return err
	}
	w := fb.W
	w.If(wasm.TypeI32)
	if err := c.CompileExpr(fb, e.Then); err != nil {
		return err
	}
	w.Else()
	if err := c.CompileExpr(fb, e.Else); err != nil {
		return err
	}
	w.End()
	return nil
}

func (c *Compiler) compileSwitch(fb *FuncBuilder, e *ir.Expr) error {
	if err := c.CompileExpr(fb, e.Scrutinee); err != nil {
		return err
	}
	scrut := fb.Fn.AddLocal(wasm.TypeI32, "$switch_scrut")
	fb.W.LocalSet(scrut)

	w := fb.W
	w.Block(wasm.TypeI32)
	for range e.Cases {
		w.Block(wasm.TypeBlockVoid)
	}
	for i, cs := range e.Cases {
		w.LocalGet(scrut)
		r, err := CompilePattern(fb, cs.Pat, fb.Vars, 0)
		if err != nil {
			return err
		}
		saved := fb.Vars
		fb.Vars = r.Bindings
		if err := c.CompileExpr(fb, cs.Body); err != nil {
			fb.Vars = saved
			return err
		}
		fb.Vars = saved
		w.Br(uint32(len(e.Cases) - i))
		w.End()
	}
	EmitTrap(fb, "switch: no matching case")
	w.End()
	return nil
}

func (c *Compiler) compileLoop(fb *FuncBuilder, e *ir.Expr) error {
	w := fb.W
	w.Loop(wasm.TypeBlockVoid)
	if err := c.CompileExpr(fb, e.Body); err != nil {
		return err
	}
	w.Br(0)
	w.End()
	return nil
}

func (c *Compiler) compileLabel(fb *FuncBuilder, e *ir.Expr) error {
	saved := fb.Vars
	fb.Vars = fb.Vars.EnterBlock(e.Label)
	fb.W.Block(wasm.TypeBlockVoid)
	err := c.CompileExpr(fb, e.Body)
	fb.W.End()
	fb.Vars = saved
	return err
}

func (c *Compiler) compileObjectLit(fb *FuncBuilder, e *ir.Expr) error {
	fields := make([]FieldEntry, len(e.Fields))
	for i, f := range e.Fields {
		if err := c.CompileExpr(fb, f.Value); err != nil {
			return err
		}
		local := fb.Fn.AddLocal(wasm.TypeI32, "$objfield_"+f.Name)
		fb.W.LocalSet(local)
		fields[i] = FieldEntry{Name: f.Name, Local: local, Mutable: f.Mutable}
	}
	return EmitObjectLiteral(fb, fields)
}

func (c *Compiler) compileAssign(fb *FuncBuilder, e *ir.Expr) error {
	if e.LHS.Kind != ir.ExprVar && e.LHS.Kind != ir.ExprDot {
		return fmt.Errorf("codegen: assignment target must be a variable or field projection")
	}
	if err := c.CompileExpr(fb, e.RHS); err != nil {
		return err
	}
	w := fb.W
	if e.LHS.Kind == ir.ExprVar {
		loc, ok := fb.Vars.Lookup(e.LHS.Name)
		if !ok {
			return fmt.Errorf("codegen: unbound assignment target %q", e.LHS.Name)
		}
		switch loc.Kind {
		case LocLocal:
			w.LocalSet(loc.LocalIdx)
			return nil
		case LocHeapInd:
			val := fb.Fn.AddLocal(wasm.TypeI32, "$assign_val")
			w.LocalSet(val)
			EmitMutBoxSet(fb, loc.LocalIdx, val)
			return nil
		default:
			return fmt.Errorf("codegen: cannot assign to location kind %d", loc.Kind)
		}
	}
	val := fb.Fn.AddLocal(wasm.TypeI32, "$assign_field_val")
	w.LocalSet(val)
	if err := c.CompileExpr(fb, e.LHS.Base); err != nil {
		return err
	}
	if err := EmitObjectFieldGet(fb, e.LHS.FieldName, true); err != nil {
		return err
	}
	boxPtr := fb.Fn.AddLocal(wasm.TypeI32, "$assign_field_box")
	w.LocalSet(boxPtr)
	EmitMutBoxSet(fb, boxPtr, val)
	return nil
}
