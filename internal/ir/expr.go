package ir

// ExprKind discriminates the expression shapes the compile engine
// recognizes. The front end is expected to have already lowered
// `async`/`await` into closure-allocation-and-self-call form per spec
// §4.11 and design note "Async/await", so there is no native Async/Await
// expression kind here beyond the two that remain visible to codegen:
// spawning a continuation closure and the system call itself.
type ExprKind int

const (
	ExprLit ExprKind = iota
	ExprVar
	ExprPrim   // a primitive op: arithmetic, comparison, bit ops
	ExprCall
	ExprFunc   // a function literal (closure), possibly capturing nothing
	ExprBlock  // a sequence of declarations followed by a result expression
	ExprIf
	ExprSwitch // pattern match over one scrutinee
	ExprLoop   // `loop`/`while`, already desugared to a labeled loop
	ExprLabel  // a named break/continue target wrapping a body
	ExprBreak
	ExprObject // object literal
	ExprArray
	ExprTuple
	ExprDot       // field projection (may be mutable, routes through ObjInd)
	ExprIdx       // array indexing
	ExprAssign    // assignment to a mutable location
	ExprActor     // an actor declaration
	ExprAsyncCall // lowered async call: callee, args, reply k, reject k
	ExprSelfCall  // self-call to __motoko_async_helper with a closure handle
	ExprIgnore    // evaluate for effect, drop the result
	ExprAnnot     // type annotation, no runtime effect
)

// Expr is one node of the IR expression tree. Only the fields relevant
// to Kind are populated; this mirrors the "fully resolved, no further
// inference" contract of an externally type-checked IR.
type Expr struct {
	Kind ExprKind
	Type *Type

	// ExprLit
	LitBool   bool
	LitText   string
	LitNat    uint64 // fits-in-word fast path; arbitrary precision is out of scope for literal storage
	LitIsBig  bool
	LitBigDec string // decimal text for values that don't fit in 64 bits
	LitNull   bool

	// ExprVar
	Name string

	// ExprPrim
	Op    PrimOp
	Args  []*Expr

	// ExprCall
	Callee *Expr
	CallArgs []*Expr

	// ExprFunc
	FuncParams []Param
	FuncBody   *Expr
	FuncRet    []*Type

	// ExprBlock
	Decls  []*Decl
	Result *Expr

	// ExprIf
	Cond, Then, Else *Expr

	// ExprSwitch
	Scrutinee *Expr
	Cases     []SwitchCase

	// ExprLoop / ExprLabel / ExprBreak
	Label string
	Body  *Expr

	// ExprObject
	Fields []FieldInit

	// ExprArray / ExprTuple
	Elems []*Expr

	// ExprDot
	Base      *Expr
	FieldName string

	// ExprIdx
	Index *Expr

	// ExprAssign
	LHS, RHS *Expr

	// ExprActor
	ActorFields []ActorFieldInit

	// ExprAsyncCall
	AsyncCallee  *Expr
	AsyncMethod  string
	AsyncArgs    *Expr // already-assembled argument tuple expression
	ReplyClosure *Expr
	RejectClosure *Expr
	Oneway       bool

	// ExprSelfCall
	ClosureExpr *Expr
}

// PrimOp enumerates primitive operators lowered directly to Numerics /
// RuntimeValues codegen.
type PrimOp int

const (
	OpAdd PrimOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpNot
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpRotl
	OpRotr
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpConcat // text concatenation
	OpArrayLen
	OpCharToWord32
	OpWord32ToChar
)

// Param is one function parameter.
type Param struct {
	Name string
	Type *Type
}

// FieldInit is one field initializer of an object literal.
type FieldInit struct {
	Name    string
	Value   *Expr
	Mutable bool
}

// ActorFieldInit is one field of an actor literal: a name, its exposure
// (if any — unexposed fields are nil Sharing-bearing Expose), and the
// initializing expression (typically an ExprFunc for public methods).
type ActorFieldInit struct {
	Name    string
	Exposed bool
	Sharing Sharing
	Value   *Expr
	Mutable bool
}

// SwitchCase pairs a pattern with the expression to run when it matches.
type SwitchCase struct {
	Pat  *Pattern
	Body *Expr
}

// DeclKind discriminates declaration shapes within an ExprBlock.
type DeclKind int

const (
	DeclLet DeclKind = iota
	DeclVar
	DeclFunc // a function declaration, part of a (possibly mutually recursive) group
	DeclIgnore
)

// Decl is one declaration inside a block. A FuncGroup id ties together
// declarations compiled as a mutually-recursive group, per AllocHow
// (spec §9 "Mutually recursive declarations").
type Decl struct {
	Kind     DeclKind
	Name     string
	Type     *Type
	Value    *Expr
	FuncGroup int // -1 if not part of a recursive group
}
