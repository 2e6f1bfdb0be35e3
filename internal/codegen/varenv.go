package codegen

// LocationKind discriminates the variable-location shapes of spec §3.3.
type LocationKind int

const (
	LocLocal LocationKind = iota
	LocHeapInd
	LocStatic
	LocDeferred
)

// StaticThingKind records which static entity a Deferred location
// denotes (spec §3.3, §4.2 StaticThing s).
type StaticThingKind int

const (
	StaticFun StaticThingKind = iota
	StaticMethod
	StaticSelf
	StaticMessage
)

// StaticThing is the payload of a Deferred location or of a StackRep's
// StaticThing representation.
type StaticThing struct {
	Kind     StaticThingKind
	FuncIdx  int    // StaticFun / StaticMessage
	FieldName string // StaticMethod: the public field name
}

// Location is where a source variable's value currently lives.
type Location struct {
	Kind LocationKind

	// LocLocal / LocHeapInd
	LocalIdx uint32

	// LocHeapInd
	Offset int32 // word offset of the value inside the heap box

	// LocStatic
	StaticPtr int32

	// LocDeferred
	Rep         Rep
	Materialize func(fb *FuncBuilder) error
	IsLocalFlag bool
}

// IsLocal reports whether this location is scoped to the current
// function (spec §3.3's "A function boundary drops all Local/HeapInd
// entries but preserves non-local ones").
func (l Location) IsLocal() bool {
	switch l.Kind {
	case LocLocal, LocHeapInd:
		return true
	case LocDeferred:
		return l.IsLocalFlag
	default:
		return false
	}
}

// LabelHandle is a jump-depth handle for a label bound by VarEnv: the
// number of enclosing WebAssembly blocks between the current point and
// the point where this label was introduced. Resolving it to a `br`
// immediate is just "current depth - handle.depth".
type LabelHandle struct {
	Name  string
	Depth int
}

// VarEnv maps source-level names to Locations and label names to jump
// handles (spec §2, §3.3). It is an immutable-update environment: Bind
// and BindLabel return a new VarEnv sharing the parent's backing map via
// copy-on-write, so that sibling scopes never see each other's bindings
// (mirrors the "environment objects ... updated by replacement" design
// note in spec §9).
type VarEnv struct {
	vars   map[string]Location
	labels map[string]LabelHandle
	depth  int // current WebAssembly block nesting depth
}

// NewVarEnv creates an empty top-level environment.
func NewVarEnv() *VarEnv {
	return &VarEnv{vars: map[string]Location{}, labels: map[string]LabelHandle{}}
}

// Lookup resolves a variable name to its Location.
func (v *VarEnv) Lookup(name string) (Location, bool) {
	loc, ok := v.vars[name]
	return loc, ok
}

// LookupLabel resolves a label name to a LabelHandle.
func (v *VarEnv) LookupLabel(name string) (LabelHandle, bool) {
	lh, ok := v.labels[name]
	return lh, ok
}

// Bind returns a new environment with name bound to loc, shadowing any
// existing binding of the same name.
func (v *VarEnv) Bind(name string, loc Location) *VarEnv {
	n := v.clone()
	n.vars[name] = loc
	return n
}

// BindAll binds several names at once (e.g. a pattern's identifiers).
func (v *VarEnv) BindAll(bindings map[string]Location) *VarEnv {
	n := v.clone()
	for name, loc := range bindings {
		n.vars[name] = loc
	}
	return n
}

// EnterBlock returns a new environment one WebAssembly block deeper,
// with label bound to the current depth.
func (v *VarEnv) EnterBlock(label string) *VarEnv {
	n := v.clone()
	n.depth = v.depth + 1
	if label != "" {
		n.labels[label] = LabelHandle{Name: label, Depth: n.depth}
	}
	return n
}

// BranchDepth computes the `br`/`br_if` immediate needed to reach lh
// from the current environment's nesting depth.
func (v *VarEnv) BranchDepth(lh LabelHandle) uint32 {
	return uint32(v.depth - lh.Depth)
}

// FunctionBoundary returns a new environment with all Local/HeapInd
// bindings dropped, preserving Static and Deferred ones (spec §3.3:
// "A function boundary drops all Local/HeapInd entries but preserves
// non-local ones").
func (v *VarEnv) FunctionBoundary() *VarEnv {
	n := &VarEnv{vars: map[string]Location{}, labels: map[string]LabelHandle{}}
	for name, loc := range v.vars {
		if !loc.IsLocal() {
			n.vars[name] = loc
		}
	}
	return n
}

func (v *VarEnv) clone() *VarEnv {
	n := &VarEnv{
		vars:   make(map[string]Location, len(v.vars)),
		labels: make(map[string]LabelHandle, len(v.labels)),
		depth:  v.depth,
	}
	for k, val := range v.vars {
		n.vars[k] = val
	}
	for k, val := range v.labels {
		n.labels[k] = val
	}
	return n
}
