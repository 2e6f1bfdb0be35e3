package codegen

import (
	"fmt"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/wasm"
)

// BuiltinState is the tri-state lifecycle of a built-in function
// registered with ModuleEnv.BuiltIn (spec §4.1): a name can be referenced
// before its body exists (Declared), have a lazy thunk that produces its
// body on first use (Pending), or already carry a body (Defined).
type BuiltinState int

const (
	BuiltinDeclared BuiltinState = iota
	BuiltinPending
	BuiltinDefined
)

// BuiltinThunk lazily produces a function body the first time it is
// looked up. It receives the ModuleEnv so it can itself call built_in or
// add_fun while generating its own body (mutual bootstrapping, e.g. the
// GC calling an evacuation helper that is itself a builtin).
type BuiltinThunk func(m *ModuleEnv) []byte

type builtinEntry struct {
	state BuiltinState
	index int
	thunk BuiltinThunk
}

// FunEnv holds per-function bookkeeping: parameter count, declared
// return arity, the ordered list of local types beyond the parameters,
// and debug names for the name section (spec §2 FunEnv).
type FunEnv struct {
	Name       string
	ParamCount int
	RetArity   int
	LocalTypes []byte // value types of locals beyond params, in allocation order
	LocalNames []string
}

// AddLocal reserves a new local slot of the given wasm value type and
// returns its local index (params occupy indices [0,ParamCount)).
func (f *FunEnv) AddLocal(valType byte, debugName string) uint32 {
	idx := uint32(f.ParamCount + len(f.LocalTypes))
	f.LocalTypes = append(f.LocalTypes, valType)
	f.LocalNames = append(f.LocalNames, debugName)
	return idx
}

// reservedFunc is the handle returned by ReserveFun: a function index
// plus a setter to fill in the body once it is compiled, supporting
// mutual recursion among a group of functions declared together.
type reservedFunc struct {
	index int
	m     *ModuleEnv
}

// Fill attaches the compiled body to this function's code-section slot.
// It must be called exactly once, after every reservation in its group
// has been made (so that calls within the group can already resolve
// indices) but before the module is finalized.
func (r reservedFunc) Fill(body []byte) {
	r.m.pendingCode[r.index] = body
}

// ModuleEnv is the accumulating WebAssembly module under construction:
// interned function types, imports, exports, globals, the function
// table, static memory, and the built-in function registry (spec §2,
// §4.1). It is threaded explicitly through the compile driver rather
// than held as ambient global state, per spec §9's design note on
// "Global mutable state in the compiler" — its accumulators are
// monotonic (only ever grown), so a single owned value suffices.
type ModuleEnv struct {
	mod *wasm.Module

	funcNames    []string // index → debug name, parallel to mod.Funcs plus imports
	firstNonImportSeen bool

	// importIdx maps "module.name" to its import function index, so that
	// RTS and host-system calls can be resolved by name from anywhere in
	// the codegen package once the driver has declared them (spec §6.1,
	// §6.2).
	importIdx map[string]int

	builtins map[string]*builtinEntry

	// Static memory bump allocator (spec §4.1 reserve_static_memory /
	// get_end_of_static_memory). Frozen once the first function body
	// starts referencing the end-of-static-memory value.
	staticSize  int32
	staticFrozen bool

	// Deduplicated static byte blobs, content → skewed pointer.
	staticBytesDedup map[string]int32

	// All static data, recorded as (offset, bytes) pairs to be turned
	// into data segments at Finish time. Offsets are unskewed byte
	// offsets into linear memory.
	staticData []wasm.DataSeg

	// tableEntries is the function table content: function index per
	// table slot, used by indirect (closure) calls (spec §4.8).
	tableEntries []int
	tableSlot    map[int]int // func index -> table slot, for de-duplication

	pendingCode map[int][]byte // func index -> body, filled as functions compile
	funcOrder   []int          // function indices in reservation order

	heap *HeapLayout
}

// SetHeap installs the module's HeapLayout, once static memory has been
// frozen and the heap base address is known (spec §4.1/§4.4).
func (m *ModuleEnv) SetHeap(hl *HeapLayout) { m.heap = hl }

// Heap returns the module's HeapLayout, set up by the compile driver
// before any allocating function is compiled.
func (m *ModuleEnv) Heap() *HeapLayout { return m.heap }

// NewModuleEnv creates an empty module under construction.
func NewModuleEnv() *ModuleEnv {
	return &ModuleEnv{
		mod:              &wasm.Module{MemMin: 2},
		builtins:         make(map[string]*builtinEntry),
		staticBytesDedup: make(map[string]int32),
		tableSlot:        make(map[int]int),
		pendingCode:      make(map[int][]byte),
		importIdx:        make(map[string]int),
	}
}

// FuncType interns a WebAssembly function type and returns its index.
func (m *ModuleEnv) FuncType(params, results []byte) int {
	return m.mod.TypeIdx(params, results)
}

// AddFuncImport registers an imported function. Per spec §4.1 this must
// happen before any non-import function is added; violating that order
// is an implementation bug, not a user error, so it panics like the
// teacher's own fatal invariant violations (e.g. "trap otherwise").
func (m *ModuleEnv) AddFuncImport(module, name string, argTys, retTys []byte) int {
	if m.firstNonImportSeen {
		panic(fmt.Sprintf("codegen: add_func_import(%s.%s) after first non-import function", module, name))
	}
	idx := m.mod.AddImport(module, name, argTys, retTys)
	m.funcNames = append(m.funcNames, module+"."+name)
	m.importIdx[module+"."+name] = idx
	return idx
}

// ImportIdx looks up a previously-declared import's function index by
// "module.name".
func (m *ModuleEnv) ImportIdx(module, name string) (int, bool) {
	idx, ok := m.importIdx[module+"."+name]
	return idx, ok
}

// CallRTS emits a call to the RTS import "rts.<name>", which the compile
// driver must have declared via AddFuncImport before any function body
// referencing it is compiled (spec §6.1). A missing declaration is a
// compiler bug, so this panics rather than returning an error.
func (m *ModuleEnv) CallRTS(fb *FuncBuilder, name string, argCount, resultCount int) {
	idx, ok := m.ImportIdx("rts", name)
	if !ok {
		panic(fmt.Sprintf("codegen: rts.%s called before it was imported", name))
	}
	fb.W.Call(uint32(idx))
}

// CallHost emits a call to a system/host import declared under the
// given module namespace (spec §6.2, e.g. "ic0").
func (m *ModuleEnv) CallHost(fb *FuncBuilder, module, name string) {
	idx, ok := m.ImportIdx(module, name)
	if !ok {
		panic(fmt.Sprintf("codegen: %s.%s called before it was imported", module, name))
	}
	fb.W.Call(uint32(idx))
}

// ReserveFun allocates a function index and returns a setter (Fill) used
// once the body is compiled; this supports mutual recursion by handing
// out indices for a whole group before any body exists (spec §4.1,
// design note "Mutually recursive declarations").
func (m *ModuleEnv) ReserveFun(name string, params, results []byte) (int, func(body []byte)) {
	m.firstNonImportSeen = true
	idx := m.mod.AddFunc(params, results)
	m.funcNames = append(m.funcNames, name)
	m.funcOrder = append(m.funcOrder, idx)
	r := reservedFunc{index: idx, m: m}
	return idx, r.Fill
}

// AddFun reserves and immediately fills a function, for the common case
// with no forward reference.
func (m *ModuleEnv) AddFun(name string, params, results []byte, body []byte) int {
	idx, fill := m.ReserveFun(name, params, results)
	fill(body)
	return idx
}

// BuiltIn looks up (registering if necessary) a built-in function by
// name, returning its function index. A name first registered with a
// thunk is Pending, and the next lookup promotes it to Defined by
// running the thunk once. A name first registered without a thunk is
// Declared and stays so: later lookups just return the reserved index,
// a thunk passed on a later lookup is ignored, and the reservation's
// fill setter is not kept, so nothing here gives it a body.
func (m *ModuleEnv) BuiltIn(name string, params, results []byte, thunk BuiltinThunk) int {
	e, ok := m.builtins[name]
	if !ok {
		idx, fill := m.ReserveFun(name, params, results)
		e = &builtinEntry{state: BuiltinDeclared, index: idx}
		if thunk != nil {
			e.state = BuiltinPending
			e.thunk = thunk
		}
		m.builtins[name] = e
		_ = fill
		return idx
	}
	if e.state == BuiltinPending {
		body := e.thunk(m)
		m.pendingCode[e.index] = body
		e.state = BuiltinDefined
		e.thunk = nil
	}
	return e.index
}

// BuiltinStateOf reports the current lifecycle state of a registered
// built-in, for diagnostics and tests.
func (m *ModuleEnv) BuiltinStateOf(name string) (BuiltinState, bool) {
	e, ok := m.builtins[name]
	if !ok {
		return BuiltinDeclared, false
	}
	return e.state, true
}

// AddExport registers a module export.
func (m *ModuleEnv) AddExport(name string, kind byte, idx uint32) {
	m.mod.AddExport(name, kind, idx)
}

// AddGlobal registers a mutable or immutable i32 global and returns its
// index.
func (m *ModuleEnv) AddGlobal(valType byte, mutable bool, init int32) int {
	return m.mod.AddGlobal(valType, mutable, init)
}

// TableSlot returns the function table slot for funcIdx, allocating one
// if this is the first time funcIdx appears in the table (spec §4.8
// "Closure call" — the function table backs indirect calls).
func (m *ModuleEnv) TableSlot(funcIdx int) int {
	if slot, ok := m.tableSlot[funcIdx]; ok {
		return slot
	}
	slot := len(m.tableEntries)
	m.tableEntries = append(m.tableEntries, funcIdx)
	m.tableSlot[funcIdx] = slot
	return slot
}

// AddStaticBytes allocates a deduplicated static blob and returns its
// skewed pointer (spec §4.1 add_static_bytes). Identical content is
// shared across calls.
func (m *ModuleEnv) AddStaticBytes(data []byte) (int32, error) {
	key := string(data)
	if ptr, ok := m.staticBytesDedup[key]; ok {
		return ptr, nil
	}
	ptr, err := m.reserveStatic(data)
	if err != nil {
		return 0, err
	}
	m.staticBytesDedup[key] = ptr
	return ptr, nil
}

// AddMutableStaticBytes allocates static storage that is never
// deduplicated, because distinct mutable cells must not alias (spec
// §4.1 add_mutable_static_bytes).
func (m *ModuleEnv) AddMutableStaticBytes(data []byte) (int32, error) {
	return m.reserveStatic(data)
}

func (m *ModuleEnv) reserveStatic(data []byte) (int32, error) {
	off, err := m.ReserveStaticMemory(len(data))
	if err != nil {
		return 0, err
	}
	m.staticData = append(m.staticData, wasm.DataSeg{Offset: off + 1, Data: data})
	return off, nil
}

// ReserveStaticMemory word-aligns size and bumps the static memory
// pointer, returning a skewed pointer to the reserved region. It traps
// (returns an error) if static memory is already frozen, per spec §4.1.
func (m *ModuleEnv) ReserveStaticMemory(size int) (int32, error) {
	if m.staticFrozen {
		return 0, fmt.Errorf("codegen: reserve_static_memory after freeze")
	}
	aligned := (size + 3) &^ 3
	off := m.staticSize
	m.staticSize += int32(aligned)
	// skewed pointer: offset - 1
	return off - 1, nil
}

// GetEndOfStaticMemory freezes static memory and returns the unskewed
// end-of-static-memory address, which becomes the initial heap base
// (spec §4.1 get_end_of_static_memory).
func (m *ModuleEnv) GetEndOfStaticMemory() int32 {
	m.staticFrozen = true
	return m.staticSize
}

// Finish assembles all reserved/filled code bodies into module order,
// lays out the function table (if used), and returns the underlying
// wasm.Module ready for Encode. It is an error for any reserved function
// to still lack a body.
func (m *ModuleEnv) Finish() (*wasm.Module, error) {
	for _, idx := range m.funcOrder {
		body, ok := m.pendingCode[idx]
		if !ok {
			return nil, fmt.Errorf("codegen: function index %d (%s) never filled", idx, m.nameOf(idx))
		}
		m.mod.Codes = append(m.mod.Codes, body)
	}
	if len(m.tableEntries) > 0 {
		m.mod.Table = uint32(len(m.tableEntries))
	}
	for _, seg := range m.staticData {
		m.mod.AddData(seg.Offset, seg.Data)
	}
	return m.mod, nil
}

// TableEntries exposes the function table contents (index per slot) so
// the driver can emit an element section once §4.1's table semantics
// are wired into the final module.
func (m *ModuleEnv) TableEntries() []int {
	return m.tableEntries
}

func (m *ModuleEnv) nameOf(idx int) string {
	if idx >= 0 && idx < len(m.funcNames) {
		return m.funcNames[idx]
	}
	return "?"
}
