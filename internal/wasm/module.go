package wasm

// FuncType describes a function signature.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import describes an imported function, the only import kind this
// backend ever needs (the RTS and host imports of spec §6 are all
// functions).
type Import struct {
	Module  string
	Name    string
	TypeIdx int
}

// Export describes an exported function or memory.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Global describes a module-level global.
type Global struct {
	ValType byte
	Mutable bool
	Init    int32
}

// DataSeg describes a data segment used to initialize linear memory.
type DataSeg struct {
	Offset int32
	Data   []byte
}

// Module accumulates the pieces of a WebAssembly binary module as they
// are produced and encodes them into the final byte stream on demand.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []int // type index per defined (non-import) function
	Table    uint32 // number of entries reserved in the function table, 0 = none
	Exports  []Export
	Globals  []Global
	Codes    [][]byte
	DataSegs []DataSeg
	MemMin   uint32
	MemMax   uint32
}

// TypeIdx interns params/results as a function type, returning its index.
func (m *Module) TypeIdx(params, results []byte) int {
	for i, t := range m.Types {
		if sameBytes(t.Params, params) && sameBytes(t.Results, results) {
			return i
		}
	}
	idx := len(m.Types)
	m.Types = append(m.Types, FuncType{Params: params, Results: results})
	return idx
}

func sameBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddImport registers an imported function and returns its function index
// (imports occupy the low indices of the function index space).
func (m *Module) AddImport(module, name string, params, results []byte) int {
	tidx := m.TypeIdx(params, results)
	idx := len(m.Imports)
	m.Imports = append(m.Imports, Import{Module: module, Name: name, TypeIdx: tidx})
	return idx
}

// AddFunc reserves a function index for a to-be-defined function; its code
// body is attached later via AppendCode, in call order.
func (m *Module) AddFunc(params, results []byte) int {
	tidx := m.TypeIdx(params, results)
	m.Funcs = append(m.Funcs, tidx)
	return len(m.Imports) + len(m.Funcs) - 1
}

// AppendCode attaches the next defined function's encoded body. Bodies
// must be appended in the same order AddFunc was called.
func (m *Module) AppendCode(body []byte) {
	m.Codes = append(m.Codes, body)
}

// AddExport registers an export entry.
func (m *Module) AddExport(name string, kind byte, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
}

// AddGlobal registers a module global and returns its index.
func (m *Module) AddGlobal(valType byte, mutable bool, init int32) int {
	idx := len(m.Globals)
	m.Globals = append(m.Globals, Global{ValType: valType, Mutable: mutable, Init: init})
	return idx
}

// AddData registers a data segment.
func (m *Module) AddData(offset int32, data []byte) {
	m.DataSegs = append(m.DataSegs, DataSeg{Offset: offset, Data: data})
}

// EncodeFuncBody assembles one code-section entry from local declarations
// and an instruction stream, appending the trailing `end`.
func EncodeFuncBody(localCounts []uint32, localTypes []byte, body []byte) []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(localCounts)))
	for i, count := range localCounts {
		buf = AppendULEB128(buf, count)
		buf = append(buf, localTypes[i])
	}
	buf = append(buf, body...)
	buf = append(buf, OpEnd)
	return buf
}

// Encode produces the complete .wasm binary for the module.
func (m *Module) Encode() []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d) // \0asm
	out = append(out, 0x01, 0x00, 0x00, 0x00) // version 1

	if len(m.Types) > 0 {
		out = m.encodeSection(out, SecType, m.encodeTypeSection())
	}
	if len(m.Imports) > 0 {
		out = m.encodeSection(out, SecImport, m.encodeImportSection())
	}
	if len(m.Funcs) > 0 {
		out = m.encodeSection(out, SecFunction, m.encodeFuncSection())
	}
	if m.Table > 0 {
		out = m.encodeSection(out, SecTable, m.encodeTableSection())
	}
	out = m.encodeSection(out, SecMemory, m.encodeMemorySection())
	if len(m.Globals) > 0 {
		out = m.encodeSection(out, SecGlobal, m.encodeGlobalSection())
	}
	if len(m.Exports) > 0 {
		out = m.encodeSection(out, SecExport, m.encodeExportSection())
	}
	if len(m.Codes) > 0 {
		out = m.encodeSection(out, SecCode, m.encodeCodeSection())
	}
	if len(m.DataSegs) > 0 {
		out = m.encodeSection(out, SecData, m.encodeDataSection())
	}
	return out
}

func (m *Module) encodeSection(out []byte, id int, payload []byte) []byte {
	out = append(out, byte(id))
	out = AppendULEB128(out, uint32(len(payload)))
	out = append(out, payload...)
	return out
}

func (m *Module) encodeTypeSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Types)))
	for _, t := range m.Types {
		buf = append(buf, TypeFunc)
		buf = AppendULEB128(buf, uint32(len(t.Params)))
		buf = append(buf, t.Params...)
		buf = AppendULEB128(buf, uint32(len(t.Results)))
		buf = append(buf, t.Results...)
	}
	return buf
}

func (m *Module) encodeImportSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		buf = AppendULEB128(buf, uint32(len(imp.Module)))
		buf = append(buf, imp.Module...)
		buf = AppendULEB128(buf, uint32(len(imp.Name)))
		buf = append(buf, imp.Name...)
		buf = append(buf, ExtFunc)
		buf = AppendULEB128(buf, uint32(imp.TypeIdx))
	}
	return buf
}

func (m *Module) encodeFuncSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Funcs)))
	for _, tidx := range m.Funcs {
		buf = AppendULEB128(buf, uint32(tidx))
	}
	return buf
}

func (m *Module) encodeTableSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, 1) // one table
	buf = append(buf, TypeFuncRef)
	buf = append(buf, 0x00) // no max
	buf = AppendULEB128(buf, m.Table)
	return buf
}

func (m *Module) encodeMemorySection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, 1)
	if m.MemMax > 0 {
		buf = append(buf, 0x01)
		buf = AppendULEB128(buf, m.MemMin)
		buf = AppendULEB128(buf, m.MemMax)
	} else {
		buf = append(buf, 0x00)
		buf = AppendULEB128(buf, m.MemMin)
	}
	return buf
}

func (m *Module) encodeGlobalSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		buf = append(buf, g.ValType)
		if g.Mutable {
			buf = append(buf, 0x01)
		} else {
			buf = append(buf, 0x00)
		}
		buf = append(buf, OpI32Const)
		buf = AppendSLEB128(buf, g.Init)
		buf = append(buf, OpEnd)
	}
	return buf
}

func (m *Module) encodeExportSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Exports)))
	for _, exp := range m.Exports {
		buf = AppendULEB128(buf, uint32(len(exp.Name)))
		buf = append(buf, exp.Name...)
		buf = append(buf, exp.Kind)
		buf = AppendULEB128(buf, exp.Idx)
	}
	return buf
}

func (m *Module) encodeCodeSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.Codes)))
	for _, body := range m.Codes {
		buf = AppendULEB128(buf, uint32(len(body)))
		buf = append(buf, body...)
	}
	return buf
}

func (m *Module) encodeDataSection() []byte {
	var buf []byte
	buf = AppendULEB128(buf, uint32(len(m.DataSegs)))
	for _, seg := range m.DataSegs {
		buf = append(buf, 0x00)
		buf = append(buf, OpI32Const)
		buf = AppendSLEB128(buf, seg.Offset)
		buf = append(buf, OpEnd)
		buf = AppendULEB128(buf, uint32(len(seg.Data)))
		buf = append(buf, seg.Data...)
	}
	return buf
}
