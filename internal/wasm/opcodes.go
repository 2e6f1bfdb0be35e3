package wasm

// Section IDs, per the core WebAssembly binary format.
const (
	SecType     = 1
	SecImport   = 2
	SecFunction = 3
	SecTable    = 4
	SecMemory   = 5
	SecGlobal   = 6
	SecExport   = 7
	SecStart    = 8
	SecElement  = 9
	SecCode     = 10
	SecData     = 11
)

// Value types.
const (
	TypeI32    = 0x7f
	TypeI64    = 0x7e
	TypeF32    = 0x7d
	TypeF64    = 0x7c
	TypeFuncRef = 0x70
	TypeFunc   = 0x60
	TypeBlockVoid = 0x40 // empty block type
)

// External kind, for imports and exports.
const (
	ExtFunc   = 0x00
	ExtTable  = 0x01
	ExtMemory = 0x02
	ExtGlobal = 0x03
)

// Control and variable instructions.
const (
	OpUnreachable = 0x00
	OpNop         = 0x01
	OpBlock       = 0x02
	OpLoop        = 0x03
	OpIf          = 0x04
	OpElse        = 0x05
	OpEnd         = 0x0b
	OpBr          = 0x0c
	OpBrIf        = 0x0d
	OpBrTable     = 0x0e
	OpReturn      = 0x0f
	OpCall        = 0x10
	OpCallIndirect = 0x11
	OpDrop        = 0x1a
	OpSelect      = 0x1b

	OpLocalGet  = 0x20
	OpLocalSet  = 0x21
	OpLocalTee  = 0x22
	OpGlobalGet = 0x23
	OpGlobalSet = 0x24
)

// Memory instructions (i32/i64 loads and stores used by the heap model).
const (
	OpI32Load    = 0x28
	OpI64Load    = 0x29
	OpI32Load8S  = 0x2c
	OpI32Load8U  = 0x2d
	OpI32Load16S = 0x2e
	OpI32Load16U = 0x2f
	OpI64Load8U  = 0x31
	OpI64Load16U = 0x33
	OpI64Load32U = 0x35
	OpI32Store   = 0x36
	OpI64Store   = 0x37
	OpI32Store8  = 0x3a
	OpI32Store16 = 0x3b
	OpI64Store8  = 0x3c
	OpI64Store16 = 0x3d
	OpI64Store32 = 0x3e

	OpMemorySize = 0x3f
	OpMemoryGrow = 0x40
)

// Numeric constants and comparisons.
const (
	OpI32Const = 0x41
	OpI64Const = 0x42

	OpI32Eqz  = 0x45
	OpI32Eq   = 0x46
	OpI32Ne   = 0x47
	OpI32LtS  = 0x48
	OpI32LtU  = 0x49
	OpI32GtS  = 0x4a
	OpI32GtU  = 0x4b
	OpI32LeS  = 0x4c
	OpI32LeU  = 0x4d
	OpI32GeS  = 0x4e
	OpI32GeU  = 0x4f

	OpI64Eqz = 0x50
	OpI64Eq  = 0x51
	OpI64Ne  = 0x52
	OpI64LtS = 0x53
	OpI64GtS = 0x55
	OpI64LeS = 0x57
	OpI64GeS = 0x59
)

// i32/i64 arithmetic and bitwise ops.
const (
	OpI32Clz    = 0x67
	OpI32Ctz    = 0x68
	OpI32Popcnt = 0x69
	OpI32Add    = 0x6a
	OpI32Sub    = 0x6b
	OpI32Mul    = 0x6c
	OpI32DivS   = 0x6d
	OpI32DivU   = 0x6e
	OpI32RemS   = 0x6f
	OpI32RemU   = 0x70
	OpI32And    = 0x71
	OpI32Or     = 0x72
	OpI32Xor    = 0x73
	OpI32Shl    = 0x74
	OpI32ShrS   = 0x75
	OpI32ShrU   = 0x76
	OpI32Rotl   = 0x77
	OpI32Rotr   = 0x78

	OpI64Add  = 0x7c
	OpI64Sub  = 0x7d
	OpI64Mul  = 0x7e
	OpI64DivS = 0x7f
	OpI64DivU = 0x80
	OpI64RemS = 0x81
	OpI64RemU = 0x82
	OpI64And  = 0x83
	OpI64Or   = 0x84
	OpI64Xor  = 0x85
	OpI64Shl  = 0x86
	OpI64ShrS = 0x87
	OpI64ShrU = 0x88
	OpI64Rotl = 0x89
	OpI64Rotr = 0x8a

	OpI32WrapI64     = 0xa7
	OpI64ExtendI32S  = 0xac
	OpI64ExtendI32U  = 0xad
)
