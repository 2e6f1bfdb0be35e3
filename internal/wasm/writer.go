package wasm

// CodeWriter builds one function body's instruction stream.
type CodeWriter struct {
	Buf        []byte
	BlockDepth int
}

func (w *CodeWriter) Byte(b byte)        { w.Buf = append(w.Buf, b) }
func (w *CodeWriter) Op(opcode byte)     { w.Buf = append(w.Buf, opcode) }
func (w *CodeWriter) ULEB(v uint32)      { w.Buf = AppendULEB128(w.Buf, v) }
func (w *CodeWriter) SLEB(v int32)       { w.Buf = AppendSLEB128(w.Buf, v) }
func (w *CodeWriter) SLEB64(v int64)     { w.Buf = AppendSLEB128_64(w.Buf, v) }

func (w *CodeWriter) I32Const(v int32) {
	w.Op(OpI32Const)
	w.SLEB(v)
}

func (w *CodeWriter) I64Const(v int64) {
	w.Op(OpI64Const)
	w.SLEB64(v)
}

func (w *CodeWriter) LocalGet(idx uint32) { w.Op(OpLocalGet); w.ULEB(idx) }
func (w *CodeWriter) LocalSet(idx uint32) { w.Op(OpLocalSet); w.ULEB(idx) }
func (w *CodeWriter) LocalTee(idx uint32) { w.Op(OpLocalTee); w.ULEB(idx) }
func (w *CodeWriter) GlobalGet(idx uint32) { w.Op(OpGlobalGet); w.ULEB(idx) }
func (w *CodeWriter) GlobalSet(idx uint32) { w.Op(OpGlobalSet); w.ULEB(idx) }

func (w *CodeWriter) Call(funcIdx uint32) { w.Op(OpCall); w.ULEB(funcIdx) }

func (w *CodeWriter) CallIndirect(typeIdx uint32, tableIdx uint32) {
	w.Op(OpCallIndirect)
	w.ULEB(typeIdx)
	w.ULEB(tableIdx)
}

func (w *CodeWriter) Br(depth uint32)   { w.Op(OpBr); w.ULEB(depth) }
func (w *CodeWriter) BrIf(depth uint32) { w.Op(OpBrIf); w.ULEB(depth) }

func (w *CodeWriter) Block(blockType byte) { w.Op(OpBlock); w.Byte(blockType); w.BlockDepth++ }
func (w *CodeWriter) Loop(blockType byte)  { w.Op(OpLoop); w.Byte(blockType); w.BlockDepth++ }
func (w *CodeWriter) If(blockType byte)    { w.Op(OpIf); w.Byte(blockType); w.BlockDepth++ }
func (w *CodeWriter) Else()                { w.Op(OpElse) }
func (w *CodeWriter) End()                 { w.Op(OpEnd); w.BlockDepth-- }

func (w *CodeWriter) I32Load(align, offset uint32)    { w.Op(OpI32Load); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I32Load8U(align, offset uint32)  { w.Op(OpI32Load8U); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I32Load16U(align, offset uint32) { w.Op(OpI32Load16U); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I32Store(align, offset uint32)   { w.Op(OpI32Store); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I32Store8(align, offset uint32)  { w.Op(OpI32Store8); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I32Store16(align, offset uint32) { w.Op(OpI32Store16); w.ULEB(align); w.ULEB(offset) }

func (w *CodeWriter) I64Load(align, offset uint32)  { w.Op(OpI64Load); w.ULEB(align); w.ULEB(offset) }
func (w *CodeWriter) I64Store(align, offset uint32) { w.Op(OpI64Store); w.ULEB(align); w.ULEB(offset) }

func (w *CodeWriter) Drop()        { w.Op(OpDrop) }
func (w *CodeWriter) Return()      { w.Op(OpReturn) }
func (w *CodeWriter) Unreachable() { w.Op(OpUnreachable) }
func (w *CodeWriter) Select()      { w.Op(OpSelect) }

func (w *CodeWriter) I64ExtendI32U() { w.Op(OpI64ExtendI32U) }
func (w *CodeWriter) I64ExtendI32S() { w.Op(OpI64ExtendI32S) }
func (w *CodeWriter) I32WrapI64()    { w.Op(OpI32WrapI64) }
