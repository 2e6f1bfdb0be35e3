// Package wasm encodes a WebAssembly binary module: sections, types,
// imports, exports, globals, code bodies and data segments, plus the
// LEB128 varint forms the binary format uses throughout.
//
// This package is the external collaborator spec.md §1 calls "the
// WebAssembly binary encoder that emits the final bytes" — it has no
// opinion on what a canister backend should emit, only on how to encode
// whatever instruction stream it is handed.
package wasm

// AppendULEB128 appends the unsigned LEB128 encoding of v to buf.
func AppendULEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			break
		}
	}
	return buf
}

// AppendULEB128_64 appends the unsigned LEB128 encoding of a 64-bit v.
func AppendULEB128_64(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			break
		}
	}
	return buf
}

// AppendSLEB128 appends the signed LEB128 encoding of v to buf.
func AppendSLEB128(buf []byte, v int32) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// AppendSLEB128_64 appends the signed LEB128 encoding of a 64-bit v.
func AppendSLEB128_64(buf []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// ULEB128Size returns the number of bytes AppendULEB128 would emit for v.
func ULEB128Size(v uint32) int {
	n := 0
	for {
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	return n
}

// DecodeULEB128 reads an unsigned LEB128 value from buf starting at off,
// returning the value and the offset just past it.
func DecodeULEB128(buf []byte, off int) (uint32, int) {
	var result uint32
	var shift uint
	for {
		b := buf[off]
		off++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, off
}

// DecodeSLEB128 reads a signed LEB128 value from buf starting at off,
// returning the value and the offset just past it.
func DecodeSLEB128(buf []byte, off int) (int32, int) {
	var result int32
	var shift uint
	var b byte
	for {
		b = buf[off]
		off++
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 32 && (b&0x40) != 0 {
		result |= -1 << shift
	}
	return result, off
}
