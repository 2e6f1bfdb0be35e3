package codegen

import "hash/fnv"

// FieldHash computes the 32-bit hash used to sort and look up Object
// fields and Variant tags (spec §4.5). The exact hash function is left
// unspecified by spec.md; we use the standard library's FNV-1a since
// stable field ordering, not bit-tagging cleverness, is the actual
// concern here, and no part of the retrieval pack hand-rolls its own
// string hash for this purpose.
func FieldHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
