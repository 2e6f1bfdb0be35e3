package codegen

import "testing"

func TestFieldHashDeterministic(t *testing.T) {
	if FieldHash("x") != FieldHash("x") {
		t.Error("FieldHash must be deterministic for the same input")
	}
}

func TestFieldHashDistinguishesNames(t *testing.T) {
	if FieldHash("x") == FieldHash("y") {
		t.Error("FieldHash(\"x\") and FieldHash(\"y\") collided unexpectedly")
	}
}

func TestSortedObjectFieldsOrdersByHash(t *testing.T) {
	fields := []FieldEntry{
		{Name: "zeta"},
		{Name: "alpha"},
		{Name: "mid"},
	}
	sorted := sortedObjectFields(fields)
	for i := 1; i < len(sorted); i++ {
		hPrev := FieldHash(sorted[i-1].Name)
		hCur := FieldHash(sorted[i].Name)
		if hPrev > hCur {
			t.Errorf("sortedObjectFields not ascending by hash at index %d: %d > %d", i, hPrev, hCur)
		}
	}
}
