package ir

import "testing"

func TestBindsIdentifiersWild(t *testing.T) {
	p := &Pattern{Kind: PatWild}
	if p.BindsIdentifiers() {
		t.Error("wildcard pattern must not bind identifiers")
	}
}

func TestBindsIdentifiersVar(t *testing.T) {
	p := &Pattern{Kind: PatVar, Name: "x"}
	if !p.BindsIdentifiers() {
		t.Error("variable pattern must bind its identifier")
	}
}

func TestBindsIdentifiersNestedInTuple(t *testing.T) {
	p := &Pattern{
		Kind: PatTuple,
		Elems: []*Pattern{
			{Kind: PatWild},
			{Kind: PatVar, Name: "y"},
		},
	}
	if !p.BindsIdentifiers() {
		t.Error("tuple pattern containing a var subpattern must report binding")
	}
}

func TestBindsIdentifiersAllWildTupleDoesNotBind(t *testing.T) {
	p := &Pattern{
		Kind: PatTuple,
		Elems: []*Pattern{
			{Kind: PatWild},
			{Kind: PatLit},
		},
	}
	if p.BindsIdentifiers() {
		t.Error("tuple of only wild/literal patterns must not report binding")
	}
}

func TestBindsIdentifiersAlternationRejectsBindingArms(t *testing.T) {
	p := &Pattern{
		Kind:  PatAlt,
		Left:  &Pattern{Kind: PatLit},
		Right: &Pattern{Kind: PatVar, Name: "z"},
	}
	if !p.BindsIdentifiers() {
		t.Error("alternation with a binding arm must report binding, so the compiler can reject it")
	}
}

func TestBindsIdentifiersTagPayload(t *testing.T) {
	p := &Pattern{
		Kind:    PatTag,
		Tag:     "#ok",
		Payload: &Pattern{Kind: PatVar, Name: "v"},
	}
	if !p.BindsIdentifiers() {
		t.Error("tag pattern with a var payload must report binding")
	}
}

func TestBindsIdentifiersPayloadlessTag(t *testing.T) {
	p := &Pattern{Kind: PatTag, Tag: "#done"}
	if p.BindsIdentifiers() {
		t.Error("payload-less tag pattern must not report binding")
	}
}
