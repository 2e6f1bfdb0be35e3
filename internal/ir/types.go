// Package ir defines the typed, actor-oriented intermediate
// representation this backend consumes. Per spec.md §1, producing this
// IR — parsing and bidirectional type-matching — is the job of an
// external front end; this package only models the shapes that front
// end hands us, fully resolved.
package ir

// Kind discriminates the primitive and structural type shapes the
// backend needs to make representation decisions about.
type Kind int

const (
	KindBool Kind = iota
	KindNat
	KindInt
	KindNat8
	KindNat16
	KindNat32
	KindNat64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindWord8
	KindWord16
	KindWord32
	KindWord64
	KindChar
	KindText
	KindBlob
	KindNull
	KindOption
	KindArray
	KindTuple
	KindObject
	KindVariant
	KindFunc
	KindAsync  // the result type of an actor's async call
	KindError
	KindAny    // spec §4.9 "reserved" / Any
	KindEmpty
	KindActor
)

// Sharability classifies whether a type may cross a message boundary,
// per the "Shared function" glossary entry.
type Sharability int

const (
	NotShared Sharability = iota
	Shared
)

// Field describes one field of an Object or one argument of a Variant
// payload-bearing tag; Mutable routes field access through an
// ObjInd/MutBox indirection per spec §4.5.
type Field struct {
	Name    string
	Type    *Type
	Mutable bool
}

// Type is a fully-resolved IR type. Only the fields relevant to Kind are
// populated, mirroring how a real front end would hand over a resolved
// type without re-deriving structure at codegen time.
type Type struct {
	Kind Kind

	// KindArray, KindOption: element type.
	Elem *Type

	// KindTuple: component types in order.
	Components []*Type

	// KindObject: fields sorted by FieldHash(Name) ascending, matching
	// the heap layout invariant of spec §3.2(a).
	Fields []Field

	// KindVariant: tags sorted by FieldHash(Name) ascending.
	Tags []Field

	// KindFunc: parameter and result types, and whether the function is
	// a shared (message-crossing) function.
	Params  []*Type
	Results []*Type
	Shared  Sharability

	// KindActor: public fields exposed as messages.
	ActorFields []ActorField

	// Name is used for diagnostics and for variant/object hashing
	// consistency checks; it does not affect representation.
	Name string
}

// Sharing records how an actor field is exposed over messages.
type Sharing int

const (
	SharingQuery  Sharing = iota // canister_query
	SharingUpdate                // canister_update
	SharingOneway                // fire-and-forget update, replies immediately
)

// ActorField is one public field of an actor declaration (spec §4.11).
type ActorField struct {
	Name    string
	Sharing Sharing
	Type    *Type // must be KindFunc
}

// IsScalarCandidate reports whether values of this type can ever be
// represented as unboxed scalars (spec §3.1); used by StackRep and
// HeapModel to decide default representations.
func (t *Type) IsScalarCandidate() bool {
	switch t.Kind {
	case KindBool, KindNat, KindInt, KindNull, KindChar,
		KindNat8, KindNat16, KindNat32, KindInt8, KindInt16, KindInt32,
		KindWord8, KindWord16, KindWord32:
		return true
	default:
		return false
	}
}

// FixedWidthBits returns the bit width of a fixed-width numeric kind,
// or 0 if Kind is not fixed-width.
func (t *Type) FixedWidthBits() int {
	switch t.Kind {
	case KindNat8, KindInt8, KindWord8:
		return 8
	case KindNat16, KindInt16, KindWord16:
		return 16
	case KindNat32, KindInt32, KindWord32:
		return 32
	case KindNat64, KindInt64, KindWord64:
		return 64
	default:
		return 0
	}
}

// IsSigned reports whether overflow-checked arithmetic on this fixed
// width type uses a signed or unsigned trap condition (spec §4.3).
func (t *Type) IsSigned() bool {
	switch t.Kind {
	case KindInt, KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	default:
		return false
	}
}

// IsWrapping reports whether arithmetic on this type wraps silently
// instead of trapping on overflow — true only for the Word* family.
func (t *Type) IsWrapping() bool {
	switch t.Kind {
	case KindWord8, KindWord16, KindWord32, KindWord64:
		return true
	default:
		return false
	}
}
