// Package atomir defines AtomIR: the typed, block-structured, SSA-form intermediate
// representation that the RISC-V backend (package selector) consumes. This package is the input
// contract described by the backend's collaborator surface -- the lexer/parser/semantic-analysis
// stage that actually builds an atomir.Module from Sy source lives in package frontend and is
// deliberately lighter-weight than the backend core it feeds.
package atomir

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// TypeKind differentiates the handful of Sy types the backend understands.
type TypeKind int

// Type describes the type of an AtomIR Value: a scalar, a pointer to some other Type, or an
// array of some other Type with a fixed element count.
type Type struct {
	Kind TypeKind
	Elem *Type // Pointee for Pointer, element type for Array.
	Len  int   // Element count for Array; meaningless otherwise.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Int32 TypeKind = iota
	Float32
	Pointer
	Void
	Array
)

// -------------------
// ----- Globals -----
// -------------------

// Int32Ty, Float32Ty and VoidTy are the three scalar types Sy source code can name directly.
var (
	Int32Ty = &Type{Kind: Int32}
	Float32Ty = &Type{Kind: Float32}
	VoidTy  = &Type{Kind: Void}
)

// ---------------------
// ----- Functions -----
// ---------------------

// PointerTo returns a pointer type to elem. Pointer types are not interned; every call
// allocates.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: Pointer, Elem: elem}
}

// ArrayOf returns a fixed-length array type of n elements of type elem.
func ArrayOf(elem *Type, n int) *Type {
	return &Type{Kind: Array, Elem: elem, Len: n}
}

// IsIntType reports whether t is the scalar 32-bit integer type.
func (t *Type) IsIntType() bool { return t.Kind == Int32 }

// IsFloatType reports whether t is the scalar 32-bit float type.
func (t *Type) IsFloatType() bool { return t.Kind == Float32 }

// IsPointerType reports whether t is a pointer type.
func (t *Type) IsPointerType() bool { return t.Kind == Pointer }

// IsArrayType reports whether t is a fixed-length array type.
func (t *Type) IsArrayType() bool { return t.Kind == Array }

// BaseType returns the type one level of indirection down: the pointee of a Pointer, or the
// element type of an Array. It panics for scalar/void types, which have no base type.
func (t *Type) BaseType() *Type {
	switch t.Kind {
	case Pointer, Array:
		return t.Elem
	default:
		panic(fmt.Sprintf("atomir: BaseType called on scalar type %v", t.Kind))
	}
}

// ByteLen returns the storage size of t: 4 bytes for int32/float32, 8 for a pointer (RV64), and
// Len*Elem.ByteLen() for an array. All integer and float locals are 32-bit, per the Sy language
// definition -- there is no 64-bit integer type.
func (t *Type) ByteLen() int {
	switch t.Kind {
	case Int32, Float32:
		return 4
	case Pointer:
		return 8
	case Array:
		return t.Len * t.Elem.ByteLen()
	default:
		return 0
	}
}

// String renders t as a Sy-ish type name, used by debug printing.
func (t *Type) String() string {
	switch t.Kind {
	case Int32:
		return "int"
	case Float32:
		return "float"
	case Pointer:
		return "ptr<" + t.Elem.String() + ">"
	case Array:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem.String())
	case Void:
		return "void"
	default:
		return "?"
	}
}
