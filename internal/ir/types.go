package ir

import "fmt"

// WireType is a sealed interface over the closed set of types that can
// cross the boundary.
// Only Scalar, ObjectHandle, NamedType, CallbackType and Optional implement it.
type WireType interface {
	wireType() // Sealed - only these types implement it
	String() string
}

// Scalar enumerates the wire types that carry no payload.
type Scalar uint8

const (
	Int32 Scalar = iota + 1
	Int64
	UInt64
	Float32
	Float64
	Bool
	Utf8String
	ByteBuffer
	Void
)

func (Scalar) wireType() {}

var scalarNames = map[Scalar]string{
	Int32:      "Int32",
	Int64:      "Int64",
	UInt64:     "UInt64",
	Float32:    "Float32",
	Float64:    "Float64",
	Bool:       "Bool",
	Utf8String: "Utf8String",
	ByteBuffer: "ByteBuffer",
	Void:       "Void",
}

// String returns the variant name used in the JSON encoding.
func (s Scalar) String() string {
	if name, ok := scalarNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scalar(%d)", uint8(s))
}

// Valid reports whether s is one of the declared scalar variants.
func (s Scalar) Valid() bool {
	_, ok := scalarNames[s]
	return ok
}

// IsNumeric reports whether s is an integer or floating point scalar.
func (s Scalar) IsNumeric() bool {
	switch s {
	case Int32, Int64, UInt64, Float32, Float64:
		return true
	}
	return false
}

// scalarByName is the inverse of scalarNames, used by the decoder.
func scalarByName(name string) (Scalar, bool) {
	for s, n := range scalarNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// ObjectHandle is a native object living behind an opaque 64-bit handle.
// Receivers are always encoded as an ObjectHandle of their owning type.
type ObjectHandle struct {
	Owner string
}

func (ObjectHandle) wireType() {}

func (h ObjectHandle) String() string { return "ObjectHandle(" + h.Owner + ")" }

// NamedType is an entity that converts itself across the boundary
// (a data class or a handle-backed class).
type NamedType struct {
	Name string
}

func (NamedType) wireType() {}

func (n NamedType) String() string { return "NamedType(" + n.Name + ")" }

// CallbackType is a host-side object implementing a native interface,
// reached through a bridge object.
type CallbackType struct {
	Name string
}

func (CallbackType) wireType() {}

func (c CallbackType) String() string { return "CallbackType(" + c.Name + ")" }

// Optional wraps a wire type whose value may be absent (null at the boundary).
type Optional struct {
	Elem WireType
}

func (Optional) wireType() {}

func (o Optional) String() string {
	if o.Elem == nil {
		return "Optional(<nil>)"
	}
	return "Optional(" + o.Elem.String() + ")"
}

// Unwrap strips every Optional layer and returns the innermost type
// together with the number of layers removed.
// Nesting is not assumed absent: Optional(Optional(T)) unwraps to (T, 2).
func Unwrap(t WireType) (WireType, int) {
	depth := 0
	for {
		opt, ok := t.(Optional)
		if !ok {
			return t, depth
		}
		t = opt.Elem
		depth++
	}
}

// IsObjectShaped reports whether the boundary representation of t is an
// object reference rather than a primitive slot.
func IsObjectShaped(t WireType) bool {
	switch v := t.(type) {
	case Scalar:
		return v == Utf8String || v == ByteBuffer
	case ObjectHandle:
		return false
	case NamedType, CallbackType, Optional:
		return true
	default:
		return false
	}
}

// EqualWireTypes compares two wire types structurally.
func EqualWireTypes(a, b WireType) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Optional:
		y, ok := b.(Optional)
		return ok && EqualWireTypes(x.Elem, y.Elem)
	default:
		return a == b
	}
}
