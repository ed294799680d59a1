package signature

import (
	"fmt"

	"github.com/roach88/kotars/internal/ir"
)

// BoundaryDecl returns the native spelling of t in an entry-point
// signature: the raw boundary value type, before any conversion.
func BoundaryDecl(t ir.WireType) (string, error) {
	switch v := t.(type) {
	case ir.Scalar:
		switch v {
		case ir.Int32:
			return "jni::sys::jint", nil
		case ir.Int64, ir.UInt64:
			return "jni::sys::jlong", nil
		case ir.Float32:
			return "jni::sys::jfloat", nil
		case ir.Float64:
			return "jni::sys::jdouble", nil
		case ir.Bool:
			return "jni::sys::jboolean", nil
		case ir.Utf8String:
			return "jni::objects::JString<'local>", nil
		case ir.ByteBuffer:
			return "jni::objects::JByteArray<'local>", nil
		case ir.Void:
			return "", ErrVoidValue
		}
		return "", fmt.Errorf("invalid scalar %d", uint8(v))
	case ir.ObjectHandle:
		return "jni::sys::jlong", nil
	case ir.NamedType, ir.CallbackType, ir.Optional:
		return "jni::objects::JObject<'local>", nil
	default:
		return "", fmt.Errorf("unknown wire type %T", t)
	}
}

// ReturnDecl returns the native spelling of an entry-point return type.
// Object-shaped values are returned as raw jobject pointers.
func ReturnDecl(t ir.WireType) (string, error) {
	if ir.IsObjectShaped(t) {
		return "jni::sys::jobject", nil
	}
	return BoundaryDecl(t)
}

// Box describes the boxed host class carrying an optional primitive.
type Box struct {
	Class     string // slash-separated class path
	Field     string // field holding the primitive
	FieldDesc string // descriptor of that field
	Accessor  string // JValue accessor for the primitive ("i", "j", ...)
}

// Boxed returns the box used when a primitive travels as an Optional.
// Object-shaped types need no box and report false.
func Boxed(t ir.WireType) (Box, bool) {
	s, ok := t.(ir.Scalar)
	if !ok {
		return Box{}, false
	}
	switch s {
	case ir.Int32:
		return Box{Class: "java/lang/Integer", Field: "value", FieldDesc: "I", Accessor: "i"}, true
	case ir.Int64, ir.UInt64:
		return Box{Class: "java/lang/Long", Field: "value", FieldDesc: "J", Accessor: "j"}, true
	case ir.Float32:
		return Box{Class: "java/lang/Float", Field: "value", FieldDesc: "F", Accessor: "f"}, true
	case ir.Float64:
		return Box{Class: "java/lang/Double", Field: "value", FieldDesc: "D", Accessor: "d"}, true
	case ir.Bool:
		return Box{Class: "java/lang/Boolean", Field: "value", FieldDesc: "Z", Accessor: "z"}, true
	}
	return Box{}, false
}

// KotlinType returns the host-language spelling of t.
func KotlinType(t ir.WireType) string {
	switch v := t.(type) {
	case ir.Scalar:
		switch v {
		case ir.Int32:
			return "Int"
		case ir.Int64, ir.UInt64:
			return "Long"
		case ir.Float32:
			return "Float"
		case ir.Float64:
			return "Double"
		case ir.Bool:
			return "Boolean"
		case ir.Utf8String:
			return "String"
		case ir.ByteBuffer:
			return "ByteArray"
		case ir.Void:
			return "Unit"
		}
		return v.String()
	case ir.ObjectHandle:
		return "Long"
	case ir.NamedType:
		return v.Name
	case ir.CallbackType:
		return v.Name
	case ir.Optional:
		inner, _ := ir.Unwrap(v)
		return KotlinType(inner) + "?"
	default:
		return "Any"
	}
}
