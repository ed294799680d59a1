// Package typemap converts native type spellings into wire types.
//
// Parse is deliberately literal: it recognises the exact spellings the
// extractor produces (tokens joined by single spaces) and nothing broader.
// Anything it does not recognise is assumed to be a named entity that
// converts itself across the boundary.
package typemap

import (
	"strings"
	"unicode"

	"github.com/roach88/kotars/internal/ir"
)

// ByteBufferSpelling is the native spelling of an owned byte buffer.
const ByteBufferSpelling = "Vec<u8>"

var primitives = map[string]ir.WireType{
	"i32":    ir.Int32,
	"i64":    ir.Int64,
	"u64":    ir.UInt64,
	"f32":    ir.Float32,
	"f64":    ir.Float64,
	"String": ir.Utf8String,
	"bool":   ir.Bool,
}

// Parse maps a native type spelling to its wire type. It never fails:
// unrecognised text becomes NamedType(text).
//
// Rules, first match wins:
//  1. exact primitive spelling
//  2. whitespace-stripped text equal to Vec<u8> is a ByteBuffer
//  3. other List<T>/Vec<T> text is reserved and stays a NamedType
//  4. "Option < T >" (spacing-sensitive) wraps Parse(T) in Optional
//  5. "impl X" or "& impl X" is CallbackType(X)
//  6. NamedType(text)
func Parse(text string) ir.WireType {
	if t, ok := primitives[text]; ok {
		return t
	}

	stripped := stripSpace(text)
	if stripped == ByteBufferSpelling {
		return ir.ByteBuffer
	}
	if isSequence(stripped) {
		// Sequences other than bytes are not marshaled yet.
		return ir.NamedType{Name: text}
	}

	if inner, ok := optionalInner(text); ok {
		return ir.Optional{Elem: Parse(inner)}
	}

	for _, marker := range []string{"& impl ", "impl "} {
		if rest, ok := strings.CutPrefix(text, marker); ok {
			return ir.CallbackType{Name: strings.TrimSpace(rest)}
		}
	}

	return ir.NamedType{Name: text}
}

// IsPrimitive reports whether text is one of the exact primitive spellings.
func IsPrimitive(text string) bool {
	_, ok := primitives[text]
	return ok
}

func optionalInner(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "Option < ")
	if !ok {
		return "", false
	}
	inner, ok := strings.CutSuffix(rest, " >")
	if !ok || inner == "" {
		return "", false
	}
	return inner, true
}

func isSequence(stripped string) bool {
	if !strings.HasSuffix(stripped, ">") {
		return false
	}
	return strings.HasPrefix(stripped, "Vec<") || strings.HasPrefix(stripped, "List<")
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// NativeSpelling is the inverse of Parse for generated native code: it
// returns the native type a wire type is converted into.
func NativeSpelling(t ir.WireType) string {
	switch v := t.(type) {
	case ir.Scalar:
		switch v {
		case ir.Int32:
			return "i32"
		case ir.Int64:
			return "i64"
		case ir.UInt64:
			return "u64"
		case ir.Float32:
			return "f32"
		case ir.Float64:
			return "f64"
		case ir.Bool:
			return "bool"
		case ir.Utf8String:
			return "String"
		case ir.ByteBuffer:
			return ByteBufferSpelling
		case ir.Void:
			return "()"
		}
		return v.String()
	case ir.ObjectHandle:
		return v.Owner
	case ir.NamedType:
		return v.Name
	case ir.CallbackType:
		return "impl " + v.Name
	case ir.Optional:
		return "Option<" + NativeSpelling(v.Elem) + ">"
	default:
		return "<unknown>"
	}
}
