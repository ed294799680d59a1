// Package signature encodes wire types into boundary spellings: JVM method
// descriptors, native entry-point parameter types, host-language types and
// the entry-point naming convention that links generated native and host
// code.
//
// Every function here is pure. The same input always yields the same
// string, and both generated sides derive their names from this package
// so they cannot drift apart.
package signature

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/kotars/internal/ir"
)

// DefaultSuffix is appended to the owner name to form the name of the
// private host object holding the external declarations.
const DefaultSuffix = "Obj"

// ErrVoidValue is returned when Void is used where a value is required.
var ErrVoidValue = errors.New("Void cannot be passed as a value")

// Encoder derives descriptors and entry-point names for one package.
type Encoder struct {
	// Package is the dotted host package ("" for the default package).
	Package string

	// Prefix overrides the entry-point prefix. When empty it is derived
	// from Package: "Java" or "Java_<mangled package>".
	Prefix string

	// Suffix overrides DefaultSuffix.
	Suffix string

	// BoxOptionals encodes Optional(primitive) as its boxed class instead
	// of erasing it to the primitive descriptor.
	BoxOptionals bool
}

// New returns an Encoder for pkg with default naming.
func New(pkg string) *Encoder {
	return &Encoder{Package: pkg}
}

// ClassPath returns the slash-separated JVM class path of a host type.
func (e *Encoder) ClassPath(name string) string {
	if e.Package == "" {
		return name
	}
	return strings.ReplaceAll(e.Package, ".", "/") + "/" + name
}

// Descriptor returns the JVM field descriptor of t.
//
// Optional(T) encodes as the descriptor of T: optionality is erased here
// and recovered at runtime by a null check. With BoxOptionals set,
// optional primitives encode as their boxed class instead.
func (e *Encoder) Descriptor(t ir.WireType) string {
	switch v := t.(type) {
	case ir.Scalar:
		switch v {
		case ir.Int32:
			return "I"
		case ir.Int64, ir.UInt64:
			return "J"
		case ir.Float32:
			return "F"
		case ir.Float64:
			return "D"
		case ir.Bool:
			return "Z"
		case ir.Utf8String:
			return "Ljava/lang/String;"
		case ir.ByteBuffer:
			return "[B"
		case ir.Void:
			return "V"
		}
		panic(fmt.Sprintf("signature: invalid scalar %d", uint8(v)))
	case ir.ObjectHandle:
		return "J"
	case ir.NamedType:
		return "L" + e.ClassPath(v.Name) + ";"
	case ir.CallbackType:
		return "L" + e.ClassPath(v.Name) + ";"
	case ir.Optional:
		inner, _ := ir.Unwrap(v)
		if e.BoxOptionals {
			if box, ok := Boxed(inner); ok {
				return "L" + box.Class + ";"
			}
		}
		return e.Descriptor(inner)
	default:
		panic(fmt.Sprintf("signature: unknown wire type %T", t))
	}
}

// Method returns the descriptor "(<params>)<ret>". A nil ret is Void.
func (e *Encoder) Method(params []ir.WireType, ret ir.WireType) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if p == ir.Void {
			return "", fmt.Errorf("parameter %d: %w", i, ErrVoidValue)
		}
		b.WriteString(e.Descriptor(p))
	}
	b.WriteByte(')')
	if ret == nil {
		b.WriteByte('V')
	} else {
		b.WriteString(e.Descriptor(ret))
	}
	return b.String(), nil
}

// NativeDescriptor is the descriptor of fn's external declaration.
// A receiver is passed as the object's handle.
func (e *Encoder) NativeDescriptor(fn ir.Function) (string, error) {
	params := make([]ir.WireType, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		params = append(params, ir.ParameterType(p, fn.Owner))
	}
	d, err := e.Method(params, fn.ReturnType)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", fn.Owner, fn.Name, err)
	}
	return d, nil
}

// CallbackDescriptor is the descriptor of a host interface method.
// The receiver is the callback object itself and is dropped.
func (e *Encoder) CallbackDescriptor(fn ir.Function) (string, error) {
	named := fn.NamedParameters()
	params := make([]ir.WireType, len(named))
	for i, p := range named {
		params[i] = p.Type
	}
	d, err := e.Method(params, fn.ReturnType)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", fn.Owner, fn.Name, err)
	}
	return d, nil
}

// Constructor returns the descriptor of a data class primary constructor.
func (e *Encoder) Constructor(fields []ir.Field) (string, error) {
	params := make([]ir.WireType, len(fields))
	for i, f := range fields {
		params[i] = f.Type
	}
	return e.Method(params, nil)
}

// HandleConstructor is the descriptor of a handle-backed class constructor.
const HandleConstructor = "(J)V"

func (e *Encoder) prefix() string {
	if e.Prefix != "" {
		return e.Prefix
	}
	if e.Package == "" {
		return "Java"
	}
	return "Java_" + Mangle(e.Package)
}

func (e *Encoder) suffix() string {
	if e.Suffix != "" {
		return e.Suffix
	}
	return DefaultSuffix
}

// HostObject returns the name of the private host object that declares
// the external functions of owner.
func (e *Encoder) HostObject(owner string) string {
	return owner + e.suffix()
}

// EntryPoint returns <Prefix>_<Owner><Suffix>_<camelCaseMethod>.
func (e *Encoder) EntryPoint(owner, method string) string {
	return e.prefix() + "_" + Mangle(e.HostObject(owner)) + "_" + Mangle(CamelCase(method))
}

// Disposer returns <Prefix>_<Owner><Suffix>_destroy.
func (e *Encoder) Disposer(owner string) string {
	return e.prefix() + "_" + Mangle(e.HostObject(owner)) + "_destroy"
}

// Mangle escapes a dotted JVM name for use in a native symbol:
// '_' becomes "_1" and '.' becomes '_'. Non-ASCII characters become
// "_0xxxx" per UTF-16 code unit, so a supplementary character is escaped
// as its surrogate pair.
func Mangle(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '_':
			b.WriteString("_1")
		case r == '.' || r == '/':
			b.WriteByte('_')
		case r == ';':
			b.WriteString("_2")
		case r == '[':
			b.WriteString("_3")
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, "_0%04x_0%04x", hi, lo)
		case r > 0x7f:
			fmt.Fprintf(&b, "_0%04x", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CamelCase converts a snake_case (or space separated) name to camelCase.
// The first word is kept as is; later words get an upper-case initial.
func CamelCase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == ' ' })
	if len(words) == 0 {
		return name
	}
	// A Caser is stateful; one per call.
	titler := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, " ") {
		b.WriteString(titler.String(words[0]))
	} else {
		b.WriteString(words[0])
	}
	for _, w := range words[1:] {
		b.WriteString(titler.String(w))
	}
	return b.String()
}
