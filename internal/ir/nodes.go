package ir

import (
	"fmt"
	"strconv"
)

// Parameter is a sealed interface: a function parameter is either Named or
// the method Receiver.
type Parameter interface {
	parameter() // Sealed - only Named and Receiver implement it
}

// Borrow records whether a named parameter was declared behind a reference.
type Borrow string

const (
	BorrowNone    Borrow = ""
	BorrowShared  Borrow = "shared"
	BorrowMutable Borrow = "mutable"
)

// Named is an ordinary typed parameter.
type Named struct {
	Name   string   `json:"name"`
	Type   WireType `json:"ty"`
	Borrow Borrow   `json:"borrow,omitempty"` // call site passes &name / &mut name
}

func (Named) parameter() {}

// Receiver is the self parameter of a method.
// It is never wire-encoded as itself: see ParameterType.
type Receiver struct {
	Mutable   bool `json:"is_mutable"`
	Consuming bool `json:"consuming,omitempty"` // by-value self; the native object is moved out
}

func (Receiver) parameter() {}

// ParameterType returns the wire type a parameter crosses the boundary as.
// Receivers are encoded as an ObjectHandle of the owning type.
func ParameterType(p Parameter, owner string) WireType {
	switch v := p.(type) {
	case Named:
		return v.Type
	case Receiver:
		return ObjectHandle{Owner: owner}
	default:
		panic(fmt.Sprintf("ir: unknown parameter variant %T", p))
	}
}

// ValidateParameters enforces the receiver-position invariant: at most one
// Receiver, and only at index 0.
func ValidateParameters(params []Parameter) error {
	for i, p := range params {
		if _, ok := p.(Receiver); ok && i != 0 {
			return fmt.Errorf("receiver must be the first parameter, found at index %d", i)
		}
	}
	return nil
}

// Field is a struct member.
type Field struct {
	IsPublic bool     `json:"is_public"`
	Name     *string  `json:"name"` // nil for positional (tuple) fields
	Type     WireType `json:"ty"`
}

// SafeName returns the field's declared name, or the synthetic
// param<index> name used for positional fields.
func (f Field) SafeName(index int) string {
	if f.Name != nil {
		return *f.Name
	}
	return "param" + strconv.Itoa(index)
}

// Accessor returns the native expression selecting the field from self.
func (f Field) Accessor(index int) string {
	if f.Name != nil {
		return "self." + *f.Name
	}
	return "self." + strconv.Itoa(index)
}

// StringPtr is a convenience for building named fields.
func StringPtr(s string) *string {
	return &s
}

// Function is a free function or method belonging to Owner.
type Function struct {
	Owner      string      `json:"owner"`
	Name       string      `json:"name"`
	Parameters []Parameter `json:"parameters"`
	ReturnType WireType    `json:"return_type"` // nil when the function returns nothing
}

// IsStatic reports whether the function has no receiver.
func (f Function) IsStatic() bool {
	_, ok := f.Receiver()
	return !ok
}

// Receiver returns the function's receiver parameter if it has one.
func (f Function) Receiver() (Receiver, bool) {
	for _, p := range f.Parameters {
		if r, ok := p.(Receiver); ok {
			return r, true
		}
	}
	return Receiver{}, false
}

// NamedParameters returns the non-receiver parameters in declaration order.
func (f Function) NamedParameters() []Named {
	var out []Named
	for _, p := range f.Parameters {
		if n, ok := p.(Named); ok {
			out = append(out, n)
		}
	}
	return out
}

// Struct is a native struct exposed either as a handle-backed class
// (fields ignored at the boundary) or as a data class (fields marshaled).
type Struct struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// AllFieldsPublic reports whether every field is public.
// An empty field list counts as all public.
func (s Struct) AllFieldsPublic() bool {
	for _, f := range s.Fields {
		if !f.IsPublic {
			return false
		}
	}
	return true
}

// IsTuple reports whether the struct uses positional fields.
func (s Struct) IsTuple() bool {
	return len(s.Fields) > 0 && s.Fields[0].Name == nil
}

// Interface is a callback contract implemented on the host side.
type Interface struct {
	Name      string     `json:"name"`
	Functions []Function `json:"functions"`
}

// Bundle groups every IR node recovered from one source text.
type Bundle struct {
	Package     string      `json:"package"`
	Functions   []Function  `json:"functions"`
	Classes     []Struct    `json:"classes"`
	DataClasses []Struct    `json:"data_classes"`
	Interfaces  []Interface `json:"interfaces"`
}

// FunctionsOf returns the functions owned by owner, in declaration order.
func (b *Bundle) FunctionsOf(owner string) []Function {
	var out []Function
	for _, fn := range b.Functions {
		if fn.Owner == owner {
			out = append(out, fn)
		}
	}
	return out
}

// Class looks up a handle-backed class by name.
func (b *Bundle) Class(name string) (Struct, bool) {
	for _, s := range b.Classes {
		if s.Name == name {
			return s, true
		}
	}
	return Struct{}, false
}

// DataClass looks up a data class by name.
func (b *Bundle) DataClass(name string) (Struct, bool) {
	for _, s := range b.DataClasses {
		if s.Name == name {
			return s, true
		}
	}
	return Struct{}, false
}

// Len returns the number of IR nodes in the bundle.
func (b *Bundle) Len() int {
	return len(b.Functions) + len(b.Classes) + len(b.DataClasses) + len(b.Interfaces)
}
