package boundary

import "fmt"

// Boundary primitives, as the host passes them.
type (
	JInt     int32
	JLong    int64
	JFloat   float32
	JDouble  float64
	JBoolean uint8
)

// Class paths of the built-in host classes.
const (
	StringClass = "java/lang/String"
	BytesClass  = "[B"
)

// Method is a host-side callback implementation. It receives boundary
// values and returns one; a non-nil error is a pending host exception.
type Method func(args []any) (any, error)

// Object is a host object reference. A nil *Object is the null reference.
type Object struct {
	Class   string
	Str     string            // StringClass only
	Bytes   []byte            // BytesClass only
	Fields  map[string]any    // declared fields, box "value", class "pointer"
	Methods map[string]Method // callback implementations by host method name
}

func (o *Object) String() string {
	if o == nil {
		return "null"
	}
	switch o.Class {
	case StringClass:
		return fmt.Sprintf("%q", o.Str)
	case BytesClass:
		return fmt.Sprintf("byte[%d]", len(o.Bytes))
	}
	return o.Class + "@" + fmt.Sprintf("%p", o)
}

// String returns a host string.
func String(s string) *Object { return &Object{Class: StringClass, Str: s} }

// Bytes returns a host byte array.
func Bytes(b []byte) *Object { return &Object{Class: BytesClass, Bytes: b} }

// Callback returns a host object implementing an interface.
func Callback(class string, methods map[string]Method) *Object {
	return &Object{Class: class, Methods: methods}
}

// Option is a native optional value.
type Option struct {
	Valid bool
	Value any
}

// Some wraps a present native value.
func Some(v any) Option { return Option{Valid: true, Value: v} }

// None is the absent native value.
var None = Option{}

// Record is a native data-class value. Fields are in declaration order.
type Record struct {
	Name   string
	Fields []any
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	o, ok := v.(*Object)
	return ok && o == nil
}
