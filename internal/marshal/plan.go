package marshal

import (
	"fmt"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/signature"
)

// Plan is the planned conversion of one value.
type Plan struct {
	Steps   []Step
	Binding string // binding that holds the converted value
	Release []Step // statements to run once the native call returns
}

// Lines renders the conversion statements.
func (p Plan) Lines() []string { return renderSteps(p.Steps) }

// nativeCasts maps numeric scalars to their native types.
var nativeCasts = map[ir.Scalar]string{
	ir.Int32:   "i32",
	ir.Int64:   "i64",
	ir.UInt64:  "u64",
	ir.Float32: "f32",
	ir.Float64: "f64",
}

// boundaryCasts maps numeric and boolean scalars to their raw boundary types.
var boundaryCasts = map[ir.Scalar]string{
	ir.Int32:   "jni::sys::jint",
	ir.Int64:   "jni::sys::jlong",
	ir.UInt64:  "jni::sys::jlong",
	ir.Float32: "jni::sys::jfloat",
	ir.Float64: "jni::sys::jdouble",
	ir.Bool:    "jni::sys::jboolean",
}

// BridgeName returns the name of the generated bridge for a callback trait.
func BridgeName(iface string) string { return iface + "JniBridge" }

// Unmarshal plans the conversion of the boundary parameter name, declared
// with signature.BoundaryDecl(t), into an owned native value.
func Unmarshal(t ir.WireType, name string) (Plan, error) {
	if h, ok := t.(ir.ObjectHandle); ok {
		binding := name + "_ref"
		return Plan{
			Steps:   []Step{{Op: OpCheckout, Var: binding, Source: name, Type: t, Target: h.Owner}},
			Binding: binding,
			Release: []Step{{Op: OpCheckin, Var: binding, Source: name, Type: t}},
		}, nil
	}
	steps, err := unmarshalSteps(t, name, true)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Steps: steps, Binding: name}, nil
}

func unmarshalSteps(t ir.WireType, name string, bridges bool) ([]Step, error) {
	switch v := t.(type) {
	case ir.Scalar:
		if target, ok := nativeCasts[v]; ok {
			return []Step{{Op: OpCast, Var: name, Type: t, Target: target}}, nil
		}
		switch v {
		case ir.Bool:
			return []Step{
				{Op: OpCast, Var: name, Type: t, Target: "u8"},
				{Op: OpBoolFromByte, Var: name, Type: t},
			}, nil
		case ir.Utf8String:
			return []Step{{Op: OpDecodeString, Var: name, Type: t}}, nil
		case ir.ByteBuffer:
			return []Step{{Op: OpDecodeBytes, Var: name, Type: t}}, nil
		}
		return nil, unsupported("unmarshal", t)
	case ir.NamedType:
		return []Step{{Op: OpFromEnv, Var: name, Type: t, Target: v.Name}}, nil
	case ir.CallbackType:
		if !bridges {
			return nil, unsupported("read back", t)
		}
		return []Step{{Op: OpBridge, Var: name, Type: t, Target: BridgeName(v.Name)}}, nil
	case ir.Optional:
		inner, err := fromObject(v.Elem, name, bridges)
		if err != nil {
			return nil, err
		}
		return []Step{{Op: OpOptional, Var: name, Type: t, Inner: inner}}, nil
	default:
		return nil, unsupported("unmarshal", t)
	}
}

// fromObject converts a generic object reference into a native value.
func fromObject(t ir.WireType, name string, bridges bool) ([]Step, error) {
	if box, ok := signature.Boxed(t); ok {
		rest, err := unmarshalSteps(t, name, bridges)
		if err != nil {
			return nil, err
		}
		return append([]Step{{Op: OpUnbox, Var: name, Type: t, Box: box}}, rest...), nil
	}

	switch t {
	case ir.Utf8String:
		return []Step{
			{Op: OpDowncastString, Var: name, Type: t},
			{Op: OpDecodeString, Var: name, Type: t},
		}, nil
	case ir.ByteBuffer:
		return []Step{
			{Op: OpDowncastBytes, Var: name, Type: t},
			{Op: OpDecodeBytes, Var: name, Type: t},
		}, nil
	}

	switch t.(type) {
	case ir.NamedType, ir.CallbackType, ir.Optional:
		return unmarshalSteps(t, name, bridges)
	}
	return nil, unsupported("unmarshal an optional", t)
}

// Marshal plans the conversion of the native value name into its
// boundary representation. Void, callbacks and raw handles cannot be
// marshaled: a function cannot return them across the boundary.
func Marshal(t ir.WireType, name string) (Plan, error) {
	steps, err := marshalSteps(t, name)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Steps: steps, Binding: name}, nil
}

func marshalSteps(t ir.WireType, name string) ([]Step, error) {
	switch v := t.(type) {
	case ir.Scalar:
		if target, ok := boundaryCasts[v]; ok {
			return []Step{{Op: OpCast, Var: name, Type: t, Target: target}}, nil
		}
		switch v {
		case ir.Utf8String:
			return []Step{{Op: OpEncodeString, Var: name, Type: t}}, nil
		case ir.ByteBuffer:
			return []Step{{Op: OpEncodeBytes, Var: name, Type: t}}, nil
		}
		return nil, unsupported("marshal", t)
	case ir.NamedType:
		return []Step{{Op: OpIntoEnv, Var: name, Type: t}}, nil
	case ir.Optional:
		inner, err := toObject(v.Elem, name)
		if err != nil {
			return nil, err
		}
		return []Step{{Op: OpNullable, Var: name, Type: t, Inner: inner}}, nil
	default:
		return nil, unsupported("marshal", t)
	}
}

// toObject converts a native value into a generic object reference,
// boxing primitives.
func toObject(t ir.WireType, name string) ([]Step, error) {
	if box, ok := signature.Boxed(t); ok {
		steps, err := marshalSteps(t, name)
		if err != nil {
			return nil, err
		}
		return append(steps, Step{Op: OpBox, Var: name, Type: t, Box: box}), nil
	}
	switch t.(type) {
	case ir.Scalar, ir.NamedType, ir.Optional:
		return marshalSteps(t, name)
	}
	return nil, unsupported("marshal an optional", t)
}

// ReadValue plans reading an owned boundary value (a field read or a
// callback result held in source) into a native value bound to name.
func ReadValue(t ir.WireType, name, source string) (Plan, error) {
	read := Step{Op: OpRead, Var: name, Source: source, Type: t}

	if box, ok := signature.Boxed(t); ok {
		read.Box = box
		rest, err := unmarshalSteps(t, name, false)
		if err != nil {
			return Plan{}, err
		}
		return Plan{Steps: append([]Step{read}, rest...), Binding: name}, nil
	}

	switch t.(type) {
	case ir.ObjectHandle, ir.CallbackType:
		return Plan{}, unsupported("read back", t)
	}
	if t == ir.Void {
		return Plan{}, unsupported("read back", t)
	}

	rest, err := fromObject(t, name, false)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Steps: append([]Step{read}, rest...), Binding: name}, nil
}

// Walk visits every step of a plan depth-first.
func Walk(steps []Step, fn func(Step)) {
	for _, s := range steps {
		fn(s)
		Walk(s.Inner, fn)
	}
}

// NeedsContext reports whether any parameter needs a call context, that
// is, whether a callback bridge is constructed anywhere.
func NeedsContext(t ir.WireType) bool {
	switch v := t.(type) {
	case ir.CallbackType:
		return true
	case ir.Optional:
		return NeedsContext(v.Elem)
	}
	return false
}

func describe(p Plan) string {
	ops := ""
	Walk(p.Steps, func(s Step) { ops += s.Op.String() + " " })
	return fmt.Sprintf("%s-> %s", ops, p.Binding)
}
