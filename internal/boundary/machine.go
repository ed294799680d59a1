package boundary

import (
	"errors"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/signature"
)

// FatalError is a failure the generated code answers by aborting the
// process.
type FatalError struct {
	Op  marshal.Op
	Var string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal in %s of %s: %v", e.Op, e.Var, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Func is the native implementation behind an entry point. receiver is
// nil for functions without one.
type Func func(receiver any, args []any) (any, error)

type scope map[string]any

// Machine interprets marshaling plans for one bundle.
type Machine struct {
	Encoder *signature.Encoder
	Handles *HandleTable

	classes    map[string]bool
	data       map[string]ir.Struct
	interfaces map[string]ir.Interface
}

// New returns a Machine for the declarations of b with an empty handle
// table.
func New(b *ir.Bundle) *Machine {
	m := &Machine{
		Encoder:    signature.New(b.Package),
		Handles:    NewHandleTable(),
		classes:    make(map[string]bool),
		data:       make(map[string]ir.Struct),
		interfaces: make(map[string]ir.Interface),
	}
	for _, s := range b.Classes {
		m.classes[s.Name] = true
	}
	for _, s := range b.DataClasses {
		m.data[s.Name] = s
	}
	for _, i := range b.Interfaces {
		m.interfaces[i.Name] = i
	}
	return m
}

// ToHost converts a native value of type t into its boundary form.
func (m *Machine) ToHost(t ir.WireType, v any) (any, error) {
	plan, err := marshal.Marshal(t, "value")
	if err != nil {
		return nil, err
	}
	vars := scope{"value": v}
	if err := m.Run(plan.Steps, vars); err != nil {
		return nil, err
	}
	return vars[plan.Binding], nil
}

// FromHost converts a boundary parameter of type t into its native form.
// Handles are checked out and returned immediately.
func (m *Machine) FromHost(t ir.WireType, v any) (any, error) {
	plan, err := marshal.Unmarshal(t, "value")
	if err != nil {
		return nil, err
	}
	vars := scope{"value": v}
	if err := m.Run(plan.Steps, vars); err != nil {
		return nil, err
	}
	out := vars[plan.Binding]
	if err := m.Run(plan.Release, vars); err != nil {
		return nil, err
	}
	return out, nil
}

// Invoke runs the entry point e with the boundary arguments args, in the
// order of e.Params, calling impl in place of the native function.
func (m *Machine) Invoke(e *marshal.Entry, impl Func, args ...any) (any, error) {
	if len(args) != len(e.Params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", e.Symbol, len(e.Params), len(args))
	}
	vars := make(scope, len(args))
	for i, p := range e.Params {
		vars[p.Name] = args[i]
	}

	if err := m.Run(e.Unpack, vars); err != nil {
		return nil, err
	}

	var receiver any
	if _, ok := e.Function.Receiver(); ok {
		receiver = vars["receiver"]
	}
	callArgs := make([]any, len(e.Args))
	for i, a := range e.Args {
		callArgs[i] = vars[a]
	}
	result, err := impl(receiver, callArgs)
	if err != nil {
		return nil, fmt.Errorf("%s::%s: %w", e.Function.Owner, e.Function.Name, err)
	}
	vars["result"] = result

	if err := m.Run(e.Release, vars); err != nil {
		return nil, err
	}
	if err := m.Run(e.Pack, vars); err != nil {
		return nil, err
	}

	Logger().Debug("invoked entry point",
		zap.String("symbol", e.Symbol),
		zap.Int("live_handles", m.Handles.Len()))

	if e.Result == "" {
		return nil, nil
	}
	return vars["result"], nil
}

// Dispose runs the disposer of class for h.
func (m *Machine) Dispose(class string, h Handle) error {
	_, err := m.Handles.Dispose(h, class)
	return err
}

// Run executes steps in order against vars.
func (m *Machine) Run(steps []marshal.Step, vars map[string]any) error {
	for _, s := range steps {
		if err := m.exec(s, vars); err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return err
			}
			return &FatalError{Op: s.Op, Var: s.Var, Err: err}
		}
	}
	return nil
}

func (m *Machine) exec(s marshal.Step, vars scope) error {
	src := s.Source
	if src == "" {
		src = s.Var
	}
	in, ok := vars[src]
	if !ok && s.Op != marshal.OpCheckin {
		return fmt.Errorf("unbound %s", src)
	}

	var out any
	var err error
	switch s.Op {
	case marshal.OpCast:
		out, err = cast(in, s.Target)
	case marshal.OpBoolFromByte:
		b, ok := in.(uint8)
		if !ok {
			return fmt.Errorf("expected a byte, got %T", in)
		}
		out = b == 1
	case marshal.OpDecodeString:
		var o *Object
		if o, err = expectObject(in, StringClass); err == nil {
			out = o.Str
		}
	case marshal.OpDecodeBytes:
		var o *Object
		if o, err = expectObject(in, BytesClass); err == nil {
			out = append([]byte(nil), o.Bytes...)
		}
	case marshal.OpDowncastString, marshal.OpDowncastBytes, marshal.OpRead, marshal.OpMutable, marshal.OpToOwned:
		out = in
	case marshal.OpCheckout:
		h, ok := in.(JLong)
		if !ok {
			return fmt.Errorf("expected a handle, got %T", in)
		}
		out, err = m.Handles.Checkout(h, s.Target)
	case marshal.OpTake:
		h, ok := in.(JLong)
		if !ok {
			return fmt.Errorf("expected a handle, got %T", in)
		}
		out, err = m.Handles.Take(h, s.Target)
	case marshal.OpCheckin:
		h, ok := vars[s.Source].(JLong)
		if !ok {
			return fmt.Errorf("expected a handle in %s", s.Source)
		}
		return m.Handles.Checkin(h, vars[s.Var])
	case marshal.OpHandle:
		var o *Object
		if o, err = expectObject(in, m.Encoder.ClassPath(s.Target)); err == nil {
			h, ok := o.Fields["pointer"].(JLong)
			if !ok {
				return fmt.Errorf("%s has no pointer", s.Target)
			}
			out = h
		}
	case marshal.OpBorrow:
		h, ok := in.(JLong)
		if !ok {
			return fmt.Errorf("expected a handle, got %T", in)
		}
		owned := marshal.OwnedBinding(s.Var)
		for _, a := range s.Aliases {
			if vars[a.Handle] == h {
				vars[owned] = false
				vars[s.Var] = vars[a.Binding]
				return nil
			}
		}
		vars[owned] = true
		out, err = m.Handles.Checkout(h, s.Target)
	case marshal.OpUnborrow:
		if vars[marshal.OwnedBinding(s.Var)] != true {
			return nil
		}
		h, ok := vars[s.Source].(JLong)
		if !ok {
			return fmt.Errorf("expected a handle in %s", s.Source)
		}
		return m.Handles.Checkin(h, vars[s.Var])
	case marshal.OpFromEnv:
		out, err = m.fromEnv(s.Target, in)
	case marshal.OpIntoEnv:
		named, ok := s.Type.(ir.NamedType)
		if !ok {
			return fmt.Errorf("into_env of %s", s.Type)
		}
		out, err = m.intoEnv(named.Name, in)
	case marshal.OpBridge:
		cb, ok := s.Type.(ir.CallbackType)
		if !ok {
			return fmt.Errorf("bridge of %s", s.Type)
		}
		out, err = m.bridge(cb.Name, in)
	case marshal.OpUnbox:
		var o *Object
		if o, err = expectObject(in, s.Box.Class); err == nil {
			out = o.Fields[s.Box.Field]
		}
	case marshal.OpBox:
		out = &Object{Class: s.Box.Class, Fields: map[string]any{s.Box.Field: in}}
	case marshal.OpOptional:
		if isNull(in) {
			out = None
			break
		}
		inner := maps.Clone(vars)
		if err = m.Run(s.Inner, inner); err == nil {
			out = Some(inner[s.Var])
		}
	case marshal.OpNullable:
		opt, ok := in.(Option)
		if !ok {
			return fmt.Errorf("expected an optional, got %T", in)
		}
		if !opt.Valid {
			out = (*Object)(nil)
			break
		}
		inner := maps.Clone(vars)
		inner[s.Var] = opt.Value
		if err = m.Run(s.Inner, inner); err == nil {
			out = inner[s.Var]
		}
	case marshal.OpEncodeString:
		str, ok := in.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", in)
		}
		out = String(str)
	case marshal.OpEncodeBytes:
		b, ok := in.([]byte)
		if !ok {
			return fmt.Errorf("expected bytes, got %T", in)
		}
		out = Bytes(append([]byte(nil), b...))
	default:
		return fmt.Errorf("unknown op %s", s.Op)
	}
	if err != nil {
		return err
	}
	vars[s.Var] = out
	return nil
}

func expectObject(v any, class string) (*Object, error) {
	if isNull(v) {
		return nil, fmt.Errorf("null %s", class)
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	if o.Class != class {
		return nil, fmt.Errorf("expected %s, got %s", class, o.Class)
	}
	return o, nil
}

func (m *Machine) fromEnv(name string, v any) (any, error) {
	o, err := expectObject(v, m.Encoder.ClassPath(name))
	if err != nil {
		return nil, err
	}
	if m.classes[name] {
		h, ok := o.Fields["pointer"].(JLong)
		if !ok {
			return nil, fmt.Errorf("%s has no pointer", name)
		}
		return m.Handles.Take(h, name)
	}

	s, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("no declaration for %s", name)
	}
	rec := Record{Name: name, Fields: make([]any, len(s.Fields))}
	for i, f := range s.Fields {
		binding := "f_" + f.SafeName(i)
		plan, err := marshal.ReadValue(f.Type, binding, binding)
		if err != nil {
			return nil, err
		}
		vars := scope{binding: o.Fields[f.SafeName(i)]}
		if err := m.Run(plan.Steps, vars); err != nil {
			return nil, err
		}
		rec.Fields[i] = vars[plan.Binding]
	}
	return rec, nil
}

func (m *Machine) intoEnv(name string, v any) (any, error) {
	class := m.Encoder.ClassPath(name)
	if m.classes[name] {
		h := m.Handles.Insert(name, v)
		return &Object{Class: class, Fields: map[string]any{"pointer": h}}, nil
	}

	s, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("no declaration for %s", name)
	}
	rec, ok := v.(Record)
	if !ok || rec.Name != name || len(rec.Fields) != len(s.Fields) {
		return nil, fmt.Errorf("expected a %s record, got %v", name, v)
	}
	o := &Object{Class: class, Fields: make(map[string]any, len(s.Fields))}
	for i, f := range s.Fields {
		binding := "f_" + f.SafeName(i)
		plan, err := marshal.Marshal(f.Type, binding)
		if err != nil {
			return nil, err
		}
		vars := scope{binding: rec.Fields[i]}
		if err := m.Run(plan.Steps, vars); err != nil {
			return nil, err
		}
		o.Fields[f.SafeName(i)] = vars[plan.Binding]
	}
	return o, nil
}

func cast(v any, target string) (any, error) {
	switch x := v.(type) {
	case JInt:
		if target == "i32" {
			return int32(x), nil
		}
	case JLong:
		switch target {
		case "i64":
			return int64(x), nil
		case "u64":
			return uint64(x), nil
		}
	case JFloat:
		if target == "f32" {
			return float32(x), nil
		}
	case JDouble:
		if target == "f64" {
			return float64(x), nil
		}
	case JBoolean:
		if target == "u8" {
			return uint8(x), nil
		}
	case int32:
		if target == "jni::sys::jint" {
			return JInt(x), nil
		}
	case int64:
		if target == "jni::sys::jlong" {
			return JLong(x), nil
		}
	case uint64:
		if target == "jni::sys::jlong" {
			return JLong(x), nil
		}
	case float32:
		if target == "jni::sys::jfloat" {
			return JFloat(x), nil
		}
	case float64:
		if target == "jni::sys::jdouble" {
			return JDouble(x), nil
		}
	case bool:
		if target == "jni::sys::jboolean" {
			if x {
				return JBoolean(1), nil
			}
			return JBoolean(0), nil
		}
	}
	return nil, fmt.Errorf("cannot cast %T to %s", v, target)
}
