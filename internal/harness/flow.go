package harness

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kotars/internal/boundary"
	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/signature"
)

// flow executes scenario steps against a boundary machine.
type flow struct {
	bundle  *ir.Bundle
	machine *boundary.Machine
	result  *Result

	// bindings holds host objects by binding name.
	bindings map[string]*boundary.Object
	classes  map[string]string
	objects  int
}

func newFlow(b *ir.Bundle, result *Result) *flow {
	return &flow{
		bundle:   b,
		machine:  boundary.New(b),
		result:   result,
		bindings: make(map[string]*boundary.Object),
		classes:  make(map[string]string),
	}
}

// run executes every step, recording failures in the result. Only
// malformed steps abort the flow.
func (f *flow) run(steps []FlowStep) error {
	for i, step := range steps {
		var err error
		if step.Dispose != "" {
			err = f.dispose(step)
		} else {
			err = f.call(step)
		}
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	f.result.LiveHandles = f.machine.Handles.Len()
	return nil
}

// check compares an outcome error with the step's expected error.
func (f *flow) check(what string, err error, want string) {
	switch {
	case err == nil && want != "":
		f.result.AddError(fmt.Sprintf("%s: expected error containing %q, got success", what, want))
	case err != nil && want == "":
		f.result.AddError(fmt.Sprintf("%s: unexpected error: %v", what, err))
	case err != nil && !strings.Contains(err.Error(), want):
		f.result.AddError(fmt.Sprintf("%s: expected error containing %q, got %v", what, want, err))
	}
}

func (f *flow) dispose(step FlowStep) error {
	obj, ok := f.bindings[step.Dispose]
	if !ok {
		return fmt.Errorf("unknown binding %q", step.Dispose)
	}
	class := f.classes[step.Dispose]
	h, _ := obj.Fields["pointer"].(boundary.JLong)

	err := f.machine.Dispose(class, h)
	ev := TraceEvent{Kind: EventDispose, Call: class + "::destroy", Args: []string{step.Dispose}}
	if err != nil {
		ev.Error = err.Error()
	}
	f.result.addEvent(ev)
	f.check("dispose "+step.Dispose, err, step.Error)
	return nil
}

func (f *flow) function(call string) (ir.Function, error) {
	owner, name, _ := strings.Cut(call, "::")
	for _, fn := range f.bundle.FunctionsOf(owner) {
		if fn.Name == name {
			return fn, nil
		}
	}
	return ir.Function{}, fmt.Errorf("no function %s", call)
}

func (f *flow) isClass(t ir.WireType) (string, bool) {
	n, ok := t.(ir.NamedType)
	if !ok {
		return "", false
	}
	_, isClass := f.bundle.Class(n.Name)
	return n.Name, isClass
}

func (f *flow) call(step FlowStep) error {
	fn, err := f.function(step.Call)
	if err != nil {
		return err
	}
	entry, err := marshal.EntryPoint(fn, f.machine.Encoder, marshal.Classes(f.bundle))
	if err != nil {
		return err
	}

	args, err := f.hostArgs(fn, step)
	if err != nil {
		return err
	}

	idx := f.result.addEvent(TraceEvent{Kind: EventCall, Call: step.Call})
	host, err := f.machine.Invoke(entry, f.impl(fn, step, idx), args...)
	if err != nil {
		f.result.Trace[idx].Error = err.Error()
		f.check(step.Call, err, step.Error)
		return nil
	}

	if fn.ReturnType == nil {
		f.check(step.Call, nil, step.Error)
		return nil
	}
	if class, ok := f.isClass(fn.ReturnType); ok {
		obj, isObj := host.(*boundary.Object)
		if !isObj || obj == nil {
			return fmt.Errorf("%s returned %v, expected a %s object", step.Call, host, class)
		}
		if step.Bind != "" {
			f.bindings[step.Bind] = obj
			f.classes[step.Bind] = class
		}
		f.check(step.Call, nil, step.Error)
		return nil
	}

	back, err := f.machine.FromHost(fn.ReturnType, host)
	if err != nil {
		f.result.Trace[idx].Error = err.Error()
		f.check(step.Call, err, step.Error)
		return nil
	}
	f.result.Trace[idx].Result = describe(back)
	f.check(step.Call, nil, step.Error)
	return f.expect(step.Call, fn.ReturnType, step.Expect, back)
}

// hostArgs builds the boundary arguments of step in entry point order.
func (f *flow) hostArgs(fn ir.Function, step FlowStep) ([]any, error) {
	var args []any
	if _, ok := fn.Receiver(); ok {
		obj, ok := f.bindings[step.Receiver]
		if !ok {
			return nil, fmt.Errorf("%s: unknown receiver binding %q", step.Call, step.Receiver)
		}
		args = append(args, obj.Fields["pointer"])
	}

	params := fn.NamedParameters()
	if len(step.Args) != len(params) {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", step.Call, len(params), len(step.Args))
	}
	for i, p := range params {
		v, err := f.hostArg(p, step.Args[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", step.Call, p.Name, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func (f *flow) hostArg(p ir.Named, v any) (any, error) {
	if cb, ok := p.Type.(ir.CallbackType); ok {
		return f.callback(cb.Name, v)
	}
	if _, ok := f.isClass(p.Type); ok {
		name, _ := v.(string)
		obj, ok := f.bindings[name]
		if !ok {
			return nil, fmt.Errorf("unknown binding %v", v)
		}
		return obj, nil
	}
	native, err := f.native(p.Type, v)
	if err != nil {
		return nil, err
	}
	return f.machine.ToHost(p.Type, native)
}

// callback builds a host callback object from {callback: {method: value}}.
// A value of {throw: message} makes the method throw instead.
func (f *flow) callback(iface string, v any) (any, error) {
	spec, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected {callback: ...}, got %v", v)
	}
	returns, _ := spec["callback"].(map[string]any)

	var decl ir.Interface
	for _, i := range f.bundle.Interfaces {
		if i.Name == iface {
			decl = i
		}
	}

	methods := make(map[string]boundary.Method)
	for _, fn := range decl.Functions {
		methods[signature.CamelCase(fn.Name)] = f.hostMethod(iface, fn, returns[fn.Name])
	}
	return boundary.Callback(f.machine.Encoder.ClassPath(iface+"Impl"), methods), nil
}

// hostMethod returns a host implementation of fn that records its
// arguments and returns ret.
func (f *flow) hostMethod(iface string, fn ir.Function, ret any) boundary.Method {
	return func(args []any) (any, error) {
		ev := TraceEvent{Kind: EventCallback, Call: iface + "." + signature.CamelCase(fn.Name)}
		for i, p := range fn.NamedParameters() {
			back, err := f.machine.FromHost(p.Type, args[i])
			if err != nil {
				return nil, err
			}
			ev.Args = append(ev.Args, describe(back))
		}
		idx := f.result.addEvent(ev)

		if m, ok := ret.(map[string]any); ok {
			if msg, ok := m["throw"].(string); ok {
				f.result.Trace[idx].Error = msg
				return nil, errors.New(msg)
			}
		}
		if fn.ReturnType == nil {
			return nil, nil
		}
		native, err := f.native(fn.ReturnType, ret)
		if err != nil {
			return nil, err
		}
		f.result.Trace[idx].Result = describe(native)
		return f.machine.ToHost(fn.ReturnType, native)
	}
}

// impl returns the native implementation used for a call step.
func (f *flow) impl(fn ir.Function, step FlowStep, idx int) boundary.Func {
	return func(receiver any, args []any) (any, error) {
		ev := &f.result.Trace[idx]
		if receiver != nil {
			ev.Args = append(ev.Args, describe(receiver))
		}
		for _, a := range args {
			ev.Args = append(ev.Args, describe(a))
		}

		for _, cb := range step.Invoke {
			if err := f.invoke(fn, args, cb); err != nil {
				return nil, err
			}
		}

		if fn.ReturnType == nil {
			return nil, nil
		}
		if class, ok := f.isClass(fn.ReturnType); ok {
			f.objects++
			n := &Native{Class: class, ID: f.objects}
			f.result.Trace[idx].Result = n.String()
			return n, nil
		}
		var ret any
		if step.Returns.Kind != 0 {
			if err := step.Returns.Decode(&ret); err != nil {
				return nil, err
			}
		}
		return f.native(fn.ReturnType, ret)
	}
}

// invoke makes one native call on the first bridge among args.
func (f *flow) invoke(fn ir.Function, args []any, cb CallbackStep) error {
	var bridge *boundary.Bridge
	for _, a := range args {
		if b, ok := a.(*boundary.Bridge); ok {
			bridge = b
			break
		}
	}
	if bridge == nil {
		return fmt.Errorf("%s::%s takes no callback", fn.Owner, fn.Name)
	}

	var method ir.Function
	for _, i := range f.bundle.Interfaces {
		if i.Name != bridge.Interface() {
			continue
		}
		for _, m := range i.Functions {
			if m.Name == cb.Method {
				method = m
			}
		}
	}
	params := method.NamedParameters()
	if len(cb.Args) != len(params) {
		return fmt.Errorf("%s.%s: expected %d arguments, got %d", bridge.Interface(), cb.Method, len(params), len(cb.Args))
	}
	native := make([]any, len(params))
	for i, p := range params {
		v, err := f.native(p.Type, cb.Args[i])
		if err != nil {
			return err
		}
		native[i] = v
	}

	got, err := bridge.Call(cb.Method, native...)
	what := bridge.Interface() + "." + cb.Method
	var cbErr *boundary.CallbackError
	if err != nil && !errors.As(err, &cbErr) {
		return err
	}
	f.check(what, err, cb.Error)
	if err != nil {
		return nil
	}
	return f.expect(what, method.ReturnType, cb.Expect, got)
}

// expect compares got with the expected YAML value, when one is given.
func (f *flow) expect(what string, t ir.WireType, node yaml.Node, got any) error {
	if node.Kind == 0 || t == nil {
		return nil
	}
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	want, err := f.native(t, raw)
	if err != nil {
		return fmt.Errorf("%s: expect: %w", what, err)
	}
	if !reflect.DeepEqual(want, got) {
		f.result.AddError(fmt.Sprintf("%s: expected %s, got %s", what, describe(want), describe(got)))
	}
	return nil
}
