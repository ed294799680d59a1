package boundary

import (
	"fmt"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/signature"
)

// CallbackError reports an exception left pending by a host callback.
type CallbackError struct {
	Interface string
	Method    string
	Err       error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("exception in %s.%s: %v", e.Interface, e.Method, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// Bridge is the native view of a host callback object: it implements the
// interface by forwarding each call to the host.
type Bridge struct {
	m        *Machine
	iface    ir.Interface
	callback *Object
}

func (m *Machine) bridge(name string, v any) (*Bridge, error) {
	iface, ok := m.interfaces[name]
	if !ok {
		return nil, fmt.Errorf("no interface declaration for %s", name)
	}
	if isNull(v) {
		return nil, fmt.Errorf("null %s callback", name)
	}
	o, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("expected a callback object, got %T", v)
	}
	return &Bridge{m: m, iface: iface, callback: o}, nil
}

// Interface returns the name of the implemented interface.
func (b *Bridge) Interface() string { return b.iface.Name }

// Call invokes the interface method name with native arguments and
// returns the native result, nil for methods without one.
func (b *Bridge) Call(name string, args ...any) (any, error) {
	var fn *ir.Function
	for i := range b.iface.Functions {
		if b.iface.Functions[i].Name == name {
			fn = &b.iface.Functions[i]
			break
		}
	}
	if fn == nil {
		return nil, fmt.Errorf("%s has no method %s", b.iface.Name, name)
	}
	params := fn.NamedParameters()
	if len(args) != len(params) {
		return nil, fmt.Errorf("%s.%s: expected %d arguments, got %d", b.iface.Name, name, len(params), len(args))
	}

	hostArgs := make([]any, len(params))
	for i, p := range params {
		v, err := b.m.ToHost(p.Type, args[i])
		if err != nil {
			return nil, err
		}
		hostArgs[i] = v
	}

	method := signature.CamelCase(fn.Name)
	impl, ok := b.callback.Methods[method]
	if !ok {
		return nil, &CallbackError{Interface: b.iface.Name, Method: method, Err: fmt.Errorf("no method %s on %s", method, b.callback.Class)}
	}
	value, err := impl(hostArgs)
	if err != nil {
		return nil, &CallbackError{Interface: b.iface.Name, Method: method, Err: err}
	}

	if fn.ReturnType == nil {
		return nil, nil
	}
	plan, err := marshal.ReadValue(fn.ReturnType, "result", "value")
	if err != nil {
		return nil, err
	}
	vars := scope{"value": value}
	if err := b.m.Run(plan.Steps, vars); err != nil {
		return nil, err
	}
	return vars[plan.Binding], nil
}
