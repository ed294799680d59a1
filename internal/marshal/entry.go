package marshal

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/signature"
)

// BoundaryParam is one raw parameter of a generated entry point.
type BoundaryParam struct {
	Name string
	Decl string
}

// Entry is a planned native entry point for one function.
type Entry struct {
	Symbol   string
	Function ir.Function
	Params   []BoundaryParam // after the fixed env and class parameters
	Return   string          // raw boundary return type, "" for none

	// Conversion phases in execution order.
	Prologue []string // env and call-context setup
	Unpack   []Step   // parameters, declaration order
	Call     string   // the native call expression
	Args     []string // bindings passed to the call, declaration order
	Release  []Step   // handle check-ins
	Pack     []Step   // return value conversion
	Result   string   // final expression, "" for none
}

// ClassSet names the handle-backed classes of a bundle.
type ClassSet map[string]bool

// Classes returns the class set of b.
func Classes(b *ir.Bundle) ClassSet {
	set := make(ClassSet, len(b.Classes))
	for _, s := range b.Classes {
		set[s.Name] = true
	}
	return set
}

// EntryPoint plans the entry point of fn. classes decides which named
// parameter types are handle-backed: those are lent to the call when
// borrowed and moved out of the handle table when passed by value.
func EntryPoint(fn ir.Function, enc *signature.Encoder, classes ClassSet) (*Entry, error) {
	if err := ir.ValidateParameters(fn.Parameters); err != nil {
		return nil, &Error{Owner: fn.Owner, Function: fn.Name, Err: err}
	}

	e := &Entry{
		Symbol:   enc.EntryPoint(fn.Owner, fn.Name),
		Function: fn,
		Prologue: []string{"let env = &mut env;"},
	}

	var args []string
	receiverExpr := ""
	needsCtx := false
	// lent holds the shared borrows of each class made so far.
	lent := make(map[string][]Alias)

	for _, p := range fn.Parameters {
		switch v := p.(type) {
		case ir.Receiver:
			e.Params = append(e.Params, BoundaryParam{Name: "handle", Decl: "jni::sys::jlong"})
			handle := ir.ObjectHandle{Owner: fn.Owner}
			if v.Consuming {
				e.Unpack = append(e.Unpack, Step{Op: OpTake, Var: "receiver", Source: "handle", Type: handle, Target: fn.Owner})
			} else {
				e.Unpack = append(e.Unpack, Step{Op: OpCheckout, Var: "receiver", Source: "handle", Type: handle, Target: fn.Owner})
				e.Release = append(e.Release, Step{Op: OpCheckin, Var: "receiver", Source: "handle", Type: handle})
				if !v.Mutable {
					lent[fn.Owner] = append(lent[fn.Owner], Alias{Handle: "handle", Binding: "receiver"})
				}
			}
			receiverExpr = "receiver"

		case ir.Named:
			if reservedNames[v.Name] {
				return nil, &Error{Owner: fn.Owner, Function: fn.Name, Name: v.Name, Err: ErrReservedName}
			}
			decl, err := signature.BoundaryDecl(v.Type)
			if err != nil {
				return nil, &Error{Owner: fn.Owner, Function: fn.Name, Name: v.Name, Type: v.Type, Err: err}
			}
			if class, ok := v.Type.(ir.NamedType); ok && classes[class.Name] && v.Borrow != ir.BorrowNone {
				plan := borrowClass(v, class.Name, lent[class.Name])
				e.Params = append(e.Params, BoundaryParam{Name: v.Name, Decl: decl})
				e.Unpack = append(e.Unpack, plan.Steps...)
				e.Release = append(e.Release, plan.Release...)
				if v.Borrow == ir.BorrowShared {
					lent[class.Name] = append(lent[class.Name], Alias{Handle: v.Name + "_handle", Binding: plan.Binding, Ref: true})
					args = append(args, plan.Binding)
				} else {
					args = append(args, "&mut "+plan.Binding)
				}
				e.Args = append(e.Args, plan.Binding)
				continue
			}
			plan, err := Unmarshal(v.Type, v.Name)
			if err != nil {
				return nil, &Error{Owner: fn.Owner, Function: fn.Name, Name: v.Name, Type: v.Type, Err: err}
			}
			e.Params = append(e.Params, BoundaryParam{Name: v.Name, Decl: decl})
			e.Unpack = append(e.Unpack, plan.Steps...)
			e.Release = append(e.Release, plan.Release...)
			if v.Borrow == ir.BorrowMutable {
				e.Unpack = append(e.Unpack, Step{Op: OpMutable, Var: plan.Binding, Type: v.Type})
			}
			needsCtx = needsCtx || NeedsContext(v.Type)
			args = append(args, borrowExpr(v.Borrow, plan.Binding))
			e.Args = append(e.Args, plan.Binding)
		}
	}

	if needsCtx {
		e.Prologue = append(e.Prologue, "let ctx = CallContext::new(env);")
	}

	if receiverExpr != "" {
		e.Call = fmt.Sprintf("%s.%s(%s)", receiverExpr, fn.Name, strings.Join(args, ", "))
	} else {
		e.Call = fmt.Sprintf("%s::%s(%s)", fn.Owner, fn.Name, strings.Join(args, ", "))
	}

	if fn.ReturnType != nil {
		plan, err := Marshal(fn.ReturnType, "result")
		if err != nil {
			return nil, &Error{Owner: fn.Owner, Function: fn.Name, Name: "return", Type: fn.ReturnType, Err: err}
		}
		ret, err := signature.ReturnDecl(fn.ReturnType)
		if err != nil {
			return nil, &Error{Owner: fn.Owner, Function: fn.Name, Name: "return", Type: fn.ReturnType, Err: err}
		}
		e.Return = ret
		e.Pack = plan.Steps
		if ir.IsObjectShaped(fn.ReturnType) {
			e.Result = "result.into_raw()"
		} else {
			e.Result = "result"
		}
	}

	Logger().Debug("planned entry point",
		zap.String("symbol", e.Symbol),
		zap.String("unpack", describe(Plan{Steps: e.Unpack})),
		zap.String("pack", describe(Plan{Steps: e.Pack, Binding: "result"})))

	return e, nil
}

// borrowClass plans a borrowed class argument. The handle is read from
// the host wrapper and the object is lent to the call, so the wrapper
// keeps owning it. A shared borrow of an object already lent to this
// call reuses that binding.
func borrowClass(p ir.Named, class string, aliases []Alias) Plan {
	handle := p.Name + "_handle"
	binding := p.Name + "_ref"
	read := Step{Op: OpHandle, Var: handle, Source: p.Name, Type: p.Type, Target: class}

	if p.Borrow == ir.BorrowMutable {
		return Plan{
			Steps:   []Step{read, {Op: OpCheckout, Var: binding, Source: handle, Type: p.Type, Target: class}},
			Binding: binding,
			Release: []Step{{Op: OpCheckin, Var: binding, Source: handle, Type: p.Type}},
		}
	}
	return Plan{
		Steps:   []Step{read, {Op: OpBorrow, Var: binding, Source: handle, Type: p.Type, Target: class, Aliases: slices.Clone(aliases)}},
		Binding: binding,
		Release: []Step{{Op: OpUnborrow, Var: binding, Source: handle, Type: p.Type}},
	}
}

func borrowExpr(b ir.Borrow, binding string) string {
	switch b {
	case ir.BorrowShared:
		return "&" + binding
	case ir.BorrowMutable:
		return "&mut " + binding
	default:
		return binding
	}
}

// Rust renders the entry point as an exported native function.
func (e *Entry) Rust() string {
	var b strings.Builder
	b.WriteString("#[no_mangle]\n")
	b.WriteString("#[allow(unused_mut, unused_variables, non_snake_case)]\n")
	fmt.Fprintf(&b, "pub extern \"system\" fn %s<'local>(\n", e.Symbol)
	b.WriteString("    mut env: jni::JNIEnv<'local>,\n")
	b.WriteString("    _class: jni::objects::JClass<'local>,\n")
	for _, p := range e.Params {
		fmt.Fprintf(&b, "    %s: %s,\n", p.Name, p.Decl)
	}
	b.WriteString(")")
	if e.Return != "" {
		b.WriteString(" -> " + e.Return)
	}
	b.WriteString(" {\n")

	var body []string
	body = append(body, e.Prologue...)
	body = append(body, renderSteps(e.Unpack)...)
	if e.Result != "" {
		body = append(body, "let result = "+e.Call+";")
	} else {
		body = append(body, e.Call+";")
	}
	body = append(body, renderSteps(e.Release)...)
	body = append(body, renderSteps(e.Pack)...)
	if e.Result != "" {
		body = append(body, e.Result)
	}

	for _, line := range indent(body) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.String()
}
