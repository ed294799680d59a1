package marshal

import (
	"fmt"
	"strings"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/signature"
	"github.com/roach88/kotars/internal/typemap"
)

// ClassShim renders the lifecycle shim of a handle-backed class: boxing
// into the handle table on the way out, ownership transfer on the way in,
// and the disposer entry point. FromEnv serves by-value arguments only;
// borrowed arguments are lent by the entry point.
//
// Disposal removes the table entry exactly once. A second disposal of the
// same handle is a stale-handle lookup failure and aborts.
func ClassShim(s ir.Struct, enc *signature.Encoder) string {
	class := enc.ClassPath(s.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "impl<'local> IntoEnv<'local> for %s {\n", s.Name)
	b.WriteString("    fn into_env(self, env: &mut jni::JNIEnv<'local>) -> jni::objects::JObject<'local> {\n")
	b.WriteString("        let handle = handle_insert(self);\n")
	fmt.Fprintf(&b, "        env.new_object(%q, %q, &[jni::objects::JValue::Long(handle)])\n", class, signature.HandleConstructor)
	fmt.Fprintf(&b, "            .unwrap_or_else(|e| fatal(&format!(\"couldn't construct %s: {e}\")))\n", class)
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "impl<'local> FromEnv<'local> for %s {\n", s.Name)
	b.WriteString("    fn from_env(env: &mut jni::JNIEnv<'local>, obj: &jni::objects::JObject<'local>) -> Self {\n")
	b.WriteString("        let handle = env.get_field(obj, \"pointer\", \"J\").and_then(|value| value.j()).unwrap_or_else(|e| fatal(&e));\n")
	fmt.Fprintf(&b, "        handle_take::<%s>(handle).unwrap_or_else(|e| fatal(&e))\n", s.Name)
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	b.WriteString("#[no_mangle]\n")
	b.WriteString("#[allow(non_snake_case)]\n")
	fmt.Fprintf(&b, "pub extern \"system\" fn %s<'local>(\n", enc.Disposer(s.Name))
	b.WriteString("    _env: jni::JNIEnv<'local>,\n")
	b.WriteString("    _class: jni::objects::JClass<'local>,\n")
	b.WriteString("    handle: jni::sys::jlong,\n")
	b.WriteString(") {\n")
	fmt.Fprintf(&b, "    handle_dispose::<%s>(handle).unwrap_or_else(|e| fatal(&e));\n", s.Name)
	b.WriteString("}\n")
	return b.String()
}

func fieldBinding(f ir.Field, i int) string {
	return "f_" + f.SafeName(i)
}

// DataClassShim renders IntoEnv and FromEnv for a data class. Fields are
// marshaled individually and passed to the primary constructor in
// declaration order.
func DataClassShim(s ir.Struct, enc *signature.Encoder) (string, error) {
	class := enc.ClassPath(s.Name)
	ctor, err := enc.Constructor(s.Fields)
	if err != nil {
		return "", &Error{Owner: s.Name, Name: "constructor", Err: err}
	}

	var into, from []string
	var args, inits []string
	for i, f := range s.Fields {
		binding := fieldBinding(f, i)

		into = append(into, fmt.Sprintf("let %s = %s;", binding, f.Accessor(i)))
		out, err := Marshal(f.Type, binding)
		if err != nil {
			return "", &Error{Owner: s.Name, Name: f.SafeName(i), Type: f.Type, Err: err}
		}
		into = append(into, out.Lines()...)
		args = append(args, jvalue(f.Type, binding))

		from = append(from, fmt.Sprintf("let %s = env.get_field(obj, %q, %q).unwrap_or_else(|e| fatal(&e));",
			binding, f.SafeName(i), enc.Descriptor(f.Type)))
		in, err := ReadValue(f.Type, binding, binding)
		if err != nil {
			return "", &Error{Owner: s.Name, Name: f.SafeName(i), Type: f.Type, Err: err}
		}
		from = append(from, in.Lines()...)
		if f.Name != nil {
			inits = append(inits, *f.Name+": "+binding)
		} else {
			inits = append(inits, binding)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "impl<'local> IntoEnv<'local> for %s {\n", s.Name)
	b.WriteString("    fn into_env(self, env: &mut jni::JNIEnv<'local>) -> jni::objects::JObject<'local> {\n")
	for _, l := range indent(indent(into)) {
		b.WriteString(l + "\n")
	}
	fmt.Fprintf(&b, "        env.new_object(%q, %q, &[%s])\n", class, ctor, strings.Join(args, ", "))
	fmt.Fprintf(&b, "            .unwrap_or_else(|e| fatal(&format!(\"couldn't construct %s: {e}\")))\n", class)
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "impl<'local> FromEnv<'local> for %s {\n", s.Name)
	b.WriteString("    fn from_env(env: &mut jni::JNIEnv<'local>, obj: &jni::objects::JObject<'local>) -> Self {\n")
	for _, l := range indent(indent(from)) {
		b.WriteString(l + "\n")
	}
	switch {
	case len(s.Fields) == 0:
		fmt.Fprintf(&b, "        %s {}\n", s.Name)
	case s.IsTuple():
		fmt.Fprintf(&b, "        %s(%s)\n", s.Name, strings.Join(inits, ", "))
	default:
		fmt.Fprintf(&b, "        %s { %s }\n", s.Name, strings.Join(inits, ", "))
	}
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String(), nil
}

// Bridge renders the bridge object implementing a callback trait by
// forwarding every method to the host-side callback object. After each
// call the pending-exception check runs as a Result; an exception aborts
// with the interface and method name.
func Bridge(iface ir.Interface, enc *signature.Encoder) (string, error) {
	name := BridgeName(iface.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "pub struct %s {\n", name)
	b.WriteString("    ctx: CallContext,\n")
	b.WriteString("    callback: jni::objects::GlobalRef,\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "impl %s {\n", name)
	b.WriteString("    pub fn new<'local>(ctx: CallContext, env: &mut jni::JNIEnv<'local>, callback: &jni::objects::JObject<'local>) -> Self {\n")
	b.WriteString("        let callback = env.new_global_ref(callback).unwrap_or_else(|e| fatal(&e));\n")
	b.WriteString("        Self { ctx, callback }\n")
	b.WriteString("    }\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(&b, "impl %s for %s {\n", iface.Name, name)
	for i, fn := range iface.Functions {
		if i > 0 {
			b.WriteString("\n")
		}
		method, err := bridgeMethod(iface.Name, fn, enc)
		if err != nil {
			return "", err
		}
		for _, l := range indent(method) {
			b.WriteString(l + "\n")
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func bridgeMethod(iface string, fn ir.Function, enc *signature.Encoder) ([]string, error) {
	recv, ok := fn.Receiver()
	if !ok {
		return nil, &Error{Owner: iface, Function: fn.Name, Err: fmt.Errorf("callback methods need a receiver")}
	}
	if recv.Consuming {
		return nil, &Error{Owner: iface, Function: fn.Name, Err: fmt.Errorf("callback methods cannot take self by value")}
	}

	descriptor, err := enc.CallbackDescriptor(fn)
	if err != nil {
		return nil, &Error{Owner: iface, Function: fn.Name, Err: err}
	}

	self := "&self"
	if recv.Mutable {
		self = "&mut self"
	}
	params := []string{self}
	var body, args []string
	body = append(body, "let mut env = self.ctx.env();", "let env = &mut env;")

	for _, p := range fn.NamedParameters() {
		if reservedNames[p.Name] {
			return nil, &Error{Owner: iface, Function: fn.Name, Name: p.Name, Err: ErrReservedName}
		}
		params = append(params, p.Name+": "+nativeParamSpelling(p))
		if p.Borrow != ir.BorrowNone {
			body = append(body, Step{Op: OpToOwned, Var: p.Name, Type: p.Type}.Lines()...)
		}
		plan, err := Marshal(p.Type, p.Name)
		if err != nil {
			return nil, &Error{Owner: iface, Function: fn.Name, Name: p.Name, Type: p.Type, Err: err}
		}
		body = append(body, plan.Lines()...)
		args = append(args, jvalue(p.Type, p.Name))
	}

	method := signature.CamelCase(fn.Name)
	body = append(body,
		fmt.Sprintf("let outcome = env.call_method(&self.callback, %q, %q, &[%s]);", method, descriptor, strings.Join(args, ", ")),
		fmt.Sprintf("let value = check_callback(env, \"%s.%s\", outcome).unwrap_or_else(|e| fatal(&e));", iface, method))

	signatureLine := fmt.Sprintf("fn %s(%s)", fn.Name, strings.Join(params, ", "))
	if fn.ReturnType != nil {
		plan, err := ReadValue(fn.ReturnType, "result", "value")
		if err != nil {
			return nil, &Error{Owner: iface, Function: fn.Name, Name: "return", Type: fn.ReturnType, Err: err}
		}
		body = append(body, plan.Lines()...)
		body = append(body, "result")
		signatureLine += " -> " + typemap.NativeSpelling(fn.ReturnType)
	} else {
		body = append(body, "let _ = value;")
	}

	lines := []string{signatureLine + " {"}
	lines = append(lines, indent(body)...)
	lines = append(lines, "}")
	return lines, nil
}

// nativeParamSpelling spells a trait method parameter type as declared.
// Borrowed strings and byte buffers are spelled as slices.
func nativeParamSpelling(p ir.Named) string {
	switch p.Borrow {
	case ir.BorrowShared:
		switch p.Type {
		case ir.Utf8String:
			return "&str"
		case ir.ByteBuffer:
			return "&[u8]"
		}
		return "&" + typemap.NativeSpelling(p.Type)
	case ir.BorrowMutable:
		return "&mut " + typemap.NativeSpelling(p.Type)
	}
	return typemap.NativeSpelling(p.Type)
}
