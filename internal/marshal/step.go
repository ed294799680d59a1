package marshal

import (
	"fmt"
	"strings"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/signature"
)

// Op identifies one conversion statement.
type Op int

const (
	// boundary -> native
	OpCast           Op = iota + 1 // numeric narrow/widen to Target
	OpBoolFromByte                 // compare the 8-bit boundary boolean against 1
	OpDecodeString                 // boundary string -> owned String, fatal on failure
	OpDecodeBytes                  // boundary byte array -> owned Vec<u8>, fatal on failure
	OpCheckout                     // handle -> borrowed native object, checked in after the call
	OpTake                         // handle -> owned native object, removed from the table
	OpFromEnv                      // object -> native value via FromEnv
	OpBridge                       // callback object -> bridge implementing the native trait
	OpDowncastString               // generic object reference -> string reference
	OpDowncastBytes                // generic object reference -> byte array reference
	OpUnbox                        // boxed primitive -> raw boundary primitive
	OpOptional                     // null check; Inner runs on the present branch
	OpRead                         // owned boundary value (Source) -> raw boundary primitive/object
	OpHandle                       // class wrapper object -> its handle
	OpBorrow                       // handle -> shared native reference, reusing an aliased binding

	// native -> boundary
	OpEncodeString
	OpEncodeBytes
	OpIntoEnv
	OpBox
	OpNullable

	// bookkeeping
	OpCheckin  // return a checked-out object to the handle table
	OpUnborrow // check in what OpBorrow checked out, if anything
	OpMutable  // rebind as mutable
	OpToOwned  // clone a borrowed value before it is consumed
)

var opNames = map[Op]string{
	OpCast:           "cast",
	OpBoolFromByte:   "bool_from_byte",
	OpDecodeString:   "decode_string",
	OpDecodeBytes:    "decode_bytes",
	OpCheckout:       "checkout",
	OpTake:           "take",
	OpFromEnv:        "from_env",
	OpBridge:         "bridge",
	OpDowncastString: "downcast_string",
	OpDowncastBytes:  "downcast_bytes",
	OpUnbox:          "unbox",
	OpOptional:       "optional",
	OpRead:           "read",
	OpHandle:         "handle",
	OpBorrow:         "borrow",
	OpEncodeString:   "encode_string",
	OpEncodeBytes:    "encode_bytes",
	OpIntoEnv:        "into_env",
	OpBox:            "box",
	OpNullable:       "nullable",
	OpCheckin:        "checkin",
	OpUnborrow:       "unborrow",
	OpMutable:        "mutable",
	OpToOwned:        "to_owned",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Alias is a binding an OpBorrow reuses when its handle equals Handle.
// Ref is set when Binding already holds a reference.
type Alias struct {
	Handle  string
	Binding string
	Ref     bool
}

func (a Alias) expr() string {
	if a.Ref {
		return a.Binding
	}
	return "&" + a.Binding
}

// Step is one planned conversion statement. Steps bind their result to
// Var, shadowing the previous binding of the same name.
type Step struct {
	Op     Op
	Var    string
	Type   ir.WireType   // type the step converts
	Target string        // cast target, native type or bridge name
	Source string        // input binding when it differs from Var
	Box    signature.Box // set for OpUnbox, OpBox and primitive OpRead
	Inner  []Step        // OpOptional and OpNullable only

	Aliases []Alias // OpBorrow only
}

const indentUnit = "    "

// Lines renders the step as native statements, without base indentation.
func (s Step) Lines() []string {
	v := s.Var
	src := s.Source
	if src == "" {
		src = v
	}

	switch s.Op {
	case OpCast:
		return []string{fmt.Sprintf("let %s = %s as %s;", v, src, s.Target)}
	case OpBoolFromByte:
		return []string{fmt.Sprintf("let %s = %s == 1;", v, src)}
	case OpDecodeString:
		return []string{
			fmt.Sprintf("let %s: String = env", v),
			fmt.Sprintf("%s.get_string(&%s)", indentUnit, src),
			fmt.Sprintf("%s.unwrap_or_else(|e| fatal(&format!(\"couldn't decode string `%s`: {e}\")))", indentUnit, v),
			indentUnit + ".into();",
		}
	case OpDecodeBytes:
		return []string{
			fmt.Sprintf("let %s: Vec<u8> = env", v),
			fmt.Sprintf("%s.convert_byte_array(&%s)", indentUnit, src),
			fmt.Sprintf("%s.unwrap_or_else(|e| fatal(&format!(\"couldn't decode byte array `%s`: {e}\")));", indentUnit, v),
		}
	case OpCheckout:
		return []string{fmt.Sprintf("let mut %s = handle_checkout::<%s>(%s).unwrap_or_else(|e| fatal(&e));", v, s.Target, src)}
	case OpTake:
		return []string{fmt.Sprintf("let %s = handle_take::<%s>(%s).unwrap_or_else(|e| fatal(&e));", v, s.Target, src)}
	case OpCheckin:
		return []string{fmt.Sprintf("handle_checkin(%s, %s);", src, v)}
	case OpHandle:
		return []string{fmt.Sprintf("let %s = env.get_field(&%s, \"pointer\", \"J\").and_then(|value| value.j()).unwrap_or_else(|e| fatal(&e));", v, src)}
	case OpBorrow:
		owned := OwnedBinding(v)
		lines := []string{fmt.Sprintf("let mut %s: Option<%s> = None;", owned, s.Target)}
		if len(s.Aliases) == 0 {
			return append(lines, fmt.Sprintf("let %s: &%s = %s.insert(handle_checkout::<%s>(%s).unwrap_or_else(|e| fatal(&e)));",
				v, s.Target, owned, s.Target, src))
		}
		for i, a := range s.Aliases {
			cond := fmt.Sprintf("} else if %s == %s {", src, a.Handle)
			if i == 0 {
				cond = fmt.Sprintf("let %s: &%s = if %s == %s {", v, s.Target, src, a.Handle)
			}
			lines = append(lines, cond, indentUnit+a.expr())
		}
		lines = append(lines,
			"} else {",
			fmt.Sprintf("%s%s.insert(handle_checkout::<%s>(%s).unwrap_or_else(|e| fatal(&e)))", indentUnit, owned, s.Target, src),
			"};")
		return lines
	case OpUnborrow:
		return []string{fmt.Sprintf("if let Some(value) = %s.take() { handle_checkin(%s, value); }", OwnedBinding(v), src)}
	case OpFromEnv:
		return []string{fmt.Sprintf("let %s = %s::from_env(env, &%s);", v, s.Target, src)}
	case OpBridge:
		return []string{fmt.Sprintf("let %s = %s::new(ctx.clone(), env, &%s);", v, s.Target, src)}
	case OpDowncastString:
		return []string{fmt.Sprintf("let %s = jni::objects::JString::from(%s);", v, src)}
	case OpDowncastBytes:
		return []string{fmt.Sprintf("let %s = jni::objects::JByteArray::from(%s);", v, src)}
	case OpUnbox:
		line := fmt.Sprintf("let %s = env.get_field(&%s, %q, %q).and_then(|value| value.%s()).unwrap_or_else(|e| fatal(&e))",
			v, src, s.Box.Field, s.Box.FieldDesc, s.Box.Accessor)
		if s.Box.Accessor == "z" {
			line += " as jni::sys::jboolean"
		}
		return []string{line + ";"}
	case OpRead:
		accessor := "l"
		suffix := ""
		if s.Box.Accessor != "" {
			accessor = s.Box.Accessor
			if accessor == "z" {
				suffix = " as jni::sys::jboolean"
			}
		}
		lines := []string{fmt.Sprintf("let %s = %s.%s().unwrap_or_else(|e| fatal(&e))%s;", v, src, accessor, suffix)}
		return lines
	case OpOptional:
		lines := []string{
			fmt.Sprintf("let %s = if env.is_same_object(&%s, jni::objects::JObject::null()).unwrap_or_else(|e| fatal(&e)) {", v, src),
			indentUnit + "None",
			"} else {",
		}
		lines = append(lines, indent(renderSteps(s.Inner))...)
		lines = append(lines, indentUnit+"Some("+v+")", "};")
		return lines
	case OpEncodeString:
		return []string{fmt.Sprintf("let %s: jni::objects::JObject = env.new_string(%s).unwrap_or_else(|e| fatal(&e)).into();", v, src)}
	case OpEncodeBytes:
		return []string{fmt.Sprintf("let %s: jni::objects::JObject = env.byte_array_from_slice(&%s).unwrap_or_else(|e| fatal(&e)).into();", v, src)}
	case OpIntoEnv:
		return []string{fmt.Sprintf("let %s = %s.into_env(env);", v, src)}
	case OpBox:
		return []string{fmt.Sprintf("let %s = env.new_object(%q, \"(%s)V\", &[%s]).unwrap_or_else(|e| fatal(&e));",
			v, s.Box.Class, s.Box.FieldDesc, jvalue(s.Type, v))}
	case OpNullable:
		lines := []string{
			fmt.Sprintf("let %s = match %s {", v, src),
			indentUnit + "None => jni::objects::JObject::null(),",
			indentUnit + "Some(" + v + ") => {",
		}
		lines = append(lines, indent(indent(renderSteps(s.Inner)))...)
		lines = append(lines, indentUnit+indentUnit+v, indentUnit+"}", "};")
		return lines
	case OpMutable:
		return []string{fmt.Sprintf("let mut %s = %s;", v, src)}
	case OpToOwned:
		return []string{fmt.Sprintf("let %s = %s.to_owned();", v, src)}
	default:
		panic(fmt.Sprintf("marshal: unknown op %d", int(s.Op)))
	}
}

// OwnedBinding names the binding that holds what OpBorrow checked out
// for v.
func OwnedBinding(v string) string { return v + "_owned" }

func renderSteps(steps []Step) []string {
	var out []string
	for _, s := range steps {
		out = append(out, s.Lines()...)
	}
	return out
}

// Render renders a step list as native statements.
func Render(steps []Step) string {
	return strings.Join(renderSteps(steps), "\n")
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if l == "" {
			out[i] = l
			continue
		}
		out[i] = indentUnit + l
	}
	return out
}

// Arg returns the JValue spelling used to pass a boundary-ready binding
// as a constructor or method argument.
func Arg(t ir.WireType, name string) string {
	return jvalue(t, name)
}

func jvalue(t ir.WireType, name string) string {
	switch v := t.(type) {
	case ir.Scalar:
		switch v {
		case ir.Int32:
			return "jni::objects::JValue::Int(" + name + ")"
		case ir.Int64, ir.UInt64:
			return "jni::objects::JValue::Long(" + name + ")"
		case ir.Float32:
			return "jni::objects::JValue::Float(" + name + ")"
		case ir.Float64:
			return "jni::objects::JValue::Double(" + name + ")"
		case ir.Bool:
			return "jni::objects::JValue::Bool(" + name + ")"
		}
	case ir.ObjectHandle:
		return "jni::objects::JValue::Long(" + name + ")"
	}
	return "jni::objects::JValue::Object(&" + name + ")"
}
