package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Sum types are externally tagged, the same shape serde produces for Rust
// enums, so records stay readable from both sides of the boundary:
//
//	"Int32"
//	{"Optional":"Int32"}
//	{"NamedType":"FileChanged"}
//	{"Named":{"name":"path","ty":{"NamedType":"FileChanged"}}}
//	{"Receiver":{"is_mutable":false}}

// ToValue converts an IR node into a JSON value tree (map[string]any,
// []any, string, bool, nil) suitable for MarshalCanonical.
// Supported nodes: WireType, Parameter, Field, Function, Struct, Interface.
func ToValue(node any) (any, error) {
	switch v := node.(type) {
	case WireType:
		return wireTypeValue(v)
	case Named, Receiver:
		return parameterValue(v.(Parameter))
	case Field:
		return v.value()
	case Function:
		return v.value()
	case *Function:
		return v.value()
	case Struct:
		return v.value()
	case *Struct:
		return v.value()
	case Interface:
		return v.value()
	case *Interface:
		return v.value()
	default:
		return nil, fmt.Errorf("unsupported IR node: %T", node)
	}
}

func wireTypeValue(t WireType) (any, error) {
	switch v := t.(type) {
	case nil:
		return nil, fmt.Errorf("nil wire type")
	case Scalar:
		if !v.Valid() {
			return nil, fmt.Errorf("invalid scalar %d", uint8(v))
		}
		return v.String(), nil
	case ObjectHandle:
		return map[string]any{"ObjectHandle": v.Owner}, nil
	case NamedType:
		return map[string]any{"NamedType": v.Name}, nil
	case CallbackType:
		return map[string]any{"CallbackType": v.Name}, nil
	case Optional:
		elem, err := wireTypeValue(v.Elem)
		if err != nil {
			return nil, fmt.Errorf("Optional: %w", err)
		}
		return map[string]any{"Optional": elem}, nil
	default:
		return nil, fmt.Errorf("unknown wire type %T", t)
	}
}

func parameterValue(p Parameter) (any, error) {
	switch v := p.(type) {
	case Named:
		ty, err := wireTypeValue(v.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", v.Name, err)
		}
		body := map[string]any{"name": v.Name, "ty": ty}
		if v.Borrow != BorrowNone {
			body["borrow"] = string(v.Borrow)
		}
		return map[string]any{"Named": body}, nil
	case Receiver:
		body := map[string]any{"is_mutable": v.Mutable}
		if v.Consuming {
			body["consuming"] = true
		}
		return map[string]any{"Receiver": body}, nil
	default:
		return nil, fmt.Errorf("unknown parameter variant %T", p)
	}
}

func (f Field) value() (any, error) {
	ty, err := wireTypeValue(f.Type)
	if err != nil {
		return nil, err
	}
	var name any
	if f.Name != nil {
		name = *f.Name
	}
	return map[string]any{"is_public": f.IsPublic, "name": name, "ty": ty}, nil
}

func (f Function) value() (any, error) {
	params := make([]any, len(f.Parameters))
	for i, p := range f.Parameters {
		pv, err := parameterValue(p)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Name, err)
		}
		params[i] = pv
	}
	var ret any
	if f.ReturnType != nil {
		rv, err := wireTypeValue(f.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("function %s return: %w", f.Name, err)
		}
		ret = rv
	}
	return map[string]any{
		"owner":       f.Owner,
		"name":        f.Name,
		"parameters":  params,
		"return_type": ret,
	}, nil
}

func (s Struct) value() (any, error) {
	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fv, err := f.value()
		if err != nil {
			return nil, fmt.Errorf("struct %s field %d: %w", s.Name, i, err)
		}
		fields[i] = fv
	}
	return map[string]any{"name": s.Name, "fields": fields}, nil
}

func (i Interface) value() (any, error) {
	fns := make([]any, len(i.Functions))
	for n, fn := range i.Functions {
		fv, err := fn.value()
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", i.Name, err)
		}
		fns[n] = fv
	}
	return map[string]any{"name": i.Name, "functions": fns}, nil
}

// MarshalJSON implements json.Marshaler for Field.
func (f Field) MarshalJSON() ([]byte, error) { return marshalNode(f) }

// MarshalJSON implements json.Marshaler for Function.
func (f Function) MarshalJSON() ([]byte, error) { return marshalNode(f) }

// MarshalJSON implements json.Marshaler for Struct.
func (s Struct) MarshalJSON() ([]byte, error) { return marshalNode(s) }

// MarshalJSON implements json.Marshaler for Interface.
func (i Interface) MarshalJSON() ([]byte, error) { return marshalNode(i) }

func marshalNode(node any) ([]byte, error) {
	v, err := ToValue(node)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// MarshalWireType encodes a single wire type.
func MarshalWireType(t WireType) ([]byte, error) {
	v, err := wireTypeValue(t)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(v)
}

// UnmarshalWireType decodes a single externally tagged wire type.
func UnmarshalWireType(data []byte) (WireType, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty wire type")
	}

	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return nil, err
		}
		s, ok := scalarByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown wire type %q", name)
		}
		return s, nil
	}

	tag, body, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("wire type: %w", err)
	}

	switch tag {
	case "ObjectHandle", "NamedType", "CallbackType":
		var name string
		if err := json.Unmarshal(body, &name); err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		switch tag {
		case "ObjectHandle":
			return ObjectHandle{Owner: name}, nil
		case "NamedType":
			return NamedType{Name: name}, nil
		default:
			return CallbackType{Name: name}, nil
		}
	case "Optional":
		elem, err := UnmarshalWireType(body)
		if err != nil {
			return nil, fmt.Errorf("Optional: %w", err)
		}
		return Optional{Elem: elem}, nil
	default:
		return nil, fmt.Errorf("unknown wire type tag %q", tag)
	}
}

// UnmarshalParameter decodes a single externally tagged parameter.
func UnmarshalParameter(data []byte) (Parameter, error) {
	tag, body, err := singleKey(data)
	if err != nil {
		return nil, fmt.Errorf("parameter: %w", err)
	}

	switch tag {
	case "Named":
		var raw struct {
			Name   string          `json:"name"`
			Type   json.RawMessage `json:"ty"`
			Borrow Borrow          `json:"borrow"`
		}
		if err := strictUnmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("Named: %w", err)
		}
		ty, err := UnmarshalWireType(raw.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", raw.Name, err)
		}
		switch raw.Borrow {
		case BorrowNone, BorrowShared, BorrowMutable:
		default:
			return nil, fmt.Errorf("parameter %q: unknown borrow %q", raw.Name, raw.Borrow)
		}
		return Named{Name: raw.Name, Type: ty, Borrow: raw.Borrow}, nil
	case "Receiver":
		var r Receiver
		if err := strictUnmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("Receiver: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown parameter tag %q", tag)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Field.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsPublic bool            `json:"is_public"`
		Name     *string         `json:"name"`
		Type     json.RawMessage `json:"ty"`
	}
	if err := strictUnmarshal(data, &raw); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	ty, err := UnmarshalWireType(raw.Type)
	if err != nil {
		return fmt.Errorf("field: %w", err)
	}
	*f = Field{IsPublic: raw.IsPublic, Name: raw.Name, Type: ty}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Function.
func (f *Function) UnmarshalJSON(data []byte) error {
	var raw struct {
		Owner      string            `json:"owner"`
		Name       string            `json:"name"`
		Parameters []json.RawMessage `json:"parameters"`
		ReturnType json.RawMessage   `json:"return_type"`
	}
	if err := strictUnmarshal(data, &raw); err != nil {
		return fmt.Errorf("function: %w", err)
	}

	// The list is never nil, like Struct.Fields and Interface.Functions.
	fn := Function{Owner: raw.Owner, Name: raw.Name, Parameters: make([]Parameter, len(raw.Parameters))}
	for i, p := range raw.Parameters {
		param, err := UnmarshalParameter(p)
		if err != nil {
			return fmt.Errorf("function %s parameter %d: %w", raw.Name, i, err)
		}
		fn.Parameters[i] = param
	}

	ret := bytes.TrimSpace(raw.ReturnType)
	if len(ret) > 0 && !bytes.Equal(ret, []byte("null")) {
		ty, err := UnmarshalWireType(ret)
		if err != nil {
			return fmt.Errorf("function %s return: %w", raw.Name, err)
		}
		fn.ReturnType = ty
	}

	*f = fn
	return nil
}

// singleKey splits an externally tagged object {"Tag": body}.
func singleKey(data []byte) (string, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected exactly one variant tag, got %d keys", len(obj))
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, fmt.Errorf("unreachable")
}

// strictUnmarshal rejects unknown keys so typos in records fail loudly.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
