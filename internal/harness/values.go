package harness

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/kotars/internal/boundary"
	"github.com/roach88/kotars/internal/ir"
)

// Native is the native value behind a class handle.
type Native struct {
	Class string
	ID    int
}

func (n *Native) String() string { return fmt.Sprintf("%s#%d", n.Class, n.ID) }

// native converts a YAML value into the native value of type t.
func (f *flow) native(t ir.WireType, v any) (any, error) {
	switch t := t.(type) {
	case ir.Scalar:
		return scalar(t, v)
	case ir.Optional:
		if v == nil {
			return boundary.None, nil
		}
		inner, err := f.native(t.Elem, v)
		if err != nil {
			return nil, err
		}
		return boundary.Some(inner), nil
	case ir.NamedType:
		s, ok := f.bundle.DataClass(t.Name)
		if !ok {
			return nil, fmt.Errorf("%s values are passed by binding name", t.Name)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a %s mapping, got %T", t.Name, v)
		}
		rec := boundary.Record{Name: s.Name, Fields: make([]any, len(s.Fields))}
		for i, field := range s.Fields {
			fv, err := f.native(field.Type, m[field.SafeName(i)])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", s.Name, field.SafeName(i), err)
			}
			rec.Fields[i] = fv
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%s values cannot be written in a scenario", t)
}

func scalar(t ir.Scalar, v any) (any, error) {
	switch t {
	case ir.Int32:
		n, err := integer(v)
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("expected an Int32, got %v", v)
		}
		return int32(n), nil
	case ir.Int64:
		n, err := integer(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case ir.UInt64:
		switch x := v.(type) {
		case uint64:
			return x, nil
		}
		n, err := integer(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("expected a UInt64, got %v", v)
		}
		return uint64(n), nil
	case ir.Float32, ir.Float64:
		var x float64
		switch n := v.(type) {
		case float64:
			x = n
		case int:
			x = float64(n)
		default:
			return nil, fmt.Errorf("expected a number, got %T", v)
		}
		if t == ir.Float32 {
			return float32(x), nil
		}
		return x, nil
	case ir.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a Bool, got %T", v)
		}
		return b, nil
	case ir.Utf8String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		return s, nil
	case ir.ByteBuffer:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected bytes as a string, got %T", v)
		}
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%s values cannot be written in a scenario", t)
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("expected an integer, got %v", v)
}

// describe renders a native value for the trace.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "()"
	case boundary.Option:
		if !x.Valid {
			return "None"
		}
		return "Some(" + describe(x.Value) + ")"
	case boundary.Record:
		parts := make([]string, len(x.Fields))
		for i, fv := range x.Fields {
			parts[i] = describe(fv)
		}
		return x.Name + "{" + strings.Join(parts, ", ") + "}"
	case string:
		return strconv.Quote(x)
	case []byte:
		return fmt.Sprintf("bytes[%x]", x)
	case *boundary.Bridge:
		return x.Interface() + " bridge"
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
