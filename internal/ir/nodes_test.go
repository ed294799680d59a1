package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	inner, depth := Unwrap(Optional{Elem: Optional{Elem: Utf8String}})
	assert.Equal(t, Utf8String, inner)
	assert.Equal(t, 2, depth)

	inner, depth = Unwrap(Int32)
	assert.Equal(t, Int32, inner)
	assert.Zero(t, depth)
}

func TestIsObjectShaped(t *testing.T) {
	tests := []struct {
		in       WireType
		expected bool
	}{
		{Int32, false},
		{Bool, false},
		{Utf8String, true},
		{ByteBuffer, true},
		{ObjectHandle{Owner: "W"}, false},
		{NamedType{Name: "N"}, true},
		{CallbackType{Name: "C"}, true},
		{Optional{Elem: Int32}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsObjectShaped(tt.in))
		})
	}
}

func TestScalarNames(t *testing.T) {
	for s := Int32; s <= Void; s++ {
		name := s.String()
		back, ok := scalarByName(name)
		require.True(t, ok, name)
		assert.Equal(t, s, back)
	}
	assert.False(t, Scalar(0).Valid())
	assert.Equal(t, "Scalar(42)", Scalar(42).String())
}

func TestParameterType(t *testing.T) {
	assert.Equal(t, ObjectHandle{Owner: "Watcher"}, ParameterType(Receiver{}, "Watcher"))
	assert.Equal(t, Int64, ParameterType(Named{Name: "n", Type: Int64}, "Watcher"))
}

func TestValidateParameters(t *testing.T) {
	require.NoError(t, ValidateParameters(nil))
	require.NoError(t, ValidateParameters([]Parameter{Receiver{}, Named{Name: "a", Type: Int32}}))

	err := ValidateParameters([]Parameter{Named{Name: "a", Type: Int32}, Receiver{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 1")
}

func TestFunctionReceiver(t *testing.T) {
	method := Function{Owner: "W", Name: "m", Parameters: []Parameter{Receiver{Mutable: true}, Named{Name: "x", Type: Bool}}}
	r, ok := method.Receiver()
	require.True(t, ok)
	assert.True(t, r.Mutable)
	assert.False(t, method.IsStatic())
	assert.Equal(t, []Named{{Name: "x", Type: Bool}}, method.NamedParameters())

	static := Function{Owner: "W", Name: "new"}
	assert.True(t, static.IsStatic())
	assert.Empty(t, static.NamedParameters())
}

func TestFieldNames(t *testing.T) {
	named := Field{IsPublic: true, Name: StringPtr("path"), Type: Utf8String}
	assert.Equal(t, "path", named.SafeName(3))
	assert.Equal(t, "self.path", named.Accessor(3))

	positional := Field{IsPublic: true, Type: Int32}
	assert.Equal(t, "param1", positional.SafeName(1))
	assert.Equal(t, "self.1", positional.Accessor(1))
}

func TestStructPredicates(t *testing.T) {
	tuple := Struct{Name: "P", Fields: []Field{{IsPublic: true, Type: Int32}}}
	assert.True(t, tuple.IsTuple())
	assert.True(t, tuple.AllFieldsPublic())

	private := Struct{Name: "Q", Fields: []Field{{IsPublic: false, Name: StringPtr("x"), Type: Int32}}}
	assert.False(t, private.IsTuple())
	assert.False(t, private.AllFieldsPublic())

	empty := Struct{Name: "E"}
	assert.True(t, empty.AllFieldsPublic())
	assert.False(t, empty.IsTuple())
}

func TestBundleLookups(t *testing.T) {
	b := Bundle{
		Functions: []Function{
			{Owner: "A", Name: "one"},
			{Owner: "B", Name: "two"},
			{Owner: "A", Name: "three"},
		},
		Classes:     []Struct{{Name: "A"}},
		DataClasses: []Struct{{Name: "D"}},
	}

	fns := b.FunctionsOf("A")
	require.Len(t, fns, 2)
	assert.Equal(t, "one", fns[0].Name)
	assert.Equal(t, "three", fns[1].Name)

	_, ok := b.Class("A")
	assert.True(t, ok)
	_, ok = b.Class("D")
	assert.False(t, ok)
	_, ok = b.DataClass("D")
	assert.True(t, ok)
	assert.Equal(t, 5, b.Len())
}
