package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireTypeJSON(t *testing.T) {
	tests := []struct {
		name     string
		in       WireType
		expected string
	}{
		{"scalar", Int32, `"Int32"`},
		{"byte buffer", ByteBuffer, `"ByteBuffer"`},
		{"void", Void, `"Void"`},
		{"handle", ObjectHandle{Owner: "Watcher"}, `{"ObjectHandle":"Watcher"}`},
		{"named", NamedType{Name: "FileChanged"}, `{"NamedType":"FileChanged"}`},
		{"callback", CallbackType{Name: "Listener"}, `{"CallbackType":"Listener"}`},
		{"optional", Optional{Elem: Utf8String}, `{"Optional":"Utf8String"}`},
		{"nested optional", Optional{Elem: Optional{Elem: Int64}}, `{"Optional":{"Optional":"Int64"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalWireType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))

			back, err := UnmarshalWireType(data)
			require.NoError(t, err)
			assert.True(t, EqualWireTypes(tt.in, back), "round trip changed %s into %s", tt.in, back)
		})
	}
}

func TestUnmarshalWireTypeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ``},
		{"unknown scalar", `"Int128"`},
		{"unknown tag", `{"Tuple":"X"}`},
		{"two tags", `{"NamedType":"A","CallbackType":"B"}`},
		{"bad optional", `{"Optional":"Nope"}`},
		{"number", `3`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalWireType([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestFunctionJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		fn   Function
	}{
		{
			name: "static constructor",
			fn: Function{
				Owner:      "Watcher",
				Name:       "new",
				Parameters: []Parameter{Named{Name: "path", Type: Utf8String}},
				ReturnType: NamedType{Name: "Watcher"},
			},
		},
		{
			name: "receiver with callback",
			fn: Function{
				Owner: "Watcher",
				Name:  "subscribe",
				Parameters: []Parameter{
					Receiver{Mutable: true},
					Named{Name: "listener", Type: CallbackType{Name: "Listener"}, Borrow: BorrowShared},
				},
			},
		},
		{
			name: "consuming receiver",
			fn: Function{
				Owner:      "Session",
				Name:       "finish",
				Parameters: []Parameter{Receiver{Consuming: true}},
				ReturnType: Optional{Elem: ByteBuffer},
			},
		},
		{
			name: "zero parameters",
			fn:   Function{Owner: "Clock", Name: "now", Parameters: []Parameter{}, ReturnType: Int64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.fn)
			require.NoError(t, err)

			var back Function
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.fn, back)

			again, err := json.Marshal(back)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again), "encoding must be deterministic")
		})
	}
}

func TestFunctionJSONEmptyParameters(t *testing.T) {
	for _, fn := range []Function{
		{Owner: "Clock", Name: "now"},
		{Owner: "Clock", Name: "now", Parameters: []Parameter{}},
	} {
		data, err := json.Marshal(fn)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"parameters":[]`)

		var back Function
		require.NoError(t, json.Unmarshal(data, &back))
		assert.NotNil(t, back.Parameters)
		assert.Empty(t, back.Parameters)
	}

	var fn Function
	require.NoError(t, json.Unmarshal([]byte(`{"owner":"A","name":"b","parameters":null,"return_type":null}`), &fn))
	assert.Equal(t, []Parameter{}, fn.Parameters)
}

func TestFunctionJSONShape(t *testing.T) {
	fn := Function{
		Owner:      "Watcher",
		Name:       "stop",
		Parameters: []Parameter{Receiver{}},
	}

	data, err := json.Marshal(fn)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"stop","owner":"Watcher","parameters":[{"Receiver":{"is_mutable":false}}],"return_type":null}`,
		string(data))
}

func TestFunctionUnmarshalRejectsUnknownKeys(t *testing.T) {
	var fn Function
	err := json.Unmarshal([]byte(`{"owner":"A","name":"b","parameters":[],"return_type":null,"extra":1}`), &fn)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"owner":"A","name":"b","parameters":[{"Named":{"name":"x","ty":"Int32","borrow":"owned"}}],"return_type":null}`), &fn)
	require.Error(t, err)
}

func TestStructJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s    Struct
	}{
		{
			name: "named fields",
			s: Struct{Name: "FileChanged", Fields: []Field{
				{IsPublic: true, Name: StringPtr("path"), Type: Utf8String},
				{IsPublic: true, Name: StringPtr("size"), Type: Optional{Elem: Int64}},
			}},
		},
		{
			name: "tuple fields",
			s: Struct{Name: "Point", Fields: []Field{
				{IsPublic: true, Type: Int32},
				{IsPublic: true, Type: Int32},
			}},
		},
		{
			name: "no fields",
			s:    Struct{Name: "Unit", Fields: []Field{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.s)
			require.NoError(t, err)

			var back Struct
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.s, back)
		})
	}
}

func TestFieldJSONNullName(t *testing.T) {
	data, err := json.Marshal(Field{IsPublic: false, Type: Bool})
	require.NoError(t, err)
	assert.Equal(t, `{"is_public":false,"name":null,"ty":"Bool"}`, string(data))
}

func TestInterfaceJSONRoundTrip(t *testing.T) {
	iface := Interface{Name: "Listener", Functions: []Function{
		{
			Owner:      "Listener",
			Name:       "on_change",
			Parameters: []Parameter{Receiver{}, Named{Name: "event", Type: NamedType{Name: "FileChanged"}}},
		},
		{
			Owner:      "Listener",
			Name:       "should_continue",
			Parameters: []Parameter{Receiver{}},
			ReturnType: Bool,
		},
	}}

	data, err := json.Marshal(iface)
	require.NoError(t, err)

	var back Interface
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, iface, back)
}

func TestBundleJSONRoundTrip(t *testing.T) {
	b := Bundle{
		Package:   "dev.example.watch",
		Functions: []Function{{Owner: "Watcher", Name: "stop", Parameters: []Parameter{Receiver{}}}},
		Classes:   []Struct{{Name: "Watcher", Fields: []Field{}}},
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var back Bundle
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, b, back)
	assert.Equal(t, 2, back.Len())
}

func TestToValueRejectsUnknownNode(t *testing.T) {
	_, err := ToValue(42)
	require.Error(t, err)

	_, err = ToValue(Named{Name: "x"})
	require.Error(t, err, "nil type must be rejected")
}
