package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kotars/internal/ir"
)

func TestDescriptor(t *testing.T) {
	enc := New("dev.example.watch")

	tests := []struct {
		name     string
		in       ir.WireType
		expected string
	}{
		{"int32", ir.Int32, "I"},
		{"int64", ir.Int64, "J"},
		{"uint64", ir.UInt64, "J"},
		{"float32", ir.Float32, "F"},
		{"float64", ir.Float64, "D"},
		{"bool", ir.Bool, "Z"},
		{"string", ir.Utf8String, "Ljava/lang/String;"},
		{"bytes", ir.ByteBuffer, "[B"},
		{"void", ir.Void, "V"},
		{"handle", ir.ObjectHandle{Owner: "Watcher"}, "J"},
		{"named", ir.NamedType{Name: "FileChanged"}, "Ldev/example/watch/FileChanged;"},
		{"callback", ir.CallbackType{Name: "Listener"}, "Ldev/example/watch/Listener;"},
		{"optional int", ir.Optional{Elem: ir.Int32}, "I"},
		{"nested optional", ir.Optional{Elem: ir.Optional{Elem: ir.Utf8String}}, "Ljava/lang/String;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := enc.Descriptor(tt.in)
			assert.Equal(t, tt.expected, first)
			assert.Equal(t, first, enc.Descriptor(tt.in), "descriptor must be deterministic")
		})
	}
}

func TestDescriptorErasesOptional(t *testing.T) {
	enc := New("")
	for _, inner := range []ir.WireType{ir.Int32, ir.Bool, ir.Utf8String, ir.NamedType{Name: "X"}} {
		assert.Equal(t, enc.Descriptor(inner), enc.Descriptor(ir.Optional{Elem: inner}))
	}
}

func TestDescriptorBoxOptionals(t *testing.T) {
	enc := &Encoder{BoxOptionals: true}
	assert.Equal(t, "Ljava/lang/Integer;", enc.Descriptor(ir.Optional{Elem: ir.Int32}))
	assert.Equal(t, "Ljava/lang/String;", enc.Descriptor(ir.Optional{Elem: ir.Utf8String}))
	assert.Equal(t, "I", enc.Descriptor(ir.Int32))
}

func TestDefaultPackageDescriptor(t *testing.T) {
	enc := New("")
	assert.Equal(t, "LFileChanged;", enc.Descriptor(ir.NamedType{Name: "FileChanged"}))
}

func TestMethodDescriptors(t *testing.T) {
	enc := New("")

	d, err := enc.Method(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "()V", d)

	d, err = enc.Method([]ir.WireType{ir.Int32, ir.Utf8String}, ir.Bool)
	require.NoError(t, err)
	assert.Equal(t, "(ILjava/lang/String;)Z", d)

	_, err = enc.Method([]ir.WireType{ir.Void}, nil)
	require.ErrorIs(t, err, ErrVoidValue)
}

func TestNativeAndCallbackDescriptors(t *testing.T) {
	enc := New("")
	fn := ir.Function{
		Owner:      "Listener",
		Name:       "detected_change",
		Parameters: []ir.Parameter{ir.Receiver{}, ir.Named{Name: "path", Type: ir.NamedType{Name: "FileChanged"}}},
	}

	native, err := enc.NativeDescriptor(fn)
	require.NoError(t, err)
	assert.Equal(t, "(JLFileChanged;)V", native)

	callback, err := enc.CallbackDescriptor(fn)
	require.NoError(t, err)
	assert.Equal(t, "(LFileChanged;)V", callback)
}

func TestConstructorDescriptor(t *testing.T) {
	enc := New("")

	d, err := enc.Constructor([]ir.Field{{IsPublic: true, Type: ir.Int32}})
	require.NoError(t, err)
	assert.Equal(t, "(I)V", d)

	d, err = enc.Constructor(nil)
	require.NoError(t, err)
	assert.Equal(t, "()V", d)
}

func TestEntryPointNaming(t *testing.T) {
	tests := []struct {
		name     string
		enc      *Encoder
		owner    string
		method   string
		expected string
	}{
		{"default package", New(""), "Kebab", "is_yummy", "Java_KebabObj_isYummy"},
		{"dotted package", New("dev.example"), "Kebab", "is_yummy", "Java_dev_example_KebabObj_isYummy"},
		{"underscore package", New("my_app"), "Kebab", "new", "Java_my_1app_KebabObj_new"},
		{"custom prefix", &Encoder{Prefix: "Native", Suffix: "Bridge"}, "Kebab", "eat_now", "Native_KebabBridge_eatNow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.enc.EntryPoint(tt.owner, tt.method))
		})
	}

	assert.Equal(t, "Java_KebabObj_destroy", New("").Disposer("Kebab"))
	assert.Equal(t, "KebabObj", New("").HostObject("Kebab"))
}

func TestCamelCase(t *testing.T) {
	tests := map[string]string{
		"is_yummy":        "isYummy",
		"detected_change": "detectedChange",
		"new":             "new",
		"_private":        "Private",
		"a_b_c":           "aBC",
		"already":         "already",
		"with_URL":        "withURL",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, CamelCase(in), in)
	}
}

func TestMangle(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"dev.example", "dev_example"},
		{"dev/example", "dev_example"},
		{"my_app", "my_1app"},
		{"a;b[c", "a_2b_3c"},
		{"café", "caf_000e9"},
		{"\uffff", "_0ffff"},
		{"x😀", "x_0d83d_0de00"},
		{"\U00010000", "_0d800_0dc00"},
		{"\U0010ffff", "_0dbff_0dfff"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, Mangle(tt.in))
		})
	}
}

func TestBoundaryDecl(t *testing.T) {
	tests := []struct {
		in       ir.WireType
		expected string
	}{
		{ir.Int32, "jni::sys::jint"},
		{ir.Int64, "jni::sys::jlong"},
		{ir.Float64, "jni::sys::jdouble"},
		{ir.Bool, "jni::sys::jboolean"},
		{ir.Utf8String, "jni::objects::JString<'local>"},
		{ir.ByteBuffer, "jni::objects::JByteArray<'local>"},
		{ir.ObjectHandle{Owner: "W"}, "jni::sys::jlong"},
		{ir.Optional{Elem: ir.Int32}, "jni::objects::JObject<'local>"},
		{ir.NamedType{Name: "N"}, "jni::objects::JObject<'local>"},
		{ir.CallbackType{Name: "C"}, "jni::objects::JObject<'local>"},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, err := BoundaryDecl(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := BoundaryDecl(ir.Void)
	require.ErrorIs(t, err, ErrVoidValue)

	ret, err := ReturnDecl(ir.Utf8String)
	require.NoError(t, err)
	assert.Equal(t, "jni::sys::jobject", ret)
}

func TestBoxed(t *testing.T) {
	box, ok := Boxed(ir.Int32)
	require.True(t, ok)
	assert.Equal(t, Box{Class: "java/lang/Integer", Field: "value", FieldDesc: "I", Accessor: "i"}, box)

	box, ok = Boxed(ir.Bool)
	require.True(t, ok)
	assert.Equal(t, "java/lang/Boolean", box.Class)

	_, ok = Boxed(ir.Utf8String)
	assert.False(t, ok)
}

func TestKotlinType(t *testing.T) {
	tests := []struct {
		in       ir.WireType
		expected string
	}{
		{ir.Int32, "Int"},
		{ir.Int64, "Long"},
		{ir.Bool, "Boolean"},
		{ir.Utf8String, "String"},
		{ir.ByteBuffer, "ByteArray"},
		{ir.Void, "Unit"},
		{ir.ObjectHandle{Owner: "W"}, "Long"},
		{ir.NamedType{Name: "FileChanged"}, "FileChanged"},
		{ir.Optional{Elem: ir.Int32}, "Int?"},
		{ir.Optional{Elem: ir.Optional{Elem: ir.Int32}}, "Int?"},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, KotlinType(tt.in))
		})
	}
}
