package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kotars/internal/ir"
)

const watcherSource = `
use kotars::{jni_class, jni_data_class, jni_init, jni_interface, jni_struct_impl};

jni_init!("dev.example.watch");

#[jni_class]
pub struct Watcher {
    path: String,
}

#[derive(Debug, Clone)]
#[jni_data_class]
pub struct FileChanged {
    pub path: String,
    pub size: Option < i64 >,
}

#[jni_data_class]
struct Point(pub i32, i32);

#[jni_interface]
pub trait Listener {
    fn detected_change(&self, path: FileChanged);
    fn should_continue(&mut self) -> bool;
}

#[jni_struct_impl]
impl Watcher {
    pub fn new(path: &str) -> Self {
        Watcher { path: path.to_string() }
    }

    fn subscribe(&mut self, listener: impl Listener) {
        let _ = listener;
    }

    fn read(&self, buf: &[u8], limit: Option<i32>) -> Vec<u8> {
        buf.to_vec()
    }

    fn close(self) -> () {}
}

// Not marked: ignored.
impl Watcher {
    fn helper(&self) {}
}

fn main() {}
`

func TestExtractFile(t *testing.T) {
	f, err := ExtractFile("src/lib.rs", []byte(watcherSource))
	require.NoError(t, err)

	assert.Equal(t, "dev.example.watch", f.Package)
	assert.True(t, f.HasPackage)

	require.Len(t, f.Classes, 1)
	assert.Equal(t, ir.Struct{Name: "Watcher", Fields: []ir.Field{
		{IsPublic: false, Name: ir.StringPtr("path"), Type: ir.Utf8String},
	}}, f.Classes[0])

	require.Len(t, f.DataClasses, 2)
	assert.Equal(t, ir.Struct{Name: "FileChanged", Fields: []ir.Field{
		{IsPublic: true, Name: ir.StringPtr("path"), Type: ir.Utf8String},
		{IsPublic: true, Name: ir.StringPtr("size"), Type: ir.Optional{Elem: ir.Int64}},
	}}, f.DataClasses[0])
	assert.Equal(t, ir.Struct{Name: "Point", Fields: []ir.Field{
		{IsPublic: true, Type: ir.Int32},
		{IsPublic: false, Type: ir.Int32},
	}}, f.DataClasses[1])

	require.Len(t, f.Interfaces, 1)
	assert.Equal(t, ir.Interface{Name: "Listener", Functions: []ir.Function{
		{
			Owner:      "Listener",
			Name:       "detected_change",
			Parameters: []ir.Parameter{ir.Receiver{}, ir.Named{Name: "path", Type: ir.NamedType{Name: "FileChanged"}}},
		},
		{
			Owner:      "Listener",
			Name:       "should_continue",
			Parameters: []ir.Parameter{ir.Receiver{Mutable: true}},
			ReturnType: ir.Bool,
		},
	}}, f.Interfaces[0])

	require.Len(t, f.Functions, 4)
	assert.Equal(t, ir.Function{
		Owner:      "Watcher",
		Name:       "new",
		Parameters: []ir.Parameter{ir.Named{Name: "path", Type: ir.Utf8String, Borrow: ir.BorrowShared}},
		ReturnType: ir.NamedType{Name: "Watcher"},
	}, f.Functions[0])
	assert.Equal(t, ir.Function{
		Owner: "Watcher",
		Name:  "subscribe",
		Parameters: []ir.Parameter{
			ir.Receiver{Mutable: true},
			ir.Named{Name: "listener", Type: ir.CallbackType{Name: "Listener"}},
		},
	}, f.Functions[1])
	assert.Equal(t, ir.Function{
		Owner: "Watcher",
		Name:  "read",
		Parameters: []ir.Parameter{
			ir.Receiver{},
			ir.Named{Name: "buf", Type: ir.ByteBuffer, Borrow: ir.BorrowShared},
			ir.Named{Name: "limit", Type: ir.Optional{Elem: ir.Int32}},
		},
		ReturnType: ir.ByteBuffer,
	}, f.Functions[2])
	assert.Equal(t, ir.Function{
		Owner:      "Watcher",
		Name:       "close",
		Parameters: []ir.Parameter{ir.Receiver{Consuming: true}},
	}, f.Functions[3], "unit return means no return type")

	b := f.Bundle()
	assert.Equal(t, 8, b.Len())
	assert.Len(t, b.FunctionsOf("Watcher"), 4)
}

func TestExtractFileReceiverPosition(t *testing.T) {
	f, err := ExtractFile("lib.rs", []byte(watcherSource))
	require.NoError(t, err)

	for _, fn := range f.Functions {
		require.NoError(t, ir.ValidateParameters(fn.Parameters), fn.Name)
	}
	for _, i := range f.Interfaces {
		for _, fn := range i.Functions {
			require.NoError(t, ir.ValidateParameters(fn.Parameters), fn.Name)
		}
	}
}

func TestExtractFileWithoutPackage(t *testing.T) {
	f, err := ExtractFile("lib.rs", []byte("#[jni_class]\nstruct Kebab {}\n"))
	require.NoError(t, err)
	assert.False(t, f.HasPackage)
	assert.Empty(t, f.Package)
	require.Len(t, f.Classes, 1)
	assert.Empty(t, f.Classes[0].Fields)
}

func TestExtractFileInlineModule(t *testing.T) {
	src := `
mod bindings {
    #[kotars::jni_class]
    pub struct Kebab;

    #[jni_struct_impl]
    impl Kebab {
        fn is_yummy() -> bool { true }
    }
}
`
	f, err := ExtractFile("lib.rs", []byte(src))
	require.NoError(t, err)
	require.Len(t, f.Classes, 1)
	assert.Equal(t, "Kebab", f.Classes[0].Name)
	require.Len(t, f.Functions, 1)
	assert.True(t, f.Functions[0].IsStatic())
	assert.Equal(t, ir.Bool, f.Functions[0].ReturnType)
}

func TestExtractFileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
		line int
	}{
		{
			name: "value receiver in interface",
			src:  "#[jni_interface]\ntrait L {\n    fn gone(self);\n}",
			code: CodeValueReceiver,
			line: 3,
		},
		{
			name: "interface method without receiver",
			src:  "#[jni_interface]\ntrait L {\n    fn make() -> i32;\n}",
			code: CodeMissingReceiver,
			line: 3,
		},
		{
			name: "generic struct",
			src:  "#[jni_class]\nstruct Boxed<T> { v: T }",
			code: CodeGeneric,
			line: 2,
		},
		{
			name: "returns reference",
			src:  "#[jni_struct_impl]\nimpl W {\n    fn name(&self) -> &str { \"\" }\n}",
			code: CodeReturnsReference,
			line: 3,
		},
		{
			name: "trait impl",
			src:  "#[jni_struct_impl]\nimpl Listener for W {}",
			code: CodeTraitImpl,
			line: 2,
		},
		{
			name: "marker on wrong item",
			src:  "#[jni_class]\nenum E { A }",
			code: CodeBadTarget,
			line: 1,
		},
		{
			name: "duplicate class",
			src:  "#[jni_class]\nstruct A;\n#[jni_data_class]\nstruct A;",
			code: CodeDuplicate,
			line: 4,
		},
		{
			name: "duplicate package",
			src:  "jni_init!(\"a\");\njni_init!(\"b\");",
			code: CodeDuplicate,
			line: 2,
		},
		{
			name: "reference field",
			src:  "#[jni_data_class]\nstruct R { s: &'static str }",
			code: CodeBadParameter,
			line: 2,
		},
		{
			name: "pattern parameter",
			src:  "#[jni_struct_impl]\nimpl W {\n    fn f((a, b): (i32, i32)) {}\n}",
			code: CodeBadParameter,
			line: 3,
		},
		{
			name: "unterminated impl",
			src:  "#[jni_struct_impl]\nimpl W {\n    fn f() {}\n",
			code: CodeSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractFile("lib.rs", []byte(tt.src))
			require.Error(t, err)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.code, e.Code, e.Error())
			assert.Equal(t, "lib.rs", e.File)
			if tt.line > 0 {
				assert.Equal(t, tt.line, e.Line, e.Error())
			}
		})
	}
}

func TestErrorFormat(t *testing.T) {
	e := &Error{Code: CodeGeneric, Item: "Boxed", Message: "generic parameters are not supported", File: "lib.rs", Line: 2, Col: 13}
	assert.Equal(t, "lib.rs:2:13: E202 Boxed: generic parameters are not supported", e.Error())

	e = &Error{Code: CodeDuplicate, Message: "dup"}
	assert.Equal(t, "E206 dup", e.Error())
}

func TestExtractStruct(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected ir.Struct
	}{
		{
			name:     "tuple with one primitive",
			src:      "struct Meters(pub i32);",
			expected: ir.Struct{Name: "Meters", Fields: []ir.Field{{IsPublic: true, Type: ir.Int32}}},
		},
		{
			name: "restricted visibility is not public",
			src:  "pub(crate) struct S { pub(crate) a: bool, pub b: Vec<u8> }",
			expected: ir.Struct{Name: "S", Fields: []ir.Field{
				{IsPublic: false, Name: ir.StringPtr("a"), Type: ir.Bool},
				{IsPublic: true, Name: ir.StringPtr("b"), Type: ir.ByteBuffer},
			}},
		},
		{
			name:     "unit",
			src:      "struct U;",
			expected: ir.Struct{Name: "U", Fields: []ir.Field{}},
		},
		{
			name: "paths keep their spelling",
			src:  "struct P { id: std::string::String }",
			expected: ir.Struct{Name: "P", Fields: []ir.Field{
				{IsPublic: false, Name: ir.StringPtr("id"), Type: ir.NamedType{Name: "std :: string :: String"}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ExtractStruct(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestExtractInterface(t *testing.T) {
	iface, err := ExtractInterface(`
pub trait Progress: Send {
    /// Called per chunk.
    fn on_chunk(&self, data: Vec<u8>, done: Option < bool >) -> Option < String >;
    fn reset(&'a mut self) {}
    type Extra;
}`)
	require.NoError(t, err)

	assert.Equal(t, "Progress", iface.Name)
	require.Len(t, iface.Functions, 2)
	assert.Equal(t, []ir.Parameter{
		ir.Receiver{},
		ir.Named{Name: "data", Type: ir.ByteBuffer},
		ir.Named{Name: "done", Type: ir.Optional{Elem: ir.Bool}},
	}, iface.Functions[0].Parameters)
	assert.Equal(t, ir.Optional{Elem: ir.Utf8String}, iface.Functions[0].ReturnType)
	assert.Equal(t, []ir.Parameter{ir.Receiver{Mutable: true}}, iface.Functions[1].Parameters)
}

func TestExtractImplFiltersByOwner(t *testing.T) {
	src := `
impl Kebab {
    fn is_yummy() -> bool { true }
}
impl Other {
    fn skip(&self) {}
}
fn free(x: impl Listener) {}
impl Kebab {
    fn eat(mut self) -> Option < Self > { None }
    fn weigh(self: &Self) -> f64 { 1.0 }
}
`
	fns, err := ExtractImpl(src, "Kebab")
	require.NoError(t, err)
	require.Len(t, fns, 3)

	assert.Equal(t, "is_yummy", fns[0].Name)
	assert.True(t, fns[0].IsStatic())

	assert.Equal(t, []ir.Parameter{ir.Receiver{Consuming: true}}, fns[1].Parameters)
	assert.Equal(t, ir.Optional{Elem: ir.NamedType{Name: "Kebab"}}, fns[1].ReturnType)

	assert.Equal(t, []ir.Parameter{ir.Receiver{}}, fns[2].Parameters)
	assert.Equal(t, ir.Float64, fns[2].ReturnType)

	none, err := ExtractImpl(src, "Missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveType(t *testing.T) {
	tests := []struct {
		src    string
		borrow ir.Borrow
		wire   ir.WireType
	}{
		{"&str", ir.BorrowShared, ir.Utf8String},
		{"&'a str", ir.BorrowShared, ir.Utf8String},
		{"&mut [u8]", ir.BorrowMutable, ir.ByteBuffer},
		{"& impl Listener", ir.BorrowShared, ir.CallbackType{Name: "Listener"}},
		{"()", ir.BorrowNone, ir.Void},
		{"Self", ir.BorrowNone, ir.NamedType{Name: "Owner"}},
		{"Option<Self>", ir.BorrowNone, ir.Optional{Elem: ir.NamedType{Name: "Owner"}}},
		{"Option < Self >", ir.BorrowNone, ir.Optional{Elem: ir.NamedType{Name: "Owner"}}},
		{"Vec<String>", ir.BorrowNone, ir.NamedType{Name: "Vec < String >"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tokens, err := Tokenize(tt.src)
			require.NoError(t, err)
			nt := resolveType(tokens, "Owner")
			assert.Equal(t, tt.borrow, nt.borrow)
			assert.True(t, ir.EqualWireTypes(tt.wire, nt.wire), "got %s", nt.wire)
		})
	}
}

func TestMerge(t *testing.T) {
	a, err := ExtractFile("a.rs", []byte("jni_init!(\"pkg\");\n#[jni_class]\nstruct A;"))
	require.NoError(t, err)
	b, err := ExtractFile("b.rs", []byte("#[jni_struct_impl]\nimpl A { fn f() {} }"))
	require.NoError(t, err)

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, "pkg", merged.Package)
	assert.Len(t, merged.Classes, 1)
	assert.Len(t, merged.Functions, 1)

	_, err = Merge(a, a)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, CodeDuplicate, e.Code)

	other, err := ExtractFile("c.rs", []byte("jni_init!(\"other\");"))
	require.NoError(t, err)
	_, err = Merge(a, other)
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "conflicts")
}
