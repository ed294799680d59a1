package render

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kotars/internal/ir"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

var (
	watcher = ir.Struct{Name: "Watcher", Fields: []ir.Field{
		{Name: ir.StringPtr("root"), Type: ir.Utf8String},
	}}

	watcherFunctions = []ir.Function{
		{
			Owner:      "Watcher",
			Name:       "new",
			Parameters: []ir.Parameter{ir.Named{Name: "root", Type: ir.Utf8String, Borrow: ir.BorrowShared}},
			ReturnType: ir.NamedType{Name: "Watcher"},
		},
		{
			Owner: "Watcher",
			Name:  "subscribe",
			Parameters: []ir.Parameter{
				ir.Receiver{Mutable: true},
				ir.Named{Name: "listener", Type: ir.CallbackType{Name: "Listener"}},
			},
		},
		{
			Owner:      "Watcher",
			Name:       "limit",
			Parameters: []ir.Parameter{ir.Receiver{}, ir.Named{Name: "max", Type: ir.Optional{Elem: ir.Int32}}},
			ReturnType: ir.Optional{Elem: ir.Int64},
		},
		{
			Owner:      "Watcher",
			Name:       "finish",
			Parameters: []ir.Parameter{ir.Receiver{Consuming: true}},
		},
	}

	listener = ir.Interface{Name: "Listener", Functions: []ir.Function{
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
	}}
)

func TestClassStaticOnly(t *testing.T) {
	kebab := ir.Struct{Name: "Kebab", Fields: []ir.Field{}}
	isYummy := ir.Function{Owner: "Kebab", Name: "is_yummy", ReturnType: ir.Bool}

	src, err := New("dev.example.food").Class(kebab, []ir.Function{isYummy})
	require.NoError(t, err)

	assert.Contains(t, src, "fun isYummy(): Boolean =")
	assert.NotContains(t, src, "this.pointer", "no instance members besides the handle")
	golden(t).Assert(t, "kebab_class", []byte(src))
}

func TestClassWithMembers(t *testing.T) {
	r := New("dev.example.watch")
	r.Library = "watch"

	src, err := r.Class(watcher, watcherFunctions)
	require.NoError(t, err)
	golden(t).Assert(t, "watcher_class", []byte(src))
}

func TestClassErrors(t *testing.T) {
	r := New("p")

	_, err := r.Class(watcher, []ir.Function{{Owner: "Other", Name: "f"}})
	require.Error(t, err)

	_, err = r.Class(watcher, []ir.Function{{
		Owner:      "Watcher",
		Name:       "f",
		Parameters: []ir.Parameter{ir.Named{Name: "a", Type: ir.Int32}, ir.Receiver{}},
	}})
	require.Error(t, err)

	_, err = r.Class(watcher, []ir.Function{{Owner: "Watcher", Name: "close", Parameters: []ir.Parameter{ir.Receiver{}}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AutoCloseable")
}

func TestDataClassUnnamedField(t *testing.T) {
	meters := ir.Struct{Name: "Meters", Fields: []ir.Field{{IsPublic: true, Type: ir.Int32}}}

	src := New("dev.example.units").DataClass(meters)
	assert.Contains(t, src, "val param0: Int,")
	golden(t).Assert(t, "meters_data_class", []byte(src))
}

func TestDataClassNamedFields(t *testing.T) {
	fileChanged := ir.Struct{Name: "FileChanged", Fields: []ir.Field{
		{IsPublic: true, Name: ir.StringPtr("path"), Type: ir.Utf8String},
		{IsPublic: true, Name: ir.StringPtr("size"), Type: ir.Optional{Elem: ir.Int64}},
		{IsPublic: true, Name: ir.StringPtr("object"), Type: ir.ByteBuffer},
	}}

	golden(t).Assert(t, "file_changed_data_class", []byte(New("dev.example.watch").DataClass(fileChanged)))
}

func TestDataClassWithoutFields(t *testing.T) {
	src := New("").DataClass(ir.Struct{Name: "Marker", Fields: []ir.Field{}})
	assert.Equal(t, "// @generated by kotars "+ir.GeneratorVersion+". Do not edit.\n\nclass Marker\n", src)
}

func TestInterface(t *testing.T) {
	src := New("dev.example.watch").Interface(listener)
	assert.NotContains(t, src, "pointer", "the receiver is implicit")
	golden(t).Assert(t, "listener_interface", []byte(src))

	empty := New("").Interface(ir.Interface{Name: "Nothing"})
	assert.True(t, strings.HasSuffix(empty, "interface Nothing\n"))
}

func TestSupportFile(t *testing.T) {
	src := New("dev.example.watch").SupportFile()
	assert.True(t, strings.HasPrefix(src, "// @generated by kotars "))
	assert.Contains(t, src, "package dev.example.watch\n")
	assert.Contains(t, src, "className: String,")
	assert.Contains(t, src, "closed.compareAndSet(false, true)")
	assert.Contains(t, src, "val thread: AutoCloseThread")

	assert.NotContains(t, New("").SupportFile(), "package ")
}

func TestBundle(t *testing.T) {
	b := &ir.Bundle{
		Package:     "dev.example.watch",
		Functions:   watcherFunctions,
		Classes:     []ir.Struct{watcher},
		DataClasses: []ir.Struct{{Name: "FileChanged", Fields: []ir.Field{{IsPublic: true, Name: ir.StringPtr("path"), Type: ir.Utf8String}}}},
		Interfaces:  []ir.Interface{listener},
	}

	files, err := New(b.Package).Bundle(b)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"AutoCloseThread.kt", "FileChanged.kt", "Watcher.kt", "Listener.kt"}, paths)

	nested := New(b.Package)
	nested.PackageDirs = true
	files, err = nested.Bundle(b)
	require.NoError(t, err)
	assert.Equal(t, "dev/example/watch/Watcher.kt", files[2].Path)
}

func TestBundleMissingClass(t *testing.T) {
	b := &ir.Bundle{Functions: []ir.Function{{Owner: "Ghost", Name: "boo"}}}
	_, err := New("").Bundle(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no class declaration for Ghost")
}

func TestKotlinName(t *testing.T) {
	assert.Equal(t, "`when`", KotlinName("when"))
	assert.Equal(t, "path", KotlinName("path"))
	assert.Equal(t, "value", KotlinName("value"), "soft keywords stay unquoted")
}
