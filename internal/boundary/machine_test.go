package boundary

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/marshal"
)

var fileChanged = ir.Struct{Name: "FileChanged", Fields: []ir.Field{
	{IsPublic: true, Name: ir.StringPtr("path"), Type: ir.Utf8String},
	{IsPublic: true, Name: ir.StringPtr("size"), Type: ir.Optional{Elem: ir.Int64}},
}}

var listener = ir.Interface{Name: "Listener", Functions: []ir.Function{
	{
		Owner:      "Listener",
		Name:       "detected_change",
		Parameters: []ir.Parameter{ir.Receiver{}, ir.Named{Name: "event", Type: ir.NamedType{Name: "FileChanged"}}},
	},
	{
		Owner:      "Listener",
		Name:       "should_continue",
		Parameters: []ir.Parameter{ir.Receiver{Mutable: true}},
		ReturnType: ir.Bool,
	},
}}

func watchBundle() *ir.Bundle {
	return &ir.Bundle{
		Package: "dev.example.watch",
		Functions: []ir.Function{
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
				ReturnType: ir.Bool,
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
		},
		Classes:     []ir.Struct{{Name: "Watcher", Fields: []ir.Field{}}},
		DataClasses: []ir.Struct{fileChanged},
		Interfaces:  []ir.Interface{listener},
	}
}

type watcher struct {
	root   string
	events []any
}

func entries(t *testing.T, m *Machine, b *ir.Bundle) map[string]*marshal.Entry {
	t.Helper()
	out := make(map[string]*marshal.Entry)
	for _, fn := range b.Functions {
		e, err := marshal.EntryPoint(fn, m.Encoder, marshal.Classes(b))
		require.NoError(t, err)
		out[fn.Name] = e
	}
	return out
}

func TestMarshalSymmetry(t *testing.T) {
	m := New(watchBundle())

	tests := []struct {
		name  string
		typ   ir.WireType
		value any
	}{
		{"int32", ir.Int32, int32(-7)},
		{"int64", ir.Int64, int64(math.MinInt64)},
		{"uint64 above signed range", ir.UInt64, uint64(math.MaxUint64)},
		{"float32", ir.Float32, float32(1.5)},
		{"float64", ir.Float64, math.Pi},
		{"bool true", ir.Bool, true},
		{"bool false", ir.Bool, false},
		{"string", ir.Utf8String, "héllo wörld"},
		{"bytes", ir.ByteBuffer, []byte{0, 1, 0xff}},
		{"optional int present", ir.Optional{Elem: ir.Int32}, Some(int32(42))},
		{"optional int absent", ir.Optional{Elem: ir.Int32}, None},
		{"optional bool false", ir.Optional{Elem: ir.Bool}, Some(false)},
		{"optional double", ir.Optional{Elem: ir.Float64}, Some(2.25)},
		{"optional string", ir.Optional{Elem: ir.Utf8String}, Some("x")},
		{"optional bytes absent", ir.Optional{Elem: ir.ByteBuffer}, None},
		{"data class", ir.NamedType{Name: "FileChanged"}, Record{Name: "FileChanged", Fields: []any{"a.txt", Some(int64(12))}}},
		{"data class absent field", ir.NamedType{Name: "FileChanged"}, Record{Name: "FileChanged", Fields: []any{"b.txt", None}}},
		{"optional data class", ir.Optional{Elem: ir.NamedType{Name: "FileChanged"}}, Some(Record{Name: "FileChanged", Fields: []any{"c", None}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, err := m.ToHost(tt.typ, tt.value)
			require.NoError(t, err)

			back, err := m.FromHost(tt.typ, host)
			require.NoError(t, err)
			assert.Equal(t, tt.value, back)
		})
	}
}

func TestMarshalBoxesOptionalPrimitives(t *testing.T) {
	m := New(&ir.Bundle{})

	host, err := m.ToHost(ir.Optional{Elem: ir.Int64}, Some(int64(9)))
	require.NoError(t, err)
	obj, ok := host.(*Object)
	require.True(t, ok)
	assert.Equal(t, "java/lang/Long", obj.Class)
	assert.Equal(t, JLong(9), obj.Fields["value"])

	host, err = m.ToHost(ir.Optional{Elem: ir.Int64}, None)
	require.NoError(t, err)
	assert.True(t, isNull(host))
}

func TestNestedOptionalCollapses(t *testing.T) {
	m := New(&ir.Bundle{})
	typ := ir.Optional{Elem: ir.Optional{Elem: ir.Int32}}

	host, err := m.ToHost(typ, Some(None))
	require.NoError(t, err)
	assert.True(t, isNull(host), "both levels are represented by null")

	back, err := m.FromHost(typ, host)
	require.NoError(t, err)
	assert.Equal(t, None, back)
}

func TestClassHandleRoundTrip(t *testing.T) {
	m := New(watchBundle())
	w := &watcher{root: "/tmp"}

	host, err := m.ToHost(ir.NamedType{Name: "Watcher"}, w)
	require.NoError(t, err)
	obj := host.(*Object)
	assert.Equal(t, "dev/example/watch/Watcher", obj.Class)
	assert.Equal(t, 1, m.Handles.Len())

	back, err := m.FromHost(ir.NamedType{Name: "Watcher"}, host)
	require.NoError(t, err)
	assert.Same(t, w, back, "ownership moves back out of the table")

	_, err = m.FromHost(ir.NamedType{Name: "Watcher"}, host)
	require.ErrorIs(t, err, ErrStale)

	require.NoError(t, m.Dispose("Watcher", obj.Fields["pointer"].(JLong)))
}

func TestDecodeFailuresAreFatal(t *testing.T) {
	m := New(&ir.Bundle{})

	_, err := m.FromHost(ir.Utf8String, (*Object)(nil))
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, marshal.OpDecodeString, fatal.Op)

	_, err = m.FromHost(ir.ByteBuffer, String("not bytes"))
	require.ErrorAs(t, err, &fatal)

	_, err = m.FromHost(ir.NamedType{Name: "Ghost"}, &Object{Class: "Ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no declaration for Ghost")
}

func TestWatcherLifecycle(t *testing.T) {
	b := watchBundle()
	m := New(b)
	e := entries(t, m, b)

	host, err := m.Invoke(e["new"], func(receiver any, args []any) (any, error) {
		assert.Nil(t, receiver)
		return &watcher{root: args[0].(string)}, nil
	}, String("/srv"))
	require.NoError(t, err)
	handle := host.(*Object).Fields["pointer"].(JLong)

	max, err := m.ToHost(ir.Optional{Elem: ir.Int32}, Some(int32(5)))
	require.NoError(t, err)
	limit, err := m.Invoke(e["limit"], func(receiver any, args []any) (any, error) {
		w := receiver.(*watcher)
		assert.Equal(t, "/srv", w.root)
		n := args[0].(Option).Value.(int32)
		return Some(int64(n) * 2), nil
	}, handle, max)
	require.NoError(t, err)
	back, err := m.FromHost(ir.Optional{Elem: ir.Int64}, limit)
	require.NoError(t, err)
	assert.Equal(t, Some(int64(10)), back)

	var seen []*Object
	cb := Callback("dev/example/watch/ListenerImpl", map[string]Method{
		"detectedChange": func(args []any) (any, error) {
			seen = append(seen, args[0].(*Object))
			return nil, nil
		},
		"shouldContinue": func([]any) (any, error) { return JBoolean(1), nil },
	})
	cont, err := m.Invoke(e["subscribe"], func(receiver any, args []any) (any, error) {
		bridge := args[0].(*Bridge)
		assert.Equal(t, "Listener", bridge.Interface())
		event := Record{Name: "FileChanged", Fields: []any{"a.txt", Some(int64(3))}}
		if _, err := bridge.Call("detected_change", event); err != nil {
			return nil, err
		}
		receiver.(*watcher).events = append(receiver.(*watcher).events, event)
		return bridge.Call("should_continue")
	}, handle, cb)
	require.NoError(t, err)
	assert.Equal(t, JBoolean(1), cont)

	require.Len(t, seen, 1)
	assert.Equal(t, "dev/example/watch/FileChanged", seen[0].Class)
	assert.Equal(t, "a.txt", seen[0].Fields["path"].(*Object).Str)

	var finished *watcher
	_, err = m.Invoke(e["finish"], func(receiver any, _ []any) (any, error) {
		finished = receiver.(*watcher)
		return nil, nil
	}, handle)
	require.NoError(t, err)
	require.NotNil(t, finished)
	assert.Len(t, finished.events, 1)

	_, err = m.Invoke(e["limit"], func(any, []any) (any, error) { return None, nil }, handle, (*Object)(nil))
	require.ErrorIs(t, err, ErrStale, "a consumed object cannot be used again")

	require.NoError(t, m.Dispose("Watcher", handle))
	require.ErrorIs(t, m.Dispose("Watcher", handle), ErrStale)
	assert.Zero(t, m.Handles.Len())
}

func classArgsBundle() *ir.Bundle {
	watcher := ir.NamedType{Name: "Watcher"}
	method := func(name string, params ...ir.Parameter) ir.Function {
		return ir.Function{Owner: "Watcher", Name: name, Parameters: append([]ir.Parameter{ir.Receiver{}}, params...)}
	}
	ping := method("ping")
	ping.ReturnType = ir.Int32
	return &ir.Bundle{
		Package: "dev.example.watch",
		Functions: []ir.Function{
			{Owner: "Watcher", Name: "new", ReturnType: watcher},
			method("merge", ir.Named{Name: "other", Type: watcher, Borrow: ir.BorrowShared}),
			method("steal", ir.Named{Name: "other", Type: watcher, Borrow: ir.BorrowMutable}),
			method("absorb", ir.Named{Name: "other", Type: watcher}),
			ping,
		},
		Classes: []ir.Struct{{Name: "Watcher", Fields: []ir.Field{}}},
	}
}

func TestClassArguments(t *testing.T) {
	b := classArgsBundle()

	setup := func(t *testing.T) (*Machine, map[string]*marshal.Entry, []*Object) {
		m := New(b)
		e := entries(t, m, b)
		var objs []*Object
		for _, root := range []string{"a", "b"} {
			host, err := m.Invoke(e["new"], func(any, []any) (any, error) { return &watcher{root: root}, nil })
			require.NoError(t, err)
			objs = append(objs, host.(*Object))
		}
		return m, e, objs
	}
	pointer := func(o *Object) JLong { return o.Fields["pointer"].(JLong) }
	ping := func(m *Machine, e map[string]*marshal.Entry, o *Object) error {
		_, err := m.Invoke(e["ping"], func(any, []any) (any, error) { return int32(1), nil }, pointer(o))
		return err
	}

	t.Run("shared borrow leaves the argument usable", func(t *testing.T) {
		m, e, objs := setup(t)
		a, other := objs[0], objs[1]

		_, err := m.Invoke(e["merge"], func(receiver any, args []any) (any, error) {
			assert.Equal(t, "a", receiver.(*watcher).root)
			assert.Equal(t, "b", args[0].(*watcher).root)
			return nil, nil
		}, pointer(a), other)
		require.NoError(t, err)

		require.NoError(t, ping(m, e, other))
		require.NoError(t, ping(m, e, a))
		assert.Equal(t, 2, m.Handles.Len())
		require.NoError(t, m.Dispose("Watcher", pointer(a)))
		require.NoError(t, m.Dispose("Watcher", pointer(other)))
	})

	t.Run("shared borrow of the receiver itself", func(t *testing.T) {
		m, e, objs := setup(t)
		a := objs[0]

		_, err := m.Invoke(e["merge"], func(receiver any, args []any) (any, error) {
			assert.Same(t, receiver, args[0])
			return nil, nil
		}, pointer(a), a)
		require.NoError(t, err)
		require.NoError(t, ping(m, e, a))
		require.NoError(t, m.Dispose("Watcher", pointer(a)))
	})

	t.Run("mutable borrow leaves the argument usable", func(t *testing.T) {
		m, e, objs := setup(t)
		a, other := objs[0], objs[1]

		_, err := m.Invoke(e["steal"], func(_ any, args []any) (any, error) {
			args[0].(*watcher).root = "stolen"
			return nil, nil
		}, pointer(a), other)
		require.NoError(t, err)
		require.NoError(t, ping(m, e, other))

		v, err := m.Handles.Dispose(pointer(other), "Watcher")
		require.NoError(t, err)
		assert.Equal(t, "stolen", v.(*watcher).root)
	})

	t.Run("mutable borrow of the receiver itself is rejected", func(t *testing.T) {
		m, e, objs := setup(t)
		a := objs[0]

		_, err := m.Invoke(e["steal"], func(any, []any) (any, error) {
			t.Fatal("native call must not run")
			return nil, nil
		}, pointer(a), a)
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		require.ErrorIs(t, err, ErrCheckedOut)
	})

	t.Run("by value moves the argument out", func(t *testing.T) {
		m, e, objs := setup(t)
		a, other := objs[0], objs[1]

		_, err := m.Invoke(e["absorb"], func(_ any, args []any) (any, error) {
			assert.Equal(t, "b", args[0].(*watcher).root)
			return nil, nil
		}, pointer(a), other)
		require.NoError(t, err)

		require.ErrorIs(t, ping(m, e, other), ErrStale)
		require.NoError(t, ping(m, e, a))
		require.NoError(t, m.Dispose("Watcher", pointer(other)))
		assert.Equal(t, 1, m.Handles.Len())
	})

	t.Run("by value of the receiver itself is rejected", func(t *testing.T) {
		m, e, objs := setup(t)
		a := objs[0]

		_, err := m.Invoke(e["absorb"], func(any, []any) (any, error) { return nil, nil }, pointer(a), a)
		require.ErrorIs(t, err, ErrCheckedOut)
	})

	t.Run("wrong wrapper class", func(t *testing.T) {
		m, e, objs := setup(t)

		_, err := m.Invoke(e["merge"], func(any, []any) (any, error) { return nil, nil },
			pointer(objs[0]), &Object{Class: "dev/example/watch/Other", Fields: map[string]any{"pointer": pointer(objs[1])}})
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, marshal.OpHandle, fatal.Op)
	})
}

func TestReentrantCheckout(t *testing.T) {
	b := watchBundle()
	m := New(b)
	e := entries(t, m, b)
	handle := m.Handles.Insert("Watcher", &watcher{})

	_, err := m.Invoke(e["limit"], func(any, []any) (any, error) {
		_, err := m.Invoke(e["limit"], func(any, []any) (any, error) { return None, nil }, handle, (*Object)(nil))
		return None, err
	}, handle, (*Object)(nil))
	require.ErrorIs(t, err, ErrCheckedOut)
}

func TestCallbackException(t *testing.T) {
	b := watchBundle()
	m := New(b)
	e := entries(t, m, b)
	handle := m.Handles.Insert("Watcher", &watcher{})

	boom := errors.New("IllegalStateException")
	cb := Callback("L", map[string]Method{
		"shouldContinue": func([]any) (any, error) { return nil, boom },
	})
	_, err := m.Invoke(e["subscribe"], func(_ any, args []any) (any, error) {
		return args[0].(*Bridge).Call("should_continue")
	}, handle, cb)

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "Listener", cbErr.Interface)
	assert.Equal(t, "shouldContinue", cbErr.Method)
	require.ErrorIs(t, err, boom)
}

func TestInvokeArity(t *testing.T) {
	b := watchBundle()
	m := New(b)
	e := entries(t, m, b)

	_, err := m.Invoke(e["new"], func(any, []any) (any, error) { return nil, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 arguments, got 0")
}
