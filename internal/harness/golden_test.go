package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kotars/internal/store"
)

func TestSnapshotMarshal(t *testing.T) {
	r := NewResult()
	r.Files["B.kt"] = "b"
	r.Files["A.kt"] = "a"
	r.Records = []store.Record{{Tag: "JNI_CLASS", Name: "Watcher"}}
	r.addEvent(TraceEvent{Kind: EventCall, Call: "Watcher::new", Args: []string{`"/srv"`}, Result: "Watcher#1"})
	r.addEvent(TraceEvent{Kind: EventDispose, Call: "Watcher::destroy", Args: []string{"w"}, Error: "boom"})

	data, err := NewSnapshot("s", r).Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"files":["A.kt","B.kt"],"records":["JNI_CLASS Watcher"],"scenario":"s","trace":[`+
			`{"args":["\"/srv\""],"call":"Watcher::new","kind":"call","result":"Watcher#1","seq":1},`+
			`{"args":["w"],"call":"Watcher::destroy","error":"boom","kind":"dispose","seq":2}]}`+"\n",
		string(data))
}

func TestSnapshotMarshalEmpty(t *testing.T) {
	data, err := NewSnapshot("empty", NewResult()).Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"files":[],"records":[],"scenario":"empty","trace":[]}`+"\n", string(data))
}

func TestSnapshotIsStable(t *testing.T) {
	s := load(t, "pantry_values")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := NewSnapshot(s.Name, first).Marshal()
	require.NoError(t, err)
	b, err := NewSnapshot(s.Name, second).Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
