package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
name: minimal
description: one class
sources:
  src/lib.rs: |
    jni_init!("dev.example.io");
assertions:
  - type: live_handles
    count: 0
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Contains(t, s.Sources, "src/lib.rs")
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertLiveHandles, s.Assertions[0].Type)
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		message string
	}{
		{
			name:    "unknown field",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nassertion: []\n",
			message: "assertion",
		},
		{
			name:    "missing name",
			yaml:    "description: b\nsources: {a.rs: x}\nexpect_error: x\n",
			message: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: a\nsources: {a.rs: x}\nexpect_error: x\n",
			message: "description is required",
		},
		{
			name:    "no sources",
			yaml:    "name: a\ndescription: b\nexpect_error: x\n",
			message: "sources map is required",
		},
		{
			name:    "source escapes project",
			yaml:    "name: a\ndescription: b\nsources: {../a.rs: x}\nexpect_error: x\n",
			message: "must stay inside the project",
		},
		{
			name:    "nothing to check",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\n",
			message: "needs a flow",
		},
		{
			name:    "call and dispose",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nflow: [{call: A::b, dispose: w}]\n",
			message: "exactly one of call or dispose",
		},
		{
			name:    "call without owner",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nflow: [{call: new}]\n",
			message: "Owner::name",
		},
		{
			name:    "invoke without method",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nflow: [{call: A::b, invoke: [{args: []}]}]\n",
			message: "method is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nassertions: [{type: nope}]\n",
			message: `unknown assertion type "nope"`,
		},
		{
			name:    "file_contains without text",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nassertions: [{type: file_contains, path: A.kt}]\n",
			message: "requires path and text",
		},
		{
			name:    "trace_count without call",
			yaml:    "name: a\ndescription: b\nsources: {a.rs: x}\nassertions: [{type: trace_count, count: 1}]\n",
			message: "trace_count requires call",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"class_arguments", "close_clash", "misplaced_self", "pantry_values", "watcher_lifecycle", "watcher_misuse"}, names)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenariosNamesBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimal), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: [\n"), 0o644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.yaml")
}
