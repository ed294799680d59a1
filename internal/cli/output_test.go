package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"glue": "src/kotars_glue.rs"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeExtract, "lib.rs:3:1: unsupported type", map[string]int{"line": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "lib.rs:3:1: unsupported type", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "generation failed", "lib.rs"))
			assert.Contains(t, buf.String(), "Error [E001]: generation failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: lib.rs")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("scanned %d records", 7)
	assert.Empty(t, out.String())
	assert.Equal(t, "scanned 7 records\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("hidden")
	assert.Equal(t, "scanned 7 records\n", errOut.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	cause := errors.New("read source: no such file")

	err := formatter.Fail(ExitCommandError, ErrCodeExtract, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "read source: no such file")
}

func TestOutputFormatter_UnstyledForBuffers(t *testing.T) {
	formatter := NewOutputFormatter(&RootOptions{Format: "text"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.False(t, formatter.Styled)

	assert.Equal(t, "✓", formatter.Mark("written"))
	assert.Equal(t, "·", formatter.Mark("unchanged"))
	assert.Equal(t, "-", formatter.Mark("removed"))
	assert.Equal(t, "✗", formatter.Mark("stale"))
	assert.Equal(t, "✗", formatter.Mark("failed"))
	assert.Equal(t, "Watcher.kt", formatter.Name("Watcher.kt"))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad config")))

	wrapped := WrapExitError(ExitFailure, "stale", errors.New("Watcher.kt"))
	assert.Equal(t, "stale: Watcher.kt", wrapped.Error())
}
