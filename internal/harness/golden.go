package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/kotars/internal/ir"
)

// Snapshot is the golden form of a scenario result: the records, the
// generated file names and the trace.
type Snapshot struct {
	Scenario string
	Records  []string
	Files    []string
	Trace    []TraceEvent
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(name string, result *Result) *Snapshot {
	s := &Snapshot{Scenario: name, Files: fileNames(result), Trace: result.Trace}
	for _, r := range result.Records {
		s.Records = append(s.Records, r.Tag+" "+r.Name)
	}
	return s
}

// toCanonicalMap converts the snapshot to plain values for
// ir.MarshalCanonical.
func (s *Snapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"kind": ev.Kind,
			"call": ev.Call,
		}
		if len(ev.Args) > 0 {
			args := make([]any, len(ev.Args))
			for j, a := range ev.Args {
				args[j] = a
			}
			m["args"] = args
		}
		if ev.Result != "" {
			m["result"] = ev.Result
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario": s.Scenario,
		"records":  stringList(s.Records),
		"files":    stringList(s.Files),
		"trace":    trace,
	}
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// Marshal returns the canonical JSON of the snapshot followed by a
// newline.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A snapshot
// mismatch fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(name, result).Marshal()
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
