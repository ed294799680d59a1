package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFiles:
		return assertFiles(result, a)
	case AssertFileContains:
		content, ok := result.Files[a.Path]
		if !ok {
			return &AssertionError{Type: a.Type, Expected: a.Path + " generated", Actual: fmt.Sprintf("files %v", fileNames(result))}
		}
		return assertContains(a.Type, a.Path, content, a.Text)
	case AssertGlueContains:
		return assertContains(a.Type, "glue", result.Glue, a.Text)
	case AssertRecordCount:
		n := 0
		for _, r := range result.Records {
			if r.Tag == a.Tag {
				n++
			}
		}
		return assertCount(a.Type, a.Tag+" records", a.Count, n)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceCount:
		n := 0
		for _, ev := range result.Trace {
			if ev.Call == a.Call {
				n++
			}
		}
		return assertCount(a.Type, a.Call+" events", a.Count, n)
	case AssertLiveHandles:
		return assertCount(a.Type, "live handles", a.Count, result.LiveHandles)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func fileNames(result *Result) []string {
	return slices.Sorted(maps.Keys(result.Files))
}

func assertFiles(result *Result, a Assertion) error {
	want := slices.Sorted(slices.Values(a.Paths))
	got := fileNames(result)
	if !slices.Equal(want, got) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%v", want), Actual: fmt.Sprintf("%v", got)}
	}
	return nil
}

func assertContains(typ, name, content, text string) error {
	if strings.Contains(content, text) {
		return nil
	}
	return &AssertionError{Type: typ, Expected: fmt.Sprintf("%s contains %q", name, text), Actual: "not found"}
}

func assertCount(typ, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{Type: typ, Expected: fmt.Sprintf("%d %s", want, what), Actual: fmt.Sprintf("%d", got)}
}

// assertTraceContains checks for an event named a.Call, with result
// a.Result when given.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	var seen []string
	for _, ev := range trace {
		if ev.Call != a.Call {
			continue
		}
		if a.Result == "" || ev.Result == a.Result {
			return nil
		}
		seen = append(seen, ev.Result)
	}

	actual := "not found in trace"
	if len(seen) > 0 {
		actual = fmt.Sprintf("results %v", seen)
	}
	expected := a.Call
	if a.Result != "" {
		expected += " returning " + a.Result
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual}
}
