package harness

import (
	"context"
	"fmt"
)

// ScenarioNotFoundError is returned when a named scenario is not in the
// suite.
type ScenarioNotFoundError struct {
	Name string
	Dir  string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q not found in %s", e.Name, e.Dir)
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Errors   []string `json:"errors"`
}

// RunSuite runs the scenarios in dir. When names are given only those
// scenarios run.
func RunSuite(ctx context.Context, dir string, names ...string) (*SuiteResult, error) {
	scenarios, err := LoadScenarios(dir)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		byName := make(map[string]*Scenario, len(scenarios))
		for _, s := range scenarios {
			byName[s.Name] = s
		}
		scenarios = scenarios[:0]
		for _, n := range names {
			s, ok := byName[n]
			if !ok {
				return nil, &ScenarioNotFoundError{Name: n, Dir: dir}
			}
			scenarios = append(scenarios, s)
		}
	}

	result := &SuiteResult{}
	for _, s := range scenarios {
		result.Total++
		res, err := RunContext(ctx, s)
		switch {
		case err != nil:
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{Scenario: s.Name, Errors: []string{err.Error()}})
		case !res.Pass:
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{Scenario: s.Name, Errors: res.Errors})
		default:
			result.Passed++
		}
	}
	return result, nil
}
