package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a generation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sources maps project-relative paths to Rust source text. Every
	// source is extracted unless Config lists sources explicitly.
	Sources map[string]string `yaml:"sources"`

	// Config is written to the project's kotars.yaml.
	Config map[string]any `yaml:"config,omitempty"`

	// ExpectError makes generation failure the expected outcome.
	ExpectError string `yaml:"expect_error,omitempty"`

	Flow       []FlowStep  `yaml:"flow,omitempty"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep is one call through a generated entry point, or the disposal
// of a bound object.
type FlowStep struct {
	// Call names the function as Owner::name.
	Call string `yaml:"call,omitempty"`

	// Receiver is the binding name of the receiver object.
	Receiver string `yaml:"receiver,omitempty"`

	// Args are the named arguments in declaration order.
	Args []any `yaml:"args,omitempty"`

	// Returns is the value the native implementation returns.
	Returns yaml.Node `yaml:"returns,omitempty"`

	// Expect is the value the host must read back.
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Bind names the returned object for later steps.
	Bind string `yaml:"bind,omitempty"`

	// Invoke lists the calls the native side makes on the callback
	// bridge passed to this call.
	Invoke []CallbackStep `yaml:"invoke,omitempty"`

	// Dispose releases a bound object.
	Dispose string `yaml:"dispose,omitempty"`

	// Error is a substring the step's error must contain. Without it
	// the step must succeed.
	Error string `yaml:"error,omitempty"`
}

// CallbackStep is a call the native side makes on a host callback.
type CallbackStep struct {
	Method string    `yaml:"method"`
	Args   []any     `yaml:"args,omitempty"`
	Expect yaml.Node `yaml:"expect,omitempty"`
	Error  string    `yaml:"error,omitempty"`
}

// Assertion validates generated output or the trace.
type Assertion struct {
	Type string `yaml:"type"`

	Path  string   `yaml:"path,omitempty"`  // file_contains
	Paths []string `yaml:"paths,omitempty"` // files
	Text  string   `yaml:"text,omitempty"`  // file_contains, glue_contains
	Tag   string   `yaml:"tag,omitempty"`   // record_count

	Call   string `yaml:"call,omitempty"`   // trace_contains, trace_count
	Result string `yaml:"result,omitempty"` // trace_contains

	Count int `yaml:"count,omitempty"` // record_count, trace_count, live_handles
}

// Assertion type constants.
const (
	AssertFiles         = "files"
	AssertFileContains  = "file_contains"
	AssertGlueContains  = "glue_contains"
	AssertRecordCount   = "record_count"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertLiveHandles   = "live_handles"
)

var assertionTypes = []string{
	AssertFiles, AssertFileContains, AssertGlueContains, AssertRecordCount,
	AssertTraceContains, AssertTraceCount, AssertLiveHandles,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Sources) == 0 {
		return fmt.Errorf("sources map is required and must be non-empty")
	}
	for path := range s.Sources {
		if filepath.IsAbs(path) || strings.HasPrefix(filepath.Clean(path), "..") {
			return fmt.Errorf("source path %q must stay inside the project", path)
		}
	}
	if s.ExpectError == "" && len(s.Flow) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("a scenario needs a flow, assertions or expect_error")
	}

	for i, step := range s.Flow {
		if (step.Call == "") == (step.Dispose == "") {
			return fmt.Errorf("flow[%d]: exactly one of call or dispose is required", i)
		}
		if step.Call != "" && !strings.Contains(step.Call, "::") {
			return fmt.Errorf("flow[%d]: call must be Owner::name, got %q", i, step.Call)
		}
		for j, cb := range step.Invoke {
			if cb.Method == "" {
				return fmt.Errorf("flow[%d].invoke[%d]: method is required", i, j)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertFiles:
		if len(a.Paths) == 0 {
			return fmt.Errorf("files requires paths")
		}
	case AssertFileContains:
		if a.Path == "" || a.Text == "" {
			return fmt.Errorf("file_contains requires path and text")
		}
	case AssertGlueContains:
		if a.Text == "" {
			return fmt.Errorf("glue_contains requires text")
		}
	case AssertRecordCount:
		if a.Tag == "" {
			return fmt.Errorf("record_count requires tag")
		}
	case AssertTraceContains, AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("%s requires call", a.Type)
		}
	case AssertLiveHandles:
	default:
		return fmt.Errorf("unknown assertion type %q (want one of %v)", a.Type, assertionTypes)
	}
	return nil
}
