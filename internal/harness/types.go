package harness

import "github.com/roach88/kotars/internal/store"

// Trace event kinds.
const (
	EventCall     = "call"
	EventCallback = "callback"
	EventDispose  = "dispose"
)

// TraceEvent is one step of a flow as observed at the boundary. Values
// are rendered in their native form.
type TraceEvent struct {
	Seq    int64    `json:"seq"`
	Kind   string   `json:"kind"`
	Call   string   `json:"call"`
	Args   []string `json:"args,omitempty"`
	Result string   `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when generation, every flow expectation and every
	// assertion succeeded.
	Pass bool `json:"pass"`

	Errors []string `json:"errors,omitempty"`

	// Glue is the generated glue module.
	Glue string `json:"-"`

	// Files maps generated Kotlin paths to their content.
	Files map[string]string `json:"-"`

	Records []store.Record `json:"records"`
	Trace   []TraceEvent   `json:"trace"`

	// LiveHandles is the number of handle table slots still in use after
	// the flow.
	LiveHandles int `json:"live_handles"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Files:  make(map[string]string),
		Trace:  []TraceEvent{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends ev to the trace and returns its index.
func (r *Result) addEvent(ev TraceEvent) int {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
	return len(r.Trace) - 1
}
