package testutil

import "context"

// StubRunner is an expansion runner that returns canned output and
// records how it was called.
type StubRunner struct {
	Output []byte
	Err    error

	Dir   string
	Argv  []string
	Calls int
}

// Run implements expand.Runner.
func (r *StubRunner) Run(ctx context.Context, dir string, argv []string) ([]byte, error) {
	r.Calls++
	r.Dir = dir
	r.Argv = argv
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Output, r.Err
}
