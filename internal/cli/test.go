package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/harness"
)

// TestOptions holds test command flags.
type TestOptions struct {
	*RootOptions
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir> [names...]",
		Short: "Run scenario files through the generator and the boundary simulator",
		Long: `Run the scenarios in a directory. Each scenario generates glue and Kotlin
sources for its crate, runs its flow of calls against the simulated JNI
boundary and checks its assertions. Names select scenarios; all run by
default.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, unknown scenario, etc.)

Examples:
  kotars test ./scenarios
  kotars test ./scenarios watcher_lifecycle
  kotars test ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1:], cmd)
		},
	}

	return cmd
}

func runTests(opts *TestOptions, dir string, names []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(dir); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("scenarios directory not found: %s", dir))
	}

	result, err := harness.RunSuite(cmd.Context(), dir, names...)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, f := range result.Failures {
			formatter.Printf("%s %s\n", formatter.Mark("failed"), formatter.Name(f.Scenario))
			for _, e := range f.Errors {
				formatter.Printf("  %s\n", e)
			}
		}
		formatter.Printf("Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d scenario(s) failed", ErrCodeTestFailed, result.Failed))
	}
	if formatter.Format == "text" {
		formatter.Printf("%s All scenarios passed\n", formatter.Mark("ok"))
	}
	return nil
}
