package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/store"
)

// HistoryOptions holds history command flags.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded generate runs",
		Long: `List the generate runs recorded in the manifest, newest first, or show
one run with its records and files. A run may be named by any unique
prefix of its id.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	if len(args) == 1 {
		run, err := st.ReadRun(cmd.Context(), args[0])
		if err != nil {
			return formatter.Fail(ExitCommandError, errorCode(err), err)
		}
		return outputRun(formatter, run)
	}

	runs, err := st.Runs(cmd.Context(), opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		formatter.Printf("No runs recorded\n")
		return nil
	}
	for _, r := range runs {
		formatter.Printf("%4d  %s  %s  %d record(s)  %d written, %d unchanged, %d removed\n",
			r.Seq, formatter.Dim(shortID(r.ID)), formatter.Name(r.Package), len(r.Records),
			r.Count(store.StatusWritten), r.Count(store.StatusUnchanged), r.Count(store.StatusRemoved))
	}
	return nil
}

func outputRun(formatter *OutputFormatter, run store.Run) error {
	if formatter.Format == "json" {
		return formatter.Success(run)
	}
	formatter.Printf("Run %s (#%d)\n", run.ID, run.Seq)
	formatter.Printf("  package:   %s\n", run.Package)
	formatter.Printf("  generator: %s (records v%s)\n", run.GeneratorVersion, run.RecordVersion)
	formatter.Printf("  source:    %s\n", formatter.Dim(run.SourceDigest))
	formatter.Printf("  bundle:    %s\n", formatter.Dim(run.BundleDigest))
	formatter.Printf("\nRecords:\n")
	for _, r := range run.Records {
		formatter.Printf("  %-16s %s\n", r.Tag, formatter.Name(r.Name))
	}
	formatter.Printf("\nFiles:\n")
	for _, a := range run.Artifacts {
		formatter.Printf("  %s %s %s\n", formatter.Mark(a.Status), formatter.Name(a.Path), formatter.Dim(a.Status))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
