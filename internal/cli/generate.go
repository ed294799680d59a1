package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/expand"
	"github.com/roach88/kotars/internal/pipeline"
	"github.com/roach88/kotars/internal/store"
)

// GenerateOptions holds generate command flags.
type GenerateOptions struct {
	*RootOptions
	Source string
	DryRun bool

	// Runner runs the expansion command. Tests replace it.
	Runner expand.Runner
	IDs    store.IDGenerator
}

// GenerateResult is the JSON payload of the generate command.
type GenerateResult struct {
	RunID     string           `json:"run_id,omitempty"`
	Seq       int64            `json:"seq,omitempty"`
	Package   string           `json:"package"`
	Records   int              `json:"records"`
	Output    string           `json:"output"`
	DryRun    bool             `json:"dry_run,omitempty"`
	Artifacts []store.Artifact `json:"artifacts"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts, Runner: expand.ExecRunner{}}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Kotlin sources from the expanded crate",
		Long: `Expand the crate, scan the binding records left there by the glue and
render one Kotlin source per class, data class and interface, plus the
shared cleanup support file.

Unchanged files are left alone and files generated by a previous run but
no longer produced are removed. Each run is recorded in the manifest.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", string(pipeline.SourceExpand), "where to read records from (expand|glue)")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "report what would change without writing")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	src, err := parseSource(opts.Source)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	formatter.VerboseLog("Reading records from %s", src)
	run, err := pipeline.Generate(cmd.Context(), cfg, st, pipeline.Options{
		Source: src,
		Runner: opts.Runner,
		IDs:    opts.IDs,
		DryRun: opts.DryRun,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), err)
	}

	result := GenerateResult{
		Package:   run.Package,
		Records:   len(run.Records),
		Output:    cfg.Resolve(cfg.Output),
		DryRun:    opts.DryRun,
		Artifacts: run.Artifacts,
	}
	if !opts.DryRun {
		result.RunID = run.ID
		result.Seq = run.Seq
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, a := range run.Artifacts {
		if a.Status == store.StatusUnchanged && !opts.Verbose {
			continue
		}
		formatter.Printf("%s %s\n", formatter.Mark(a.Status), formatter.Name(a.Path))
	}
	summary := "Generated"
	if opts.DryRun {
		summary = "Would generate"
	}
	formatter.Printf("%s %d file(s) for %s: %d written, %d unchanged, %d removed\n",
		summary, len(run.Artifacts)-run.Count(store.StatusRemoved), run.Package,
		run.Count(store.StatusWritten), run.Count(store.StatusUnchanged), run.Count(store.StatusRemoved))
	if !opts.DryRun {
		formatter.Printf("%s\n", formatter.Dim("run "+run.ID))
	}
	return nil
}
