package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/pipeline"
)

// CheckOptions holds check command flags.
type CheckOptions struct {
	*RootOptions
	overrides
}

// FileCheck is the state of one generated file.
type FileCheck struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "ok" | "stale"
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Package string      `json:"package"`
	Glue    FileCheck   `json:"glue"`
	Files   []FileCheck `json:"files"`
	Stale   int         `json:"stale"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that generated glue and Kotlin sources are up to date",
		Long: `Regenerate the glue and the Kotlin sources in memory and compare them
with the files on disk. Nothing is written and the crate is not expanded:
the Kotlin sources are rendered from the records in the regenerated glue.

Exits with status 1 when any file is missing or differs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	addOverrideFlags(cmd, &opts.overrides)

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	opts.apply(cmd, cfg)

	res, err := pipeline.RenderGlue(cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), err)
	}
	b, err := codec.Scan(string(res.Content))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScan, err)
	}
	files, err := cfg.Renderer(b.Package).Bundle(b)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRender, err)
	}

	result := CheckResult{Package: b.Package, Glue: FileCheck{Path: cfg.Glue, Status: "ok"}}
	if res.Changed {
		result.Glue.Status = "stale"
		result.Stale++
	}
	out := cfg.Resolve(cfg.Output)
	for _, f := range files {
		fc := FileCheck{Path: f.Path, Status: "ok"}
		existing, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(f.Path)))
		if err != nil || !bytes.Equal(existing, f.Content) {
			fc.Status = "stale"
			result.Stale++
		}
		result.Files = append(result.Files, fc)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		formatter.Printf("%s %s\n", formatter.Mark(result.Glue.Status), formatter.Name(result.Glue.Path))
		for _, fc := range result.Files {
			formatter.Printf("%s %s\n", formatter.Mark(fc.Status), formatter.Name(fc.Path))
		}
	}

	if result.Stale > 0 {
		msg := fmt.Sprintf("%d generated file(s) out of date", result.Stale)
		if formatter.Format == "text" {
			formatter.Printf("%s\n", msg)
		}
		return NewExitError(ExitFailure, ErrCodeStale+": "+msg)
	}
	if formatter.Format == "text" {
		formatter.Printf("All generated files are up to date\n")
	}
	return nil
}
