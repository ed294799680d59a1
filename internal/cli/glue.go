package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/pipeline"
)

// GlueOptions holds glue command flags.
type GlueOptions struct {
	*RootOptions
	overrides
	Stdout bool
}

// GlueResult is the JSON payload of the glue command.
type GlueResult struct {
	Path        string `json:"path"`
	Package     string `json:"package"`
	Changed     bool   `json:"changed"`
	Classes     int    `json:"classes"`
	DataClasses int    `json:"data_classes"`
	Interfaces  int    `json:"interfaces"`
	Functions   int    `json:"functions"`
}

// NewGlueCommand creates the glue command.
func NewGlueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GlueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "glue",
		Short: "Generate the native glue from annotated sources",
		Long: `Extract the annotated items from the configured Rust sources and write
the glue module: entry points, callback shims, the handle table and the
binding records the host pass reads back from the expanded crate.

The file is only rewritten when its content changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGlue(opts, cmd)
		},
	}

	addOverrideFlags(cmd, &opts.overrides)
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "print the glue instead of writing it")

	return cmd
}

func runGlue(opts *GlueOptions, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	opts.apply(cmd, cfg)
	formatter.VerboseLog("Extracting %d source file(s)", len(cfg.Sources))

	var res *pipeline.GlueResult
	if opts.Stdout {
		res, err = pipeline.RenderGlue(cfg)
	} else {
		res, err = pipeline.Glue(cfg)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), err)
	}

	if opts.Stdout {
		_, err := cmd.OutOrStdout().Write(res.Content)
		return err
	}

	result := GlueResult{
		Path:        res.Path,
		Package:     res.Bundle.Package,
		Changed:     res.Changed,
		Classes:     len(res.Bundle.Classes),
		DataClasses: len(res.Bundle.DataClasses),
		Interfaces:  len(res.Bundle.Interfaces),
		Functions:   len(res.Bundle.Functions),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	status := "written"
	if !res.Changed {
		status = "unchanged"
	}
	formatter.Printf("%s %s (%d class(es), %d data class(es), %d interface(s), %d function(s))\n",
		formatter.Mark(status), formatter.Name(res.Path),
		result.Classes, result.DataClasses, result.Interfaces, result.Functions)
	return nil
}
