package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/config"
	"github.com/roach88/kotars/internal/expand"
	"github.com/roach88/kotars/internal/extract"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/pipeline"
	"github.com/roach88/kotars/internal/store"
)

// overrides are the per-command flags that take precedence over the
// configuration file.
type overrides struct {
	Package        string
	Prefix         string
	Suffix         string
	Library        string
	EraseOptionals bool
}

func addOverrideFlags(cmd *cobra.Command, ov *overrides) {
	cmd.Flags().StringVar(&ov.Package, "package", "", "host package (overrides the declared package)")
	cmd.Flags().StringVar(&ov.Prefix, "prefix", "", "host object name prefix")
	cmd.Flags().StringVar(&ov.Suffix, "suffix", "", "host object name suffix")
	cmd.Flags().StringVar(&ov.Library, "library", "", "native library loaded by the host objects")
	cmd.Flags().BoolVar(&ov.EraseOptionals, "erase-optionals", false, "use primitive descriptors for optional primitives")
}

func (ov *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("package") {
		cfg.Package = ov.Package
	}
	if flags.Changed("prefix") {
		cfg.Prefix = ov.Prefix
	}
	if flags.Changed("suffix") {
		cfg.Suffix = ov.Suffix
	}
	if flags.Changed("library") {
		cfg.Library = ov.Library
	}
	if flags.Changed("erase-optionals") {
		cfg.EraseOptionals = ov.EraseOptionals
	}
}

// loadConfig loads the explicit config file, or discovers one in the
// project directory.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config != "" {
		return config.Load(opts.Config)
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	return config.Discover(dir)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Resolve(cfg.Manifest))
}

// errorCode maps a generation error to its CLI error code.
func errorCode(err error) string {
	var (
		cfgErr     *config.Error
		extractErr *extract.Error
		marshalErr *marshal.Error
		expandErr  *expand.Error
		scanErr    *codec.Error
	)
	switch {
	case errors.As(err, &cfgErr):
		return ErrCodeConfig
	case errors.As(err, &extractErr), errors.As(err, &marshalErr):
		return ErrCodeExtract
	case errors.As(err, &expandErr), errors.Is(err, expand.ErrEmptyCommand):
		return ErrCodeExpand
	case errors.As(err, &scanErr), errors.Is(err, pipeline.ErrNoRecords):
		return ErrCodeScan
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

func parseSource(s string) (pipeline.Source, error) {
	switch src := pipeline.Source(s); src {
	case pipeline.SourceExpand, pipeline.SourceGlue:
		return src, nil
	}
	return "", errors.New(`--source must be "expand" or "glue"`)
}
