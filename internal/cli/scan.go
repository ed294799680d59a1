package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/expand"
	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/pipeline"
)

// ScanOptions holds scan command flags.
type ScanOptions struct {
	*RootOptions
	Source string
	Query  string

	Runner expand.Runner
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts, Runner: expand.ExecRunner{}}

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Print the binding records found in expanded source",
		Long: `Scan text for binding records and print the decoded bundle as JSON.

The text is read from file ("-" for stdin), or obtained like generate does
when no file is given. --query filters the bundle with a jq expression:

  kotars scan --query '.classes[].name'
  kotars scan out.rs --query '.functions[] | select(.owner == "Watcher") | .name'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", string(pipeline.SourceExpand), "where to read records from without a file (expand|glue)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "jq expression applied to the bundle")

	return cmd
}

func runScan(opts *ScanOptions, args []string, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var query *gojq.Query
	if opts.Query != "" {
		q, err := gojq.Parse(opts.Query)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeQuery, err)
		}
		query = q
	}

	text, err := scanInput(opts, args, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err), err)
	}
	b, err := codec.Scan(string(text))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScan, err)
	}
	formatter.VerboseLog("Scanned %d record(s) for package %q", b.Len(), b.Package)

	if query == nil {
		return outputScan(formatter, b)
	}

	results, err := runQuery(query, b)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeQuery, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	enc := json.NewEncoder(formatter.Writer)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func scanInput(opts *ScanOptions, args []string, cmd *cobra.Command) ([]byte, error) {
	if len(args) == 1 {
		if args[0] == "-" {
			return io.ReadAll(cmd.InOrStdin())
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return data, nil
	}

	src, err := parseSource(opts.Source)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return nil, err
	}
	return pipeline.Load(cmd.Context(), cfg, src, opts.Runner)
}

func outputScan(formatter *OutputFormatter, b *ir.Bundle) error {
	if formatter.Format == "json" {
		return formatter.Success(b)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	formatter.Printf("%s\n", data)
	return nil
}

// runQuery applies query to the JSON form of b. gojq only accepts plain
// JSON values, so the bundle is encoded and decoded first.
func runQuery(query *gojq.Query, b *ir.Bundle) ([]any, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}

	results := []any{}
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}
