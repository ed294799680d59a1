package harness

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/config"
	"github.com/roach88/kotars/internal/pipeline"
	"github.com/roach88/kotars/internal/store"
	"github.com/roach88/kotars/internal/testutil"
)

// Run executes a scenario in a scratch project and returns the result.
//
// Execution flow:
//  1. Write the sources and kotars.yaml to a temporary directory
//  2. Run the glue pass, then the host pass reading records from the glue
//  3. Execute the flow against a boundary machine for the scanned records
//  4. Evaluate the assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for the host pass.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "kotars-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create project dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg, err := writeProject(dir, scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	glue, run, err := generate(ctx, cfg, st)
	if scenario.ExpectError != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("expected generation to fail with %q, but it succeeded", scenario.ExpectError))
		case !strings.Contains(err.Error(), scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected generation error containing %q, got %v", scenario.ExpectError, err))
		}
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	result.Glue = string(glue.Content)
	result.Records = run.Records
	out := cfg.Resolve(cfg.Output)
	for _, a := range run.Artifacts {
		if a.Status == store.StatusRemoved {
			continue
		}
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(a.Path)))
		if err != nil {
			return nil, err
		}
		result.Files[a.Path] = string(data)
	}

	b, err := codec.Scan(result.Glue)
	if err != nil {
		return nil, err
	}
	if err := newFlow(b, result).run(scenario.Flow); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func generate(ctx context.Context, cfg *config.Config, st *store.Store) (*pipeline.GlueResult, *store.Run, error) {
	glue, err := pipeline.Glue(cfg)
	if err != nil {
		return nil, nil, err
	}
	run, err := pipeline.Generate(ctx, cfg, st, pipeline.Options{
		Source: pipeline.SourceGlue,
		IDs:    testutil.NewFixedIDGenerator("scenario"),
	})
	if err != nil {
		return nil, nil, err
	}
	return glue, run, nil
}

// writeProject lays out the scenario's sources and configuration in dir.
func writeProject(dir string, scenario *Scenario) (*config.Config, error) {
	for path, content := range scenario.Sources {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}

	cfg := maps.Clone(scenario.Config)
	if cfg == nil {
		cfg = make(map[string]any)
	}
	if _, ok := cfg["sources"]; !ok {
		var sources []string
		for _, path := range slices.Sorted(maps.Keys(scenario.Sources)) {
			if strings.HasSuffix(path, ".rs") {
				sources = append(sources, path)
			}
		}
		cfg["sources"] = sources
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "kotars.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return config.Load(path)
}
