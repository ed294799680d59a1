// Package pipeline runs the two generation passes against a project:
// the glue pass (native sources to glue) and the host pass (expanded
// crate to host sources), recording the host pass in the manifest.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/config"
	"github.com/roach88/kotars/internal/expand"
	"github.com/roach88/kotars/internal/extract"
	"github.com/roach88/kotars/internal/glue"
	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/render"
	"github.com/roach88/kotars/internal/store"
)

// Source selects where the host pass reads records from.
type Source string

const (
	// SourceExpand runs the expansion command and scans its output.
	SourceExpand Source = "expand"
	// SourceGlue scans the generated glue file directly.
	SourceGlue Source = "glue"
)

// ErrNoRecords is returned when the scanned text holds no binding records.
var ErrNoRecords = errors.New("no binding records found")

// GlueResult is the outcome of the glue pass.
type GlueResult struct {
	Path    string
	Bundle  *ir.Bundle
	Content []byte
	Changed bool
}

// Extract reads and merges the configured native sources. The configured
// package overrides the declared one.
func Extract(cfg *config.Config) (*ir.Bundle, []byte, error) {
	var files []*extract.File
	var all bytes.Buffer
	for _, src := range cfg.Sources {
		path := cfg.Resolve(src)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read source: %w", err)
		}
		f, err := extract.ExtractFile(src, data)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, f)
		all.Write(data)
	}

	merged, err := extract.Merge(files...)
	if err != nil {
		return nil, nil, err
	}
	b := merged.Bundle()
	b.Package = cfg.PackageFor(b.Package)
	return b, all.Bytes(), nil
}

// RenderGlue extracts the sources and renders the glue without writing it.
func RenderGlue(cfg *config.Config) (*GlueResult, error) {
	b, _, err := Extract(cfg)
	if err != nil {
		return nil, err
	}
	content, err := glue.Generate(b, cfg.GlueOptions())
	if err != nil {
		return nil, err
	}

	res := &GlueResult{Path: cfg.Resolve(cfg.Glue), Bundle: b, Content: content, Changed: true}
	if existing, err := os.ReadFile(res.Path); err == nil {
		res.Changed = !bytes.Equal(existing, content)
	}
	return res, nil
}

// Glue runs the glue pass, writing the glue file when its content changed.
func Glue(cfg *config.Config) (*GlueResult, error) {
	res, err := RenderGlue(cfg)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		if err := os.MkdirAll(filepath.Dir(res.Path), 0o755); err != nil {
			return nil, fmt.Errorf("write glue: %w", err)
		}
		if err := os.WriteFile(res.Path, res.Content, 0o644); err != nil {
			return nil, fmt.Errorf("write glue: %w", err)
		}
	}
	Logger().Info("glue pass",
		zap.String("path", res.Path),
		zap.Bool("changed", res.Changed),
		zap.Int("entities", res.Bundle.Len()))
	return res, nil
}

// Load returns the text the host pass scans.
func Load(ctx context.Context, cfg *config.Config, src Source, runner expand.Runner) ([]byte, error) {
	switch src {
	case SourceGlue:
		data, err := os.ReadFile(cfg.Resolve(cfg.Glue))
		if err != nil {
			return nil, fmt.Errorf("read glue: %w", err)
		}
		return data, nil
	case SourceExpand, "":
		return expand.Expand(ctx, runner, cfg.Dir, cfg.Expand)
	default:
		return nil, fmt.Errorf("unknown record source %q", src)
	}
}

// Options configure the host pass.
type Options struct {
	Source Source
	Runner expand.Runner
	IDs    store.IDGenerator

	// DryRun renders and compares without touching the output directory
	// or the manifest.
	DryRun bool
}

// Generate runs the host pass: load, scan, render, then synchronize the
// output directory and record the run in st.
func Generate(ctx context.Context, cfg *config.Config, st *store.Store, opts Options) (*store.Run, error) {
	text, err := Load(ctx, cfg, opts.Source, opts.Runner)
	if err != nil {
		return nil, err
	}
	b, err := codec.Scan(string(text))
	if err != nil {
		return nil, err
	}
	if b.Len() == 0 {
		return nil, ErrNoRecords
	}
	if cfg.Package != "" && cfg.Package != b.Package {
		Logger().Warn("configured package differs from the scanned records; using the records",
			zap.String("configured", cfg.Package),
			zap.String("scanned", b.Package))
	}

	files, err := cfg.Renderer(b.Package).Bundle(b)
	if err != nil {
		return nil, err
	}

	ids := opts.IDs
	if ids == nil {
		ids = store.UUIDv7Generator{}
	}
	run := &store.Run{
		ID:               ids.Generate(),
		Command:          "generate",
		Package:          b.Package,
		GeneratorVersion: ir.GeneratorVersion,
		RecordVersion:    ir.RecordVersion,
		SourceDigest:     ir.SourceDigest(text),
	}
	run.Records, run.BundleDigest, err = Records(b)
	if err != nil {
		return nil, err
	}

	prev, err := st.CurrentArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	run.Artifacts, err = Sync(cfg.Resolve(cfg.Output), files, prev, opts.DryRun)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return run, nil
	}

	if err := st.WriteRun(ctx, run); err != nil {
		return nil, err
	}
	Logger().Info("host pass",
		zap.String("run", run.ID),
		zap.Int("written", run.Count(store.StatusWritten)),
		zap.Int("unchanged", run.Count(store.StatusUnchanged)),
		zap.Int("removed", run.Count(store.StatusRemoved)))
	return run, nil
}

// Records lists the records of b in glue order with their digests, and
// the digest of the whole sequence.
func Records(b *ir.Bundle) ([]store.Record, string, error) {
	var recs []codec.Record
	for _, s := range b.Classes {
		recs = append(recs, codec.ClassRecord(s))
		for _, fn := range b.FunctionsOf(s.Name) {
			recs = append(recs, codec.FunctionRecord(fn))
		}
	}
	for _, s := range b.DataClasses {
		recs = append(recs, codec.DataClassRecord(s))
	}
	for _, i := range b.Interfaces {
		recs = append(recs, codec.InterfaceRecord(i))
	}

	out := make([]store.Record, 0, len(recs))
	var all bytes.Buffer
	for _, r := range recs {
		line, err := r.Line()
		if err != nil {
			return nil, "", err
		}
		digest, err := ir.RecordDigest(r.Node)
		if err != nil {
			return nil, "", err
		}
		out = append(out, store.Record{
			Tag:    r.Tag,
			Name:   recordName(r.Node),
			Digest: digest,
			Body:   line[len(r.Tag)+1:],
		})
		all.WriteString(line + "\n")
	}
	return out, ir.SourceDigest(all.Bytes()), nil
}

func recordName(node any) string {
	switch v := node.(type) {
	case ir.Function:
		return v.Owner + "::" + v.Name
	case ir.Struct:
		return v.Name
	case ir.Interface:
		return v.Name
	}
	return ""
}

// Sync brings dir in line with files. Files whose content is already on
// disk are left alone. Files recorded in prev but no longer generated are
// removed, unless they were edited since. Artifacts are returned sorted
// by path.
func Sync(dir string, files []render.File, prev map[string]store.Artifact, dryRun bool) ([]store.Artifact, error) {
	var out []store.Artifact
	current := make(map[string]bool, len(files))

	for _, f := range files {
		current[f.Path] = true
		a := store.Artifact{
			Path:   f.Path,
			Digest: ir.ArtifactDigest(f.Path, f.Content),
			Size:   int64(len(f.Content)),
			Status: store.StatusWritten,
		}
		full := filepath.Join(dir, filepath.FromSlash(f.Path))
		if existing, err := os.ReadFile(full); err == nil && ir.ArtifactDigest(f.Path, existing) == a.Digest {
			a.Status = store.StatusUnchanged
		} else if !dryRun {
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Path, err)
			}
			if err := os.WriteFile(full, f.Content, 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Path, err)
			}
		}
		out = append(out, a)
	}

	for path, a := range prev {
		if current[path] {
			continue
		}
		full := filepath.Join(dir, filepath.FromSlash(path))
		existing, err := os.ReadFile(full)
		if err == nil && ir.ArtifactDigest(path, existing) != a.Digest {
			Logger().Warn("stale file was edited, keeping it", zap.String("path", path))
			continue
		}
		if err == nil && !dryRun {
			if err := os.Remove(full); err != nil {
				return nil, fmt.Errorf("remove %s: %w", path, err)
			}
		}
		out = append(out, store.Artifact{Path: path, Digest: a.Digest, Size: a.Size, Status: store.StatusRemoved})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
