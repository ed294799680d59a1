package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Artifact statuses.
const (
	StatusWritten   = "written"
	StatusUnchanged = "unchanged"
	StatusRemoved   = "removed"
)

// Run is one recorded generation pass.
type Run struct {
	ID               string     `json:"id"`
	Seq              int64      `json:"seq"`
	Command          string     `json:"command"`
	Package          string     `json:"package"`
	GeneratorVersion string     `json:"generator_version"`
	RecordVersion    string     `json:"record_version"`
	SourceDigest     string     `json:"source_digest"`
	BundleDigest     string     `json:"bundle_digest"`
	Records          []Record   `json:"records,omitempty"`
	Artifacts        []Artifact `json:"artifacts,omitempty"`
}

// Record is one binding record scanned by a run. Body is its canonical
// JSON.
type Record struct {
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Body   string `json:"-"`
}

// Artifact is one output file of a run. Path is slash-separated and
// relative to the output directory.
type Artifact struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	Status string `json:"status"`
}

// Count returns the number of artifacts with status.
func (r *Run) Count(status string) int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Status == status {
			n++
		}
	}
	return n
}

// IDGenerator generates run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WriteRun records run with its records and artifacts in one
// transaction, assigning run.Seq.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, command, package, generator_version, record_version, source_digest, bundle_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Command,
		run.Package,
		run.GeneratorVersion,
		run.RecordVersion,
		run.SourceDigest,
		run.BundleDigest,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	if err := writeRecords(ctx, tx, run); err != nil {
		return err
	}
	if err := writeArtifacts(ctx, tx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	run.Seq = seq
	return nil
}

func writeRecords(ctx context.Context, tx *sql.Tx, run *Run) error {
	for i, r := range run.Records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (run_id, ord, tag, name, digest, body)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, r.Tag, r.Name, r.Digest, r.Body)
		if err != nil {
			return fmt.Errorf("write record %s %s: %w", r.Tag, r.Name, err)
		}
	}
	return nil
}

func writeArtifacts(ctx context.Context, tx *sql.Tx, run *Run) error {
	for _, a := range run.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, path, digest, size, status)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, a.Path, a.Digest, a.Size, a.Status)
		if err != nil {
			return fmt.Errorf("write artifact %s: %w", a.Path, err)
		}
	}
	return nil
}
