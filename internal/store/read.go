package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Runs returns the most recent runs, newest first, with their records and
// artifacts. A limit of zero or less returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, command, package, generator_version, record_version, source_digest, bundle_digest
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		if err := s.loadChildren(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// ReadRun returns the run with id, or the unique run whose id starts
// with it.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, command, package, generator_version, record_version, source_digest, bundle_digest
		FROM runs
		WHERE id = ? OR id LIKE ? || '%'
		ORDER BY seq DESC
	`, id, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == id {
			matches = []Run{run}
			break
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run: %w", err)
	}
	rows.Close()

	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		return Run{}, fmt.Errorf("run id %s is ambiguous (%d matches)", id, len(matches))
	}
	run := matches[0]
	if err := s.loadChildren(ctx, &run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// CurrentArtifacts returns the artifacts present after the latest run
// that produced any, keyed by path. Removed artifacts are excluded.
func (s *Store) CurrentArtifacts(ctx context.Context) (map[string]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.path, a.digest, a.size, a.status
		FROM artifacts a
		WHERE a.run_id = (
			SELECT r.id FROM runs r
			WHERE EXISTS (SELECT 1 FROM artifacts x WHERE x.run_id = r.id)
			ORDER BY r.seq DESC
			LIMIT 1
		)
		AND a.status != ?
		ORDER BY a.path COLLATE BINARY ASC
	`, StatusRemoved)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Artifact)
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Path, &a.Digest, &a.Size, &a.Status); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out[a.Path] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

// LastSeq returns the seq of the latest run, zero when there is none.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) loadChildren(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, name, digest, body FROM records
		WHERE run_id = ?
		ORDER BY ord ASC
	`, run.ID)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Tag, &r.Name, &r.Digest, &r.Body); err != nil {
			rows.Close()
			return fmt.Errorf("scan record: %w", err)
		}
		run.Records = append(run.Records, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate records: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT path, digest, size, status FROM artifacts
		WHERE run_id = ?
		ORDER BY path COLLATE BINARY ASC
	`, run.ID)
	if err != nil {
		return fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Path, &a.Digest, &a.Size, &a.Status); err != nil {
			return fmt.Errorf("scan artifact: %w", err)
		}
		run.Artifacts = append(run.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate artifacts: %w", err)
	}
	return nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	err := rows.Scan(
		&run.ID,
		&run.Seq,
		&run.Command,
		&run.Package,
		&run.GeneratorVersion,
		&run.RecordVersion,
		&run.SourceDigest,
		&run.BundleDigest,
	)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}
