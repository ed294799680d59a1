package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/kotars/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with one record and the given artifacts.
func createTestRun(id string, artifacts ...Artifact) *Run {
	return &Run{
		ID:               id,
		Command:          "generate",
		Package:          "dev.example.watch",
		GeneratorVersion: ir.GeneratorVersion,
		RecordVersion:    ir.RecordVersion,
		SourceDigest:     ir.SourceDigest([]byte("source " + id)),
		BundleDigest:     "bundle-" + id,
		Records: []Record{
			{Tag: "JNI_CLASS", Name: "Watcher", Digest: "d1", Body: `{"fields":[],"name":"Watcher"}`},
		},
		Artifacts: artifacts,
	}
}

func artifact(path, content, status string) Artifact {
	return Artifact{
		Path:   path,
		Digest: ir.ArtifactDigest(path, []byte(content)),
		Size:   int64(len(content)),
		Status: status,
	}
}
