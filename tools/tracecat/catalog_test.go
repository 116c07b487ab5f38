package tracecat

import (
	"os"
	"path/filepath"
	"testing"

	"ddscore/internal/trace"
)

func TestListCollectsHeaders(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "alpha")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	header := trace.Header{
		SchemaVersion: trace.HeaderSchemaVersion,
		DomainTag:     "alpha",
		FilePointer:   "bundle.trace.json.gz",
	}
	headerPath := filepath.Join(dataDir, "alpha.header.json")
	if err := trace.WriteHeader(headerPath, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.DomainTag != "alpha" {
		t.Fatalf("unexpected domain tag: %q", entry.Header.DomainTag)
	}
	if entry.BundlePath != filepath.Join(dataDir, "bundle.trace.json.gz") {
		t.Fatalf("unexpected bundle path: %q", entry.BundlePath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}
