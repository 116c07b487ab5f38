package traceplay

import (
	"testing"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/trace"
)

func TestInspectSummarisesBundle(t *testing.T) {
	dir := t.TempDir()
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	recorder := trace.NewRecorder(dir, clock)
	recorder.RecordDiscovery("participant_discovered", "guid-1", nil)
	recorder.RecordWire(trace.DirectionTX, ddsid.GUID{}, 1, []byte("payload"))

	path, err := recorder.Roll("alpha")
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}

	summary, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if summary.DiscoveryEvents != 1 {
		t.Fatalf("expected 1 discovery event, got %d", summary.DiscoveryEvents)
	}
	if summary.WireCaptures != 1 {
		t.Fatalf("expected 1 wire capture, got %d", summary.WireCaptures)
	}
	if len(summary.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(summary.Entries))
	}
}
