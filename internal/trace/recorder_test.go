package trace

import (
	"path/filepath"
	"testing"
	"time"

	"ddscore/internal/ddsid"
)

func TestRecorderRollsToDisk(t *testing.T) {
	dir := t.TempDir()
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	recorder := NewRecorder(dir, clock)
	recorder.RecordDiscovery("participant_discovered", "guid-1", map[string]string{"vendor": "test"})
	current = current.Add(5 * time.Millisecond)
	recorder.RecordWire(DirectionTX, ddsid.GUID{}, 1, []byte("payload-a"))
	recorder.RecordWire(DirectionRX, ddsid.GUID{}, 2, []byte("payload-b"))

	stats := recorder.Snapshot()
	if stats.DiscoveryEvents != 1 {
		t.Fatalf("expected 1 discovery event, got %d", stats.DiscoveryEvents)
	}
	if stats.WireCaptures != 2 {
		t.Fatalf("expected 2 wire captures, got %d", stats.WireCaptures)
	}
	if stats.Bytes == 0 {
		t.Fatalf("expected buffered bytes to be tracked")
	}

	path, err := recorder.Roll("alpha domain")
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("unexpected roll directory: %s", path)
	}

	player, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries := player.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 timeline entries, got %d", len(entries))
	}
	if entries[0].Kind != EntryDiscovery {
		t.Fatalf("expected first entry to be the discovery event, got %v", entries[0].Kind)
	}

	stats = recorder.Snapshot()
	if stats.DiscoveryEvents != 0 || stats.WireCaptures != 0 {
		t.Fatalf("expected buffers to be cleared after roll")
	}
	if stats.Rolls != 1 {
		t.Fatalf("expected rolls counter to increment")
	}
	if stats.LastRollPath != path {
		t.Fatalf("expected last roll path to match path")
	}
}

func TestPlayerReplayOrdersByCaptureTime(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	recorder := NewRecorder(dir, clock)
	recorder.RecordWire(DirectionTX, ddsid.GUID{}, 1, []byte("first"))
	recorder.RecordDiscovery("topic_discovered", "topic-a", nil)
	recorder.RecordWire(DirectionRX, ddsid.GUID{}, 2, []byte("second"))

	path, err := recorder.Roll("beta")
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	player, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var order []EntryKind
	if err := player.Replay(func(e TimelineEntry) error {
		order = append(order, e.Kind)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 entries replayed, got %d", len(order))
	}
	if order[0] != EntryWire || order[1] != EntryDiscovery || order[2] != EntryWire {
		t.Fatalf("unexpected replay order: %v", order)
	}
}

func TestCleanerEnforcesMaxBundles(t *testing.T) {
	dir := t.TempDir()
	current := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	recorder := NewRecorder(dir, clock)

	for i := 0; i < 3; i++ {
		recorder.RecordDiscovery("participant_discovered", "guid", nil)
		if _, err := recorder.Roll("gamma"); err != nil {
			t.Fatalf("Roll: %v", err)
		}
		current = current.Add(time.Second)
	}

	cleaner := NewCleaner(dir, RetentionPolicy{MaxBundles: 1}, nil)
	cleaner.now = func() time.Time { return current }
	cleaner.RunOnce()

	stats := cleaner.Stats()
	if stats.Bundles != 1 {
		t.Fatalf("expected 1 retained bundle, got %d", stats.Bundles)
	}
}
