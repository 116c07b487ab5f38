package trace

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// EntryKind distinguishes a timeline entry's payload shape.
type EntryKind string

const (
	EntryDiscovery EntryKind = "discovery"
	EntryWire      EntryKind = "wire"
)

// TimelineEntry is one replayable datum, ordered by CapturedAt so a player
// can step through a mix of discovery and wire events deterministically.
type TimelineEntry struct {
	Kind      EntryKind
	Discovery DiscoveryEvent
	Wire      WireCapture
}

// Player rehydrates a trace bundle written by Recorder.Roll for offline
// inspection or deterministic replay into a test harness.
type Player struct {
	entries []TimelineEntry
}

// Load reads and decompresses the trace bundle at path.
func Load(path string) (*Player, error) {
	if path == "" {
		return nil, fmt.Errorf("trace path must be provided")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var env envelope
	if err := json.NewDecoder(gz).Decode(&env); err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(env.Discovery)+len(env.Wire))
	for _, d := range env.Discovery {
		entries = append(entries, TimelineEntry{Kind: EntryDiscovery, Discovery: d})
	}
	for _, w := range env.Wire {
		entries = append(entries, TimelineEntry{Kind: EntryWire, Wire: w})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entryTime(entries[i]).Before(entryTime(entries[j]))
	})

	return &Player{entries: entries}, nil
}

func entryTime(e TimelineEntry) time.Time {
	if e.Kind == EntryDiscovery {
		return e.Discovery.CapturedAt
	}
	return e.Wire.CapturedAt
}

// Replay invokes apply once per timeline entry in capture order, stopping
// at the first error.
func (p *Player) Replay(apply func(TimelineEntry) error) error {
	if p == nil {
		return fmt.Errorf("player not initialised")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range p.entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes a defensive copy of the loaded timeline.
func (p *Player) Entries() []TimelineEntry {
	if p == nil {
		return nil
	}
	out := make([]TimelineEntry, len(p.entries))
	copy(out, p.entries)
	return out
}
