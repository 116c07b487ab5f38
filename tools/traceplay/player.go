// Package traceplay provides a thin CLI-facing wrapper over
// internal/trace.Load for inspecting a captured discovery/wire trace bundle,
// adapted from the teacher's tools/replay_player (which decoded the
// snappy/zstd gameplay replay format) to the simpler gzip+JSON envelope
// internal/trace.Recorder produces.
package traceplay

import (
	"fmt"

	"ddscore/internal/trace"
)

// Summary reports the decoded contents of a trace bundle for CLI display.
type Summary struct {
	Path            string
	DiscoveryEvents int
	WireCaptures    int
	Entries         []trace.TimelineEntry
}

// Inspect loads the bundle at path and summarises its timeline.
func Inspect(path string) (Summary, error) {
	player, err := trace.Load(path)
	if err != nil {
		return Summary{}, fmt.Errorf("load trace bundle: %w", err)
	}
	entries := player.Entries()
	summary := Summary{Path: path, Entries: entries}
	for _, e := range entries {
		if e.Kind == trace.EntryDiscovery {
			summary.DiscoveryEvents++
		} else {
			summary.WireCaptures++
		}
	}
	return summary, nil
}
