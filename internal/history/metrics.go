package history

import (
	"sync"

	"ddscore/internal/ddsid"
)

// Metrics tracks per-writer cache occupancy and rejection counters, adapted
// from the teacher's SnapshotMetrics (which tracked per-client payload size
// and per-tier drop counts for outbound world snapshots); here the "client"
// axis becomes the writer GUID and the "tier" axis becomes SampleRejected
// reasons.
type Metrics struct {
	mu       sync.RWMutex
	bytes    map[ddsid.GUID]int64
	samples  map[ddsid.GUID]int64
	rejected map[ddsid.GUID]int64
}

// NewMetrics constructs an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		bytes:    make(map[ddsid.GUID]int64),
		samples:  make(map[ddsid.GUID]int64),
		rejected: make(map[ddsid.GUID]int64),
	}
}

// Observe records the current occupancy for a writer's portion of the cache.
func (m *Metrics) Observe(writer ddsid.GUID, sampleCount int, byteCount int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[writer] = int64(sampleCount)
	m.bytes[writer] = int64(byteCount)
}

// RecordRejected increments the SampleRejected counter for a writer.
func (m *Metrics) RecordRejected(writer ddsid.GUID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[writer]++
}

// ForgetWriter removes all gauges for a deleted writer.
func (m *Metrics) ForgetWriter(writer ddsid.GUID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bytes, writer)
	delete(m.samples, writer)
	delete(m.rejected, writer)
}

// BytesPerWriter returns a copy of the latest byte-occupancy gauge per writer.
func (m *Metrics) BytesPerWriter() map[ddsid.GUID]int64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ddsid.GUID]int64, len(m.bytes))
	for k, v := range m.bytes {
		out[k] = v
	}
	return out
}

// RejectedPerWriter returns a copy of the cumulative SampleRejected counters.
func (m *Metrics) RejectedPerWriter() map[ddsid.GUID]int64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ddsid.GUID]int64, len(m.rejected))
	for k, v := range m.rejected {
		out[k] = v
	}
	return out
}
