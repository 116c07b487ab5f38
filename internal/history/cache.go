// Package history implements the HistoryCache described in spec.md
// section 4.1: a sparse ordered map of CacheChanges, keyed by sequence
// number on the writer side and by (writer GUID, sequence number) on the
// reader side. There is no size cap enforced here; the QoS policy layer
// trims before insertion, matching the architecture note in spec.md that
// History + ResourceLimits live above the cache, not inside it.
package history

import (
	"sort"
	"sync"

	"ddscore/internal/ddsid"
)

// key identifies a stored change by (writer GUID, sequence number); the
// writer-side cache always has a single writer GUID but reuses the same key
// shape so reader and writer caches share one implementation, per the
// "ordered set... keyed by sequence number (writer-side) or by (writer-GUID,
// sequence number) (reader-side)" wording of spec.md section 3.
type key struct {
	writer ddsid.GUID
	seq    ddsid.SequenceNumber
}

// Cache is the HistoryCache. A single mutex guards all access, so reads and
// writes serialize against each other; one lock is enough because the owning endpoint
// actor is the only concurrent accessor (spec.md section 5 — HistoryCaches
// are owned by their endpoint actor and are not shared), so this lock only
// ever guards against the actor's own goroutine pool, never cross-actor
// contention.
type Cache struct {
	mu       sync.Mutex
	changes  map[key]*ddsid.CacheChange
	order    []key // insertion order (monotonic per writer); never re-sorted across writers
	byWriter map[ddsid.GUID][]ddsid.SequenceNumber
	lastSeq  map[ddsid.GUID]ddsid.SequenceNumber

	// byInstance supports get_key_value / sample-info indexing on reader
	// caches, per spec.md section 4.1.
	byInstance map[ddsid.InstanceHandle][]key
}

// New constructs an empty HistoryCache.
func New() *Cache {
	return &Cache{
		changes:    make(map[key]*ddsid.CacheChange),
		byWriter:   make(map[ddsid.GUID][]ddsid.SequenceNumber),
		lastSeq:    make(map[ddsid.GUID]ddsid.SequenceNumber),
		byInstance: make(map[ddsid.InstanceHandle][]key),
	}
}

// AddChange inserts a change. Sequence numbers of a single writer must be
// strictly increasing on add, per spec.md section 3's HistoryCache invariant;
// violating that is a caller bug and is reported rather than silently
// accepted so it surfaces during development.
func (c *Cache) AddChange(change *ddsid.CacheChange) bool {
	if change == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{writer: change.WriterGUID, seq: change.SequenceNumber}
	if _, exists := c.changes[k]; exists {
		return false // at-most-once per (writer, seq-num)
	}
	if last, ok := c.lastSeq[change.WriterGUID]; ok && change.SequenceNumber <= last {
		return false
	}

	c.changes[k] = change
	c.byWriter[change.WriterGUID] = append(c.byWriter[change.WriterGUID], change.SequenceNumber)
	c.lastSeq[change.WriterGUID] = change.SequenceNumber
	c.order = append(c.order, k)
	c.byInstance[change.InstanceHandle] = append(c.byInstance[change.InstanceHandle], k)
	return true
}

// RemoveChange deletes the change for a given writer/sequence pair. It may
// be called for any seq-num, including ones never added or already removed.
func (c *Cache) RemoveChange(writer ddsid.GUID, seq ddsid.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(writer, seq)
}

func (c *Cache) removeLocked(writer ddsid.GUID, seq ddsid.SequenceNumber) {
	k := key{writer: writer, seq: seq}
	change, ok := c.changes[k]
	if !ok {
		return
	}
	delete(c.changes, k)
	c.byWriter[writer] = removeSeq(c.byWriter[writer], seq)
	if len(c.byWriter[writer]) == 0 {
		delete(c.byWriter, writer)
		delete(c.lastSeq, writer)
	}
	c.order = removeKey(c.order, k)
	c.byInstance[change.InstanceHandle] = removeKeyList(c.byInstance[change.InstanceHandle], k)
	if len(c.byInstance[change.InstanceHandle]) == 0 {
		delete(c.byInstance, change.InstanceHandle)
	}
}

// GetChange returns the change for a (writer, seq) pair, if present.
func (c *Cache) GetChange(writer ddsid.GUID, seq ddsid.SequenceNumber) (*ddsid.CacheChange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	change, ok := c.changes[key{writer: writer, seq: seq}]
	return change, ok
}

// GetSeqNumMin returns the smallest sequence number currently stored for a
// writer, and false if the writer has no changes cached.
func (c *Cache) GetSeqNumMin(writer ddsid.GUID) (ddsid.SequenceNumber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seqs := c.byWriter[writer]
	if len(seqs) == 0 {
		return 0, false
	}
	min := seqs[0]
	for _, s := range seqs[1:] {
		if s < min {
			min = s
		}
	}
	return min, true
}

// GetSeqNumMax returns the largest sequence number currently stored for a
// writer, and false if the writer has no changes cached.
func (c *Cache) GetSeqNumMax(writer ddsid.GUID) (ddsid.SequenceNumber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seqs := c.byWriter[writer]
	if len(seqs) == 0 {
		return 0, false
	}
	max := seqs[0]
	for _, s := range seqs[1:] {
		if s > max {
			max = s
		}
	}
	return max, true
}

// Contains reports whether a (writer, seq) pair is currently cached.
func (c *Cache) Contains(writer ddsid.GUID, seq ddsid.SequenceNumber) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.changes[key{writer: writer, seq: seq}]
	return ok
}

// Len returns the number of changes currently stored.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}

// SequenceNumbers returns the sorted sequence numbers cached for a writer.
func (c *Cache) SequenceNumbers(writer ddsid.GUID) []ddsid.SequenceNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	seqs := append([]ddsid.SequenceNumber(nil), c.byWriter[writer]...)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs
}

// ForEach iterates all changes in insertion order. fn must not call back
// into the Cache.
func (c *Cache) ForEach(fn func(*ddsid.CacheChange)) {
	c.mu.Lock()
	snapshot := make([]*ddsid.CacheChange, 0, len(c.order))
	for _, k := range c.order {
		if ch, ok := c.changes[k]; ok {
			snapshot = append(snapshot, ch)
		}
	}
	c.mu.Unlock()
	for _, ch := range snapshot {
		fn(ch)
	}
}

// ByInstance returns the changes currently cached for an instance handle,
// in insertion order, supporting get_key_value and sample-info computation
// on reader-side caches per spec.md section 4.1.
func (c *Cache) ByInstance(handle ddsid.InstanceHandle) []*ddsid.CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.byInstance[handle]
	out := make([]*ddsid.CacheChange, 0, len(keys))
	for _, k := range keys {
		if ch, ok := c.changes[k]; ok {
			out = append(out, ch)
		}
	}
	return out
}

func removeSeq(s []ddsid.SequenceNumber, v ddsid.SequenceNumber) []ddsid.SequenceNumber {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeKey(s []key, v key) []key {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeKeyList(s []key, v key) []key {
	return removeKey(s, v)
}
