package history

import (
	"math"
	"sync"

	"ddscore/internal/ddsid"
)

// ResourceLimits mirrors the DDS ResourceLimits/History QoS pair: how many
// samples an instance may hold and how many instances a cache may track.
// spec.md section 4.1 assigns trimming to "the policy layer" above the raw
// cache; this is that layer, adapted from the teacher's BudgetPlanner which
// trimmed outbound entity snapshots to a byte budget the same way this trims
// a HistoryCache to a sample-count budget.
type ResourceLimits struct {
	// HistoryDepth is the KEEP_LAST depth; zero means KEEP_ALL (no per-instance cap).
	HistoryDepth int
	// MaxSamplesPerInstance bounds per-instance occupancy; zero means unbounded.
	MaxSamplesPerInstance int
	// MaxInstances bounds the number of distinct instances; zero means unbounded.
	MaxInstances int
	// MaxSamples bounds total cache occupancy; zero means unbounded.
	MaxSamples int
}

// DefaultResourceLimits returns an unbounded limits set (KEEP_ALL, no caps).
func DefaultResourceLimits() ResourceLimits { return ResourceLimits{} }

// Validate reports an inconsistency in the policy set, per spec.md section 7:
// a QoS set fails self-consistency if history depth exceeds
// max_samples_per_instance.
func (r ResourceLimits) Validate() error {
	if r.HistoryDepth > 0 && r.MaxSamplesPerInstance > 0 && r.HistoryDepth > r.MaxSamplesPerInstance {
		return errInconsistentHistoryDepth
	}
	return nil
}

var errInconsistentHistoryDepth = historyLimitsError("history depth exceeds max_samples_per_instance")

type historyLimitsError string

func (e historyLimitsError) Error() string { return string(e) }

// Policy enforces ResourceLimits/History trimming before insertion into a
// Cache and reports SampleRejected when a hard limit is hit, per spec.md
// section 4.1.
type Policy struct {
	limits ResourceLimits
	cache  *Cache

	mu        sync.Mutex
	rejected  int64
	perWriter map[ddsid.GUID]int64
}

// NewPolicy wraps a Cache with a ResourceLimits/History enforcement layer.
func NewPolicy(cache *Cache, limits ResourceLimits) *Policy {
	return &Policy{limits: limits, cache: cache, perWriter: make(map[ddsid.GUID]int64)}
}

// Admit trims the target instance down to HistoryDepth (evicting the oldest
// sample first) and then either inserts the change or reports rejection if a
// hard resource limit (MaxSamples/MaxInstances/MaxSamplesPerInstance) would
// be exceeded even after KEEP_LAST trimming.
func (p *Policy) Admit(change *ddsid.CacheChange) (admitted bool, rejected bool) {
	if p == nil || p.cache == nil || change == nil {
		return false, true
	}

	maxPerInstance := p.limits.MaxSamplesPerInstance
	if p.limits.HistoryDepth > 0 {
		if maxPerInstance == 0 || p.limits.HistoryDepth < maxPerInstance {
			maxPerInstance = p.limits.HistoryDepth
		}
	}
	if maxPerInstance == 0 {
		maxPerInstance = math.MaxInt
	}

	existing := p.cache.ByInstance(change.InstanceHandle)
	if len(existing) >= maxPerInstance {
		if p.limits.HistoryDepth > 0 {
			// KEEP_LAST: evict the oldest sample(s) to make room.
			toEvict := len(existing) - maxPerInstance + 1
			for i := 0; i < toEvict && i < len(existing); i++ {
				p.cache.RemoveChange(existing[i].WriterGUID, existing[i].SequenceNumber)
			}
		} else {
			p.markRejected(change.WriterGUID)
			return false, true
		}
	}

	if p.limits.MaxInstances > 0 {
		isNewInstance := len(p.cache.ByInstance(change.InstanceHandle)) == 0
		if isNewInstance && p.instanceCount() >= p.limits.MaxInstances {
			p.markRejected(change.WriterGUID)
			return false, true
		}
	}

	if p.limits.MaxSamples > 0 && p.cache.Len() >= p.limits.MaxSamples {
		p.markRejected(change.WriterGUID)
		return false, true
	}

	ok := p.cache.AddChange(change)
	return ok, false
}

func (p *Policy) instanceCount() int {
	count := 0
	seen := make(map[ddsid.InstanceHandle]struct{})
	p.cache.ForEach(func(c *ddsid.CacheChange) {
		if _, ok := seen[c.InstanceHandle]; !ok {
			seen[c.InstanceHandle] = struct{}{}
			count++
		}
	})
	return count
}

func (p *Policy) markRejected(writer ddsid.GUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected++
	p.perWriter[writer]++
}

// RejectedCount returns the cumulative number of SampleRejected events.
func (p *Policy) RejectedCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}

// RejectedByWriter returns a copy of the per-writer SampleRejected counters.
func (p *Policy) RejectedByWriter() map[ddsid.GUID]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[ddsid.GUID]int64, len(p.perWriter))
	for k, v := range p.perWriter {
		out[k] = v
	}
	return out
}
