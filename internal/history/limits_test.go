package history

import (
	"testing"

	"ddscore/internal/ddsid"
)

func TestPolicyKeepLastEvictsOldest(t *testing.T) {
	cache := New()
	policy := NewPolicy(cache, ResourceLimits{HistoryDepth: 2})
	w := testWriterGUID()
	handle := ddsid.InstanceHandle{7}

	for i := 1; i <= 3; i++ {
		admitted, rejected := policy.Admit(&ddsid.CacheChange{
			WriterGUID:     w,
			SequenceNumber: ddsid.SequenceNumber(i),
			InstanceHandle: handle,
		})
		if !admitted || rejected {
			t.Fatalf("seq %d: admitted=%v rejected=%v", i, admitted, rejected)
		}
	}

	changes := cache.ByInstance(handle)
	if len(changes) != 2 {
		t.Fatalf("expected KEEP_LAST(2) to retain 2 samples, got %d", len(changes))
	}
	if cache.Contains(w, 1) {
		t.Fatalf("expected oldest sample (seq 1) to be evicted")
	}
}

func TestPolicyMaxSamplesRejects(t *testing.T) {
	cache := New()
	policy := NewPolicy(cache, ResourceLimits{MaxSamples: 1})
	w := testWriterGUID()

	admitted, rejected := policy.Admit(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 1, InstanceHandle: ddsid.InstanceHandle{1}})
	if !admitted || rejected {
		t.Fatalf("first sample should be admitted")
	}
	admitted, rejected = policy.Admit(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 2, InstanceHandle: ddsid.InstanceHandle{2}})
	if admitted || !rejected {
		t.Fatalf("second sample should be rejected under MaxSamples=1")
	}
	if policy.RejectedCount() != 1 {
		t.Fatalf("expected 1 rejection, got %d", policy.RejectedCount())
	}
}

func TestResourceLimitsValidate(t *testing.T) {
	r := ResourceLimits{HistoryDepth: 10, MaxSamplesPerInstance: 5}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected inconsistency error when history depth exceeds max samples per instance")
	}
}
