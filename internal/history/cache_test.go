package history

import (
	"testing"

	"ddscore/internal/ddsid"
)

func testWriterGUID() ddsid.GUID {
	return ddsid.GUID{Prefix: ddsid.GuidPrefix{1, 2, 3}, Entity: ddsid.EntityIdUnknown}
}

func TestCacheAddChangeMonotonic(t *testing.T) {
	c := New()
	w := testWriterGUID()

	if !c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 1}) {
		t.Fatalf("expected first add to succeed")
	}
	if !c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 2}) {
		t.Fatalf("expected monotonic add to succeed")
	}
	if c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 2}) {
		t.Fatalf("expected duplicate seq-num to be rejected")
	}
	if c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 1}) {
		t.Fatalf("expected non-monotonic seq-num to be rejected")
	}

	min, ok := c.GetSeqNumMin(w)
	if !ok || min != 1 {
		t.Fatalf("GetSeqNumMin = %v,%v want 1,true", min, ok)
	}
	max, ok := c.GetSeqNumMax(w)
	if !ok || max != 2 {
		t.Fatalf("GetSeqNumMax = %v,%v want 2,true", max, ok)
	}
}

func TestCacheRemoveChange(t *testing.T) {
	c := New()
	w := testWriterGUID()
	c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 1})
	c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 2})

	c.RemoveChange(w, 1)
	if c.Contains(w, 1) {
		t.Fatalf("expected seq 1 removed")
	}
	// Removing an absent seq-num must be a harmless no-op.
	c.RemoveChange(w, 99)

	min, ok := c.GetSeqNumMin(w)
	if !ok || min != 2 {
		t.Fatalf("GetSeqNumMin after remove = %v,%v want 2,true", min, ok)
	}
}

func TestCacheAtMostOncePerWriterSeq(t *testing.T) {
	c := New()
	w1 := testWriterGUID()
	w2 := ddsid.GUID{Prefix: ddsid.GuidPrefix{9, 9, 9}}

	c.AddChange(&ddsid.CacheChange{WriterGUID: w1, SequenceNumber: 1})
	c.AddChange(&ddsid.CacheChange{WriterGUID: w2, SequenceNumber: 1})

	if c.Len() != 2 {
		t.Fatalf("expected two distinct (writer,seq) entries, got %d", c.Len())
	}
}

func TestCacheByInstance(t *testing.T) {
	c := New()
	w := testWriterGUID()
	handle := ddsid.InstanceHandle{1}
	c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 1, InstanceHandle: handle})
	c.AddChange(&ddsid.CacheChange{WriterGUID: w, SequenceNumber: 2, InstanceHandle: handle})

	changes := c.ByInstance(handle)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes for instance, got %d", len(changes))
	}
}
