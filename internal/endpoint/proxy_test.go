package endpoint

import (
	"reflect"
	"testing"

	"ddscore/internal/ddsid"
)

func TestSeqSetAddRemoveOrdered(t *testing.T) {
	var s seqSet
	s.Add(5)
	s.Add(2)
	s.Add(8)
	s.Add(2) // duplicate, no-op
	want := []ddsid.SequenceNumber{2, 5, 8}
	if !reflect.DeepEqual(s.Members(), want) {
		t.Fatalf("members = %v, want %v", s.Members(), want)
	}
	s.Remove(5)
	want = []ddsid.SequenceNumber{2, 8}
	if !reflect.DeepEqual(s.Members(), want) {
		t.Fatalf("after remove members = %v, want %v", s.Members(), want)
	}
	if !s.Contains(2) || s.Contains(5) {
		t.Fatalf("contains check failed")
	}
}

func TestSeqSetRemoveBelow(t *testing.T) {
	var s seqSet
	for _, v := range []ddsid.SequenceNumber{1, 2, 3, 10} {
		s.Add(v)
	}
	s.RemoveBelow(3)
	want := []ddsid.SequenceNumber{3, 10}
	if !reflect.DeepEqual(s.Members(), want) {
		t.Fatalf("members = %v, want %v", s.Members(), want)
	}
}

func TestReaderProxyUnsentChanges(t *testing.T) {
	p := NewReaderProxy(ddsid.GUID{})
	p.HighestSent = 2
	cached := []ddsid.SequenceNumber{1, 2, 3, 4, 5}
	got := p.UnsentChanges(cached, 4)
	want := []ddsid.SequenceNumber{3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unsent = %v, want %v", got, want)
	}
}

func TestWriterProxyMissingAndIrrelevant(t *testing.T) {
	p := NewWriterProxy(ddsid.GUID{})
	p.AddMissing(3)
	p.AddMissing(4)
	if got := p.MissingChanges(); !reflect.DeepEqual(got, []ddsid.SequenceNumber{3, 4}) {
		t.Fatalf("missing = %v", got)
	}
	p.MarkIrrelevant(3)
	if got := p.MissingChanges(); !reflect.DeepEqual(got, []ddsid.SequenceNumber{4}) {
		t.Fatalf("missing after irrelevant = %v", got)
	}
	if !p.IsIrrelevant(3) {
		t.Fatalf("expected 3 to be irrelevant")
	}
}
