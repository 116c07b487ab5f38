package endpoint

import (
	"testing"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/rtpsmsg"
)

func TestStatefulWriterFragmentsLargeChange(t *testing.T) {
	w := NewStatefulWriter(writerGUID(), true)
	w.FragmentSize = 16
	w.MatchedReaderAdd(NewReaderProxy(readerGUID()))

	payload := make([]byte, 40) // 3 fragments of size 16, 16, 8
	for i := range payload {
		payload[i] = byte(i)
	}
	change := w.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(w.GUID), payload, nil, ddsid.DurationZero)

	batches := w.ProduceMessages(time.Unix(0, 0))
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}

	var frags []rtpsmsg.DataFrag
	var sawHeartbeatFrag bool
	for _, sm := range batches[0].Submessages {
		decoded, err := rtpsmsg.Decode(sm.Kind, sm.Flags, sm.Body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		switch m := decoded.(type) {
		case rtpsmsg.DataFrag:
			frags = append(frags, m)
		case rtpsmsg.HeartbeatFrag:
			sawHeartbeatFrag = true
			if m.LastFragmentNum != 3 {
				t.Fatalf("expected 3 total fragments, got %d", m.LastFragmentNum)
			}
		}
	}
	if len(frags) != 3 {
		t.Fatalf("expected 3 DataFrag submessages, got %d", len(frags))
	}
	if !sawHeartbeatFrag {
		t.Fatal("expected a HeartbeatFrag announcing fragment count")
	}
	for i, f := range frags {
		if f.FragmentStartingNum != uint32(i+1) {
			t.Fatalf("fragment %d has starting num %d", i, f.FragmentStartingNum)
		}
		if f.WriterSN != change.SequenceNumber {
			t.Fatalf("fragment %d carries wrong sequence number %d", i, f.WriterSN)
		}
	}
	if len(frags[0].SerializedPayload) != 16 || len(frags[2].SerializedPayload) != 8 {
		t.Fatalf("unexpected fragment sizes: %d, %d, %d", len(frags[0].SerializedPayload), len(frags[1].SerializedPayload), len(frags[2].SerializedPayload))
	}
}

func TestStatefulWriterRepairsOnlyNackFraggedFragments(t *testing.T) {
	w := NewStatefulWriter(writerGUID(), true)
	w.FragmentSize = 16
	proxy := NewReaderProxy(readerGUID())
	w.MatchedReaderAdd(proxy)

	payload := make([]byte, 40)
	w.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(w.GUID), payload, nil, ddsid.DurationZero)

	// First tick sends every fragment and fully acknowledges the change.
	w.ProduceMessages(time.Unix(0, 0))
	w.OnAckNack(readerGUID(), rtpsmsg.AckNack{ReaderSNState: rtpsmsg.SequenceNumberSet{Base: 2}, Count: 1, Final: true})

	// Reader later NACK_FRAGs fragment 2 only (e.g. it was corrupted in transit).
	w.OnNackFrag(readerGUID(), rtpsmsg.NackFrag{
		WriterSN:            1,
		FragmentNumberState: rtpsmsg.NewSequenceNumberSet(2, []ddsid.SequenceNumber{2}),
		Count:               1,
	})

	batches := w.ProduceMessages(time.Unix(1, 0))
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	var frags []rtpsmsg.DataFrag
	for _, sm := range batches[0].Submessages {
		decoded, err := rtpsmsg.Decode(sm.Kind, sm.Flags, sm.Body)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m, ok := decoded.(rtpsmsg.DataFrag); ok {
			frags = append(frags, m)
		}
	}
	if len(frags) != 1 || frags[0].FragmentStartingNum != 2 {
		t.Fatalf("expected exactly fragment 2 resent, got %+v", frags)
	}
	if got := proxy.RequestedFragments(1); len(got) != 0 {
		t.Fatalf("expected requested fragment set cleared after resend, got %v", got)
	}
}
