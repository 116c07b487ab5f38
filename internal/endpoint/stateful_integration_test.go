package endpoint

import (
	"context"
	"testing"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/rtpsmsg"
)

func writerGUID() ddsid.GUID {
	return ddsid.GUID{Prefix: ddsid.GuidPrefix{1}, Entity: ddsid.EntityId{0, 0, 2, 2}}
}

func readerGUID() ddsid.GUID {
	return ddsid.GUID{Prefix: ddsid.GuidPrefix{2}, Entity: ddsid.EntityId{0, 0, 4, 7}}
}

// deliverToReader decodes every submessage in batches and feeds Data/Gap/
// Heartbeat to the reader under test, simulating the
// MessageReceiver dispatch step without a real transport.
func deliverToReader(t *testing.T, reader *StatefulReader, writer ddsid.GUID, batches []rtpsmsg.Batch, now time.Time, drop map[ddsid.SequenceNumber]bool) {
	t.Helper()
	for _, b := range batches {
		for _, sm := range b.Submessages {
			decoded, err := rtpsmsg.Decode(sm.Kind, sm.Flags, sm.Body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch m := decoded.(type) {
			case rtpsmsg.Data:
				if drop != nil && drop[m.WriterSN] {
					continue
				}
				reader.OnData(writer, m, ddsid.InstanceHandleFromGUID(writer), ddsid.DurationZero, false)
			case rtpsmsg.Gap:
				reader.OnGap(writer, m)
			case rtpsmsg.Heartbeat:
				reader.OnHeartbeat(writer, m, now)
			case rtpsmsg.InfoTimestamp:
				// receiver-state only; no-op for this direct test harness
			}
		}
	}
}

func deliverToWriter(t *testing.T, writer *StatefulWriter, reader ddsid.GUID, batches []rtpsmsg.Batch) {
	t.Helper()
	for _, b := range batches {
		for _, sm := range b.Submessages {
			decoded, err := rtpsmsg.Decode(sm.Kind, sm.Flags, sm.Body)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if an, ok := decoded.(rtpsmsg.AckNack); ok {
				writer.OnAckNack(reader, an)
			}
		}
	}
}

func TestReliableLossRecovery(t *testing.T) {
	w := NewStatefulWriter(writerGUID(), true)
	w.HeartbeatPeriod = 50 * time.Millisecond
	r := NewStatefulReader(readerGUID(), true)
	r.HeartbeatResponseDelay = 0

	w.MatchedReaderAdd(NewReaderProxy(r.GUID))
	r.MatchedWriterAdd(NewWriterProxy(w.GUID))

	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		w.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(w.GUID), []byte{byte(i + 1)}, nil, ddsid.DurationZero)
	}

	// Tick 1: writer pushes all three Data submessages; simulate the
	// transport dropping seq_num=2 per scenario S2.
	batches := w.ProduceMessages(now)
	deliverToReader(t, r, w.GUID, batches, now, map[ddsid.SequenceNumber]bool{2: true})

	if r.Cache.Len() != 2 {
		t.Fatalf("expected 2 samples delivered before recovery, got %d", r.Cache.Len())
	}

	// Writer sends a heartbeat; reader should schedule and then produce an
	// ACKNACK requesting {2}.
	now = now.Add(100 * time.Millisecond)
	batches = w.ProduceMessages(now)
	deliverToReader(t, r, w.GUID, batches, now, nil)

	ackBatches := r.ProduceAckNacks(now)
	if len(ackBatches) != 1 {
		t.Fatalf("expected exactly one ACKNACK batch, got %d", len(ackBatches))
	}
	decoded, err := rtpsmsg.Decode(ackBatches[0].Submessages[0].Kind, ackBatches[0].Submessages[0].Flags, ackBatches[0].Submessages[0].Body)
	if err != nil {
		t.Fatalf("decode acknack: %v", err)
	}
	an := decoded.(rtpsmsg.AckNack)
	members := an.ReaderSNState.Members()
	if len(members) != 1 || members[0] != 2 {
		t.Fatalf("acknack requested = %v, want [2]", members)
	}

	// Feed the ACKNACK back to the writer; it resends seq_num=2.
	deliverToWriter(t, w, r.GUID, ackBatches)
	now = now.Add(10 * time.Millisecond)
	batches = w.ProduceMessages(now)
	deliverToReader(t, r, w.GUID, batches, now, nil)

	if r.Cache.Len() != 3 {
		t.Fatalf("expected all 3 samples delivered after recovery, got %d", r.Cache.Len())
	}
	for _, sn := range []ddsid.SequenceNumber{1, 2, 3} {
		if !r.Cache.Contains(w.GUID, sn) {
			t.Fatalf("missing sequence number %d after recovery", sn)
		}
	}
}

func TestWaitForAcknowledgmentsTimesOutWithoutAck(t *testing.T) {
	w := NewStatefulWriter(writerGUID(), true)
	w.MatchedReaderAdd(NewReaderProxy(readerGUID()))
	w.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(w.GUID), []byte{1}, nil, ddsid.DurationZero)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := w.WaitForAcknowledgments(ctx, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestWaitForAcknowledgmentsReturnsOKOnceAcked(t *testing.T) {
	w := NewStatefulWriter(writerGUID(), true)
	r1, r2 := readerGUID(), ddsid.GUID{Prefix: ddsid.GuidPrefix{3}, Entity: ddsid.EntityId{0, 0, 4, 7}}
	w.MatchedReaderAdd(NewReaderProxy(r1))
	w.MatchedReaderAdd(NewReaderProxy(r2))
	w.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(w.GUID), []byte{1}, nil, ddsid.DurationZero)

	go func() {
		time.Sleep(5 * time.Millisecond)
		w.OnAckNack(r1, rtpsmsg.AckNack{ReaderSNState: rtpsmsg.SequenceNumberSet{Base: 2}, Count: 1, Final: true})
		w.OnAckNack(r2, rtpsmsg.AckNack{ReaderSNState: rtpsmsg.SequenceNumberSet{Base: 2}, Count: 1, Final: true})
	}()

	if err := w.WaitForAcknowledgments(context.Background(), 200*time.Millisecond); err != nil {
		t.Fatalf("expected OK, got %v", err)
	}
}
