package rtpsmsg

import (
	"reflect"
	"testing"

	"ddscore/internal/ddsid"
)

func roundTrip(t *testing.T, le bool, sm any) any {
	t.Helper()
	kind, flags, body := Encode(le, sm)
	decoded, err := Decode(kind, flags, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return decoded
}

func TestDataRoundTrip(t *testing.T) {
	d := Data{
		ReaderId:          ddsid.EntityIdUnknown,
		WriterId:          ddsid.EntityId{0x00, 0x00, 0x02, 0x02},
		WriterSN:          42,
		SerializedPayload: []byte{0x00, 0x01, 0x00, 0x00, 1, 2, 3, 4},
	}
	got := roundTrip(t, true, d).(Data)
	if got.WriterSN != d.WriterSN || !reflect.DeepEqual(got.SerializedPayload, d.SerializedPayload) {
		t.Fatalf("got %+v, want %+v", got, d)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := Heartbeat{WriterId: ddsid.EntityId{0, 0, 2, 2}, FirstSN: 1, LastSN: 10, Count: 3, Final: true}
	got := roundTrip(t, false, hb).(Heartbeat)
	if got != hb {
		t.Fatalf("got %+v, want %+v", got, hb)
	}
}

func TestAckNackRoundTripWithBitmap(t *testing.T) {
	set := NewSequenceNumberSet(1, []ddsid.SequenceNumber{2, 5})
	an := AckNack{WriterId: ddsid.EntityId{0, 0, 2, 2}, ReaderSNState: set, Count: 7}
	got := roundTrip(t, true, an).(AckNack)
	if got.Count != an.Count {
		t.Fatalf("count mismatch")
	}
	members := got.ReaderSNState.Members()
	want := []ddsid.SequenceNumber{2, 5}
	if !reflect.DeepEqual(members, want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
}

func TestGapRoundTrip(t *testing.T) {
	set := NewSequenceNumberSet(5, []ddsid.SequenceNumber{6})
	g := Gap{WriterId: ddsid.EntityId{0, 0, 2, 2}, GapStart: 3, GapList: set}
	got := roundTrip(t, true, g).(Gap)
	if got.GapStart != g.GapStart {
		t.Fatalf("gap start mismatch: %v vs %v", got.GapStart, g.GapStart)
	}
}

func TestInfoTimestampRoundTrip(t *testing.T) {
	its := InfoTimestamp{Timestamp: ddsid.Duration{Sec: 100, Frac: 50}}
	got := roundTrip(t, true, its).(InfoTimestamp)
	if got != its {
		t.Fatalf("got %+v, want %+v", got, its)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: ddsid.ProtocolVersion24, VendorId: ddsid.VendorIdThis, GuidPrefix: ddsid.GuidPrefix{1, 2, 3}}
	buf := EncodeHeader(h)
	got, n, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if n != HeaderLen || got != h {
		t.Fatalf("got %+v at offset %d, want %+v at %d", got, n, h, HeaderLen)
	}
}

func TestSequenceNumberSetMembers(t *testing.T) {
	set := NewSequenceNumberSet(10, []ddsid.SequenceNumber{10, 12, 40})
	members := set.Members()
	want := []ddsid.SequenceNumber{10, 12, 40}
	if !reflect.DeepEqual(members, want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
}
