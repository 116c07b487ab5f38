package rtpsmsg

import (
	"context"
	"testing"

	"ddscore/internal/ddsid"
)

type recordingSink struct {
	data []Data
	hb   []Heartbeat
	an   []AckNack
}

func (s *recordingSink) HandleData(_ ReceiverState, d Data)               { s.data = append(s.data, d) }
func (s *recordingSink) HandleGap(ReceiverState, Gap)                     {}
func (s *recordingSink) HandleHeartbeat(_ ReceiverState, hb Heartbeat)    { s.hb = append(s.hb, hb) }
func (s *recordingSink) HandleAckNack(_ ReceiverState, an AckNack)        { s.an = append(s.an, an) }
func (s *recordingSink) HandleDataFrag(ReceiverState, DataFrag)           {}
func (s *recordingSink) HandleNackFrag(ReceiverState, NackFrag)           {}
func (s *recordingSink) HandleHeartbeatFrag(ReceiverState, HeartbeatFrag) {}

type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) Send(_ context.Context, buf []byte, _ []ddsid.Locator) error {
	cp := append([]byte(nil), buf...)
	f.sent = append(f.sent, cp)
	return nil
}

func TestSenderThenReceiverDeliversData(t *testing.T) {
	header := Header{Version: ddsid.ProtocolVersion24, VendorId: ddsid.VendorIdThis, GuidPrefix: ddsid.GuidPrefix{9}}
	sender := NewSender(header, 0)
	transport := &fakeTransport{}

	k, fl, body := Encode(true, Data{WriterId: ddsid.EntityId{0, 0, 2, 2}, WriterSN: 1, SerializedPayload: []byte{1, 2, 3}})

	batch := Batch{
		Destinations: []ddsid.Locator{ddsid.NewUDPv4Locator(127, 0, 0, 1, 7410)},
		Submessages:  []RawSubmessage{{Kind: k, Flags: fl, Body: body}},
	}
	if err := sender.Send(context.Background(), transport, batch); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 framed message, got %d", len(transport.sent))
	}

	recv := &Receiver{LocalGuidPrefix: ddsid.GuidPrefix{1}}
	sink := &recordingSink{}
	if err := recv.Process(transport.sent[0], ddsid.LocatorInvalid, sink); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(sink.data) != 1 || sink.data[0].WriterSN != 1 {
		t.Fatalf("sink.data = %+v", sink.data)
	}
}

func TestSenderSplitsOnMTU(t *testing.T) {
	header := Header{Version: ddsid.ProtocolVersion24, VendorId: ddsid.VendorIdThis, GuidPrefix: ddsid.GuidPrefix{9}}
	sender := NewSender(header, HeaderLen+submessageHeaderLen+8) // smaller than one heartbeat, so each goes out alone
	transport := &fakeTransport{}

	var subs []RawSubmessage
	for i := 0; i < 3; i++ {
		k, fl, body := Encode(true, Heartbeat{WriterId: ddsid.EntityId{0, 0, 2, 2}, FirstSN: 1, LastSN: ddsid.SequenceNumber(i + 1), Count: int32(i)})
		subs = append(subs, RawSubmessage{Kind: k, Flags: fl, Body: body})
	}
	batch := Batch{Destinations: []ddsid.Locator{ddsid.NewUDPv4Locator(127, 0, 0, 1, 7410)}, Submessages: subs}
	if err := sender.Send(context.Background(), transport, batch); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(transport.sent) < 2 {
		t.Fatalf("expected the batch to split across multiple messages, got %d", len(transport.sent))
	}
}
