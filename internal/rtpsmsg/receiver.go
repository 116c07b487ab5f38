package rtpsmsg

import "ddscore/internal/ddsid"

// ReceiverState is the mutable per-message parsing state MessageReceiver
// carries across submessages, per spec.md section 4.5.
type ReceiverState struct {
	SourceGuidPrefix          ddsid.GuidPrefix
	SourceVendorId            ddsid.VendorId
	SourceProtocolVersion     ddsid.ProtocolVersion
	DestGuidPrefix            ddsid.GuidPrefix
	UnicastReplyLocatorList   []ddsid.Locator
	MulticastReplyLocatorList []ddsid.Locator
	HaveTimestamp             bool
	Timestamp                 ddsid.Duration
	// SourceLocator is the transport-level address the datagram arrived
	// from, used as the default reply locator until an InfoReply updates it.
	SourceLocator ddsid.Locator
}

// Sink receives dispatched submessages, keyed by the current ReceiverState
// (for source identity) and the submessage's own reader/writer EntityId.
// Endpoints implement Sink (or a participant-level router does, fanning out
// to the matching endpoint) so that rtpsmsg itself never needs to know
// about endpoint or participant types.
type Sink interface {
	HandleData(state ReceiverState, d Data)
	HandleGap(state ReceiverState, g Gap)
	HandleHeartbeat(state ReceiverState, hb Heartbeat)
	HandleAckNack(state ReceiverState, an AckNack)
	HandleDataFrag(state ReceiverState, df DataFrag)
	HandleNackFrag(state ReceiverState, nf NackFrag)
	HandleHeartbeatFrag(state ReceiverState, hf HeartbeatFrag)
}

// Receiver implements the MessageReceiver of spec.md section 4.5: it parses
// a flat submessage stream, tracks receiver state across InfoSrc/InfoReply/
// InfoDst/InfoTimestamp, and dispatches data/control submessages to a Sink.
type Receiver struct {
	LocalGuidPrefix ddsid.GuidPrefix
}

// Process parses one datagram payload and dispatches its submessages to
// sink. A parse failure aborts only this message, per spec.md section 7.
func (r *Receiver) Process(payload []byte, sourceLocator ddsid.Locator, sink Sink) error {
	header, raws, err := ParseMessage(payload)
	if err != nil {
		return err
	}
	state := ReceiverState{
		SourceGuidPrefix:      header.GuidPrefix,
		SourceVendorId:        header.VendorId,
		SourceProtocolVersion: header.Version,
		DestGuidPrefix:        r.LocalGuidPrefix,
		SourceLocator:         sourceLocator,
	}
	for _, raw := range raws {
		decoded, err := Decode(raw.Kind, raw.Flags, raw.Body)
		if err != nil {
			// A malformed individual submessage aborts the rest of this
			// message but not the connection or prior submessages' effects.
			return err
		}
		switch m := decoded.(type) {
		case InfoSrc:
			state.SourceGuidPrefix = m.GuidPrefix
			state.SourceVendorId = m.VendorId
			state.SourceProtocolVersion = m.ProtocolVersion
		case InfoDst:
			state.DestGuidPrefix = m.GuidPrefix
		case InfoReply:
			state.UnicastReplyLocatorList = m.UnicastLocators
			state.MulticastReplyLocatorList = m.MulticastLocators
		case InfoTimestamp:
			if m.Invalidate {
				state.HaveTimestamp = false
			} else {
				state.HaveTimestamp = true
				state.Timestamp = m.Timestamp
			}
		case Data:
			sink.HandleData(state, m)
		case Gap:
			sink.HandleGap(state, m)
		case Heartbeat:
			sink.HandleHeartbeat(state, m)
		case AckNack:
			sink.HandleAckNack(state, m)
		case DataFrag:
			sink.HandleDataFrag(state, m)
		case NackFrag:
			sink.HandleNackFrag(state, m)
		case HeartbeatFrag:
			sink.HandleHeartbeatFrag(state, m)
		case Pad:
			// no-op, alignment only
		}
	}
	return nil
}
