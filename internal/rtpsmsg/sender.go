package rtpsmsg

import (
	"context"
	"fmt"

	"ddscore/internal/ddsid"
)

// Transport is the minimal capability MessageSender needs, matching
// internal/transport.Transport's Send method structurally so this package
// does not need to import it.
type Transport interface {
	Send(ctx context.Context, buf []byte, destinations []ddsid.Locator) error
}

// Batch is one (destinations, submessages) unit to send, per spec.md
// section 4.6.
type Batch struct {
	Destinations []ddsid.Locator
	Submessages  []RawSubmessage
}

// Sender implements MessageSender: it packs submessage batches into framed
// RTPS messages, splitting across multiple messages when the MTU would be
// exceeded, and preserves submission order within one Send call.
type Sender struct {
	Header Header
	MTU    int
}

// DefaultMTU is the fallback used when NewSender is given no MTU; the
// participant passes config.MaxMessageSize (default 8192) instead.
const DefaultMTU = 65000

// NewSender constructs a Sender with the given message header and MTU (0
// selects DefaultMTU).
func NewSender(header Header, mtu int) *Sender {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	return &Sender{Header: header, MTU: mtu}
}

// Send packs batch's submessages into one or more framed messages bounded
// by MTU and hands each to transport for every destination locator.
// Submessage order within batch is preserved across any resulting split.
func (s *Sender) Send(ctx context.Context, transport Transport, batch Batch) error {
	if len(batch.Submessages) == 0 {
		return nil
	}
	for _, msg := range s.frame(batch.Submessages) {
		if err := transport.Send(ctx, msg, batch.Destinations); err != nil {
			return fmt.Errorf("rtpsmsg: send: %w", err)
		}
	}
	return nil
}

// frame splits submessages into one or more complete RTPS messages, each no
// larger than s.MTU including the message header, except that a submessage
// too large to fit on its own is sent alone in a message over the MTU.
func (s *Sender) frame(submessages []RawSubmessage) [][]byte {
	var out [][]byte
	cur := EncodeHeader(s.Header)
	curHasBody := false
	for _, sm := range submessages {
		need := submessageHeaderLen + len(sm.Body)
		if curHasBody && len(cur)+need > s.MTU {
			out = append(out, cur)
			cur = EncodeHeader(s.Header)
			curHasBody = false
		}
		cur = appendSubmessage(cur, sm)
		curHasBody = true
	}
	if curHasBody {
		out = append(out, cur)
	}
	return out
}
