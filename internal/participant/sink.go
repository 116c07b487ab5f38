package participant

import (
	"context"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/rtpsmsg"
)

// Participant implements rtpsmsg.Sink, dispatching every parsed submessage
// either to one of its builtin SPDP/SEDP agents or to a dynamically
// registered user-defined writer/reader, per spec.md section 4.5's
// "MessageReceiver hands each submessage to the matching local endpoint"
// step.

func (p *Participant) HandleData(state rtpsmsg.ReceiverState, d rtpsmsg.Data) {
	writerGUID := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: d.WriterId}
	switch d.WriterId {
	case ddsid.EntityIdSPDPBuiltinWriter:
		p.Discovery.SPDP.HandleData(writerGUID, d.WriterSN, d.SerializedPayload, p.Runtime.Now())
		return
	case ddsid.EntityIdSEDPPubWriter:
		p.Discovery.SEDP.HandlePublicationData(writerGUID, d)
		return
	case ddsid.EntityIdSEDPSubWriter:
		p.Discovery.SEDP.HandleSubscriptionData(writerGUID, d)
		return
	case ddsid.EntityIdSEDPTopicWriter:
		p.Discovery.HandleTopicData(writerGUID, d)
		return
	}
	p.mu.Lock()
	r, ok := p.statefulR[d.ReaderId]
	p.mu.Unlock()
	if !ok {
		return
	}
	ts := ddsid.DurationZero
	r.OnData(writerGUID, d, ddsid.InstanceHandleFromGUID(writerGUID), ts, state.HaveTimestamp)
}

func (p *Participant) HandleGap(state rtpsmsg.ReceiverState, g rtpsmsg.Gap) {
	p.mu.Lock()
	r, ok := p.statefulR[g.ReaderId]
	p.mu.Unlock()
	if !ok {
		return
	}
	writerGUID := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: g.WriterId}
	r.OnGap(writerGUID, g)
}

func (p *Participant) HandleHeartbeat(state rtpsmsg.ReceiverState, hb rtpsmsg.Heartbeat) {
	writerGUID := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: hb.WriterId}
	p.mu.Lock()
	r, ok := p.statefulR[hb.ReaderId]
	p.mu.Unlock()
	if !ok {
		return
	}
	r.OnHeartbeat(writerGUID, hb, p.Runtime.Now())
}

func (p *Participant) HandleAckNack(state rtpsmsg.ReceiverState, an rtpsmsg.AckNack) {
	remote := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: an.ReaderId}
	if w := p.builtinWriterFor(an.WriterId); w != nil {
		w.OnAckNack(remote, an)
		return
	}
	p.mu.Lock()
	w, ok := p.statefulW[an.WriterId]
	p.mu.Unlock()
	if !ok {
		return
	}
	w.OnAckNack(remote, an)
}

func (p *Participant) HandleDataFrag(state rtpsmsg.ReceiverState, df rtpsmsg.DataFrag) {
	p.mu.Lock()
	r, ok := p.statefulR[df.ReaderId]
	p.mu.Unlock()
	if !ok {
		return
	}
	writerGUID := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: df.WriterId}
	p.reassembleFragment(r, writerGUID, df)
}

func (p *Participant) HandleNackFrag(state rtpsmsg.ReceiverState, nf rtpsmsg.NackFrag) {
	remote := ddsid.GUID{Prefix: state.SourceGuidPrefix, Entity: nf.ReaderId}
	if w := p.builtinWriterFor(nf.WriterId); w != nil {
		w.OnNackFrag(remote, nf)
		return
	}
	p.mu.Lock()
	w, ok := p.statefulW[nf.WriterId]
	p.mu.Unlock()
	if !ok {
		return
	}
	w.OnNackFrag(remote, nf)
}

func (p *Participant) HandleHeartbeatFrag(state rtpsmsg.ReceiverState, hf rtpsmsg.HeartbeatFrag) {
	// The core reassembly path only needs the HeartbeatFrag to learn the
	// total fragment count up front; DataFrag submessages alone are
	// sufficient to drive reassembly, so this is a no-op hook kept to
	// satisfy rtpsmsg.Sink.
}

// builtinWriterFor returns the SEDP/SPDP stateful writer matching a
// well-known builtin writer entity id, or nil if id is not one of them.
func (p *Participant) builtinWriterFor(id ddsid.EntityId) *endpoint.StatefulWriter {
	switch id {
	case ddsid.EntityIdSEDPPubWriter:
		return p.Discovery.SEDP.PubWriter
	case ddsid.EntityIdSEDPSubWriter:
		return p.Discovery.SEDP.SubWriter
	case ddsid.EntityIdSEDPTopicWriter:
		return p.Discovery.SEDP.TopicWriter
	}
	return nil
}

// receiveLoop blocks on the transport and dispatches every datagram through
// the RTPS receiver, per spec.md section 4.5.
func (p *Participant) receiveLoop(ctx context.Context) {
	for {
		datagram, err := p.Transport.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Warn("transport recv failed", logging.Error(err))
			continue
		}
		if err := p.receiver.Process(datagram.Payload, datagram.Source, p); err != nil {
			p.Log.Debug("dropped malformed message", logging.Error(err))
		}
	}
}

// tickLoop drives the periodic flush of discovery and every registered
// user endpoint, re-scheduling itself via Runtime.Oneshot rather than a
// time.Ticker, per spec.md section 5.
func (p *Participant) tickLoop(ctx context.Context, period time.Duration) {
	var run func()
	run = func() {
		if ctx.Err() != nil {
			return
		}
		start := p.Runtime.Now()
		p.tick(ctx, start)
		p.health.Observe(p.Runtime.Now().Sub(start))
		p.Runtime.Oneshot(period, run)
	}
	run()
}

// tick performs one pass: expire stale participant leases, flush SPDP/SEDP,
// and flush every registered user writer/reader.
func (p *Participant) tick(ctx context.Context, now time.Time) {
	p.Discovery.SPDP.ExpireLeases(now)

	if now.Sub(p.lastAnnounce) >= p.Config.SPDPResendPeriod {
		p.Discovery.SPDP.Announce(p.localParticipantProxy())
		p.lastAnnounce = now
	}
	p.Discovery.SPDP.Tick(ctx, p.sender, p.Transport, now)
	p.Discovery.SEDP.Flush(ctx, p.sender, p.Transport, now)

	p.mu.Lock()
	writers := make([]*endpoint.StatefulWriter, 0, len(p.statefulW))
	for _, w := range p.statefulW {
		writers = append(writers, w)
	}
	readers := make([]*endpoint.StatefulReader, 0, len(p.statefulR))
	for _, r := range p.statefulR {
		readers = append(readers, r)
	}
	slWriters := make([]*endpoint.StatelessWriter, 0, len(p.statelessW))
	for _, w := range p.statelessW {
		slWriters = append(slWriters, w)
	}
	slReaders := make([]*endpoint.StatelessReader, 0, len(p.statelessR))
	for _, r := range p.statelessR {
		slReaders = append(slReaders, r)
	}
	p.mu.Unlock()

	for _, w := range writers {
		for _, batch := range w.ProduceMessages(now) {
			if err := p.sender.Send(ctx, p.Transport, batch); err != nil {
				p.Log.Warn("writer flush failed", logging.Error(err))
			}
		}
	}
	for _, r := range readers {
		for _, batch := range r.ProduceAckNacks(now) {
			if err := p.sender.Send(ctx, p.Transport, batch); err != nil {
				p.Log.Warn("reader flush failed", logging.Error(err))
			}
		}
	}
	for _, w := range slWriters {
		for _, batch := range w.ProduceMessages() {
			if err := p.sender.Send(ctx, p.Transport, batch); err != nil {
				p.Log.Warn("stateless writer flush failed", logging.Error(err))
			}
		}
	}
	_ = slReaders // stateless readers need no periodic flush; kept for symmetry with the writer side
}

// Run spawns the receive and tick loops on the participant's Runtime, per
// spec.md section 9's "enable" operation. It returns immediately; both
// loops stop when ctx is done.
func (p *Participant) Run(ctx context.Context, tickPeriod time.Duration) {
	p.receiver = rtpsmsg.Receiver{LocalGuidPrefix: p.GUID.Prefix}
	p.Runtime.Spawn(func(ctx context.Context) { p.receiveLoop(ctx) })
	p.Runtime.Spawn(func(ctx context.Context) { p.tickLoop(ctx, tickPeriod) })
}
