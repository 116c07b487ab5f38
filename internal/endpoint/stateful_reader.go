package endpoint

import (
	"sync"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/history"
	"ddscore/internal/rtpsmsg"
)

// StatefulReader implements spec.md section 4.4: duplicate suppression,
// gap handling, and (for Reliable) ACKNACK generation in response to
// Heartbeats.
type StatefulReader struct {
	GUID     ddsid.GUID
	Reliable bool
	Cache    *history.Cache

	HeartbeatResponseDelay time.Duration

	mu              sync.Mutex
	proxies         map[ddsid.GUID]*WriterProxy
	pendingAckNacks map[ddsid.GUID]time.Time // writer GUID -> due time
}

// NewStatefulReader constructs a StatefulReader.
func NewStatefulReader(guid ddsid.GUID, reliable bool) *StatefulReader {
	return &StatefulReader{
		GUID: guid, Reliable: reliable, Cache: history.New(),
		proxies:         make(map[ddsid.GUID]*WriterProxy),
		pendingAckNacks: make(map[ddsid.GUID]time.Time),
	}
}

// MatchedWriterAdd registers a newly matched remote writer.
func (r *StatefulReader) MatchedWriterAdd(proxy *WriterProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[proxy.RemoteWriterGUID] = proxy
}

// MatchedWriterRemove drops a remote writer that is no longer matched.
func (r *StatefulReader) MatchedWriterRemove(remote ddsid.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, remote)
	delete(r.pendingAckNacks, remote)
}

// MatchedWriters returns the GUIDs of every currently matched writer.
func (r *StatefulReader) MatchedWriters() []ddsid.GUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ddsid.GUID, 0, len(r.proxies))
	for guid := range r.proxies {
		out = append(out, guid)
	}
	return out
}

// OnData applies spec.md section 4.4's Data-arrival rule.
func (r *StatefulReader) OnData(writer ddsid.GUID, d rtpsmsg.Data, instance ddsid.InstanceHandle, ts ddsid.Duration, haveTS bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	proxy, matched := r.proxies[writer]
	if !matched {
		return false
	}
	if proxy.IsIrrelevant(d.WriterSN) {
		return false
	}
	if r.Cache.Contains(writer, d.WriterSN) {
		return false
	}
	if !r.Reliable && d.WriterSN <= proxy.HighestReceivedSN {
		return false // best-effort: drop out-of-order-below-highest as lost
	}

	change := &ddsid.CacheChange{
		Kind: ddsid.ChangeAlive, WriterGUID: writer, InstanceHandle: instance,
		SequenceNumber: d.WriterSN, Payload: d.SerializedPayload,
		SourceTimestamp: ts, HasTimestamp: haveTS,
	}
	r.Cache.AddChange(change)
	proxy.RemoveMissing(d.WriterSN)

	if !r.Reliable {
		proxy.HighestReceivedSN = d.WriterSN
		return true
	}

	// Reliable: HighestReceivedSN tracks the contiguous high-water mark the
	// ACKNACK base formula assumes, so an out-of-order arrival first records
	// the sequence numbers it skipped as missing...
	if d.WriterSN > proxy.HighestReceivedSN+1 {
		for sn := proxy.HighestReceivedSN + 1; sn < d.WriterSN; sn++ {
			if !proxy.IsIrrelevant(sn) {
				proxy.AddMissing(sn)
			}
		}
	}
	// ...then advances past whatever is now contiguously available.
	for r.Cache.Contains(writer, proxy.HighestReceivedSN+1) || proxy.IsIrrelevant(proxy.HighestReceivedSN+1) {
		proxy.HighestReceivedSN++
	}
	return true
}

// OnGap applies spec.md section 4.4's Gap rule: the range [start, list.base)
// plus members of list are marked irrelevant.
func (r *StatefulReader) OnGap(writer ddsid.GUID, g rtpsmsg.Gap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	proxy, ok := r.proxies[writer]
	if !ok {
		return
	}
	for sn := g.GapStart; sn < g.GapList.Base; sn++ {
		proxy.MarkIrrelevant(sn)
	}
	for _, sn := range g.GapList.Members() {
		proxy.MarkIrrelevant(sn)
	}
}

// OnHeartbeat applies spec.md section 4.4's Heartbeat rule, scheduling an
// ACKNACK after HeartbeatResponseDelay when one is warranted.
func (r *StatefulReader) OnHeartbeat(writer ddsid.GUID, hb rtpsmsg.Heartbeat, now time.Time) {
	if !r.Reliable {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	proxy, ok := r.proxies[writer]
	if !ok {
		return
	}
	if hb.Count <= proxy.LastHeartbeatCount {
		return
	}
	proxy.LastHeartbeatCount = hb.Count

	if proxy.HighestReceivedSN == 0 {
		proxy.HighestReceivedSN = hb.FirstSN - 1
	}
	for sn := proxy.HighestReceivedSN + 1; sn <= hb.LastSN; sn++ {
		if !r.Cache.Contains(writer, sn) {
			proxy.AddMissing(sn)
		}
	}
	proxy.DropBelow(hb.FirstSN)

	if !hb.Final || len(proxy.MissingChanges()) > 0 {
		r.pendingAckNacks[writer] = now.Add(r.HeartbeatResponseDelay)
	}
}

// ProduceAckNacks emits ACKNACKs for every writer whose scheduled response
// time has arrived, per spec.md section 4.4.
func (r *StatefulReader) ProduceAckNacks(now time.Time) []rtpsmsg.Batch {
	if !r.Reliable {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var batches []rtpsmsg.Batch
	for writer, due := range r.pendingAckNacks {
		if now.Before(due) {
			continue
		}
		proxy, ok := r.proxies[writer]
		if !ok {
			delete(r.pendingAckNacks, writer)
			continue
		}
		base := proxy.HighestReceivedSN + 1
		var missingInWindow []ddsid.SequenceNumber
		for _, sn := range proxy.MissingChanges() {
			if sn >= base && sn < base+256 {
				missingInWindow = append(missingInWindow, sn)
			}
		}
		set := rtpsmsg.NewSequenceNumberSet(base, missingInWindow)
		k, fl, body := rtpsmsg.Encode(true, rtpsmsg.AckNack{
			ReaderId: r.GUID.Entity, WriterId: writer.Entity,
			ReaderSNState: set, Count: proxy.NextAckNackCount(), Final: len(missingInWindow) == 0,
		})
		dests := proxy.UnicastLocators
		if len(dests) == 0 {
			dests = proxy.MulticastLocators
		}
		batches = append(batches, rtpsmsg.Batch{
			Destinations: dests,
			Submessages:  []rtpsmsg.RawSubmessage{{Kind: k, Flags: fl, Body: body}},
		})
		delete(r.pendingAckNacks, writer)
	}
	return batches
}
