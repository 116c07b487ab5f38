package endpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/history"
	"ddscore/internal/rtpsmsg"
)

// StatefulWriter implements the reliable-writer state machine of spec.md
// section 4.3. Rather than an explicit per-proxy state enum, each tick
// (ProduceMessages) derives what Idle/Pushing/Waiting/MustRepair/Announcing
// would have done from the proxy's counters directly — the states in the
// spec table describe *when* submessages are due, and that condition is
// cheaper to recompute than to track transitions for.
type StatefulWriter struct {
	GUID     ddsid.GUID
	Reliable bool
	Cache    *history.Cache

	HeartbeatPeriod        time.Duration
	HeartbeatResponseDelay time.Duration

	// FragmentSize bounds the payload carried by one DataFrag, per spec.md
	// section 4.3's fragmented-sample repair. Changes whose payload fits in
	// one FragmentSize are sent whole as a single Data; larger changes are
	// split into DataFrag submessages and repaired fragment-by-fragment via
	// NACK_FRAG instead of retransmitting the whole change on any loss.
	FragmentSize uint16

	mu             sync.Mutex
	proxies        map[ddsid.GUID]*ReaderProxy
	lastChangeSN   ddsid.SequenceNumber
	heartbeatCount int32
	lastHeartbeat  time.Time
}

// defaultFragmentSize mirrors common RTPS implementations' default
// data_max_size_serialized threshold for triggering fragmentation.
const defaultFragmentSize = 1344

// NewStatefulWriter constructs a StatefulWriter.
func NewStatefulWriter(guid ddsid.GUID, reliable bool) *StatefulWriter {
	return &StatefulWriter{
		GUID: guid, Reliable: reliable, Cache: history.New(),
		proxies:      make(map[ddsid.GUID]*ReaderProxy),
		FragmentSize: defaultFragmentSize,
	}
}

// MatchedReaderAdd registers a newly matched remote reader.
func (w *StatefulWriter) MatchedReaderAdd(proxy *ReaderProxy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proxies[proxy.RemoteReaderGUID] = proxy
}

// MatchedReaderRemove drops a remote reader that is no longer matched.
func (w *StatefulWriter) MatchedReaderRemove(remote ddsid.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.proxies, remote)
}

// MatchedReaders returns the GUIDs of every currently matched reader.
func (w *StatefulWriter) MatchedReaders() []ddsid.GUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ddsid.GUID, 0, len(w.proxies))
	for guid := range w.proxies {
		out = append(out, guid)
	}
	return out
}

// WriteWTimestamp stages a new change: it is implicitly unsent for every
// proxy because UnsentChanges derives from HighestSent vs the cache.
func (w *StatefulWriter) WriteWTimestamp(kind ddsid.ChangeKind, instance ddsid.InstanceHandle, payload []byte, inlineQos cdr.ParameterList, ts ddsid.Duration) *ddsid.CacheChange {
	w.mu.Lock()
	w.lastChangeSN++
	sn := w.lastChangeSN
	w.mu.Unlock()

	change := &ddsid.CacheChange{
		Kind: kind, WriterGUID: w.GUID, InstanceHandle: instance,
		SequenceNumber: sn, Payload: payload, InlineQos: inlineQos,
		SourceTimestamp: ts, HasTimestamp: true,
	}
	w.Cache.AddChange(change)
	return change
}

// OnAckNack applies an ACKNACK per spec.md section 4.3's transition table.
func (w *StatefulWriter) OnAckNack(remote ddsid.GUID, an rtpsmsg.AckNack) {
	w.mu.Lock()
	defer w.mu.Unlock()
	proxy, ok := w.proxies[remote]
	if !ok {
		return
	}
	base := an.ReaderSNState.Base
	if base > 0 {
		proxy.AckedChangesSet(base - 1)
	}
	proxy.RequestedChangesSet(an.ReaderSNState.Members())
}

// OnNackFrag applies a NACK_FRAG, recording the specific fragment numbers
// of one already-fragmented change the reader is still missing, per spec.md
// section 4.3's fragmented-sample repair.
func (w *StatefulWriter) OnNackFrag(remote ddsid.GUID, nf rtpsmsg.NackFrag) {
	w.mu.Lock()
	defer w.mu.Unlock()
	proxy, ok := w.proxies[remote]
	if !ok {
		return
	}
	members := nf.FragmentNumberState.Members()
	fragNums := make([]uint32, len(members))
	for i, m := range members {
		fragNums[i] = uint32(m)
	}
	proxy.NackFragSet(nf.WriterSN, fragNums)
	proxy.requestedSet.Add(nf.WriterSN)
}

// ProduceMessages runs one tick of the writer state machine for every
// matched proxy (Pushing + MustRepair folded together, requested wins over
// unsent per spec.md section 4.3's tie-break) plus the Waiting heartbeat
// timer, returning the batches to hand to MessageSender.
func (w *StatefulWriter) ProduceMessages(now time.Time) []rtpsmsg.Batch {
	w.mu.Lock()
	defer w.mu.Unlock()

	cacheMin, hasMin := w.Cache.GetSeqNumMin(w.GUID)
	cacheMax, hasMax := w.Cache.GetSeqNumMax(w.GUID)

	var batches []rtpsmsg.Batch
	anyUnacked := false

	for _, proxy := range w.proxies {
		if !proxy.IsActive {
			continue
		}
		var subs []rtpsmsg.RawSubmessage

		pending := make(map[ddsid.SequenceNumber]struct{})
		for _, sn := range proxy.RequestedChanges() {
			pending[sn] = struct{}{}
		}
		if hasMax {
			for _, sn := range proxy.UnsentChanges(w.Cache.SequenceNumbers(w.GUID), cacheMax) {
				pending[sn] = struct{}{}
			}
		}

		ordered := orderedSeqNums(pending)
		for _, sn := range ordered {
			if change, ok := w.Cache.GetChange(w.GUID, sn); ok {
				subs = append(subs, encodeInfoTimestamp(change))
				if w.FragmentSize > 0 && len(change.Payload) > int(w.FragmentSize) {
					subs = append(subs, w.encodeFragments(proxy, change)...)
				} else {
					subs = append(subs, encodeData(proxy.RemoteReaderGUID.Entity, w.GUID.Entity, change))
				}
			} else {
				k, fl, body := rtpsmsg.Encode(true, rtpsmsg.Gap{
					ReaderId: proxy.RemoteReaderGUID.Entity, WriterId: w.GUID.Entity,
					GapStart: sn, GapList: rtpsmsg.NewSequenceNumberSet(sn, nil),
				})
				subs = append(subs, rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body})
			}
			proxy.ClearRequested(sn)
			if sn > proxy.HighestSent {
				proxy.HighestSent = sn
			}
		}

		// Announcing: if the cache trimmed seq-nums the proxy hasn't heard
		// about (acked below cacheMin but cache no longer holds them),
		// declare them irrelevant via Gap so the reader stops waiting.
		if hasMin && proxy.HighestAcked < cacheMin-1 {
			gapStart := proxy.HighestAcked + 1
			k, fl, body := rtpsmsg.Encode(true, rtpsmsg.Gap{
				ReaderId: proxy.RemoteReaderGUID.Entity, WriterId: w.GUID.Entity,
				GapStart: gapStart, GapList: rtpsmsg.NewSequenceNumberSet(gapStart, []ddsid.SequenceNumber{cacheMin - 1}),
			})
			subs = append(subs, rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body})
			proxy.HighestAcked = cacheMin - 1
		}

		if proxy.HighestAcked < proxy.HighestSent {
			anyUnacked = true
		}

		if w.Reliable && (now.Sub(w.lastHeartbeat) >= w.HeartbeatPeriod || len(subs) > 0) {
			final := proxy.HighestAcked >= cacheMax
			subs = append(subs, encodeHeartbeat(w.GUID.Entity, proxy.RemoteReaderGUID.Entity, cacheMin, cacheMax, w.peekHeartbeatCount(), final))
		}

		if len(subs) > 0 {
			dests := proxy.UnicastLocators
			if len(dests) == 0 {
				dests = proxy.MulticastLocators
			}
			batches = append(batches, rtpsmsg.Batch{Destinations: dests, Submessages: subs})
		}
	}

	if w.Reliable && (anyUnacked || now.Sub(w.lastHeartbeat) >= w.HeartbeatPeriod) {
		w.heartbeatCount++
		w.lastHeartbeat = now
	}
	return batches
}

// encodeFragments splits change into DataFrag submessages per spec.md
// section 4.3's fragmented-sample repair: a fresh push sends every fragment
// beyond what this proxy has already been sent; once the reader NACK_FRAGs
// specific fragment numbers (recorded by OnNackFrag), only those are resent
// rather than the whole change.
func (w *StatefulWriter) encodeFragments(proxy *ReaderProxy, change *ddsid.CacheChange) []rtpsmsg.RawSubmessage {
	fragSize := int(w.FragmentSize)
	total := uint32((len(change.Payload) + fragSize - 1) / fragSize)

	var wanted []uint32
	if requested := proxy.RequestedFragments(change.SequenceNumber); len(requested) > 0 {
		wanted = requested
	} else {
		for fn := proxy.HighestFragmentSent(change.SequenceNumber) + 1; fn <= total; fn++ {
			wanted = append(wanted, fn)
		}
	}

	var subs []rtpsmsg.RawSubmessage
	for _, fn := range wanted {
		start := int(fn-1) * fragSize
		end := start + fragSize
		if end > len(change.Payload) {
			end = len(change.Payload)
		}
		k, fl, body := rtpsmsg.Encode(true, rtpsmsg.DataFrag{
			ReaderId: proxy.RemoteReaderGUID.Entity, WriterId: w.GUID.Entity,
			WriterSN: change.SequenceNumber, FragmentStartingNum: fn,
			FragmentsInSubmessage: 1, FragmentSize: uint16(fragSize),
			SampleSize: uint32(len(change.Payload)), SerializedPayload: change.Payload[start:end],
		})
		subs = append(subs, rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body})
		proxy.RecordFragmentSent(change.SequenceNumber, fn)
		proxy.ClearRequestedFragment(change.SequenceNumber, fn)
	}
	subs = append(subs, encodeHeartbeatFrag(w.GUID.Entity, proxy.RemoteReaderGUID.Entity, change.SequenceNumber, total, w.peekHeartbeatCount()))
	return subs
}

func encodeHeartbeatFrag(writerId, readerId ddsid.EntityId, sn ddsid.SequenceNumber, lastFragmentNum uint32, count int32) rtpsmsg.RawSubmessage {
	k, fl, body := rtpsmsg.Encode(true, rtpsmsg.HeartbeatFrag{
		ReaderId: readerId, WriterId: writerId, WriterSN: sn, LastFragmentNum: lastFragmentNum, Count: count,
	})
	return rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body}
}

func (w *StatefulWriter) peekHeartbeatCount() int32 { return w.heartbeatCount + 1 }

func encodeHeartbeat(writerId, readerId ddsid.EntityId, firstSN, lastSN ddsid.SequenceNumber, count int32, final bool) rtpsmsg.RawSubmessage {
	k, fl, body := rtpsmsg.Encode(true, rtpsmsg.Heartbeat{
		ReaderId: readerId, WriterId: writerId, FirstSN: firstSN, LastSN: lastSN, Count: count, Final: final,
	})
	return rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body}
}

// ackPollInterval bounds how promptly WaitForAcknowledgments notices an
// acknowledgement recorded by OnAckNack; it is short relative to any
// realistic heartbeat_response_delay so it never dominates the wait.
const ackPollInterval = 2 * time.Millisecond

// WaitForAcknowledgments blocks until every matched proxy has acked at
// least the sequence number that was last_change_sn at call time, or ctx is
// done, per spec.md section 4.3. It polls rather than parking on a condvar
// so it can honor ctx cancellation without leaking a goroutine.
func (w *StatefulWriter) WaitForAcknowledgments(ctx context.Context, maxWait time.Duration) error {
	w.mu.Lock()
	snapshot := w.lastChangeSN
	acked := w.allAckedLocked(snapshot)
	w.mu.Unlock()
	if acked {
		return nil
	}

	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(ackPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.mu.Lock()
			acked := w.allAckedLocked(snapshot)
			w.mu.Unlock()
			if acked {
				return nil
			}
			if !now.Before(deadline) {
				return fmt.Errorf("rtpswriter: wait_for_acknowledgments timed out")
			}
		}
	}
}

func (w *StatefulWriter) allAckedLocked(snapshot ddsid.SequenceNumber) bool {
	for _, proxy := range w.proxies {
		if proxy.HighestAcked < snapshot {
			return false
		}
	}
	return true
}

func orderedSeqNums(set map[ddsid.SequenceNumber]struct{}) []ddsid.SequenceNumber {
	out := make([]ddsid.SequenceNumber, 0, len(set))
	for sn := range set {
		out = append(out, sn)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
