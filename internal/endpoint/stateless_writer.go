package endpoint

import (
	"sync"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/history"
	"ddscore/internal/rtpsmsg"
)

// StatelessWriter implements spec.md section 4.2: one writer, zero or more
// ReaderLocators, no per-reader acknowledgement tracking. Used for SPDP.
type StatelessWriter struct {
	GUID  ddsid.GUID
	Cache *history.Cache

	mu       sync.Mutex
	locators map[ddsid.Locator]*ReaderLocator
}

// NewStatelessWriter constructs an empty StatelessWriter.
func NewStatelessWriter(guid ddsid.GUID) *StatelessWriter {
	return &StatelessWriter{GUID: guid, Cache: history.New(), locators: make(map[ddsid.Locator]*ReaderLocator)}
}

// ReaderLocatorAdd registers a destination locator for this writer.
func (w *StatelessWriter) ReaderLocatorAdd(loc ddsid.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.locators[loc]; !ok {
		w.locators[loc] = NewReaderLocator(loc)
	}
}

// ReaderLocatorRemove unregisters a destination locator.
func (w *StatelessWriter) ReaderLocatorRemove(loc ddsid.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.locators, loc)
}

// UnsentChangesReset rewinds every locator's resend cursor to zero so the
// full cache contents are retransmitted, used when a new ReaderLocator
// joins after changes already exist.
func (w *StatelessWriter) UnsentChangesReset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range w.locators {
		l.LastSentSN = 0
	}
}

// NewChange allocates the next CacheChange for this writer (caller fills in
// payload/instance handle) and adds it to the cache.
func (w *StatelessWriter) NewChange(kind ddsid.ChangeKind, instance ddsid.InstanceHandle, payload []byte, inlineQos cdr.ParameterList) *ddsid.CacheChange {
	seq, _ := w.Cache.GetSeqNumMax(w.GUID)
	change := &ddsid.CacheChange{
		Kind: kind, WriterGUID: w.GUID, InstanceHandle: instance,
		SequenceNumber: seq + 1, Payload: payload, InlineQos: inlineQos,
	}
	w.Cache.AddChange(change)
	return change
}

// AddChange inserts an already-constructed change directly, used when the
// caller (e.g. discovery) manages sequence numbers itself.
func (w *StatelessWriter) AddChange(change *ddsid.CacheChange) bool { return w.Cache.AddChange(change) }

// ProduceMessages runs the per-locator resend algorithm of spec.md section
// 4.2 and returns one Batch per ReaderLocator with outstanding work.
func (w *StatelessWriter) ProduceMessages() []rtpsmsg.Batch {
	w.mu.Lock()
	locators := make([]*ReaderLocator, 0, len(w.locators))
	for _, l := range w.locators {
		locators = append(locators, l)
	}
	w.mu.Unlock()

	cacheMax, hasAny := w.Cache.GetSeqNumMax(w.GUID)
	if !hasAny {
		return nil
	}

	var batches []rtpsmsg.Batch
	for _, loc := range locators {
		var subs []rtpsmsg.RawSubmessage
		for sn := loc.LastSentSN + 1; sn <= cacheMax; sn++ {
			if change, ok := w.Cache.GetChange(w.GUID, sn); ok {
				subs = append(subs, encodeInfoTimestamp(change))
				subs = append(subs, encodeData(ddsid.EntityIdUnknown, w.GUID.Entity, change))
			} else {
				k, fl, body := rtpsmsg.Encode(true, rtpsmsg.Gap{
					WriterId: w.GUID.Entity, GapStart: sn,
					GapList: rtpsmsg.NewSequenceNumberSet(sn, nil),
				})
				subs = append(subs, rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body})
			}
			loc.LastSentSN = sn
		}
		if len(subs) > 0 {
			batches = append(batches, rtpsmsg.Batch{Destinations: []ddsid.Locator{loc.Locator}, Submessages: subs})
		}
	}
	return batches
}

func encodeInfoTimestamp(change *ddsid.CacheChange) rtpsmsg.RawSubmessage {
	ts := ddsid.DurationZero
	if change.HasTimestamp {
		ts = change.SourceTimestamp
	}
	k, fl, body := rtpsmsg.Encode(true, rtpsmsg.InfoTimestamp{Timestamp: ts})
	return rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body}
}

func encodeData(readerId, writerId ddsid.EntityId, change *ddsid.CacheChange) rtpsmsg.RawSubmessage {
	var inlineQos []byte
	if len(change.InlineQos) > 0 {
		w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
		cdr.WriteParameterList(w, change.InlineQos)
		inlineQos = w.Bytes()[4:] // strip the parameter list's own encapsulation header
	}
	k, fl, body := rtpsmsg.Encode(true, rtpsmsg.Data{
		ReaderId: readerId, WriterId: writerId, WriterSN: change.SequenceNumber,
		InlineQos: inlineQos, SerializedPayload: change.Payload,
	})
	return rtpsmsg.RawSubmessage{Kind: k, Flags: fl, Body: body}
}
