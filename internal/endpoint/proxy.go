// Package endpoint implements the per-remote proxy bookkeeping and the
// stateless/stateful writer and reader state machines of spec.md sections
// 4.2–4.4: the protocol-level heart of the RTPS core.
package endpoint

import "ddscore/internal/ddsid"

// seqSet is a small ordered set of sequence numbers, used for ReaderProxy's
// requested_set and WriterProxy's missing_changes. Most endpoints carry a
// handful of outstanding sequence numbers at a time, so a sorted slice
// outperforms a map here and keeps iteration order deterministic for tests.
type seqSet struct {
	members []ddsid.SequenceNumber
}

func (s *seqSet) Add(sn ddsid.SequenceNumber) {
	i := s.search(sn)
	if i < len(s.members) && s.members[i] == sn {
		return
	}
	s.members = append(s.members, 0)
	copy(s.members[i+1:], s.members[i:])
	s.members[i] = sn
}

func (s *seqSet) Remove(sn ddsid.SequenceNumber) {
	i := s.search(sn)
	if i < len(s.members) && s.members[i] == sn {
		s.members = append(s.members[:i], s.members[i+1:]...)
	}
}

func (s *seqSet) Contains(sn ddsid.SequenceNumber) bool {
	i := s.search(sn)
	return i < len(s.members) && s.members[i] == sn
}

func (s *seqSet) Empty() bool { return len(s.members) == 0 }

func (s *seqSet) Members() []ddsid.SequenceNumber {
	return append([]ddsid.SequenceNumber(nil), s.members...)
}

// RemoveBelow drops every member strictly less than floor.
func (s *seqSet) RemoveBelow(floor ddsid.SequenceNumber) {
	i := 0
	for i < len(s.members) && s.members[i] < floor {
		i++
	}
	s.members = s.members[i:]
}

func (s *seqSet) search(sn ddsid.SequenceNumber) int {
	lo, hi := 0, len(s.members)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.members[mid] < sn {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// fragSet is a small ordered set of fragment numbers (1-based), used for
// ReaderProxy's per-change requested-fragment bookkeeping: NACK_FRAG asks
// for a subset of a large change's fragments rather than the whole change,
// per spec.md section 4.3's fragmented-sample repair.
type fragSet struct {
	members []uint32
}

func (s *fragSet) Add(fragNum uint32) {
	i := s.search(fragNum)
	if i < len(s.members) && s.members[i] == fragNum {
		return
	}
	s.members = append(s.members, 0)
	copy(s.members[i+1:], s.members[i:])
	s.members[i] = fragNum
}

func (s *fragSet) Remove(fragNum uint32) {
	i := s.search(fragNum)
	if i < len(s.members) && s.members[i] == fragNum {
		s.members = append(s.members[:i], s.members[i+1:]...)
	}
}

func (s *fragSet) Empty() bool { return len(s.members) == 0 }

func (s *fragSet) Members() []uint32 { return append([]uint32(nil), s.members...) }

func (s *fragSet) search(fragNum uint32) int {
	lo, hi := 0, len(s.members)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.members[mid] < fragNum {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ReaderProxy is the per-matched-remote-reader state a stateful writer
// keeps, per spec.md section 3.
type ReaderProxy struct {
	RemoteReaderGUID  ddsid.GUID
	RemoteGroupEntity ddsid.EntityId
	UnicastLocators   []ddsid.Locator
	MulticastLocators []ddsid.Locator
	ExpectsInlineQos  bool
	IsActive          bool

	HighestSent  ddsid.SequenceNumber
	HighestAcked ddsid.SequenceNumber
	requestedSet seqSet

	// requestedFrags holds, per sequence number of a change too large to fit
	// one DataFrag, the fragment numbers the reader has explicitly NACK_FRAG'd.
	// A change with no entry here and no recorded sent-count is sent whole
	// (fragmented eagerly, all fragments at once) the first time.
	requestedFrags map[ddsid.SequenceNumber]*fragSet
	sentFrags      map[ddsid.SequenceNumber]uint32 // highest fragment number already pushed
}

// NewReaderProxy constructs a ReaderProxy with counters reset to "nothing
// sent yet" (spec.md section 3's highest_sent/highest_acked start below any
// valid sequence number).
func NewReaderProxy(remote ddsid.GUID) *ReaderProxy {
	return &ReaderProxy{
		RemoteReaderGUID: remote,
		IsActive:         true,
		HighestSent:      0,
		HighestAcked:     0,
	}
}

// RequestedChangesSet replaces the requested set from an ACKNACK's bitmap.
func (p *ReaderProxy) RequestedChangesSet(snos []ddsid.SequenceNumber) {
	p.requestedSet = seqSet{}
	for _, sn := range snos {
		p.requestedSet.Add(sn)
	}
}

// AckedChangesSet records that every sequence number up to and including sn
// has been acknowledged.
func (p *ReaderProxy) AckedChangesSet(sn ddsid.SequenceNumber) {
	if sn > p.HighestAcked {
		p.HighestAcked = sn
	}
	p.requestedSet.RemoveBelow(sn + 1)
	for s := range p.requestedFrags {
		if s <= sn {
			p.ForgetFragments(s)
		}
	}
}

// RequestedChanges returns the currently outstanding requested set.
func (p *ReaderProxy) RequestedChanges() []ddsid.SequenceNumber { return p.requestedSet.Members() }

// HasRequested reports whether sn is in the requested set.
func (p *ReaderProxy) HasRequested(sn ddsid.SequenceNumber) bool { return p.requestedSet.Contains(sn) }

// ClearRequested removes sn from the requested set, e.g. once resent.
func (p *ReaderProxy) ClearRequested(sn ddsid.SequenceNumber) { p.requestedSet.Remove(sn) }

// NackFragSet records the fragment numbers a NACK_FRAG requested for sn,
// replacing any previous request for the same change.
func (p *ReaderProxy) NackFragSet(sn ddsid.SequenceNumber, fragNums []uint32) {
	if p.requestedFrags == nil {
		p.requestedFrags = make(map[ddsid.SequenceNumber]*fragSet)
	}
	fs := &fragSet{}
	for _, fn := range fragNums {
		fs.Add(fn)
	}
	p.requestedFrags[sn] = fs
}

// RequestedFragments returns the outstanding NACK_FRAG'd fragment numbers
// for sn, or nil if none were explicitly requested.
func (p *ReaderProxy) RequestedFragments(sn ddsid.SequenceNumber) []uint32 {
	fs, ok := p.requestedFrags[sn]
	if !ok {
		return nil
	}
	return fs.Members()
}

// ClearRequestedFragment removes fragNum from sn's requested set, e.g. once
// resent, and drops the per-change entry once it's empty.
func (p *ReaderProxy) ClearRequestedFragment(sn ddsid.SequenceNumber, fragNum uint32) {
	fs, ok := p.requestedFrags[sn]
	if !ok {
		return
	}
	fs.Remove(fragNum)
	if fs.Empty() {
		delete(p.requestedFrags, sn)
	}
}

// HighestFragmentSent returns the highest fragment number already pushed
// for sn (0 if none yet); RecordFragmentSent updates that mark.
func (p *ReaderProxy) HighestFragmentSent(sn ddsid.SequenceNumber) uint32 {
	return p.sentFrags[sn]
}

// RecordFragmentSent advances the high-water mark of fragments pushed for sn.
func (p *ReaderProxy) RecordFragmentSent(sn ddsid.SequenceNumber, fn uint32) {
	if p.sentFrags == nil {
		p.sentFrags = make(map[ddsid.SequenceNumber]uint32)
	}
	if fn > p.sentFrags[sn] {
		p.sentFrags[sn] = fn
	}
}

// ForgetFragments drops all per-fragment bookkeeping for sn, e.g. once the
// reader has acknowledged the whole change.
func (p *ReaderProxy) ForgetFragments(sn ddsid.SequenceNumber) {
	delete(p.requestedFrags, sn)
	delete(p.sentFrags, sn)
}

// UnsentChanges returns the in-window cache sequence numbers this proxy has
// not yet sent, per spec.md section 3: "(highest_acked, last_change_sn] ∩
// cache keys minus already-sent".
func (p *ReaderProxy) UnsentChanges(cached []ddsid.SequenceNumber, lastChangeSN ddsid.SequenceNumber) []ddsid.SequenceNumber {
	var out []ddsid.SequenceNumber
	for _, sn := range cached {
		if sn > p.HighestSent && sn <= lastChangeSN {
			out = append(out, sn)
		}
	}
	return out
}

// WriterProxy is the per-matched-remote-writer state a stateful reader
// keeps, per spec.md section 3.
type WriterProxy struct {
	RemoteWriterGUID  ddsid.GUID
	UnicastLocators   []ddsid.Locator
	MulticastLocators []ddsid.Locator

	HighestReceivedSN ddsid.SequenceNumber
	missingChanges    seqSet
	irrelevantChanges seqSet

	LastHeartbeatCount int32
	MustSendAck        bool

	ackNackCount int32
}

// NewWriterProxy constructs a WriterProxy with no changes observed yet.
// NewWriterProxy constructs a WriterProxy with HighestReceivedSN at 0,
// meaning "nothing received yet" — valid sequence numbers start at 1, so 0
// is a safe sentinel that lets HighestReceivedSN double as the contiguous
// high-water mark the ACKNACK base formula in spec.md section 4.4 assumes,
// without a separate "unknown" special case.
func NewWriterProxy(remote ddsid.GUID) *WriterProxy {
	return &WriterProxy{RemoteWriterGUID: remote}
}

// NextAckNackCount returns a strictly increasing counter value, per spec.md
// section 8's ACKNACK monotonicity invariant.
func (p *WriterProxy) NextAckNackCount() int32 {
	p.ackNackCount++
	return p.ackNackCount
}

// MissingChanges returns the sequence numbers known to exist but not yet received.
func (p *WriterProxy) MissingChanges() []ddsid.SequenceNumber { return p.missingChanges.Members() }

// AddMissing records sn as known-to-exist-but-not-received.
func (p *WriterProxy) AddMissing(sn ddsid.SequenceNumber) {
	if !p.irrelevantChanges.Contains(sn) {
		p.missingChanges.Add(sn)
	}
}

// RemoveMissing clears sn from the missing set, e.g. once received or
// declared irrelevant.
func (p *WriterProxy) RemoveMissing(sn ddsid.SequenceNumber) { p.missingChanges.Remove(sn) }

// MarkIrrelevant records sn as told-irrelevant-by-writer (via Gap) and
// removes it from the missing set.
func (p *WriterProxy) MarkIrrelevant(sn ddsid.SequenceNumber) {
	p.irrelevantChanges.Add(sn)
	p.missingChanges.Remove(sn)
}

// IsIrrelevant reports whether sn was declared irrelevant by the writer.
func (p *WriterProxy) IsIrrelevant(sn ddsid.SequenceNumber) bool {
	return p.irrelevantChanges.Contains(sn)
}

// DropBelow clears missing/irrelevant bookkeeping for sequence numbers the
// writer has reported it no longer holds (Heartbeat's firstSN advancing).
func (p *WriterProxy) DropBelow(floor ddsid.SequenceNumber) {
	p.missingChanges.RemoveBelow(floor)
	p.irrelevantChanges.RemoveBelow(floor)
}

// ReaderLocator is the stateless-writer per-destination bookkeeping of
// spec.md section 3: just a locator plus a resend cursor and requested set.
type ReaderLocator struct {
	Locator      ddsid.Locator
	LastSentSN   ddsid.SequenceNumber
	requestedSet seqSet
}

// NewReaderLocator constructs a ReaderLocator with nothing sent yet.
func NewReaderLocator(loc ddsid.Locator) *ReaderLocator {
	return &ReaderLocator{Locator: loc}
}

// RequestedChangesSet replaces the requested set (best-effort stateless
// writers generally ignore this; kept for symmetry and future reliable
// ReaderLocator use).
func (l *ReaderLocator) RequestedChangesSet(snos []ddsid.SequenceNumber) {
	l.requestedSet = seqSet{}
	for _, sn := range snos {
		l.requestedSet.Add(sn)
	}
}

// RequestedChanges returns the outstanding requested set.
func (l *ReaderLocator) RequestedChanges() []ddsid.SequenceNumber { return l.requestedSet.Members() }
