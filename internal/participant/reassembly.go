package participant

import (
	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/rtpsmsg"
)

// fragAssembly accumulates DATA_FRAG submessages for one (writer, sequence
// number) pending change until every fragment has arrived, mirroring the
// writer-side per-change fragment bookkeeping in internal/endpoint's
// ReaderProxy, per spec.md section 4.3's fragmented-sample repair.
type fragAssembly struct {
	fragmentSize uint16
	sampleSize   uint32
	totalFrags   uint32
	received     map[uint32][]byte
}

func newFragAssembly(df rtpsmsg.DataFrag) *fragAssembly {
	total := (df.SampleSize + uint32(df.FragmentSize) - 1) / uint32(df.FragmentSize)
	return &fragAssembly{
		fragmentSize: df.FragmentSize,
		sampleSize:   df.SampleSize,
		totalFrags:   total,
		received:     make(map[uint32][]byte),
	}
}

func (a *fragAssembly) addFragment(df rtpsmsg.DataFrag) {
	a.received[df.FragmentStartingNum] = df.SerializedPayload
}

func (a *fragAssembly) complete() bool {
	return uint32(len(a.received)) >= a.totalFrags
}

func (a *fragAssembly) assemble() []byte {
	out := make([]byte, 0, a.sampleSize)
	for fn := uint32(1); fn <= a.totalFrags; fn++ {
		out = append(out, a.received[fn]...)
	}
	return out
}

// reassembleFragment folds one DATA_FRAG into the pending assembly for
// (writer, df.WriterSN) and, once complete, feeds the whole change through
// r.OnData exactly as a single unfragmented Data submessage would.
func (p *Participant) reassembleFragment(r *endpoint.StatefulReader, writer ddsid.GUID, df rtpsmsg.DataFrag) {
	p.fragMu.Lock()
	byWriter, ok := p.assembly[writer]
	if !ok {
		byWriter = make(map[ddsid.SequenceNumber]*fragAssembly)
		p.assembly[writer] = byWriter
	}
	a, ok := byWriter[df.WriterSN]
	if !ok {
		a = newFragAssembly(df)
		byWriter[df.WriterSN] = a
	}
	a.addFragment(df)
	done := a.complete()
	var payload []byte
	if done {
		payload = a.assemble()
		delete(byWriter, df.WriterSN)
	}
	p.fragMu.Unlock()

	if !done {
		return
	}
	data := rtpsmsg.Data{
		ReaderId: df.ReaderId, WriterId: df.WriterId,
		WriterSN: df.WriterSN, InlineQos: df.InlineQos, SerializedPayload: payload,
	}
	r.OnData(writer, data, ddsid.InstanceHandleFromGUID(writer), ddsid.DurationZero, false)
}
