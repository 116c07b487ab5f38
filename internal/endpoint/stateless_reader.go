package endpoint

import (
	"sync"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/history"
)

// StatelessReader implements the best-effort receiving half of spec.md
// section 4.2/4.4: no ACKNACK, no heartbeat response, samples accepted in
// arrival order with anything at or below the writer's current high-water
// mark dropped as lost.
type StatelessReader struct {
	GUID  ddsid.GUID
	Cache *history.Cache

	mu      sync.Mutex
	highest map[ddsid.GUID]ddsid.SequenceNumber
}

// NewStatelessReader constructs an empty StatelessReader.
func NewStatelessReader(guid ddsid.GUID) *StatelessReader {
	return &StatelessReader{GUID: guid, Cache: history.New(), highest: make(map[ddsid.GUID]ddsid.SequenceNumber)}
}

// HandleData ingests one Data submessage from writerGUID, decoding its
// inline QoS if present and returning the resulting CacheChange (nil if the
// sample was dropped as a duplicate or out-of-order-below-highest).
func (r *StatelessReader) HandleData(writerGUID ddsid.GUID, sn ddsid.SequenceNumber, payload []byte, inlineQosBytes []byte, ts ddsid.Duration, haveTS bool) *ddsid.CacheChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Cache.Contains(writerGUID, sn) {
		return nil
	}
	if last, ok := r.highest[writerGUID]; ok && sn <= last {
		return nil
	}

	change := &ddsid.CacheChange{
		Kind:            ddsid.ChangeAlive,
		WriterGUID:      writerGUID,
		InstanceHandle:  ddsid.InstanceHandleFromGUID(writerGUID),
		SequenceNumber:  sn,
		Payload:         payload,
		SourceTimestamp: ts,
		HasTimestamp:    haveTS,
	}
	if len(inlineQosBytes) > 0 {
		if params, err := decodeInlineQos(inlineQosBytes); err == nil {
			change.InlineQos = params
		}
	}
	r.Cache.AddChange(change)
	r.highest[writerGUID] = sn
	return change
}

func decodeInlineQos(buf []byte) (cdr.ParameterList, error) {
	rdr, _, err := cdr.NewReader(withHeader(buf))
	if err != nil {
		return nil, err
	}
	return cdr.ReadParameterList(rdr)
}

// withHeader prepends a little-endian PL_CDR encapsulation header so bare
// inline-QoS bytes (already stripped of their header when written, see
// encodeData) can be parsed with the standard cdr.NewReader entry point.
func withHeader(body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = byte(cdr.EncapsulationPL_CDR_LE >> 8)
	out[1] = byte(cdr.EncapsulationPL_CDR_LE)
	copy(out[4:], body)
	return out
}
