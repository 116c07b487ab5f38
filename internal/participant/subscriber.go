package participant

import (
	"sync"

	"ddscore/internal/cdr"
	"ddscore/internal/ddserror"
	"ddscore/internal/ddsid"
	"ddscore/internal/discovery"
	"ddscore/internal/endpoint"
	"ddscore/internal/qos"
	"ddscore/internal/typesupport"
)

// Subscriber groups DataReaders created under a common QoS, per spec.md
// section 9.
type Subscriber struct {
	participant *Participant
	handle      ddsid.InstanceHandle
	qos         qos.Set

	mu      sync.Mutex
	readers map[ddsid.InstanceHandle]*DataReader
}

// CreateDataReader allocates a stateful reader for topic/typeName,
// registers it with the participant's tick driver, and announces it over
// SEDP, per spec.md section 4.7's "on reader creation" step. A nil
// readerQoS falls back to the subscriber's default QoS.
func (sub *Subscriber) CreateDataReader(topic, typeName string, ts typesupport.TypeSupport, readerQoS *qos.Set) (*DataReader, error) {
	p := sub.participant
	p.mu.Lock()
	if err := p.checkAlive(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	effectiveQoS := sub.qos
	if readerQoS != nil {
		effectiveQoS = *readerQoS
	}
	if err := effectiveQoS.Validate(); err != nil {
		p.mu.Unlock()
		return nil, ddserror.InconsistentPolicy(err.Error())
	}
	entityId := p.nextEntityId(ddsid.EntityKindUserReaderWithKey)
	guid := ddsid.GUID{Prefix: p.GUID.Prefix, Entity: entityId}
	reliable := effectiveQoS.Reliability.Kind == qos.ReliabilityReliable
	r := endpoint.NewStatefulReader(guid, reliable)
	p.statefulR[entityId] = r
	p.mu.Unlock()

	p.TypeSupport.Register(ts)
	p.Discovery.SEDP.PublishReader(discovery.DiscoveredReaderData{
		EndpointGUID: guid,
		TopicName:    topic,
		TypeName:     typeName,
		QoS:          effectiveQoS,
	})

	dr := &DataReader{subscriber: sub, reader: r, handle: ddsid.InstanceHandleFromGUID(guid), topic: topic, typeName: typeName, ts: ts, qos: effectiveQoS}
	sub.mu.Lock()
	sub.readers[dr.handle] = dr
	sub.mu.Unlock()
	return dr, nil
}

// DeleteDataReader removes dr from both the subscriber and the
// participant's tick driver.
func (sub *Subscriber) DeleteDataReader(dr *DataReader) error {
	sub.mu.Lock()
	if _, ok := sub.readers[dr.handle]; !ok {
		sub.mu.Unlock()
		return ddserror.AlreadyDeleted("reader not owned by this subscriber")
	}
	delete(sub.readers, dr.handle)
	sub.mu.Unlock()

	p := sub.participant
	p.mu.Lock()
	delete(p.statefulR, dr.reader.GUID.Entity)
	p.mu.Unlock()
	return nil
}

// BeginAccess and EndAccess bracket a coherent multi-reader access per
// spec.md section 6; with one reader per DataReader handle and no
// PRESENTATION.access_scope grouping implemented beyond GROUP/INSTANCE
// QoS storage, they reduce to a subscriber-wide mutex rather than a
// no-op, so concurrent façade goroutines reading from readers under the
// same subscriber still serialize against each other.
func (sub *Subscriber) BeginAccess() { sub.mu.Lock() }
func (sub *Subscriber) EndAccess()   { sub.mu.Unlock() }

// Sample is one decoded, deserialized change handed back by Take/Read, per
// spec.md section 2's data-available operation.
type Sample struct {
	Data         any
	Instance     ddsid.InstanceHandle
	SequenceNum  ddsid.SequenceNumber
	Kind         ddsid.ChangeKind
	SourceWriter ddsid.GUID
}

// DataReader is the façade-facing handle wrapping a stateful reader with
// its topic/type identity, QoS, and deserialization seam.
type DataReader struct {
	subscriber *Subscriber
	reader     *endpoint.StatefulReader
	handle     ddsid.InstanceHandle
	topic      string
	typeName   string
	ts         typesupport.TypeSupport
	qos        qos.Set
}

// Take returns every sample currently in the reader's history cache,
// deserialized with the reader's TypeSupport, and removes them from the
// cache, per spec.md section 2's take semantics.
func (dr *DataReader) Take() ([]Sample, error) {
	return dr.drain(true)
}

// Read returns every sample currently in the reader's history cache without
// removing them, per spec.md section 2's read semantics.
func (dr *DataReader) Read() ([]Sample, error) {
	return dr.drain(false)
}

func (dr *DataReader) drain(remove bool) ([]Sample, error) {
	var changes []*ddsid.CacheChange
	dr.reader.Cache.ForEach(func(c *ddsid.CacheChange) {
		if c.WriterGUID.IsUnknown() {
			return
		}
		changes = append(changes, c)
	})
	samples := make([]Sample, 0, len(changes))
	for _, c := range changes {
		var data any
		if c.Kind == ddsid.ChangeAlive {
			reader, enc, err := cdr.NewReader(c.Payload)
			if err != nil {
				return nil, ddserror.BadParameter(err.Error())
			}
			decoded, err := dr.ts.Deserialize(reader, enc)
			if err != nil {
				return nil, ddserror.BadParameter(err.Error())
			}
			data = decoded
		}
		samples = append(samples, Sample{
			Data: data, Instance: c.InstanceHandle, SequenceNum: c.SequenceNumber,
			Kind: c.Kind, SourceWriter: c.WriterGUID,
		})
		if remove {
			dr.reader.Cache.RemoveChange(c.WriterGUID, c.SequenceNumber)
		}
	}
	return samples, nil
}

// MatchedPublications returns the GUIDs of every writer currently matched
// to this reader, per spec.md section 6's matched-publication queries.
func (dr *DataReader) MatchedPublications() []ddsid.GUID {
	return dr.reader.MatchedWriters()
}

// Topic and TypeName report the reader's identity.
func (dr *DataReader) Topic() string    { return dr.topic }
func (dr *DataReader) TypeName() string { return dr.typeName }
func (dr *DataReader) QoS() qos.Set     { return dr.qos }
