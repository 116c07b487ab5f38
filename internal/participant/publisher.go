package participant

import (
	"context"
	"sync"
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/ddserror"
	"ddscore/internal/ddsid"
	"ddscore/internal/discovery"
	"ddscore/internal/endpoint"
	"ddscore/internal/qos"
	"ddscore/internal/typesupport"
)

// Publisher groups DataWriters created under a common QoS, per spec.md
// section 9.
type Publisher struct {
	participant *Participant
	handle      ddsid.InstanceHandle
	qos         qos.Set

	mu      sync.Mutex
	writers map[ddsid.InstanceHandle]*DataWriter
}

// CreateDataWriter allocates a reliable or best-effort stateful writer for
// topic/typeName, registers it with the participant's tick driver, and
// announces it over SEDP, per spec.md section 4.7's "on writer creation"
// step. A nil writerQoS falls back to the publisher's default QoS.
func (pub *Publisher) CreateDataWriter(topic, typeName string, ts typesupport.TypeSupport, writerQoS *qos.Set) (*DataWriter, error) {
	p := pub.participant
	p.mu.Lock()
	if err := p.checkAlive(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	effectiveQoS := pub.qos
	if writerQoS != nil {
		effectiveQoS = *writerQoS
	}
	if err := effectiveQoS.Validate(); err != nil {
		p.mu.Unlock()
		return nil, ddserror.InconsistentPolicy(err.Error())
	}
	entityId := p.nextEntityId(ddsid.EntityKindUserWriterWithKey)
	guid := ddsid.GUID{Prefix: p.GUID.Prefix, Entity: entityId}
	reliable := effectiveQoS.Reliability.Kind == qos.ReliabilityReliable
	w := endpoint.NewStatefulWriter(guid, reliable)
	p.statefulW[entityId] = w
	p.mu.Unlock()

	p.TypeSupport.Register(ts)
	p.Discovery.SEDP.PublishWriter(discovery.DiscoveredWriterData{
		EndpointGUID: guid,
		TopicName:    topic,
		TypeName:     typeName,
		QoS:          effectiveQoS,
	})

	dw := &DataWriter{publisher: pub, writer: w, handle: ddsid.InstanceHandleFromGUID(guid), topic: topic, typeName: typeName, ts: ts, qos: effectiveQoS}
	pub.mu.Lock()
	pub.writers[dw.handle] = dw
	pub.mu.Unlock()
	return dw, nil
}

// DeleteDataWriter removes dw from both the publisher and the participant's
// tick driver.
func (pub *Publisher) DeleteDataWriter(dw *DataWriter) error {
	pub.mu.Lock()
	if _, ok := pub.writers[dw.handle]; !ok {
		pub.mu.Unlock()
		return ddserror.AlreadyDeleted("writer not owned by this publisher")
	}
	delete(pub.writers, dw.handle)
	pub.mu.Unlock()

	p := pub.participant
	p.mu.Lock()
	delete(p.statefulW, dw.writer.GUID.Entity)
	p.mu.Unlock()
	return nil
}

// DataWriter is the façade-facing handle for spec.md section 2's "an
// application writes a sample" operation, wrapping a stateful writer with
// its topic/type identity and QoS.
type DataWriter struct {
	publisher *Publisher
	writer    *endpoint.StatefulWriter
	handle    ddsid.InstanceHandle
	topic     string
	typeName  string
	ts        typesupport.TypeSupport
	qos       qos.Set
}

// Write serializes sample with the writer's TypeSupport and hands it to the
// stateful writer's history cache, per spec.md section 2's write operation.
func (dw *DataWriter) Write(sample any) error {
	buf := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	if err := dw.ts.Serialize(buf, sample, cdr.EncapsulationCDR_LE); err != nil {
		return ddserror.BadParameter(err.Error())
	}
	instance := dw.handle
	if dw.ts.HasKey() {
		key, err := dw.ts.GetKey(sample)
		if err != nil {
			return ddserror.BadParameter(err.Error())
		}
		instance = instanceHandleFromKey(key)
	}
	dw.writer.WriteWTimestamp(ddsid.ChangeAlive, instance, buf.Bytes(), nil, ddsid.DurationZero)
	return nil
}

// RegisterInstance derives the instance handle for key, used by callers
// that want a stable handle before their first Write, per spec.md
// section 2's register_instance operation.
func (dw *DataWriter) RegisterInstance(key []byte) ddsid.InstanceHandle {
	if len(key) == 0 {
		return dw.handle
	}
	return instanceHandleFromKey(key)
}

// UnregisterInstance marks instance as NOT_ALIVE_UNREGISTERED, per spec.md
// section 2.
func (dw *DataWriter) UnregisterInstance(instance ddsid.InstanceHandle) {
	dw.writer.WriteWTimestamp(ddsid.ChangeNotAliveUnregistered, instance, nil, nil, ddsid.DurationZero)
}

// Dispose marks instance as NOT_ALIVE_DISPOSED, per spec.md section 2.
func (dw *DataWriter) Dispose(instance ddsid.InstanceHandle) {
	dw.writer.WriteWTimestamp(ddsid.ChangeNotAliveDisposed, instance, nil, nil, ddsid.DurationZero)
}

// MatchedSubscriptions returns the GUIDs of every reader currently matched
// to this writer, per spec.md section 6's matched-subscription queries.
func (dw *DataWriter) MatchedSubscriptions() []ddsid.GUID {
	return dw.writer.MatchedReaders()
}

// WaitForAcknowledgments blocks until every matched reliable reader proxy
// has acknowledged every sample currently in history, or ctx/maxWait
// expires, per spec.md section 2.
func (dw *DataWriter) WaitForAcknowledgments(ctx context.Context, maxWait time.Duration) error {
	return dw.writer.WaitForAcknowledgments(ctx, maxWait)
}

// Topic and TypeName report the writer's identity, used by the façade and
// by internal/introspect's publication listing.
func (dw *DataWriter) Topic() string    { return dw.topic }
func (dw *DataWriter) TypeName() string { return dw.typeName }
func (dw *DataWriter) QoS() qos.Set     { return dw.qos }
