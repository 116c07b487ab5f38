package discovery

import (
	"context"
	"sync"
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/qos"
	"ddscore/internal/rtpsmsg"
)

// DiscoveredWriterData is SEDP's PublicationBuiltinTopicData, per spec.md
// section 4.7.
type DiscoveredWriterData struct {
	EndpointGUID      ddsid.GUID
	TopicName         string
	TypeName          string
	QoS               qos.Set
	UnicastLocators   []ddsid.Locator
	MulticastLocators []ddsid.Locator
}

func (d DiscoveredWriterData) toParameterList() cdr.ParameterList {
	params := cdr.ParameterList{}
	params = putGUID(params, PIDEndpointGUID, d.EndpointGUID)
	params = putString(params, PIDTopicName, d.TopicName)
	params = putString(params, PIDTypeName, d.TypeName)
	for _, l := range d.UnicastLocators {
		params = putLocator(params, PIDDefaultUnicastLocator, l)
	}
	for _, l := range d.MulticastLocators {
		params = putLocator(params, PIDDefaultMulticastLocator, l)
	}
	return append(params, qosToParameterList(d.QoS)...)
}

func discoveredWriterDataFromParameterList(params cdr.ParameterList) (DiscoveredWriterData, bool) {
	guid, ok := getGUID(params, PIDEndpointGUID)
	if !ok {
		return DiscoveredWriterData{}, false
	}
	topic, _ := getString(params, PIDTopicName)
	typeName, _ := getString(params, PIDTypeName)
	return DiscoveredWriterData{
		EndpointGUID:      guid,
		TopicName:         topic,
		TypeName:          typeName,
		QoS:               qosFromParameterList(params),
		UnicastLocators:   getLocators(params, PIDDefaultUnicastLocator),
		MulticastLocators: getLocators(params, PIDDefaultMulticastLocator),
	}, true
}

// DiscoveredReaderData is SEDP's SubscriptionBuiltinTopicData.
type DiscoveredReaderData struct {
	EndpointGUID      ddsid.GUID
	TopicName         string
	TypeName          string
	QoS               qos.Set
	ExpectsInlineQos  bool
	UnicastLocators   []ddsid.Locator
	MulticastLocators []ddsid.Locator
}

func (d DiscoveredReaderData) toParameterList() cdr.ParameterList {
	params := cdr.ParameterList{}
	params = putGUID(params, PIDEndpointGUID, d.EndpointGUID)
	params = putString(params, PIDTopicName, d.TopicName)
	params = putString(params, PIDTypeName, d.TypeName)
	params = putBool(params, PIDExpectsInlineQos, d.ExpectsInlineQos)
	for _, l := range d.UnicastLocators {
		params = putLocator(params, PIDDefaultUnicastLocator, l)
	}
	for _, l := range d.MulticastLocators {
		params = putLocator(params, PIDDefaultMulticastLocator, l)
	}
	return append(params, qosToParameterList(d.QoS)...)
}

func discoveredReaderDataFromParameterList(params cdr.ParameterList) (DiscoveredReaderData, bool) {
	guid, ok := getGUID(params, PIDEndpointGUID)
	if !ok {
		return DiscoveredReaderData{}, false
	}
	topic, _ := getString(params, PIDTopicName)
	typeName, _ := getString(params, PIDTypeName)
	inlineQos, _ := getBool(params, PIDExpectsInlineQos)
	return DiscoveredReaderData{
		EndpointGUID:      guid,
		TopicName:         topic,
		TypeName:          typeName,
		QoS:               qosFromParameterList(params),
		ExpectsInlineQos:  inlineQos,
		UnicastLocators:   getLocators(params, PIDDefaultUnicastLocator),
		MulticastLocators: getLocators(params, PIDDefaultMulticastLocator),
	}, true
}

// DiscoveredTopicData is SEDP's TopicBuiltinTopicData.
type DiscoveredTopicData struct {
	TopicName string
	TypeName  string
	QoS       qos.Set
}

func (d DiscoveredTopicData) toParameterList() cdr.ParameterList {
	params := cdr.ParameterList{}
	params = putString(params, PIDTopicName, d.TopicName)
	params = putString(params, PIDTypeName, d.TypeName)
	return append(params, qosToParameterList(d.QoS)...)
}

func discoveredTopicDataFromParameterList(params cdr.ParameterList) (DiscoveredTopicData, bool) {
	topic, ok := getString(params, PIDTopicName)
	if !ok {
		return DiscoveredTopicData{}, false
	}
	typeName, _ := getString(params, PIDTypeName)
	return DiscoveredTopicData{TopicName: topic, TypeName: typeName, QoS: qosFromParameterList(params)}, true
}

// localEndpoint is what SEDP needs to know about a local writer/reader to
// run the matcher against newly discovered remote endpoints.
type localEndpoint struct {
	guid  ddsid.GUID
	topic string
	typ   string
	qos   qos.Set
}

// SEDPAgent runs the three SEDP announcer/detector pairs (publications,
// subscriptions, topics) of spec.md section 4.7, including QoS matching and
// matched-status callbacks.
type SEDPAgent struct {
	GuidPrefix ddsid.GuidPrefix

	PubWriter   *endpoint.StatefulWriter
	PubReader   *endpoint.StatefulReader
	SubWriter   *endpoint.StatefulWriter
	SubReader   *endpoint.StatefulReader
	TopicWriter *endpoint.StatefulWriter
	TopicReader *endpoint.StatefulReader

	log *logging.Logger

	mu            sync.Mutex
	localWriters  map[ddsid.GUID]localEndpoint
	localReaders  map[ddsid.GUID]localEndpoint
	remoteWriters map[ddsid.GUID]DiscoveredWriterData
	remoteReaders map[ddsid.GUID]DiscoveredReaderData
	remoteTopics  map[string]DiscoveredTopicData
	ignoredPubs   map[ddsid.GUID]bool
	ignoredSubs   map[ddsid.GUID]bool

	onPublicationMatched    func(localReader, remoteWriter ddsid.GUID)
	onPublicationUnmatched  func(localReader, remoteWriter ddsid.GUID)
	onSubscriptionMatched   func(localWriter, remoteReader ddsid.GUID)
	onSubscriptionUnmatched func(localWriter, remoteReader ddsid.GUID)
}

// NewSEDPAgent constructs a SEDPAgent with its three stateful writer/reader
// pairs on the well-known SEDP entities.
func NewSEDPAgent(prefix ddsid.GuidPrefix, log *logging.Logger) *SEDPAgent {
	g := func(e ddsid.EntityId) ddsid.GUID { return ddsid.GUID{Prefix: prefix, Entity: e} }
	return &SEDPAgent{
		GuidPrefix:    prefix,
		PubWriter:     endpoint.NewStatefulWriter(g(ddsid.EntityIdSEDPPubWriter), true),
		PubReader:     endpoint.NewStatefulReader(g(ddsid.EntityIdSEDPPubReader), true),
		SubWriter:     endpoint.NewStatefulWriter(g(ddsid.EntityIdSEDPSubWriter), true),
		SubReader:     endpoint.NewStatefulReader(g(ddsid.EntityIdSEDPSubReader), true),
		TopicWriter:   endpoint.NewStatefulWriter(g(ddsid.EntityIdSEDPTopicWriter), true),
		TopicReader:   endpoint.NewStatefulReader(g(ddsid.EntityIdSEDPTopicReader), true),
		log:           log,
		localWriters:  make(map[ddsid.GUID]localEndpoint),
		localReaders:  make(map[ddsid.GUID]localEndpoint),
		remoteWriters: make(map[ddsid.GUID]DiscoveredWriterData),
		remoteReaders: make(map[ddsid.GUID]DiscoveredReaderData),
		remoteTopics:  make(map[string]DiscoveredTopicData),
		ignoredPubs:   make(map[ddsid.GUID]bool),
		ignoredSubs:   make(map[ddsid.GUID]bool),
	}
}

// OnPublicationMatched/OnPublicationUnmatched/OnSubscriptionMatched/
// OnSubscriptionUnmatched register the matched-status callbacks of spec.md
// section 4.7's "fire matched-publication/matched-subscription status
// changes" step.
func (a *SEDPAgent) OnPublicationMatched(fn func(localReader, remoteWriter ddsid.GUID)) {
	a.onPublicationMatched = fn
}
func (a *SEDPAgent) OnPublicationUnmatched(fn func(localReader, remoteWriter ddsid.GUID)) {
	a.onPublicationUnmatched = fn
}
func (a *SEDPAgent) OnSubscriptionMatched(fn func(localWriter, remoteReader ddsid.GUID)) {
	a.onSubscriptionMatched = fn
}
func (a *SEDPAgent) OnSubscriptionUnmatched(fn func(localWriter, remoteReader ddsid.GUID)) {
	a.onSubscriptionUnmatched = fn
}

// PublishWriter announces a local writer's record and matches it against
// every already-discovered remote reader.
func (a *SEDPAgent) PublishWriter(d DiscoveredWriterData) {
	a.mu.Lock()
	a.localWriters[d.EndpointGUID] = localEndpoint{guid: d.EndpointGUID, topic: d.TopicName, typ: d.TypeName, qos: d.QoS}
	remotes := make([]DiscoveredReaderData, 0, len(a.remoteReaders))
	for guid, r := range a.remoteReaders {
		if !a.ignoredSubs[guid] {
			remotes = append(remotes, r)
		}
	}
	a.mu.Unlock()

	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, d.toParameterList())
	a.PubWriter.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(d.EndpointGUID), w.Bytes(), nil, ddsid.DurationZero)

	for _, r := range remotes {
		a.tryMatch(d, r)
	}
}

// PublishReader announces a local reader's record and matches it against
// every already-discovered remote writer.
func (a *SEDPAgent) PublishReader(d DiscoveredReaderData) {
	a.mu.Lock()
	a.localReaders[d.EndpointGUID] = localEndpoint{guid: d.EndpointGUID, topic: d.TopicName, typ: d.TypeName, qos: d.QoS}
	remotes := make([]DiscoveredWriterData, 0, len(a.remoteWriters))
	for guid, w := range a.remoteWriters {
		if !a.ignoredPubs[guid] {
			remotes = append(remotes, w)
		}
	}
	a.mu.Unlock()

	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, d.toParameterList())
	a.SubWriter.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(d.EndpointGUID), w.Bytes(), nil, ddsid.DurationZero)

	for _, wr := range remotes {
		a.tryMatch(wr, d)
	}
}

// PublishTopic announces a local DiscoveredTopicData record.
func (a *SEDPAgent) PublishTopic(d DiscoveredTopicData) {
	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, d.toParameterList())
	a.TopicWriter.WriteWTimestamp(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(ddsid.GUID{}), w.Bytes(), nil, ddsid.DurationZero)
}

// tryMatch runs the QoS matcher between a writer and reader sharing topic
// and type name and fires the matched callbacks on compatibility, per
// spec.md section 4.8.
func (a *SEDPAgent) tryMatch(w DiscoveredWriterData, r DiscoveredReaderData) {
	if w.TopicName != r.TopicName || w.TypeName != r.TypeName {
		return
	}
	incompatible := qos.Match(
		qos.Endpoint{TopicName: w.TopicName, TypeName: w.TypeName, QoS: w.QoS},
		qos.Endpoint{TopicName: r.TopicName, TypeName: r.TypeName, QoS: r.QoS},
	)
	if len(incompatible) > 0 {
		return
	}
	if a.onSubscriptionMatched != nil {
		a.onSubscriptionMatched(w.EndpointGUID, r.EndpointGUID)
	}
	if a.onPublicationMatched != nil {
		a.onPublicationMatched(r.EndpointGUID, w.EndpointGUID)
	}
}

// HandlePublicationData ingests one SEDP publications Data submessage.
func (a *SEDPAgent) HandlePublicationData(writer ddsid.GUID, d rtpsmsg.Data) {
	if !a.PubReader.OnData(writer, d, ddsid.InstanceHandleFromGUID(writer), ddsid.DurationZero, false) {
		return
	}
	params, err := decodeSedpPayload(d.SerializedPayload)
	if err != nil {
		return
	}
	dw, ok := discoveredWriterDataFromParameterList(params)
	if !ok {
		return
	}
	a.mu.Lock()
	a.remoteWriters[dw.EndpointGUID] = dw
	ignored := a.ignoredPubs[dw.EndpointGUID]
	locals := make([]localEndpoint, 0, len(a.localReaders))
	for _, le := range a.localReaders {
		locals = append(locals, le)
	}
	a.mu.Unlock()
	if ignored {
		return
	}
	for _, le := range locals {
		a.tryMatch(dw, DiscoveredReaderData{EndpointGUID: le.guid, TopicName: le.topic, TypeName: le.typ, QoS: le.qos})
	}
}

// HandleSubscriptionData ingests one SEDP subscriptions Data submessage.
func (a *SEDPAgent) HandleSubscriptionData(writer ddsid.GUID, d rtpsmsg.Data) {
	if !a.SubReader.OnData(writer, d, ddsid.InstanceHandleFromGUID(writer), ddsid.DurationZero, false) {
		return
	}
	params, err := decodeSedpPayload(d.SerializedPayload)
	if err != nil {
		return
	}
	dr, ok := discoveredReaderDataFromParameterList(params)
	if !ok {
		return
	}
	a.mu.Lock()
	a.remoteReaders[dr.EndpointGUID] = dr
	ignored := a.ignoredSubs[dr.EndpointGUID]
	locals := make([]localEndpoint, 0, len(a.localWriters))
	for _, le := range a.localWriters {
		locals = append(locals, le)
	}
	a.mu.Unlock()
	if ignored {
		return
	}
	for _, le := range locals {
		a.tryMatch(DiscoveredWriterData{EndpointGUID: le.guid, TopicName: le.topic, TypeName: le.typ, QoS: le.qos}, dr)
	}
}

// RemoveParticipant drops every discovered publication/subscription whose
// GuidPrefix matches a participant whose SPDP lease expired, firing the
// unmatched callbacks for each, per spec.md section 4.7's lease-timeout step.
func (a *SEDPAgent) RemoveParticipant(prefix ddsid.GuidPrefix) {
	a.mu.Lock()
	var droppedWriters []DiscoveredWriterData
	for guid, w := range a.remoteWriters {
		if guid.Prefix == prefix {
			droppedWriters = append(droppedWriters, w)
			delete(a.remoteWriters, guid)
		}
	}
	var droppedReaders []DiscoveredReaderData
	for guid, r := range a.remoteReaders {
		if guid.Prefix == prefix {
			droppedReaders = append(droppedReaders, r)
			delete(a.remoteReaders, guid)
		}
	}
	localReaders := make([]localEndpoint, 0, len(a.localReaders))
	localWriters := make([]localEndpoint, 0, len(a.localWriters))
	for _, le := range a.localReaders {
		localReaders = append(localReaders, le)
	}
	for _, le := range a.localWriters {
		localWriters = append(localWriters, le)
	}
	a.mu.Unlock()

	for _, w := range droppedWriters {
		for _, le := range localReaders {
			if le.topic == w.TopicName && le.typ == w.TypeName && a.onPublicationUnmatched != nil {
				a.onPublicationUnmatched(le.guid, w.EndpointGUID)
			}
		}
	}
	for _, r := range droppedReaders {
		for _, le := range localWriters {
			if le.topic == r.TopicName && le.typ == r.TypeName && a.onSubscriptionUnmatched != nil {
				a.onSubscriptionUnmatched(le.guid, r.EndpointGUID)
			}
		}
	}
}

// IgnorePublication/IgnoreSubscription exclude a remote endpoint from
// matching, per the supplemented ignore_* operations of SPEC_FULL.md.
func (a *SEDPAgent) IgnorePublication(guid ddsid.GUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ignoredPubs[guid] = true
}

func (a *SEDPAgent) IgnoreSubscription(guid ddsid.GUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ignoredSubs[guid] = true
}

// DiscoveredPublications/DiscoveredSubscriptions back get_discovered_*.
func (a *SEDPAgent) DiscoveredPublications() []DiscoveredWriterData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DiscoveredWriterData, 0, len(a.remoteWriters))
	for guid, w := range a.remoteWriters {
		if !a.ignoredPubs[guid] {
			out = append(out, w)
		}
	}
	return out
}

// recordTopic stores a topic record seen on the SEDP topics channel, for
// get_discovered_topics.
func (a *SEDPAgent) recordTopic(d DiscoveredTopicData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remoteTopics[d.TopicName] = d
}

// DiscoveredTopics backs get_discovered_topics / get_discovered_topic_data.
func (a *SEDPAgent) DiscoveredTopics() []DiscoveredTopicData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DiscoveredTopicData, 0, len(a.remoteTopics))
	for _, t := range a.remoteTopics {
		out = append(out, t)
	}
	return out
}

func (a *SEDPAgent) DiscoveredSubscriptions() []DiscoveredReaderData {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]DiscoveredReaderData, 0, len(a.remoteReaders))
	for guid, r := range a.remoteReaders {
		if !a.ignoredSubs[guid] {
			out = append(out, r)
		}
	}
	return out
}

func decodeSedpPayload(payload []byte) (cdr.ParameterList, error) {
	r, _, err := cdr.NewReader(payload)
	if err != nil {
		return nil, err
	}
	return cdr.ReadParameterList(r)
}

// ProduceMessages runs one tick of all three SEDP writer state machines.
func (a *SEDPAgent) ProduceMessages(now time.Time) []rtpsmsg.Batch {
	var out []rtpsmsg.Batch
	out = append(out, a.PubWriter.ProduceMessages(now)...)
	out = append(out, a.SubWriter.ProduceMessages(now)...)
	out = append(out, a.TopicWriter.ProduceMessages(now)...)
	return out
}

// ProduceAckNacks runs one tick of all three SEDP reader state machines.
func (a *SEDPAgent) ProduceAckNacks(now time.Time) []rtpsmsg.Batch {
	var out []rtpsmsg.Batch
	out = append(out, a.PubReader.ProduceAckNacks(now)...)
	out = append(out, a.SubReader.ProduceAckNacks(now)...)
	out = append(out, a.TopicReader.ProduceAckNacks(now)...)
	return out
}

// Flush sends every batch from ProduceMessages/ProduceAckNacks through
// sender/transport.
func (a *SEDPAgent) Flush(ctx context.Context, sender *rtpsmsg.Sender, transport rtpsmsg.Transport, now time.Time) {
	for _, b := range append(a.ProduceMessages(now), a.ProduceAckNacks(now)...) {
		if err := sender.Send(ctx, transport, b); err != nil {
			a.log.Warn("sedp: send failed", logging.Error(err))
		}
	}
}
