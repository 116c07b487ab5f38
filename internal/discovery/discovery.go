package discovery

import (
	"context"
	"sync"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/qos"
	"ddscore/internal/rtpsmsg"
	"ddscore/internal/runtime"
)

// Discovery ties the SPDP participant agent to the SEDP endpoint agent: on a
// newly discovered participant it wires up SEDP reader/writer proxies for
// the builtin endpoints the remote advertised; on a lost participant it
// tears the proxies (and every endpoint discovered through them) down, per
// spec.md section 4.7.
type Discovery struct {
	SPDP *SPDPAgent
	SEDP *SEDPAgent

	mu          sync.Mutex
	findWaiters map[string][]chan DiscoveredTopicData
}

// New constructs a Discovery with a matched SPDP/SEDP pair for one domain
// participant.
func New(prefix ddsid.GuidPrefix, domainID int, domainTag string, leaseGrace time.Duration, rt runtime.Runtime, log *logging.Logger) *Discovery {
	d := &Discovery{
		SPDP:        NewSPDPAgent(prefix, domainID, domainTag, leaseGrace, rt, log),
		SEDP:        NewSEDPAgent(prefix, log),
		findWaiters: make(map[string][]chan DiscoveredTopicData),
	}
	d.SPDP.OnDiscovered(d.onParticipantDiscovered)
	d.SPDP.OnLost(d.onParticipantLost)
	return d
}

// onParticipantDiscovered matches SEDP reader/writer proxies for the
// remote's advertised builtin endpoints, per spec.md section 4.7's "for
// each built-in endpoint the remote declared" step.
func (d *Discovery) onParticipantDiscovered(proxy ParticipantProxy) {
	bits := proxy.AvailableBuiltinEndpoints
	locators := proxy.MetatrafficUnicastLocators
	if len(locators) == 0 {
		locators = proxy.MetatrafficMulticastLocators
	}

	if bits&BuiltinPublicationsAnnouncer != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPPubWriter}
		d.SEDP.PubReader.MatchedWriterAdd(newWriterProxy(remote, locators))
	}
	if bits&BuiltinPublicationsDetector != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPPubReader}
		d.SEDP.PubWriter.MatchedReaderAdd(newReaderProxy(remote, locators))
	}
	if bits&BuiltinSubscriptionsAnnouncer != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPSubWriter}
		d.SEDP.SubReader.MatchedWriterAdd(newWriterProxy(remote, locators))
	}
	if bits&BuiltinSubscriptionsDetector != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPSubReader}
		d.SEDP.SubWriter.MatchedReaderAdd(newReaderProxy(remote, locators))
	}
	if bits&BuiltinTopicsAnnouncer != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPTopicWriter}
		d.SEDP.TopicReader.MatchedWriterAdd(newWriterProxy(remote, locators))
	}
	if bits&BuiltinTopicsDetector != 0 {
		remote := ddsid.GUID{Prefix: proxy.GuidPrefix, Entity: ddsid.EntityIdSEDPTopicReader}
		d.SEDP.TopicWriter.MatchedReaderAdd(newReaderProxy(remote, locators))
	}
}

// newWriterProxy/newReaderProxy build a matched-remote proxy seeded with the
// remote participant's metatraffic locators, since SEDP's builtin endpoints
// have no per-endpoint locator of their own to discover.
func newWriterProxy(remote ddsid.GUID, locators []ddsid.Locator) *endpoint.WriterProxy {
	p := endpoint.NewWriterProxy(remote)
	p.UnicastLocators = locators
	return p
}

func newReaderProxy(remote ddsid.GUID, locators []ddsid.Locator) *endpoint.ReaderProxy {
	p := endpoint.NewReaderProxy(remote)
	p.UnicastLocators = locators
	return p
}

// onParticipantLost tears down every SEDP proxy and discovered endpoint
// keyed by the lost participant's GuidPrefix, per spec.md section 4.7's
// "on disposed sample or lease timeout" step and scenario S5.
func (d *Discovery) onParticipantLost(prefix ddsid.GuidPrefix) {
	d.SEDP.PubReader.MatchedWriterRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPPubWriter})
	d.SEDP.PubWriter.MatchedReaderRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPPubReader})
	d.SEDP.SubReader.MatchedWriterRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPSubWriter})
	d.SEDP.SubWriter.MatchedReaderRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPSubReader})
	d.SEDP.TopicReader.MatchedWriterRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPTopicWriter})
	d.SEDP.TopicWriter.MatchedReaderRemove(ddsid.GUID{Prefix: prefix, Entity: ddsid.EntityIdSEDPTopicReader})
	d.SEDP.RemoveParticipant(prefix)
}

// FindTopic implements the supplemented find_topic(timeout) operation of
// SPEC_FULL.md: block until a DiscoveredTopicData for name arrives (via
// HandleTopicData), or the timeout elapses.
func (d *Discovery) FindTopic(ctx context.Context, name string, timeout time.Duration) (DiscoveredTopicData, bool) {
	ch := make(chan DiscoveredTopicData, 1)
	d.mu.Lock()
	d.findWaiters[name] = append(d.findWaiters[name], ch)
	d.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-ch:
		return data, true
	case <-timer.C:
		return DiscoveredTopicData{}, false
	case <-ctx.Done():
		return DiscoveredTopicData{}, false
	}
}

// HandleTopicData ingests one SEDP topics Data submessage and wakes any
// FindTopic waiters for the topic it names.
func (d *Discovery) HandleTopicData(writer ddsid.GUID, data rtpsmsg.Data) {
	if !d.SEDP.TopicReader.OnData(writer, data, ddsid.InstanceHandleFromGUID(writer), ddsid.DurationZero, false) {
		return
	}
	params, err := decodeSedpPayload(data.SerializedPayload)
	if err != nil {
		return
	}
	topic, ok := discoveredTopicDataFromParameterList(params)
	if !ok {
		return
	}
	d.SEDP.recordTopic(topic)
	d.mu.Lock()
	waiters := d.findWaiters[topic.TopicName]
	delete(d.findWaiters, topic.TopicName)
	d.mu.Unlock()
	for _, ch := range waiters {
		ch <- topic
	}
}

// IgnoreParticipant/IgnoreTopic/IgnorePublication/IgnoreSubscription
// implement SPEC_FULL.md's ignore_* operations.
func (d *Discovery) IgnoreParticipant(prefix ddsid.GuidPrefix) { d.SPDP.IgnoreParticipant(prefix) }
func (d *Discovery) IgnorePublication(guid ddsid.GUID)         { d.SEDP.IgnorePublication(guid) }
func (d *Discovery) IgnoreSubscription(guid ddsid.GUID)        { d.SEDP.IgnoreSubscription(guid) }

// IgnoreTopic drops any FindTopic waiters currently pending for name; a
// coarser-grained knob than SEDP's per-GUID ignores since the spec's topic
// builtin-topic-data carries no single owning GUID.
func (d *Discovery) IgnoreTopic(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.findWaiters, name)
}

// GetDiscoveredParticipants, GetDiscoveredTopics, GetDiscoveredPublications,
// and GetDiscoveredSubscriptions back the supplemented get_discovered_*
// introspection queries of SPEC_FULL.md.
func (d *Discovery) GetDiscoveredParticipants() []ParticipantProxy {
	return d.SPDP.DiscoveredParticipants()
}
func (d *Discovery) GetDiscoveredPublications() []DiscoveredWriterData {
	return d.SEDP.DiscoveredPublications()
}
func (d *Discovery) GetDiscoveredSubscriptions() []DiscoveredReaderData {
	return d.SEDP.DiscoveredSubscriptions()
}
func (d *Discovery) GetDiscoveredTopics() []DiscoveredTopicData { return d.SEDP.DiscoveredTopics() }

// QoSMatch exposes the pure offered/requested compatibility check of
// spec.md section 4.8 to callers outside this package (e.g. the façade's
// set_qos precondition checks).
func QoSMatch(offered, requested qos.Endpoint) []qos.PolicyID { return qos.Match(offered, requested) }
