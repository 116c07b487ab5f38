// Package participant implements the Participant core of spec.md section 9:
// a DomainParticipant owning its endpoints and discovery database, driven by
// a periodic tick that wires HistoryCache, endpoint state machines,
// discovery, and the transport together, plus the process-wide
// DomainParticipantFactory singleton.
package participant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ddscore/internal/config"
	"ddscore/internal/ddserror"
	"ddscore/internal/ddsid"
	"ddscore/internal/discovery"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/qos"
	"ddscore/internal/rtpsmsg"
	"ddscore/internal/runtime"
	"ddscore/internal/transport"
	"ddscore/internal/typesupport"
)

// Participant is one DomainParticipant: the logical tree root of spec.md
// section 9 ("participant→publisher→writer holds strong downward
// references"). It owns every Publisher/Subscriber created under it, the
// discovery database, and the endpoints matched against remote participants.
type Participant struct {
	GUID      ddsid.GUID
	DomainID  int
	DomainTag string
	Config    *config.Config

	Transport   transport.Transport
	Runtime     runtime.Runtime
	Log         *logging.Logger
	TypeSupport *typesupport.Registry
	Discovery   *discovery.Discovery

	sender   *rtpsmsg.Sender
	receiver rtpsmsg.Receiver
	health   *TickMonitor

	mu           sync.Mutex
	enabled      bool
	deleted      bool
	nextEntity   uint32
	publishers   map[ddsid.InstanceHandle]*Publisher
	subscribers  map[ddsid.InstanceHandle]*Subscriber
	statefulW    map[ddsid.EntityId]*endpoint.StatefulWriter
	statefulR    map[ddsid.EntityId]*endpoint.StatefulReader
	statelessW   map[ddsid.EntityId]*endpoint.StatelessWriter
	statelessR   map[ddsid.EntityId]*endpoint.StatelessReader
	lastAnnounce time.Time

	fragMu   sync.Mutex
	assembly map[ddsid.GUID]map[ddsid.SequenceNumber]*fragAssembly
}

// newParticipant wires up one domain participant's builtin discovery agents
// and its outbound RTPS message sender/receiver, per spec.md section 4.7's
// "on participant creation" step. Called only by DomainParticipantFactory.
func newParticipant(prefix ddsid.GuidPrefix, cfg *config.Config, tr transport.Transport, rt runtime.Runtime, log *logging.Logger, ts *typesupport.Registry) *Participant {
	p := &Participant{
		GUID:        ddsid.ParticipantGUID(prefix),
		DomainID:    cfg.DomainID,
		DomainTag:   cfg.DomainTag,
		Config:      cfg,
		Transport:   tr,
		Runtime:     rt,
		Log:         log,
		TypeSupport: ts,
		Discovery:   discovery.New(prefix, cfg.DomainID, cfg.DomainTag, cfg.LeaseGrace, rt, log),
		sender:      rtpsmsg.NewSender(rtpsmsg.Header{Version: ddsid.ProtocolVersion{Major: 2, Minor: 4}, GuidPrefix: prefix}, cfg.MaxMessageSize),
		health:      NewTickMonitor(),
		enabled:     true,
		publishers:  make(map[ddsid.InstanceHandle]*Publisher),
		subscribers: make(map[ddsid.InstanceHandle]*Subscriber),
		statefulW:   make(map[ddsid.EntityId]*endpoint.StatefulWriter),
		statefulR:   make(map[ddsid.EntityId]*endpoint.StatefulReader),
		statelessW:  make(map[ddsid.EntityId]*endpoint.StatelessWriter),
		statelessR:  make(map[ddsid.EntityId]*endpoint.StatelessReader),
		assembly:    make(map[ddsid.GUID]map[ddsid.SequenceNumber]*fragAssembly),
	}
	for _, loc := range tr.LocalLocators() {
		p.Discovery.SPDP.Writer.ReaderLocatorAdd(loc)
	}
	return p
}

// nextEntityId mints a strictly increasing user-defined entity key, tagged
// with kind, per spec.md section 3's "3-byte key + 1-byte kind" shape.
func (p *Participant) nextEntityId(kind ddsid.EntityKind) ddsid.EntityId {
	p.nextEntity++
	n := p.nextEntity
	return ddsid.EntityId{byte(n >> 16), byte(n >> 8), byte(n), byte(kind)}
}

// checkAlive returns AlreadyDeleted if this participant was already deleted,
// per spec.md section 7.
func (p *Participant) checkAlive() error {
	if p.deleted {
		return ddserror.AlreadyDeleted("participant has been deleted")
	}
	return nil
}

// CreatePublisher creates a new Publisher owned by this participant.
func (p *Participant) CreatePublisher(qosSet qos.Set) (*Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkAlive(); err != nil {
		return nil, err
	}
	if err := qosSet.Validate(); err != nil {
		return nil, ddserror.InconsistentPolicy(err.Error())
	}
	handle := ddsid.InstanceHandleFromGUID(ddsid.GUID{Prefix: p.GUID.Prefix, Entity: p.nextEntityId(ddsid.EntityKindUserDefinedUnknown)})
	pub := &Publisher{participant: p, handle: handle, qos: qosSet, writers: make(map[ddsid.InstanceHandle]*DataWriter)}
	p.publishers[handle] = pub
	return pub, nil
}

// DeletePublisher removes pub, failing with PreconditionNotMet if it still
// owns live writers, per spec.md section 9's "strong downward reference"
// deletion rule.
func (p *Participant) DeletePublisher(pub *Publisher) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.publishers[pub.handle]; !ok {
		return ddserror.AlreadyDeleted("publisher not owned by this participant")
	}
	if len(pub.writers) > 0 {
		return ddserror.PreconditionNotMet("publisher still owns data writers")
	}
	delete(p.publishers, pub.handle)
	return nil
}

// CreateSubscriber creates a new Subscriber owned by this participant.
func (p *Participant) CreateSubscriber(qosSet qos.Set) (*Subscriber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkAlive(); err != nil {
		return nil, err
	}
	if err := qosSet.Validate(); err != nil {
		return nil, ddserror.InconsistentPolicy(err.Error())
	}
	handle := ddsid.InstanceHandleFromGUID(ddsid.GUID{Prefix: p.GUID.Prefix, Entity: p.nextEntityId(ddsid.EntityKindUserDefinedUnknown)})
	sub := &Subscriber{participant: p, handle: handle, qos: qosSet, readers: make(map[ddsid.InstanceHandle]*DataReader)}
	p.subscribers[handle] = sub
	return sub, nil
}

// DeleteSubscriber removes sub, failing with PreconditionNotMet if it still
// owns live readers.
func (p *Participant) DeleteSubscriber(sub *Subscriber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[sub.handle]; !ok {
		return ddserror.AlreadyDeleted("subscriber not owned by this participant")
	}
	if len(sub.readers) > 0 {
		return ddserror.PreconditionNotMet("subscriber still owns data readers")
	}
	delete(p.subscribers, sub.handle)
	return nil
}

// FindTopic implements the supplemented find_topic(timeout) operation.
func (p *Participant) FindTopic(ctx context.Context, name string, timeout time.Duration) (discovery.DiscoveredTopicData, error) {
	data, ok := p.Discovery.FindTopic(ctx, name, timeout)
	if !ok {
		return discovery.DiscoveredTopicData{}, ddserror.Timeout(fmt.Sprintf("find_topic(%q)", name))
	}
	return data, nil
}

// GetDiscoveredParticipants, GetDiscoveredTopics, GetDiscoveredPublications,
// GetDiscoveredSubscriptions back the supplemented get_discovered_*
// introspection queries, used directly by S5 and by internal/introspect.
func (p *Participant) GetDiscoveredParticipants() []discovery.ParticipantProxy {
	return p.Discovery.GetDiscoveredParticipants()
}
func (p *Participant) GetDiscoveredTopics() []discovery.DiscoveredTopicData {
	return p.Discovery.GetDiscoveredTopics()
}
func (p *Participant) GetDiscoveredPublications() []discovery.DiscoveredWriterData {
	return p.Discovery.GetDiscoveredPublications()
}
func (p *Participant) GetDiscoveredSubscriptions() []discovery.DiscoveredReaderData {
	return p.Discovery.GetDiscoveredSubscriptions()
}

// IgnoreParticipant, IgnoreTopic, IgnorePublication, IgnoreSubscription
// expose the discovery deny-lists at the participant level (IgnoreTopic
// only drops pending FindTopic waiters for the name).
func (p *Participant) IgnoreParticipant(prefix ddsid.GuidPrefix) {
	p.Discovery.IgnoreParticipant(prefix)
}
func (p *Participant) IgnoreTopic(name string)            { p.Discovery.IgnoreTopic(name) }
func (p *Participant) IgnorePublication(guid ddsid.GUID)  { p.Discovery.IgnorePublication(guid) }
func (p *Participant) IgnoreSubscription(guid ddsid.GUID) { p.Discovery.IgnoreSubscription(guid) }

// CurrentTime returns the participant's Runtime-provided notion of now,
// backing the façade's get_current_time participant operation.
func (p *Participant) CurrentTime() time.Time { return p.Runtime.Now() }

// Health returns a snapshot of this participant's tick-duration metrics.
func (p *Participant) Health() TickMetricsSnapshot { return p.health.Snapshot() }

// delete marks the participant deleted; DomainParticipantFactory enforces
// that every publisher/subscriber was deleted first.
func (p *Participant) delete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = true
	p.enabled = false
}

func (p *Participant) hasLiveEntities() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.publishers) > 0 || len(p.subscribers) > 0
}

// localParticipantProxy builds the ParticipantProxy announced over SPDP,
// per spec.md section 4.7's participant announcement.
func (p *Participant) localParticipantProxy() discovery.ParticipantProxy {
	locators := p.Transport.LocalLocators()
	return discovery.ParticipantProxy{
		DomainID:                   p.DomainID,
		DomainTag:                  p.DomainTag,
		ProtocolVersion:            ddsid.ProtocolVersion24,
		GuidPrefix:                 p.GUID.Prefix,
		VendorId:                   ddsid.VendorIdThis,
		MetatrafficUnicastLocators: locators,
		DefaultUnicastLocators:     locators,
		LeaseDuration:              ddsid.Duration{Sec: int32(p.Config.SPDPLeaseDuration / time.Second)},
	}
}
