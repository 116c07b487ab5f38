package facade

import (
	"context"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/discovery"
	"ddscore/internal/participant"
	"ddscore/internal/qos"
)

// CreatePublisherRequest implements the participant family's
// create_publisher operation of spec.md section 6.
type CreatePublisherRequest struct {
	QoS   qos.Set
	Reply chan CreatePublisherResult
}

type CreatePublisherResult struct {
	Publisher *participant.Publisher
	Err       error
}

func (r CreatePublisherRequest) execute(p *participant.Participant) {
	pub, err := p.CreatePublisher(r.QoS)
	r.Reply <- CreatePublisherResult{Publisher: pub, Err: err}
}

// DeletePublisherRequest implements delete_publisher.
type DeletePublisherRequest struct {
	Publisher *participant.Publisher
	Reply     chan error
}

func (r DeletePublisherRequest) execute(p *participant.Participant) {
	r.Reply <- p.DeletePublisher(r.Publisher)
}

// CreateSubscriberRequest implements create_subscriber.
type CreateSubscriberRequest struct {
	QoS   qos.Set
	Reply chan CreateSubscriberResult
}

type CreateSubscriberResult struct {
	Subscriber *participant.Subscriber
	Err        error
}

func (r CreateSubscriberRequest) execute(p *participant.Participant) {
	sub, err := p.CreateSubscriber(r.QoS)
	r.Reply <- CreateSubscriberResult{Subscriber: sub, Err: err}
}

// DeleteSubscriberRequest implements delete_subscriber.
type DeleteSubscriberRequest struct {
	Subscriber *participant.Subscriber
	Reply      chan error
}

func (r DeleteSubscriberRequest) execute(p *participant.Participant) {
	r.Reply <- p.DeleteSubscriber(r.Subscriber)
}

// GetCurrentTimeRequest implements get_current_time.
type GetCurrentTimeRequest struct {
	Reply chan time.Time
}

func (r GetCurrentTimeRequest) execute(p *participant.Participant) {
	r.Reply <- p.CurrentTime()
}

// FindTopicRequest implements find_topic(timeout).
type FindTopicRequest struct {
	Ctx     context.Context
	Name    string
	Timeout time.Duration
	Reply   chan FindTopicResult
}

type FindTopicResult struct {
	Data discovery.DiscoveredTopicData
	Err  error
}

func (r FindTopicRequest) execute(p *participant.Participant) {
	data, err := p.FindTopic(r.Ctx, r.Name, r.Timeout)
	r.Reply <- FindTopicResult{Data: data, Err: err}
}

// GetDiscoveredParticipantsRequest, GetDiscoveredTopicsRequest,
// GetDiscoveredPublicationsRequest, GetDiscoveredSubscriptionsRequest back
// the get_discovered_* discovery queries.
type GetDiscoveredParticipantsRequest struct {
	Reply chan []discovery.ParticipantProxy
}

func (r GetDiscoveredParticipantsRequest) execute(p *participant.Participant) {
	r.Reply <- p.GetDiscoveredParticipants()
}

type GetDiscoveredTopicsRequest struct {
	Reply chan []discovery.DiscoveredTopicData
}

func (r GetDiscoveredTopicsRequest) execute(p *participant.Participant) {
	r.Reply <- p.GetDiscoveredTopics()
}

type GetDiscoveredPublicationsRequest struct {
	Reply chan []discovery.DiscoveredWriterData
}

func (r GetDiscoveredPublicationsRequest) execute(p *participant.Participant) {
	r.Reply <- p.GetDiscoveredPublications()
}

type GetDiscoveredSubscriptionsRequest struct {
	Reply chan []discovery.DiscoveredReaderData
}

func (r GetDiscoveredSubscriptionsRequest) execute(p *participant.Participant) {
	r.Reply <- p.GetDiscoveredSubscriptions()
}

// IgnoreParticipantRequest, IgnoreTopicRequest, IgnorePublicationRequest,
// IgnoreSubscriptionRequest back the ignore_* deny-list operations. None of
// them unmatches already-matched endpoints; ignore_topic only drops pending
// find_topic waiters for the name and keeps no deny list of its own.
type IgnoreParticipantRequest struct {
	Prefix ddsid.GuidPrefix
	Reply  chan struct{}
}

func (r IgnoreParticipantRequest) execute(p *participant.Participant) {
	p.IgnoreParticipant(r.Prefix)
	r.Reply <- struct{}{}
}

type IgnoreTopicRequest struct {
	Name  string
	Reply chan struct{}
}

func (r IgnoreTopicRequest) execute(p *participant.Participant) {
	p.IgnoreTopic(r.Name)
	r.Reply <- struct{}{}
}

type IgnorePublicationRequest struct {
	GUID  ddsid.GUID
	Reply chan struct{}
}

func (r IgnorePublicationRequest) execute(p *participant.Participant) {
	p.IgnorePublication(r.GUID)
	r.Reply <- struct{}{}
}

type IgnoreSubscriptionRequest struct {
	GUID  ddsid.GUID
	Reply chan struct{}
}

func (r IgnoreSubscriptionRequest) execute(p *participant.Participant) {
	p.IgnoreSubscription(r.GUID)
	r.Reply <- struct{}{}
}
