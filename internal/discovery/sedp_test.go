package discovery

import (
	"testing"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/qos"
	"ddscore/internal/rtpsmsg"
)

func endpointGUID(prefix byte, entity ddsid.EntityId) ddsid.GUID {
	var p ddsid.GuidPrefix
	p[0] = prefix
	return ddsid.GUID{Prefix: p, Entity: entity}
}

func sedpData(t *testing.T, params cdr.ParameterList) rtpsmsg.Data {
	t.Helper()
	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, params)
	return rtpsmsg.Data{SerializedPayload: w.Bytes()}
}

func TestDiscoveredWriterDataRoundTrip(t *testing.T) {
	want := DiscoveredWriterData{
		EndpointGUID: endpointGUID(1, ddsid.EntityId{0, 0, 2, 2}),
		TopicName:    "temperature",
		TypeName:     "Sensor::Reading",
		QoS:          qos.Default(),
	}
	got, ok := discoveredWriterDataFromParameterList(want.toParameterList())
	if !ok {
		t.Fatal("round trip failed to decode")
	}
	if got.EndpointGUID != want.EndpointGUID || got.TopicName != want.TopicName || got.TypeName != want.TypeName {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSEDPPublishWriterThenReaderMatches(t *testing.T) {
	log := logging.NewTestLogger()
	agent := NewSEDPAgent(ddsid.GuidPrefix{1}, log)

	var matched, unmatched []ddsid.GUID
	agent.OnPublicationMatched(func(_, remoteWriter ddsid.GUID) { matched = append(matched, remoteWriter) })
	agent.OnPublicationUnmatched(func(_, remoteWriter ddsid.GUID) { unmatched = append(unmatched, remoteWriter) })

	w := DiscoveredWriterData{
		EndpointGUID: endpointGUID(9, ddsid.EntityId{0, 0, 2, 2}),
		TopicName:    "temperature",
		TypeName:     "Sensor::Reading",
		QoS:          qos.Default(),
	}
	remoteSedpWriter := endpointGUID(9, ddsid.EntityIdSEDPPubWriter)
	agent.PubReader.MatchedWriterAdd(endpoint.NewWriterProxy(remoteSedpWriter))
	agent.HandlePublicationData(remoteSedpWriter, sedpData(t, w.toParameterList()))
	if len(matched) != 0 {
		t.Fatalf("expected no match before any reader published, got %v", matched)
	}

	r := DiscoveredReaderData{
		EndpointGUID: endpointGUID(1, ddsid.EntityId{0, 0, 4, 7}),
		TopicName:    "temperature",
		TypeName:     "Sensor::Reading",
		QoS:          qos.Default(),
	}
	agent.PublishReader(r)
	if len(matched) != 1 || matched[0] != w.EndpointGUID {
		t.Fatalf("expected publish-reader to match existing writer, got %v", matched)
	}

	agent.RemoveParticipant(w.EndpointGUID.Prefix)
	if len(unmatched) != 1 || unmatched[0] != w.EndpointGUID {
		t.Fatalf("expected unmatch after participant removal, got %v", unmatched)
	}
}

func TestSEDPHandlePublicationDataMatchesLocalReader(t *testing.T) {
	log := logging.NewTestLogger()
	agent := NewSEDPAgent(ddsid.GuidPrefix{1}, log)

	r := DiscoveredReaderData{
		EndpointGUID: endpointGUID(1, ddsid.EntityId{0, 0, 4, 7}),
		TopicName:    "odometry",
		TypeName:     "Nav::Odom",
		QoS:          qos.Default(),
	}
	agent.PublishReader(r)

	var matched []ddsid.GUID
	agent.OnPublicationMatched(func(_, remoteWriter ddsid.GUID) { matched = append(matched, remoteWriter) })

	remoteSedpWriter := endpointGUID(9, ddsid.EntityIdSEDPPubWriter)
	agent.PubReader.MatchedWriterAdd(endpoint.NewWriterProxy(remoteSedpWriter))

	remote := DiscoveredWriterData{
		EndpointGUID: endpointGUID(9, ddsid.EntityId{0, 0, 2, 2}),
		TopicName:    "odometry",
		TypeName:     "Nav::Odom",
		QoS:          qos.Default(),
	}
	data := sedpData(t, remote.toParameterList())
	agent.HandlePublicationData(remoteSedpWriter, data)

	if len(matched) != 1 || matched[0] != remote.EndpointGUID {
		t.Fatalf("expected remote writer to match local reader, got %v", matched)
	}
	pubs := agent.DiscoveredPublications()
	if len(pubs) != 1 || pubs[0].EndpointGUID != remote.EndpointGUID {
		t.Fatalf("expected discovered publication, got %+v", pubs)
	}
}

func TestSEDPIncompatibleReliabilityDoesNotMatch(t *testing.T) {
	log := logging.NewTestLogger()
	agent := NewSEDPAgent(ddsid.GuidPrefix{1}, log)

	bestEffortQoS := qos.Default()
	bestEffortQoS.Reliability.Kind = qos.ReliabilityBestEffort
	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.ReliabilityReliable

	w := DiscoveredWriterData{
		EndpointGUID: endpointGUID(2, ddsid.EntityId{0, 0, 2, 2}),
		TopicName:    "status",
		TypeName:     "Health::Status",
		QoS:          bestEffortQoS,
	}
	remoteSedpWriter := endpointGUID(2, ddsid.EntityIdSEDPPubWriter)
	agent.PubReader.MatchedWriterAdd(endpoint.NewWriterProxy(remoteSedpWriter))
	agent.HandlePublicationData(remoteSedpWriter, sedpData(t, w.toParameterList()))

	var matched int
	agent.OnPublicationMatched(func(ddsid.GUID, ddsid.GUID) { matched++ })

	r := DiscoveredReaderData{
		EndpointGUID: endpointGUID(1, ddsid.EntityId{0, 0, 4, 7}),
		TopicName:    "status",
		TypeName:     "Health::Status",
		QoS:          reliableQoS,
	}
	agent.PublishReader(r)

	if matched != 0 {
		t.Fatalf("expected best-effort writer / reliable reader to stay unmatched, matched=%d", matched)
	}
}

func TestSEDPIgnorePublicationSuppressesMatch(t *testing.T) {
	log := logging.NewTestLogger()
	agent := NewSEDPAgent(ddsid.GuidPrefix{1}, log)

	remoteGUID := endpointGUID(9, ddsid.EntityId{0, 0, 2, 2})
	agent.IgnorePublication(remoteGUID)

	remoteSedpWriter := endpointGUID(9, ddsid.EntityIdSEDPPubWriter)
	agent.PubReader.MatchedWriterAdd(endpoint.NewWriterProxy(remoteSedpWriter))

	r := DiscoveredReaderData{
		EndpointGUID: endpointGUID(1, ddsid.EntityId{0, 0, 4, 7}),
		TopicName:    "status",
		TypeName:     "Health::Status",
		QoS:          qos.Default(),
	}
	agent.PublishReader(r)

	var matched int
	agent.OnPublicationMatched(func(ddsid.GUID, ddsid.GUID) { matched++ })

	remote := DiscoveredWriterData{
		EndpointGUID: remoteGUID,
		TopicName:    "status",
		TypeName:     "Health::Status",
		QoS:          qos.Default(),
	}
	data := sedpData(t, remote.toParameterList())
	agent.HandlePublicationData(remoteSedpWriter, data)

	if matched != 0 {
		t.Fatalf("expected ignored publication to stay unmatched, matched=%d", matched)
	}
	if pubs := agent.DiscoveredPublications(); len(pubs) != 0 {
		t.Fatalf("expected ignored publication to be excluded from queries, got %+v", pubs)
	}
}
