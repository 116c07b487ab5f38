package discovery

import (
	"context"
	"testing"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/logging"
	"ddscore/internal/qos"
	"ddscore/internal/rtpsmsg"
	"ddscore/internal/runtime"
)

func dataWithSN(sn ddsid.SequenceNumber) rtpsmsg.Data {
	return rtpsmsg.Data{WriterSN: sn, SerializedPayload: []byte{0, 0, 0, 0}}
}

func TestDiscoveryFindTopicSucceeds(t *testing.T) {
	log := logging.NewTestLogger()
	rt := runtime.NewFake(time.Unix(0, 0))
	d := New(ddsid.GuidPrefix{1}, 0, "", time.Second, rt, log)

	done := make(chan struct{})
	var found DiscoveredTopicData
	var ok bool
	go func() {
		found, ok = d.FindTopic(context.Background(), "lidar", time.Second)
		close(done)
	}()

	// Give the goroutine a moment to register its waiter before delivering data.
	time.Sleep(10 * time.Millisecond)

	topic := DiscoveredTopicData{TopicName: "lidar", TypeName: "Sensor::Scan", QoS: qos.Default()}
	data := sedpData(t, topic.toParameterList())
	remoteWriter := endpointGUID(9, ddsid.EntityIdSEDPTopicWriter)
	d.SEDP.TopicReader.MatchedWriterAdd(newWriterProxy(remoteWriter, nil))
	d.HandleTopicData(remoteWriter, data)

	<-done
	if !ok {
		t.Fatal("expected FindTopic to succeed")
	}
	if found.TopicName != "lidar" || found.TypeName != "Sensor::Scan" {
		t.Fatalf("unexpected topic data: %+v", found)
	}
}

func TestDiscoveryFindTopicTimesOut(t *testing.T) {
	log := logging.NewTestLogger()
	rt := runtime.NewFake(time.Unix(0, 0))
	d := New(ddsid.GuidPrefix{1}, 0, "", time.Second, rt, log)

	_, ok := d.FindTopic(context.Background(), "never-published", 20*time.Millisecond)
	if ok {
		t.Fatal("expected FindTopic to time out")
	}
}

func TestOnParticipantDiscoveredWiresAllSixSEDPProxies(t *testing.T) {
	log := logging.NewTestLogger()
	rt := runtime.NewFake(time.Unix(0, 0))
	d := New(ddsid.GuidPrefix{1}, 0, "", time.Second, rt, log)

	remotePrefix := ddsid.GuidPrefix{9}
	proxy := ParticipantProxy{
		GuidPrefix:                remotePrefix,
		AvailableBuiltinEndpoints: DefaultBuiltinEndpoints,
	}
	d.onParticipantDiscovered(proxy)

	checks := []struct {
		name   string
		writer ddsid.GUID
	}{
		{"publications", ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPPubWriter}},
		{"subscriptions", ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPSubWriter}},
		{"topics", ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPTopicWriter}},
	}

	// Reader-side proxies must now accept Data from the remote SEDP writers.
	if ok := d.SEDP.PubReader.OnData(checks[0].writer, dataWithSN(1), ddsid.InstanceHandle{}, ddsid.DurationZero, false); !ok {
		t.Error("expected SEDP publications reader to accept data from matched remote writer")
	}
	if ok := d.SEDP.SubReader.OnData(checks[1].writer, dataWithSN(1), ddsid.InstanceHandle{}, ddsid.DurationZero, false); !ok {
		t.Error("expected SEDP subscriptions reader to accept data from matched remote writer")
	}
	if ok := d.SEDP.TopicReader.OnData(checks[2].writer, dataWithSN(1), ddsid.InstanceHandle{}, ddsid.DurationZero, false); !ok {
		t.Error("expected SEDP topics reader to accept data from matched remote writer")
	}

	// Writer-side proxies must now list the remote SEDP readers as matched.
	for _, wc := range []struct {
		name    string
		matched []ddsid.GUID
		want    ddsid.GUID
	}{
		{"publications", d.SEDP.PubWriter.MatchedReaders(), ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPPubReader}},
		{"subscriptions", d.SEDP.SubWriter.MatchedReaders(), ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPSubReader}},
		{"topics", d.SEDP.TopicWriter.MatchedReaders(), ddsid.GUID{Prefix: remotePrefix, Entity: ddsid.EntityIdSEDPTopicReader}},
	} {
		if len(wc.matched) != 1 || wc.matched[0] != wc.want {
			t.Errorf("expected SEDP %s writer to match the remote reader proxy, got %v", wc.name, wc.matched)
		}
	}

	d.onParticipantLost(remotePrefix)
	if ok := d.SEDP.PubReader.OnData(checks[0].writer, dataWithSN(2), ddsid.InstanceHandle{}, ddsid.DurationZero, false); ok {
		t.Error("expected SEDP publications reader to reject data after participant loss")
	}
}
