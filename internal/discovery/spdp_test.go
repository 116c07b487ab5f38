package discovery

import (
	"testing"
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/logging"
)

// encodeSpdpSample mirrors SPDPAgent.Announce's framing: a full PL_CDR
// encapsulation header followed by the parameter list.
func encodeSpdpSample(t *testing.T, proxy ParticipantProxy) []byte {
	t.Helper()
	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, proxy.ToParameterList())
	return w.Bytes()
}

func participantPrefix(b byte) ddsid.GuidPrefix {
	var p ddsid.GuidPrefix
	p[0] = b
	return p
}

func testProxy(prefix ddsid.GuidPrefix, domainID int) ParticipantProxy {
	return ParticipantProxy{
		DomainID:                  domainID,
		ProtocolVersion:           ddsid.ProtocolVersion{Major: 2, Minor: 3},
		GuidPrefix:                prefix,
		VendorId:                  ddsid.VendorId{0x01, 0x0f},
		AvailableBuiltinEndpoints: DefaultBuiltinEndpoints,
		LeaseDuration:             ddsid.Duration{Sec: 10},
	}
}

func TestParticipantProxyRoundTrip(t *testing.T) {
	want := testProxy(participantPrefix(7), 0)
	want.DomainTag = "lab"
	want.MetatrafficUnicastLocators = []ddsid.Locator{{Kind: 1, Port: 7410, Address: [16]byte{15: 1}}}

	params := want.ToParameterList()
	got, ok := ParticipantProxyFromParameterList(params)
	if !ok {
		t.Fatal("round trip failed to decode")
	}
	if got.GuidPrefix != want.GuidPrefix || got.DomainID != want.DomainID || got.DomainTag != want.DomainTag {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.AvailableBuiltinEndpoints != want.AvailableBuiltinEndpoints {
		t.Fatalf("builtin endpoints: got %x want %x", got.AvailableBuiltinEndpoints, want.AvailableBuiltinEndpoints)
	}
	if len(got.MetatrafficUnicastLocators) != 1 || got.MetatrafficUnicastLocators[0].Port != 7410 {
		t.Fatalf("locators not preserved: %+v", got.MetatrafficUnicastLocators)
	}
	if got.LeaseDuration != want.LeaseDuration {
		t.Fatalf("lease duration: got %+v want %+v", got.LeaseDuration, want.LeaseDuration)
	}
}

func TestSPDPAgentDiscoverAndExpire(t *testing.T) {
	local := participantPrefix(1)
	remote := participantPrefix(2)
	log := logging.NewTestLogger()

	agent := NewSPDPAgent(local, 0, "", 2*time.Second, nil, log)

	var discovered []ParticipantProxy
	agent.OnDiscovered(func(p ParticipantProxy) { discovered = append(discovered, p) })
	var lost []ddsid.GuidPrefix
	agent.OnLost(func(prefix ddsid.GuidPrefix) { lost = append(lost, prefix) })

	remoteProxy := testProxy(remote, 0)
	payload := encodeSpdpSample(t, remoteProxy)

	now := time.Unix(1000, 0)
	agent.HandleData(ddsid.GUID{Prefix: remote, Entity: SpdpWriterEntityId}, 1, payload, now)

	if len(discovered) != 1 || discovered[0].GuidPrefix != remote {
		t.Fatalf("expected one discovery of %v, got %+v", remote, discovered)
	}
	if got := agent.DiscoveredParticipants(); len(got) != 1 {
		t.Fatalf("expected 1 discovered participant, got %d", len(got))
	}

	// lease = 10s + 2s grace; well before expiry nothing happens.
	agent.ExpireLeases(now.Add(5 * time.Second))
	if len(lost) != 0 {
		t.Fatalf("expected no loss yet, got %v", lost)
	}

	agent.ExpireLeases(now.Add(13 * time.Second))
	if len(lost) != 1 || lost[0] != remote {
		t.Fatalf("expected loss of %v, got %v", remote, lost)
	}
	if got := agent.DiscoveredParticipants(); len(got) != 0 {
		t.Fatalf("expected 0 discovered participants after expiry, got %d", len(got))
	}
}

func TestSPDPAgentIgnoresSelfAndOtherDomains(t *testing.T) {
	local := participantPrefix(1)
	log := logging.NewTestLogger()
	agent := NewSPDPAgent(local, 0, "", time.Second, nil, log)

	fired := 0
	agent.OnDiscovered(func(ParticipantProxy) { fired++ })

	selfPayload := encodeSpdpSample(t, testProxy(local, 0))
	agent.HandleData(ddsid.GUID{Prefix: local, Entity: SpdpWriterEntityId}, 1, selfPayload, time.Now())
	if fired != 0 {
		t.Fatalf("expected self-announcement to be ignored, fired=%d", fired)
	}

	otherDomain := participantPrefix(3)
	wrongDomainPayload := encodeSpdpSample(t, testProxy(otherDomain, 7))
	agent.HandleData(ddsid.GUID{Prefix: otherDomain, Entity: SpdpWriterEntityId}, 1, wrongDomainPayload, time.Now())
	if fired != 0 {
		t.Fatalf("expected cross-domain announcement to be ignored, fired=%d", fired)
	}
}

func TestSPDPAgentIgnoreParticipant(t *testing.T) {
	local := participantPrefix(1)
	remote := participantPrefix(9)
	log := logging.NewTestLogger()
	agent := NewSPDPAgent(local, 0, "", time.Second, nil, log)
	agent.IgnoreParticipant(remote)

	fired := 0
	agent.OnDiscovered(func(ParticipantProxy) { fired++ })
	payload := encodeSpdpSample(t, testProxy(remote, 0))
	agent.HandleData(ddsid.GUID{Prefix: remote, Entity: SpdpWriterEntityId}, 1, payload, time.Now())
	if fired != 0 {
		t.Fatalf("expected ignored participant to suppress OnDiscovered, fired=%d", fired)
	}
	if got := agent.DiscoveredParticipants(); len(got) != 0 {
		t.Fatalf("ignored participant should not surface in queries, got %d", len(got))
	}
}
