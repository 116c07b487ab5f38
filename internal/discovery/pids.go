// Package discovery implements SPDP and SEDP, the built-in participant and
// endpoint discovery protocols of spec.md section 4.7: specialized
// stateless/stateful writers and readers over well-known entities and
// locators, carrying parameter-list CDR payloads.
package discovery

import (
	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
)

// Parameter ids, per spec.md section 6's PID table.
const (
	PIDParticipantGUID                  cdr.ParameterId = 0x0050
	PIDTopicName                        cdr.ParameterId = 0x0005
	PIDTypeName                         cdr.ParameterId = 0x0007
	PIDEndpointGUID                     cdr.ParameterId = 0x005a
	PIDDomainID                         cdr.ParameterId = 0x000f
	PIDDomainTag                        cdr.ParameterId = 0x4014
	PIDProtocolVersion                  cdr.ParameterId = 0x0015
	PIDVendorId                         cdr.ParameterId = 0x0016
	PIDExpectsInlineQos                 cdr.ParameterId = 0x0043
	PIDMetatrafficUnicastLocator        cdr.ParameterId = 0x0032
	PIDMetatrafficMulticastLocator      cdr.ParameterId = 0x0033
	PIDDefaultUnicastLocator            cdr.ParameterId = 0x0031
	PIDDefaultMulticastLocator          cdr.ParameterId = 0x0048
	PIDBuiltinEndpointSet               cdr.ParameterId = 0x0058
	PIDParticipantLeaseDuration         cdr.ParameterId = 0x0002
	PIDParticipantManualLivelinessCount cdr.ParameterId = 0x0034
	PIDBuiltinEndpointQos               cdr.ParameterId = 0x0077
	PIDDurability                       cdr.ParameterId = 0x001d
	PIDDeadline                         cdr.ParameterId = 0x0023
	PIDLatencyBudget                    cdr.ParameterId = 0x0027
	PIDLiveliness                       cdr.ParameterId = 0x001b
	PIDReliability                      cdr.ParameterId = 0x001a
	PIDLifespan                         cdr.ParameterId = 0x002b
	PIDOwnership                        cdr.ParameterId = 0x001f
	PIDOwnershipStrength                cdr.ParameterId = 0x0006
	PIDDestinationOrder                 cdr.ParameterId = 0x0025
	PIDPresentation                     cdr.ParameterId = 0x0021
	PIDPartition                        cdr.ParameterId = 0x0029
	PIDTopicData                        cdr.ParameterId = 0x002e
	PIDGroupData                        cdr.ParameterId = 0x002d
	PIDUserData                         cdr.ParameterId = 0x002c
	PIDDataRepresentation               cdr.ParameterId = 0x0073
)

// BuiltinEndpoint is a bit in the PID_BUILTIN_ENDPOINT_SET bitmask
// advertising which built-in SEDP/SPDP readers and writers a participant
// runs, per spec.md section 4.7.
type BuiltinEndpoint uint32

const (
	BuiltinParticipantAnnouncer   BuiltinEndpoint = 1 << 0
	BuiltinParticipantDetector    BuiltinEndpoint = 1 << 1
	BuiltinPublicationsAnnouncer  BuiltinEndpoint = 1 << 2
	BuiltinPublicationsDetector   BuiltinEndpoint = 1 << 3
	BuiltinSubscriptionsAnnouncer BuiltinEndpoint = 1 << 4
	BuiltinSubscriptionsDetector  BuiltinEndpoint = 1 << 5
	BuiltinTopicsAnnouncer        BuiltinEndpoint = 1 << 28
	BuiltinTopicsDetector         BuiltinEndpoint = 1 << 29
)

// DefaultBuiltinEndpoints is the set this participant always runs.
const DefaultBuiltinEndpoints = BuiltinParticipantAnnouncer | BuiltinParticipantDetector |
	BuiltinPublicationsAnnouncer | BuiltinPublicationsDetector |
	BuiltinSubscriptionsAnnouncer | BuiltinSubscriptionsDetector |
	BuiltinTopicsAnnouncer | BuiltinTopicsDetector

func putString(params cdr.ParameterList, pid cdr.ParameterId, s string) cdr.ParameterList {
	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteString(s)
	return append(params, cdr.Parameter{ID: pid, Value: w.Bytes()[4:]})
}

func getString(params cdr.ParameterList, pid cdr.ParameterId) (string, bool) {
	p, ok := params.Get(pid)
	if !ok {
		return "", false
	}
	r, _, err := cdr.NewReader(withCDRHeader(p.Value))
	if err != nil {
		return "", false
	}
	s, err := r.ReadString()
	if err != nil {
		return "", false
	}
	return s, true
}

func putGUID(params cdr.ParameterList, pid cdr.ParameterId, g ddsid.GUID) cdr.ParameterList {
	b := g.Bytes()
	return append(params, cdr.Parameter{ID: pid, Value: b[:]})
}

func getGUID(params cdr.ParameterList, pid cdr.ParameterId) (ddsid.GUID, bool) {
	p, ok := params.Get(pid)
	if !ok || len(p.Value) != 16 {
		return ddsid.GUID{}, false
	}
	var prefix ddsid.GuidPrefix
	copy(prefix[:], p.Value[:12])
	var entity ddsid.EntityId
	copy(entity[:], p.Value[12:16])
	return ddsid.GUID{Prefix: prefix, Entity: entity}, true
}

func putU32(params cdr.ParameterList, pid cdr.ParameterId, v uint32) cdr.ParameterList {
	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteU32(v)
	return append(params, cdr.Parameter{ID: pid, Value: w.Bytes()[4:]})
}

func getU32(params cdr.ParameterList, pid cdr.ParameterId) (uint32, bool) {
	p, ok := params.Get(pid)
	if !ok {
		return 0, false
	}
	r, _, err := cdr.NewReader(withCDRHeader(p.Value))
	if err != nil {
		return 0, false
	}
	v, err := r.ReadU32()
	if err != nil {
		return 0, false
	}
	return v, true
}

func putBool(params cdr.ParameterList, pid cdr.ParameterId, v bool) cdr.ParameterList {
	return append(params, cdr.Parameter{ID: pid, Value: []byte{boolByte(v), 0, 0, 0}})
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func getBool(params cdr.ParameterList, pid cdr.ParameterId) (bool, bool) {
	p, ok := params.Get(pid)
	if !ok || len(p.Value) == 0 {
		return false, false
	}
	return p.Value[0] != 0, true
}

func putDuration(params cdr.ParameterList, pid cdr.ParameterId, d ddsid.Duration) cdr.ParameterList {
	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteI32(d.Sec)
	w.WriteU32(d.Frac)
	return append(params, cdr.Parameter{ID: pid, Value: w.Bytes()[4:]})
}

func getDuration(params cdr.ParameterList, pid cdr.ParameterId) (ddsid.Duration, bool) {
	p, ok := params.Get(pid)
	if !ok {
		return ddsid.Duration{}, false
	}
	r, _, err := cdr.NewReader(withCDRHeader(p.Value))
	if err != nil {
		return ddsid.Duration{}, false
	}
	sec, err := r.ReadI32()
	if err != nil {
		return ddsid.Duration{}, false
	}
	frac, err := r.ReadU32()
	if err != nil {
		return ddsid.Duration{}, false
	}
	return ddsid.Duration{Sec: sec, Frac: frac}, true
}

func putLocator(params cdr.ParameterList, pid cdr.ParameterId, loc ddsid.Locator) cdr.ParameterList {
	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteI32(int32(loc.Kind))
	w.WriteU32(uint32(loc.Port))
	w.WriteBytes(loc.Address[:])
	return append(params, cdr.Parameter{ID: pid, Value: w.Bytes()[4:]})
}

func getLocators(params cdr.ParameterList, pid cdr.ParameterId) []ddsid.Locator {
	var out []ddsid.Locator
	for _, p := range params.GetAll(pid) {
		r, _, err := cdr.NewReader(withCDRHeader(p.Value))
		if err != nil {
			continue
		}
		kind, err1 := r.ReadI32()
		port, err2 := r.ReadU32()
		addr, err3 := r.ReadBytes(16)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		var loc ddsid.Locator
		loc.Kind = ddsid.LocatorKind(kind)
		loc.Port = uint32(port)
		copy(loc.Address[:], addr)
		out = append(out, loc)
	}
	return out
}

// withCDRHeader prepends a little-endian plain-CDR encapsulation header so a
// single already-unwrapped parameter value can be parsed with cdr.NewReader.
func withCDRHeader(body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[1] = byte(cdr.EncapsulationCDR_LE)
	copy(out[4:], body)
	return out
}
