package discovery

import (
	"context"
	"sync"
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/ddsid"
	"ddscore/internal/endpoint"
	"ddscore/internal/logging"
	"ddscore/internal/rtpsmsg"
	"ddscore/internal/runtime"
)

// SpdpWriterEntityId and SpdpReaderEntityId are the well-known SPDP
// built-in entities, per spec.md section 6.
var (
	SpdpWriterEntityId = ddsid.EntityIdSPDPBuiltinWriter
	SpdpReaderEntityId = ddsid.EntityIdSPDPBuiltinReader
)

// SpdpMulticastAddress is the RTPS standard SPDP multicast group.
var SpdpMulticastAddress = [4]byte{239, 255, 0, 1}

// ParticipantProxy is the discovery record of spec.md section 3: everything
// SPDP exchanges about a remote participant.
type ParticipantProxy struct {
	DomainID                     int
	DomainTag                    string
	ProtocolVersion              ddsid.ProtocolVersion
	GuidPrefix                   ddsid.GuidPrefix
	VendorId                     ddsid.VendorId
	ExpectsInlineQos             bool
	MetatrafficUnicastLocators   []ddsid.Locator
	MetatrafficMulticastLocators []ddsid.Locator
	DefaultUnicastLocators       []ddsid.Locator
	DefaultMulticastLocators     []ddsid.Locator
	AvailableBuiltinEndpoints    BuiltinEndpoint
	ManualLivelinessCount        uint32
	BuiltinEndpointQos           uint32
	UserData                     []byte
	LeaseDuration                ddsid.Duration
}

// ToParameterList serializes the proxy as SPDP's SpdpDiscoveredParticipantData.
func (p ParticipantProxy) ToParameterList() cdr.ParameterList {
	var params cdr.ParameterList
	params = putGUID(params, PIDParticipantGUID, ddsid.ParticipantGUID(p.GuidPrefix))
	params = putU32(params, PIDDomainID, uint32(p.DomainID))
	if p.DomainTag != "" {
		params = putString(params, PIDDomainTag, p.DomainTag)
	}
	params = append(params, cdr.Parameter{ID: PIDProtocolVersion, Value: []byte{p.ProtocolVersion.Major, p.ProtocolVersion.Minor, 0, 0}})
	params = append(params, cdr.Parameter{ID: PIDVendorId, Value: []byte{p.VendorId[0], p.VendorId[1], 0, 0}})
	params = putBool(params, PIDExpectsInlineQos, p.ExpectsInlineQos)
	for _, l := range p.MetatrafficUnicastLocators {
		params = putLocator(params, PIDMetatrafficUnicastLocator, l)
	}
	for _, l := range p.MetatrafficMulticastLocators {
		params = putLocator(params, PIDMetatrafficMulticastLocator, l)
	}
	for _, l := range p.DefaultUnicastLocators {
		params = putLocator(params, PIDDefaultUnicastLocator, l)
	}
	for _, l := range p.DefaultMulticastLocators {
		params = putLocator(params, PIDDefaultMulticastLocator, l)
	}
	params = putU32(params, PIDBuiltinEndpointSet, uint32(p.AvailableBuiltinEndpoints))
	params = putDuration(params, PIDParticipantLeaseDuration, p.LeaseDuration)
	params = putU32(params, PIDParticipantManualLivelinessCount, p.ManualLivelinessCount)
	params = putU32(params, PIDBuiltinEndpointQos, p.BuiltinEndpointQos)
	if len(p.UserData) > 0 {
		params = append(params, cdr.Parameter{ID: PIDUserData, Value: p.UserData})
	}
	return params
}

// ParticipantProxyFromParameterList deserializes an SpdpDiscoveredParticipantData.
func ParticipantProxyFromParameterList(params cdr.ParameterList) (ParticipantProxy, bool) {
	guid, ok := getGUID(params, PIDParticipantGUID)
	if !ok {
		return ParticipantProxy{}, false
	}
	var p ParticipantProxy
	p.GuidPrefix = guid.Prefix
	if v, ok := getU32(params, PIDDomainID); ok {
		p.DomainID = int(v)
	}
	p.DomainTag, _ = getString(params, PIDDomainTag)
	if pv, ok := params.Get(PIDProtocolVersion); ok && len(pv.Value) >= 2 {
		p.ProtocolVersion = ddsid.ProtocolVersion{Major: pv.Value[0], Minor: pv.Value[1]}
	}
	if vid, ok := params.Get(PIDVendorId); ok && len(vid.Value) >= 2 {
		p.VendorId = ddsid.VendorId{vid.Value[0], vid.Value[1]}
	}
	p.ExpectsInlineQos, _ = getBool(params, PIDExpectsInlineQos)
	p.MetatrafficUnicastLocators = getLocators(params, PIDMetatrafficUnicastLocator)
	p.MetatrafficMulticastLocators = getLocators(params, PIDMetatrafficMulticastLocator)
	p.DefaultUnicastLocators = getLocators(params, PIDDefaultUnicastLocator)
	p.DefaultMulticastLocators = getLocators(params, PIDDefaultMulticastLocator)
	if v, ok := getU32(params, PIDBuiltinEndpointSet); ok {
		p.AvailableBuiltinEndpoints = BuiltinEndpoint(v)
	}
	if d, ok := getDuration(params, PIDParticipantLeaseDuration); ok {
		p.LeaseDuration = d
	} else {
		p.LeaseDuration = ddsid.DurationInfinite
	}
	if v, ok := getU32(params, PIDParticipantManualLivelinessCount); ok {
		p.ManualLivelinessCount = v
	}
	if v, ok := getU32(params, PIDBuiltinEndpointQos); ok {
		p.BuiltinEndpointQos = v
	}
	if ud, ok := params.Get(PIDUserData); ok {
		p.UserData = ud.Value
	}
	return p, true
}

// discoveredParticipant tracks a remote participant's proxy plus the lease
// deadline by which it must be refreshed or dropped.
type discoveredParticipant struct {
	proxy   ParticipantProxy
	expires time.Time
	ignored bool
}

// SPDPAgent runs the participant announcer/detector pair of spec.md section
// 4.7: a stateless writer multicasting this participant's own proxy every
// lease period, and a stateless reader upserting remote proxies with lease
// tracking.
type SPDPAgent struct {
	LocalGuidPrefix ddsid.GuidPrefix
	DomainID        int
	DomainTag       string
	LeaseGrace      time.Duration

	Writer *endpoint.StatelessWriter
	Reader *endpoint.StatelessReader

	rt  runtime.Runtime
	log *logging.Logger

	mu           sync.Mutex
	discovered   map[ddsid.GuidPrefix]*discoveredParticipant
	onDiscovered func(ParticipantProxy)
	onLost       func(ddsid.GuidPrefix)
}

// NewSPDPAgent constructs an SPDPAgent with its own stateless writer/reader
// on the well-known SPDP entities.
func NewSPDPAgent(prefix ddsid.GuidPrefix, domainID int, domainTag string, leaseGrace time.Duration, rt runtime.Runtime, log *logging.Logger) *SPDPAgent {
	return &SPDPAgent{
		LocalGuidPrefix: prefix, DomainID: domainID, DomainTag: domainTag, LeaseGrace: leaseGrace,
		Writer:     endpoint.NewStatelessWriter(ddsid.GUID{Prefix: prefix, Entity: SpdpWriterEntityId}),
		Reader:     endpoint.NewStatelessReader(ddsid.GUID{Prefix: prefix, Entity: SpdpReaderEntityId}),
		rt:         rt,
		log:        log,
		discovered: make(map[ddsid.GuidPrefix]*discoveredParticipant),
	}
}

// OnDiscovered registers a callback fired when a new or changed remote
// participant proxy is upserted.
func (a *SPDPAgent) OnDiscovered(fn func(ParticipantProxy)) { a.onDiscovered = fn }

// OnLost registers a callback fired when a remote participant's lease
// expires or it is explicitly disposed.
func (a *SPDPAgent) OnLost(fn func(ddsid.GuidPrefix)) { a.onLost = fn }

// Announce installs self as the SPDP writer's (sole) sample, replacing any
// previous announcement, per spec.md section 4.7's "on startup" step.
func (a *SPDPAgent) Announce(self ParticipantProxy) {
	w := cdr.NewWriter(cdr.EncapsulationPL_CDR_LE)
	cdr.WriteParameterList(w, self.ToParameterList())
	previous := a.Writer.Cache.SequenceNumbers(a.Writer.GUID)
	a.Writer.NewChange(ddsid.ChangeAlive, ddsid.InstanceHandleFromGUID(ddsid.ParticipantGUID(a.LocalGuidPrefix)), w.Bytes(), nil)
	for _, sn := range previous {
		a.Writer.Cache.RemoveChange(a.Writer.GUID, sn)
	}
}

// HandleData ingests one SPDP Data submessage and upserts the corresponding
// discovered-participant record if the domain id and domain tag match, per
// spec.md section 4.7's receipt rule.
func (a *SPDPAgent) HandleData(writerGUID ddsid.GUID, sn ddsid.SequenceNumber, payload []byte, now time.Time) {
	change := a.Reader.HandleData(writerGUID, sn, payload, nil, ddsid.DurationZero, false)
	if change == nil {
		return
	}
	r, _, err := cdr.NewReader(payload)
	if err != nil {
		return
	}
	params, err := cdr.ReadParameterList(r)
	if err != nil {
		return
	}
	proxy, ok := ParticipantProxyFromParameterList(params)
	if !ok || proxy.GuidPrefix == a.LocalGuidPrefix {
		return
	}
	if proxy.DomainID != a.DomainID || proxy.DomainTag != a.DomainTag {
		return
	}

	a.mu.Lock()
	rec, existed := a.discovered[proxy.GuidPrefix]
	lease := proxy.LeaseDuration
	expires := now.Add(time.Duration(lease.Sec)*time.Second + time.Duration(lease.FracToNanos()) + a.LeaseGrace)
	if !existed {
		rec = &discoveredParticipant{}
		a.discovered[proxy.GuidPrefix] = rec
	}
	rec.proxy = proxy
	rec.expires = expires
	ignored := rec.ignored
	a.mu.Unlock()

	if !ignored && a.onDiscovered != nil {
		a.onDiscovered(proxy)
	}
}

// IgnoreParticipant marks a remote participant's GuidPrefix to be excluded
// from matching and discovery queries, per the supplemented ignore_*
// operations of SPEC_FULL.md.
func (a *SPDPAgent) IgnoreParticipant(prefix ddsid.GuidPrefix) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.discovered[prefix]; ok {
		rec.ignored = true
	} else {
		a.discovered[prefix] = &discoveredParticipant{ignored: true}
	}
}

// ExpireLeases drops every discovered participant whose lease has elapsed,
// firing OnLost for each, per scenario S5.
func (a *SPDPAgent) ExpireLeases(now time.Time) {
	a.mu.Lock()
	var lost []ddsid.GuidPrefix
	for prefix, rec := range a.discovered {
		if rec.ignored {
			continue
		}
		if !rec.expires.IsZero() && now.After(rec.expires) {
			lost = append(lost, prefix)
			delete(a.discovered, prefix)
		}
	}
	a.mu.Unlock()
	for _, prefix := range lost {
		if a.onLost != nil {
			a.onLost(prefix)
		}
	}
}

// DiscoveredParticipants returns every currently-known, non-ignored remote
// participant proxy, for get_discovered_participants.
func (a *SPDPAgent) DiscoveredParticipants() []ParticipantProxy {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ParticipantProxy, 0, len(a.discovered))
	for _, rec := range a.discovered {
		if !rec.ignored {
			out = append(out, rec.proxy)
		}
	}
	return out
}

// Tick runs one iteration of the SPDP resend/expiry loop: flush pending
// writer messages and expire stale leases.
func (a *SPDPAgent) Tick(ctx context.Context, sender *rtpsmsg.Sender, transport rtpsmsg.Transport, now time.Time) {
	for _, batch := range a.Writer.ProduceMessages() {
		if err := sender.Send(ctx, transport, batch); err != nil {
			a.log.Warn("spdp: send failed", logging.Error(err))
		}
	}
	a.ExpireLeases(now)
}
