package participant

import (
	"crypto/rand"
	"fmt"
	"sync"

	"ddscore/internal/config"
	"ddscore/internal/ddserror"
	"ddscore/internal/ddsid"
	"ddscore/internal/logging"
	"ddscore/internal/runtime"
	"ddscore/internal/transport"
	"ddscore/internal/typesupport"
)

// DomainParticipantFactory is the process-wide singleton of spec.md
// section 9: the sole entry point for creating and deleting
// DomainParticipants, tracking every live one so shutdown can refuse to
// proceed while any participant still owns entities.
type DomainParticipantFactory struct {
	mu           sync.Mutex
	participants map[ddsid.GuidPrefix]*Participant
}

var (
	factoryOnce sync.Once
	factory     *DomainParticipantFactory
)

// GetInstance returns the process-wide DomainParticipantFactory, creating it
// on first use.
func GetInstance() *DomainParticipantFactory {
	factoryOnce.Do(func() {
		factory = &DomainParticipantFactory{participants: make(map[ddsid.GuidPrefix]*Participant)}
	})
	return factory
}

// CreateParticipant constructs and registers a new Participant bound to tr
// and rt, per spec.md section 9's "DomainParticipantFactory.create_participant"
// operation. log and ts may be nil, in which case a test logger and an empty
// registry are substituted.
func (f *DomainParticipantFactory) CreateParticipant(cfg *config.Config, tr transport.Transport, rt runtime.Runtime, log *logging.Logger, ts *typesupport.Registry) (*Participant, error) {
	if cfg == nil {
		return nil, ddserror.BadParameter("nil config")
	}
	if tr == nil || rt == nil {
		return nil, ddserror.BadParameter("transport and runtime are required")
	}
	if log == nil {
		log = logging.NewTestLogger()
	}
	if ts == nil {
		ts = typesupport.NewRegistry()
	}
	prefix, err := newGuidPrefix()
	if err != nil {
		return nil, ddserror.Internal(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.participants[prefix]; exists {
		return nil, ddserror.Internal(fmt.Errorf("guid prefix collision"))
	}
	p := newParticipant(prefix, cfg, tr, rt, log, ts)
	f.participants[prefix] = p
	return p, nil
}

// DeleteParticipant removes p from the factory, failing with
// PreconditionNotMet if it still owns publishers or subscribers, per
// spec.md section 9's strong-downward-reference deletion rule.
func (f *DomainParticipantFactory) DeleteParticipant(p *Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.participants[p.GUID.Prefix]; !ok {
		return ddserror.AlreadyDeleted("participant not owned by this factory")
	}
	if p.hasLiveEntities() {
		return ddserror.PreconditionNotMet("participant still owns publishers or subscribers")
	}
	p.delete()
	delete(f.participants, p.GUID.Prefix)
	return nil
}

// LookupParticipantByPrefix returns the live participant with the given
// GUID prefix, used by internal/introspect to resolve a request's target.
func (f *DomainParticipantFactory) LookupParticipantByPrefix(prefix ddsid.GuidPrefix) (*Participant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[prefix]
	return p, ok
}

// Participants returns a snapshot of every live participant, used for
// shutdown draining and for introspection's participant listing.
func (f *DomainParticipantFactory) Participants() []*Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Participant, 0, len(f.participants))
	for _, p := range f.participants {
		out = append(out, p)
	}
	return out
}

// newGuidPrefix draws a random GuidPrefix, per spec.md section 3's guidance
// that an implementation-defined prefix need only be unique within reach of
// the network, not globally assigned.
func newGuidPrefix() (ddsid.GuidPrefix, error) {
	var prefix ddsid.GuidPrefix
	if _, err := rand.Read(prefix[:]); err != nil {
		return prefix, err
	}
	return prefix, nil
}
