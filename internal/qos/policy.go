// Package qos models the DDS QoS policy set described in spec.md section 3
// and the offered/requested compatibility matcher of section 4.8.
package qos

import "time"

// DurabilityKind orders Volatile < TransientLocal < Transient < Persistent.
type DurabilityKind int

const (
	DurabilityVolatile DurabilityKind = iota
	DurabilityTransientLocal
	DurabilityTransient
	DurabilityPersistent
)

// ReliabilityKind orders BestEffort < Reliable.
type ReliabilityKind int

const (
	ReliabilityBestEffort ReliabilityKind = iota
	ReliabilityReliable
)

// LivelinessKind orders Automatic < ManualByParticipant < ManualByTopic.
type LivelinessKind int

const (
	LivelinessAutomatic LivelinessKind = iota
	LivelinessManualByParticipant
	LivelinessManualByTopic
)

// DestinationOrderKind orders ByReception < BySourceTimestamp.
type DestinationOrderKind int

const (
	DestinationOrderByReception DestinationOrderKind = iota
	DestinationOrderBySourceTimestamp
)

// OwnershipKind distinguishes Shared vs Exclusive ownership.
type OwnershipKind int

const (
	OwnershipShared OwnershipKind = iota
	OwnershipExclusive
)

// PresentationAccessScope orders Instance < Topic < Group.
type PresentationAccessScope int

const (
	PresentationInstance PresentationAccessScope = iota
	PresentationTopic
	PresentationGroup
)

// HistoryKind selects KeepLast or KeepAll retention.
type HistoryKind int

const (
	HistoryKeepLast HistoryKind = iota
	HistoryKeepAll
)

// Durability, Deadline, ... mirror the QoS policies enumerated in spec.md
// section 3, each carrying the fields compared by the matcher in section 4.8.
type Durability struct{ Kind DurabilityKind }

type Deadline struct{ Period time.Duration }

type LatencyBudget struct{ Duration time.Duration }

type Liveliness struct {
	Kind          LivelinessKind
	LeaseDuration time.Duration
}

type Reliability struct {
	Kind            ReliabilityKind
	MaxBlockingTime time.Duration
}

type Lifespan struct{ Duration time.Duration }

type UserData struct{ Value []byte }

type Ownership struct{ Kind OwnershipKind }

type OwnershipStrength struct{ Value int32 }

type DestinationOrder struct{ Kind DestinationOrderKind }

type Presentation struct {
	AccessScope    PresentationAccessScope
	CoherentAccess bool
	OrderedAccess  bool
}

type Partition struct{ Names []string }

type TopicData struct{ Value []byte }

type GroupData struct{ Value []byte }

type DataRepresentation struct{ Values []int16 }

type History struct {
	Kind  HistoryKind
	Depth int
}

type ResourceLimits struct {
	MaxSamples            int
	MaxInstances          int
	MaxSamplesPerInstance int
}

type TimeBasedFilter struct{ MinimumSeparation time.Duration }

type TransportPriority struct{ Value int32 }

// Set bundles every policy carried by an endpoint, offered by a writer or
// requested by a reader, per spec.md section 3.
type Set struct {
	Durability         Durability
	Deadline           Deadline
	LatencyBudget      LatencyBudget
	Liveliness         Liveliness
	Reliability        Reliability
	Lifespan           Lifespan
	UserData           UserData
	Ownership          Ownership
	OwnershipStrength  OwnershipStrength
	DestinationOrder   DestinationOrder
	Presentation       Presentation
	Partition          Partition
	TopicData          TopicData
	GroupData          GroupData
	DataRepresentation DataRepresentation
	History            History
	ResourceLimits     ResourceLimits
	TimeBasedFilter    TimeBasedFilter
	TransportPriority  TransportPriority
}

// Default returns the DDS default QoS: BestEffort, Volatile, KeepLast(1),
// automatic liveliness with an infinite lease.
func Default() Set {
	return Set{
		Durability:  Durability{Kind: DurabilityVolatile},
		Reliability: Reliability{Kind: ReliabilityBestEffort},
		Liveliness:  Liveliness{Kind: LivelinessAutomatic, LeaseDuration: 0},
		History:     History{Kind: HistoryKeepLast, Depth: 1},
	}
}

// Validate reports an InconsistentPolicy-style failure: history depth must
// not exceed max_samples_per_instance when both are bounded, per spec.md
// section 7.
func (s Set) Validate() error {
	if s.History.Kind == HistoryKeepLast && s.ResourceLimits.MaxSamplesPerInstance > 0 {
		if s.History.Depth > s.ResourceLimits.MaxSamplesPerInstance {
			return errHistoryExceedsResourceLimits
		}
	}
	return nil
}

var errHistoryExceedsResourceLimits = policyError("history depth exceeds resource_limits.max_samples_per_instance")

type policyError string

func (e policyError) Error() string { return string(e) }
