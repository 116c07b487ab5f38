package qos

import (
	"path"
	"strings"
)

// PolicyID identifies a QoS policy for incompatibility reporting, matching
// the DDS standard's *_QOS_POLICY_ID constants referenced by spec.md
// section 4.8 ("last_policy_id").
type PolicyID int

const (
	InvalidQosPolicyID PolicyID = iota
	DurabilityQosPolicyID
	PresentationQosPolicyID
	DeadlineQosPolicyID
	LatencyBudgetQosPolicyID
	LivelinessQosPolicyID
	ReliabilityQosPolicyID
	DestinationOrderQosPolicyID
	DataRepresentationQosPolicyID
	OwnershipQosPolicyID
	PartitionQosPolicyID
)

// Endpoint bundles the topic/type identity with a QoS Set, since matching
// first requires topic and type equality before any policy comparison runs,
// per spec.md section 4.8.
type Endpoint struct {
	TopicName string
	TypeName  string
	QoS       Set
}

// Match runs the offered-vs-requested compatibility check of spec.md
// section 4.8 and returns the ordered list of incompatible policy IDs; an
// empty result means the pair is compatible. The matcher is a pure function
// of its inputs, per the purity invariant of spec.md section 8 item 8.
func Match(offered, requested Endpoint) []PolicyID {
	if offered.TopicName != requested.TopicName || offered.TypeName != requested.TypeName {
		// Topic/type mismatch is not a QoS incompatibility in the DDS sense;
		// callers must not even invoke the matcher for non-matching topics.
		// Returning every policy as incompatible would be misleading, so the
		// caller is expected to filter by topic/type before calling Match.
		return nil
	}

	var bad []PolicyID

	if offered.QoS.Durability.Kind < requested.QoS.Durability.Kind {
		bad = append(bad, DurabilityQosPolicyID)
	}

	if offered.QoS.Presentation.AccessScope < requested.QoS.Presentation.AccessScope ||
		offered.QoS.Presentation.CoherentAccess != requested.QoS.Presentation.CoherentAccess ||
		offered.QoS.Presentation.OrderedAccess != requested.QoS.Presentation.OrderedAccess {
		bad = append(bad, PresentationQosPolicyID)
	}

	if requested.QoS.Deadline.Period > 0 {
		if offered.QoS.Deadline.Period == 0 || offered.QoS.Deadline.Period > requested.QoS.Deadline.Period {
			bad = append(bad, DeadlineQosPolicyID)
		}
	}

	if offered.QoS.LatencyBudget.Duration > requested.QoS.LatencyBudget.Duration {
		bad = append(bad, LatencyBudgetQosPolicyID)
	}

	if offered.QoS.Liveliness.Kind < requested.QoS.Liveliness.Kind ||
		(requested.QoS.Liveliness.LeaseDuration > 0 && (offered.QoS.Liveliness.LeaseDuration == 0 || offered.QoS.Liveliness.LeaseDuration > requested.QoS.Liveliness.LeaseDuration)) {
		bad = append(bad, LivelinessQosPolicyID)
	}

	if offered.QoS.Reliability.Kind < requested.QoS.Reliability.Kind {
		bad = append(bad, ReliabilityQosPolicyID)
	}

	if offered.QoS.DestinationOrder.Kind < requested.QoS.DestinationOrder.Kind {
		bad = append(bad, DestinationOrderQosPolicyID)
	}

	if !dataRepresentationIntersects(offered.QoS.DataRepresentation, requested.QoS.DataRepresentation) {
		bad = append(bad, DataRepresentationQosPolicyID)
	}

	if offered.QoS.Ownership.Kind != requested.QoS.Ownership.Kind {
		bad = append(bad, OwnershipQosPolicyID)
	}

	if !partitionsIntersect(offered.QoS.Partition.Names, requested.QoS.Partition.Names) {
		bad = append(bad, PartitionQosPolicyID)
	}

	return bad
}

func dataRepresentationIntersects(offered, requested DataRepresentation) bool {
	if len(requested.Values) == 0 {
		return true
	}
	if len(offered.Values) == 0 {
		// An endpoint with no explicit representation list is assumed to
		// support the default (XCDR1), which every requester also accepts
		// implicitly.
		return true
	}
	want := make(map[int16]struct{}, len(requested.Values))
	for _, v := range requested.Values {
		want[v] = struct{}{}
	}
	for _, v := range offered.Values {
		if _, ok := want[v]; ok {
			return true
		}
	}
	return false
}

// partitionsIntersect implements the glob-to-regex partition matching of
// spec.md section 4.8: empty lists match empty (both sides default to the
// unnamed "" partition), and each side's name patterns are matched against
// every name on the other side using shell-style globbing ('*' and '?').
func partitionsIntersect(offered, requested []string) bool {
	if len(offered) == 0 && len(requested) == 0 {
		return true
	}
	o := normalizePartitions(offered)
	r := normalizePartitions(requested)
	for _, op := range o {
		for _, rp := range r {
			if globMatches(op, rp) || globMatches(rp, op) {
				return true
			}
		}
	}
	return false
}

func normalizePartitions(names []string) []string {
	if len(names) == 0 {
		return []string{""}
	}
	return names
}

func globMatches(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	if err != nil {
		return pattern == name
	}
	return ok || strings.EqualFold(pattern, name)
}
