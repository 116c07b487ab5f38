package qos

import "testing"

func baseEndpoint() Endpoint {
	return Endpoint{TopicName: "Square", TypeName: "ShapeType", QoS: Default()}
}

func TestMatchCompatibleDefaults(t *testing.T) {
	offered := baseEndpoint()
	requested := baseEndpoint()
	if bad := Match(offered, requested); len(bad) != 0 {
		t.Fatalf("expected compatible defaults, got incompatibilities %v", bad)
	}
}

func TestMatchReliabilityIncompatible(t *testing.T) {
	offered := baseEndpoint()
	offered.QoS.Reliability.Kind = ReliabilityBestEffort
	requested := baseEndpoint()
	requested.QoS.Reliability.Kind = ReliabilityReliable

	bad := Match(offered, requested)
	if len(bad) == 0 || bad[0] != ReliabilityQosPolicyID {
		t.Fatalf("expected ReliabilityQosPolicyID first, got %v", bad)
	}
}

func TestMatchDurabilityOrdering(t *testing.T) {
	offered := baseEndpoint()
	offered.QoS.Durability.Kind = DurabilityVolatile
	requested := baseEndpoint()
	requested.QoS.Durability.Kind = DurabilityTransientLocal

	bad := Match(offered, requested)
	found := false
	for _, id := range bad {
		if id == DurabilityQosPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected durability incompatibility, got %v", bad)
	}
}

func TestMatchPartitionIntersection(t *testing.T) {
	offered := baseEndpoint()
	offered.QoS.Partition.Names = []string{"room/*"}
	requested := baseEndpoint()
	requested.QoS.Partition.Names = []string{"room/101"}

	if bad := Match(offered, requested); len(bad) != 0 {
		t.Fatalf("expected glob partition match, got %v", bad)
	}

	requested.QoS.Partition.Names = []string{"other"}
	bad := Match(offered, requested)
	found := false
	for _, id := range bad {
		if id == PartitionQosPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected partition incompatibility, got %v", bad)
	}
}

func TestMatchTopicOrTypeMismatchReturnsNil(t *testing.T) {
	offered := baseEndpoint()
	requested := baseEndpoint()
	requested.TypeName = "OtherType"
	if bad := Match(offered, requested); bad != nil {
		t.Fatalf("expected nil for topic/type mismatch sentinel, got %v", bad)
	}
}

func TestMatchOwnershipMustBeEqual(t *testing.T) {
	offered := baseEndpoint()
	offered.QoS.Ownership.Kind = OwnershipExclusive
	requested := baseEndpoint()
	requested.QoS.Ownership.Kind = OwnershipShared

	bad := Match(offered, requested)
	found := false
	for _, id := range bad {
		if id == OwnershipQosPolicyID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ownership incompatibility, got %v", bad)
	}
}
