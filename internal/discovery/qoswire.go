package discovery

import (
	"time"

	"ddscore/internal/cdr"
	"ddscore/internal/qos"
)

// qosToParameterList serializes the QoS policies below into their standard
// PIDs, for embedding in a SEDP DiscoveredWriterData/ReaderData record.
// History, ResourceLimits, TimeBasedFilter and TransportPriority are not
// written; on decode they keep their qos.Default() values.
func qosToParameterList(q qos.Set) cdr.ParameterList {
	var params cdr.ParameterList
	params = putU32(params, PIDDurability, uint32(q.Durability.Kind))
	params = putDurationPair(params, PIDDeadline, q.Deadline.Period)
	params = putDurationPair(params, PIDLatencyBudget, q.LatencyBudget.Duration)

	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteU32(uint32(q.Liveliness.Kind))
	writeDuration(w, q.Liveliness.LeaseDuration)
	params = append(params, cdr.Parameter{ID: PIDLiveliness, Value: w.Bytes()[4:]})

	w = cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteU32(uint32(q.Reliability.Kind))
	writeDuration(w, q.Reliability.MaxBlockingTime)
	params = append(params, cdr.Parameter{ID: PIDReliability, Value: w.Bytes()[4:]})

	params = putDurationPair(params, PIDLifespan, q.Lifespan.Duration)
	params = putU32(params, PIDOwnership, uint32(q.Ownership.Kind))
	params = putU32(params, PIDOwnershipStrength, uint32(q.OwnershipStrength.Value))
	params = putU32(params, PIDDestinationOrder, uint32(q.DestinationOrder.Kind))

	w = cdr.NewWriter(cdr.EncapsulationCDR_LE)
	w.WriteU32(uint32(q.Presentation.AccessScope))
	w.WriteBool(q.Presentation.CoherentAccess)
	w.WriteBool(q.Presentation.OrderedAccess)
	params = append(params, cdr.Parameter{ID: PIDPresentation, Value: w.Bytes()[4:]})

	for _, name := range q.Partition.Names {
		params = putString(params, PIDPartition, name)
	}
	if len(q.TopicData.Value) > 0 {
		params = append(params, cdr.Parameter{ID: PIDTopicData, Value: q.TopicData.Value})
	}
	if len(q.GroupData.Value) > 0 {
		params = append(params, cdr.Parameter{ID: PIDGroupData, Value: q.GroupData.Value})
	}
	if len(q.UserData.Value) > 0 {
		params = append(params, cdr.Parameter{ID: PIDUserData, Value: q.UserData.Value})
	}
	for _, v := range q.DataRepresentation.Values {
		w = cdr.NewWriter(cdr.EncapsulationCDR_LE)
		w.WriteI16(v)
		params = append(params, cdr.Parameter{ID: PIDDataRepresentation, Value: w.Bytes()[4:]})
	}
	return params
}

// qosFromParameterList is the dual of qosToParameterList; absent PIDs leave
// the corresponding field at its qos.Default() value.
func qosFromParameterList(params cdr.ParameterList) qos.Set {
	q := qos.Default()
	if v, ok := getU32(params, PIDDurability); ok {
		q.Durability.Kind = qos.DurabilityKind(v)
	}
	if d, ok := durationPair(params, PIDDeadline); ok {
		q.Deadline.Period = d
	}
	if d, ok := durationPair(params, PIDLatencyBudget); ok {
		q.LatencyBudget.Duration = d
	}
	if p, ok := params.Get(PIDLiveliness); ok {
		if r, _, err := cdr.NewReader(withCDRHeader(p.Value)); err == nil {
			kind, _ := r.ReadU32()
			d, _ := readDuration(r)
			q.Liveliness.Kind = qos.LivelinessKind(kind)
			q.Liveliness.LeaseDuration = d
		}
	}
	if p, ok := params.Get(PIDReliability); ok {
		if r, _, err := cdr.NewReader(withCDRHeader(p.Value)); err == nil {
			kind, _ := r.ReadU32()
			d, _ := readDuration(r)
			q.Reliability.Kind = qos.ReliabilityKind(kind)
			q.Reliability.MaxBlockingTime = d
		}
	}
	if d, ok := durationPair(params, PIDLifespan); ok {
		q.Lifespan.Duration = d
	}
	if v, ok := getU32(params, PIDOwnership); ok {
		q.Ownership.Kind = qos.OwnershipKind(v)
	}
	if v, ok := getU32(params, PIDOwnershipStrength); ok {
		q.OwnershipStrength.Value = int32(v)
	}
	if v, ok := getU32(params, PIDDestinationOrder); ok {
		q.DestinationOrder.Kind = qos.DestinationOrderKind(v)
	}
	if p, ok := params.Get(PIDPresentation); ok {
		if r, _, err := cdr.NewReader(withCDRHeader(p.Value)); err == nil {
			scope, _ := r.ReadU32()
			coherent, _ := r.ReadBool()
			ordered, _ := r.ReadBool()
			q.Presentation.AccessScope = qos.PresentationAccessScope(scope)
			q.Presentation.CoherentAccess = coherent
			q.Presentation.OrderedAccess = ordered
		}
	}
	for _, p := range params.GetAll(PIDPartition) {
		if r, _, err := cdr.NewReader(withCDRHeader(p.Value)); err == nil {
			if s, err := r.ReadString(); err == nil {
				q.Partition.Names = append(q.Partition.Names, s)
			}
		}
	}
	if p, ok := params.Get(PIDTopicData); ok {
		q.TopicData.Value = p.Value
	}
	if p, ok := params.Get(PIDGroupData); ok {
		q.GroupData.Value = p.Value
	}
	if p, ok := params.Get(PIDUserData); ok {
		q.UserData.Value = p.Value
	}
	for _, p := range params.GetAll(PIDDataRepresentation) {
		if r, _, err := cdr.NewReader(withCDRHeader(p.Value)); err == nil {
			if v, err := r.ReadI16(); err == nil {
				q.DataRepresentation.Values = append(q.DataRepresentation.Values, v)
			}
		}
	}
	return q
}

func writeDuration(w *cdr.Writer, d time.Duration) {
	w.WriteI32(int32(d / time.Second))
	w.WriteU32(fracFromNanos(int64(d % time.Second)))
}

func readDuration(r *cdr.Reader) (time.Duration, error) {
	sec, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	frac, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return secFracToDuration(sec, frac), nil
}

func putDurationPair(params cdr.ParameterList, pid cdr.ParameterId, d time.Duration) cdr.ParameterList {
	w := cdr.NewWriter(cdr.EncapsulationCDR_LE)
	writeDuration(w, d)
	return append(params, cdr.Parameter{ID: pid, Value: w.Bytes()[4:]})
}

func durationPair(params cdr.ParameterList, pid cdr.ParameterId) (time.Duration, bool) {
	p, ok := params.Get(pid)
	if !ok {
		return 0, false
	}
	r, _, err := cdr.NewReader(withCDRHeader(p.Value))
	if err != nil {
		return 0, false
	}
	d, err := readDuration(r)
	if err != nil {
		return 0, false
	}
	return d, true
}

func fracFromNanos(nanos int64) uint32 {
	if nanos <= 0 {
		return 0
	}
	return uint32((nanos << 32) / int64(time.Second))
}

func secFracToDuration(sec int32, frac uint32) time.Duration {
	return time.Duration(sec)*time.Second + time.Duration(int64(frac)*int64(time.Second)/(1<<32))
}
