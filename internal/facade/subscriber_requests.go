package facade

import (
	"ddscore/internal/participant"
	"ddscore/internal/qos"
	"ddscore/internal/typesupport"
)

// CreateDataReaderRequest implements the subscriber family's
// create_datareader operation of spec.md section 6. A nil QoS falls back
// to the owning subscriber's default QoS.
type CreateDataReaderRequest struct {
	Subscriber *participant.Subscriber
	Topic      string
	TypeName   string
	TypeSup    typesupport.TypeSupport
	QoS        *qos.Set
	Reply      chan CreateDataReaderResult
}

type CreateDataReaderResult struct {
	Reader *participant.DataReader
	Err    error
}

func (r CreateDataReaderRequest) execute(*participant.Participant) {
	dr, err := r.Subscriber.CreateDataReader(r.Topic, r.TypeName, r.TypeSup, r.QoS)
	r.Reply <- CreateDataReaderResult{Reader: dr, Err: err}
}

// DeleteDataReaderRequest implements delete_datareader.
type DeleteDataReaderRequest struct {
	Subscriber *participant.Subscriber
	Reader     *participant.DataReader
	Reply      chan error
}

func (r DeleteDataReaderRequest) execute(*participant.Participant) {
	r.Reply <- r.Subscriber.DeleteDataReader(r.Reader)
}

// BeginAccessRequest and EndAccessRequest bracket a coherent multi-reader
// access, per spec.md section 6.
type BeginAccessRequest struct {
	Subscriber *participant.Subscriber
	Reply      chan struct{}
}

func (r BeginAccessRequest) execute(*participant.Participant) {
	r.Subscriber.BeginAccess()
	r.Reply <- struct{}{}
}

type EndAccessRequest struct {
	Subscriber *participant.Subscriber
	Reply      chan struct{}
}

func (r EndAccessRequest) execute(*participant.Participant) {
	r.Subscriber.EndAccess()
	r.Reply <- struct{}{}
}
