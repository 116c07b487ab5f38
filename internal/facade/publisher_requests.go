package facade

import (
	"ddscore/internal/participant"
	"ddscore/internal/qos"
	"ddscore/internal/typesupport"
)

// CreateDataWriterRequest implements the publisher family's
// create_datawriter operation of spec.md section 6. A nil QoS falls back
// to the owning publisher's default QoS.
type CreateDataWriterRequest struct {
	Publisher *participant.Publisher
	Topic     string
	TypeName  string
	TypeSup   typesupport.TypeSupport
	QoS       *qos.Set
	Reply     chan CreateDataWriterResult
}

type CreateDataWriterResult struct {
	Writer *participant.DataWriter
	Err    error
}

func (r CreateDataWriterRequest) execute(*participant.Participant) {
	w, err := r.Publisher.CreateDataWriter(r.Topic, r.TypeName, r.TypeSup, r.QoS)
	r.Reply <- CreateDataWriterResult{Writer: w, Err: err}
}

// DeleteDataWriterRequest implements delete_datawriter.
type DeleteDataWriterRequest struct {
	Publisher *participant.Publisher
	Writer    *participant.DataWriter
	Reply     chan error
}

func (r DeleteDataWriterRequest) execute(*participant.Participant) {
	r.Reply <- r.Publisher.DeleteDataWriter(r.Writer)
}
