package facade

import (
	"context"
	"time"

	"ddscore/internal/ddsid"
	"ddscore/internal/participant"
)

// WriteRequest implements the writer family's write operation of spec.md
// section 6.
type WriteRequest struct {
	Writer *participant.DataWriter
	Sample any
	Reply  chan error
}

func (r WriteRequest) execute(*participant.Participant) {
	r.Reply <- r.Writer.Write(r.Sample)
}

// RegisterInstanceRequest implements register_instance.
type RegisterInstanceRequest struct {
	Writer *participant.DataWriter
	Key    []byte
	Reply  chan ddsid.InstanceHandle
}

func (r RegisterInstanceRequest) execute(*participant.Participant) {
	r.Reply <- r.Writer.RegisterInstance(r.Key)
}

// UnregisterInstanceRequest implements unregister_instance.
type UnregisterInstanceRequest struct {
	Writer   *participant.DataWriter
	Instance ddsid.InstanceHandle
	Reply    chan struct{}
}

func (r UnregisterInstanceRequest) execute(*participant.Participant) {
	r.Writer.UnregisterInstance(r.Instance)
	r.Reply <- struct{}{}
}

// DisposeRequest implements dispose.
type DisposeRequest struct {
	Writer   *participant.DataWriter
	Instance ddsid.InstanceHandle
	Reply    chan struct{}
}

func (r DisposeRequest) execute(*participant.Participant) {
	r.Writer.Dispose(r.Instance)
	r.Reply <- struct{}{}
}

// WaitForAcknowledgmentsRequest implements wait_for_acknowledgments. Ctx
// and MaxWait bound how long the Mailbox goroutine blocks executing this
// request; callers needing the mailbox to stay responsive to other writers
// in the meantime should run separate mailboxes per writer, per spec.md
// section 5's per-entity ordering requirement.
type WaitForAcknowledgmentsRequest struct {
	Writer  *participant.DataWriter
	Ctx     context.Context
	MaxWait time.Duration
	Reply   chan error
}

func (r WaitForAcknowledgmentsRequest) execute(*participant.Participant) {
	r.Reply <- r.Writer.WaitForAcknowledgments(r.Ctx, r.MaxWait)
}

// GetMatchedSubscriptionsRequest implements the writer's matched-reader
// query.
type GetMatchedSubscriptionsRequest struct {
	Writer *participant.DataWriter
	Reply  chan []ddsid.GUID
}

func (r GetMatchedSubscriptionsRequest) execute(*participant.Participant) {
	r.Reply <- r.Writer.MatchedSubscriptions()
}
