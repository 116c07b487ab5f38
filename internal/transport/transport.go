// Package transport defines the Transport capability consumed by the RTPS
// core (spec.md section 6) and provides a concrete UDP implementation.
// Socket I/O and the executor that drives it are explicitly out of scope
// for the core per spec.md section 1; this package is the "external
// collaborator" the core is written against.
package transport

import (
	"context"

	"ddscore/internal/ddsid"
)

// Datagram is one received UDP payload paired with the locator it arrived from.
type Datagram struct {
	Payload []byte
	Source  ddsid.Locator
}

// Transport is the capability the RTPS core depends on for all network I/O.
// Its Send must be safe for concurrent callers, per spec.md section 5 ("the
// transport is the only truly shared resource... the implementation may
// serialize internally").
type Transport interface {
	// Send transmits buf to every destination locator. A failed send to one
	// destination must not prevent attempts to the others; spec.md section 7
	// requires send failures to be logged and retried on the next tick, not
	// propagated as a hard error for the whole batch.
	Send(ctx context.Context, buf []byte, destinations []ddsid.Locator) error

	// Recv blocks until a datagram is available, ctx is done, or the
	// transport is closed. It never blocks callers beyond the capability
	// boundary described in spec.md section 5 ("awaiting the transport's
	// non-blocking send" — Recv is the dual wait point for the receive side).
	Recv(ctx context.Context) (Datagram, error)

	// LocalLocators returns the locators this transport is reachable at,
	// used to populate SPDP metatraffic/default locator lists.
	LocalLocators() []ddsid.Locator

	// JoinMulticast subscribes the transport to a multicast group locator so
	// SPDP/SEDP traffic sent to it is delivered to Recv.
	JoinMulticast(group ddsid.Locator) error

	// Close releases the underlying sockets. Pending Recv calls return an error.
	Close() error
}
