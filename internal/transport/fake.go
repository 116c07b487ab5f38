package transport

import (
	"context"
	"sync"

	"ddscore/internal/ddsid"
)

// Fake is an in-memory Transport used by protocol state-machine tests,
// adapted from the teacher's fake WebSocket dialer idiom: instead of a real
// socket, Fakes sharing a *Network deliver datagrams directly to each
// other's inbound channel.
type Fake struct {
	net    *Network
	self   ddsid.Locator
	inbox  chan Datagram
	joined map[ddsid.Locator]struct{}
	mu     sync.Mutex
	closed bool

	// Drop, when set, is called with each outbound message; a true result
	// discards the whole message, letting tests simulate packet loss (spec.md
	// scenario S2) without a real lossy network.
	Drop func(buf []byte) bool
}

// Network is a shared medium multiple Fakes attach to.
type Network struct {
	mu        sync.Mutex
	byLocator map[ddsid.Locator]*Fake
	multicast map[ddsid.Locator][]*Fake
}

// NewNetwork constructs an empty fake network.
func NewNetwork() *Network {
	return &Network{
		byLocator: make(map[ddsid.Locator]*Fake),
		multicast: make(map[ddsid.Locator][]*Fake),
	}
}

// NewFake attaches a new Fake transport to the network at the given unicast locator.
func (n *Network) NewFake(self ddsid.Locator) *Fake {
	f := &Fake{net: n, self: self, inbox: make(chan Datagram, 256), joined: make(map[ddsid.Locator]struct{})}
	n.mu.Lock()
	n.byLocator[self] = f
	n.mu.Unlock()
	return f
}

// JoinMulticast registers this Fake to receive datagrams sent to group.
func (f *Fake) JoinMulticast(group ddsid.Locator) error {
	f.net.mu.Lock()
	defer f.net.mu.Unlock()
	f.net.multicast[group] = append(f.net.multicast[group], f)
	f.joined[group] = struct{}{}
	return nil
}

// Send delivers buf to every destination currently reachable on the network.
func (f *Fake) Send(_ context.Context, buf []byte, destinations []ddsid.Locator) error {
	if f.Drop != nil && f.Drop(buf) {
		return nil
	}
	f.net.mu.Lock()
	defer f.net.mu.Unlock()
	for _, dest := range destinations {
		if peer, ok := f.net.byLocator[dest]; ok {
			deliver(peer, buf, f.self)
			continue
		}
		for _, peer := range f.net.multicast[dest] {
			deliver(peer, buf, f.self)
		}
	}
	return nil
}

func deliver(peer *Fake, buf []byte, from ddsid.Locator) {
	peer.mu.Lock()
	closed := peer.closed
	peer.mu.Unlock()
	if closed {
		return
	}
	cp := append([]byte(nil), buf...)
	select {
	case peer.inbox <- Datagram{Payload: cp, Source: from}:
	default:
	}
}

// Recv blocks until a datagram arrives or ctx is done.
func (f *Fake) Recv(ctx context.Context) (Datagram, error) {
	select {
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case dg := <-f.inbox:
		return dg, nil
	}
}

// LocalLocators returns this Fake's single unicast locator.
func (f *Fake) LocalLocators() []ddsid.Locator { return []ddsid.Locator{f.self} }

// Close marks the Fake closed; queued sends to it are dropped thereafter.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
