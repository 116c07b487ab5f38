package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"ddscore/internal/ddsid"
)

// UDPTransport implements Transport over a single IPv4 UDP socket, joining
// multicast groups via golang.org/x/net/ipv4 the way standard RTPS stacks
// manage their SPDP/SEDP multicast membership.
type UDPTransport struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	local []ddsid.Locator

	mu     sync.Mutex
	closed bool

	recvBuf []byte
}

// Options configures a UDPTransport.
type Options struct {
	// Port is the local UDP port to bind. Zero selects an ephemeral port.
	Port int
	// MulticastTTL bounds how far multicast datagrams (SPDP announcements)
	// travel; the RTPS default keeps discovery traffic on the local segment.
	MulticastTTL int
	// MulticastLoopback lets a participant receive its own multicast
	// announcements, useful when multiple participants share one host.
	MulticastLoopback bool
}

// DefaultOptions returns RTPS-sane defaults: TTL 1, loopback enabled so
// same-host participants (the common development topology) can discover
// each other.
func DefaultOptions() Options {
	return Options{MulticastTTL: 1, MulticastLoopback: true}
}

// NewUDPTransport binds a UDP socket and wraps it for multicast control.
func NewUDPTransport(opts Options) (*UDPTransport, error) {
	conn, err := listenReusable(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if opts.MulticastTTL > 0 {
		_ = pconn.SetMulticastTTL(opts.MulticastTTL)
	}
	_ = pconn.SetMulticastLoopback(opts.MulticastLoopback)

	local, err := localLocators(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &UDPTransport{
		conn:    conn,
		pconn:   pconn,
		local:   local,
		recvBuf: make([]byte, 64*1024),
	}, nil
}

func localLocators(conn *net.UDPConn) ([]ddsid.Locator, error) {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, errors.New("transport: unexpected local addr type")
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return []ddsid.Locator{locatorFor(net.IPv4(127, 0, 0, 1), addr.Port)}, nil
	}
	var out []ddsid.Locator
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			out = append(out, locatorFor(ip4, addr.Port))
		}
	}
	if len(out) == 0 {
		out = append(out, locatorFor(net.IPv4(127, 0, 0, 1), addr.Port))
	}
	return out, nil
}

func locatorFor(ip net.IP, port int) ddsid.Locator {
	ip4 := ip.To4()
	return ddsid.NewUDPv4Locator(ip4[0], ip4[1], ip4[2], ip4[3], uint32(port))
}

// JoinMulticast joins the multicast group described by group on every
// available multicast-capable interface.
func (t *UDPTransport) JoinMulticast(group ddsid.Locator) error {
	a, b, c, d := group.IPv4()
	groupAddr := &net.UDPAddr{IP: net.IPv4(a, b, c, d), Port: int(group.Port)}

	ifaces, err := net.Interfaces()
	if err != nil {
		return t.pconn.JoinGroup(nil, groupAddr)
	}
	var joined bool
	var lastErr error
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := t.pconn.JoinGroup(&iface, groupAddr); err != nil {
			lastErr = err
			continue
		}
		joined = true
	}
	if !joined {
		if lastErr != nil {
			return fmt.Errorf("transport: join multicast %s: %w", group, lastErr)
		}
		return t.pconn.JoinGroup(nil, groupAddr)
	}
	return nil
}

// Send transmits buf to every destination, continuing past per-destination
// failures so one bad locator cannot stall the batch (spec.md section 7).
func (t *UDPTransport) Send(ctx context.Context, buf []byte, destinations []ddsid.Locator) error {
	var firstErr error
	for _, dest := range destinations {
		if dest.Kind != ddsid.LocatorKindUDPv4 {
			continue
		}
		a, b, c, d := dest.IPv4()
		addr := &net.UDPAddr{IP: net.IPv4(a, b, c, d), Port: int(dest.Port)}
		if _, err := t.conn.WriteToUDP(buf, addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recv blocks until a datagram is available or ctx is cancelled.
func (t *UDPTransport) Recv(ctx context.Context) (Datagram, error) {
	type result struct {
		dg  Datagram
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, addr, err := t.conn.ReadFromUDP(t.recvBuf)
		if err != nil {
			ch <- result{err: err}
			return
		}
		payload := append([]byte(nil), t.recvBuf[:n]...)
		ch <- result{dg: Datagram{Payload: payload, Source: locatorFromUDPAddr(addr)}}
	}()
	select {
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case r := <-ch:
		return r.dg, r.err
	}
}

func locatorFromUDPAddr(addr *net.UDPAddr) ddsid.Locator {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return ddsid.LocatorInvalid
	}
	return locatorFor(ip4, addr.Port)
}

// LocalLocators returns the locators this transport is reachable at.
func (t *UDPTransport) LocalLocators() []ddsid.Locator { return t.local }

// Close releases the socket.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
