//go:build !unix

package transport

import "net"

// listenReusable binds a UDP socket without port-sharing socket options on
// non-unix platforms, where golang.org/x/sys/unix is unavailable.
func listenReusable(port int) (*net.UDPConn, error) {
	return net.ListenUDP("udp4", &net.UDPAddr{Port: port})
}
