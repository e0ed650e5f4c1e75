//go:build !unix

package transport

import "net"

// Listen binds a TCP listener. The backlog can't be set on this platform and is ignored.
func Listen(addr string, _ int) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}
