//go:build unix

package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen binds a TCP listener. Positive backlog sets the length of the pending connections
// queue, otherwise the system default is used.
func Listen(addr string, backlog int) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	if backlog <= 0 {
		return net.ListenTCP("tcp", tcpaddr)
	}

	domain, sa := sockaddr(tcpaddr)
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	unix.CloseOnExec(fd)

	if err = listenFD(fd, sa, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	file := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:%s", tcpaddr))
	defer file.Close()

	l, err := net.FileListener(file)
	if err != nil {
		return nil, err
	}

	return l.(*net.TCPListener), nil
}

func listenFD(fd int, sa unix.Sockaddr, backlog int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		return os.NewSyscallError("listen", err)
	}

	return nil
}

func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}
