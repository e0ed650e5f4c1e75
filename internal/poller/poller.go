package poller

import (
	"errors"
	"syscall"
	"time"
)

var (
	ErrUnsupported = errors.New("poller: readiness multiplexing is not supported on this platform")
	ErrClosed      = errors.New("poller: closed")
)

// Poller watches file descriptors for read readiness. Registrations are level-triggered:
// a descriptor with unread data is reported by every Wait until it's removed.
type Poller interface {
	// Add starts watching the descriptor.
	Add(fd int) error
	// Remove stops watching the descriptor.
	Remove(fd int) error
	// Wait blocks until some descriptors are ready, the timeout expires or Wake is called.
	// The returned slice is valid until the next call.
	Wait(timeout time.Duration) ([]int, error)
	// Wake interrupts the ongoing or the next Wait. It is safe to call from any goroutine,
	// also after Close.
	Wake() error
	Close() error
}

// FD returns the descriptor of a socket. The descriptor stays valid as long as the socket
// isn't closed.
func FD(conn syscall.Conn) (fd int, err error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	err = raw.Control(func(descriptor uintptr) {
		fd = int(descriptor)
	})

	return fd, err
}
