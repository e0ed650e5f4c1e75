//go:build linux

package poller

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type epoll struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
	ready  []int
	// mu guards the descriptors against being used after Close
	mu     sync.RWMutex
	closed bool
}

// New returns an epoll-based poller, woken up via eventfd.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	p := &epoll{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, 1024),
	}

	if err = p.Add(wakefd); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

func (p *epoll) Add(fd int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	ev := unix.EpollEvent{
		// level-triggered, peer shutdown is reported as readiness too
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}

	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev))
}

func (p *epoll) Remove(fd int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

func (p *epoll) Wait(timeout time.Duration) ([]int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, int(timeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, os.NewSyscallError("epoll_wait", err)
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}

		p.ready = append(p.ready, fd)
	}

	return p.ready, nil
}

func (p *epoll) Wake() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)

	_, err := unix.Write(p.wakefd, one[:])
	if err == unix.EAGAIN {
		// the counter is saturated, so the wake-up is pending anyway
		return nil
	}

	return os.NewSyscallError("write", err)
}

func (p *epoll) drainWake() {
	var counter [8]byte
	_, _ = unix.Read(p.wakefd, counter[:])
}

func (p *epoll) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	_ = unix.Close(p.wakefd)
	return os.NewSyscallError("close", unix.Close(p.epfd))
}
