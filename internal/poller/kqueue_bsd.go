//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package poller

import (
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type kqueue struct {
	kqfd   int
	wakeR  int
	wakeW  int
	events []unix.Kevent_t
	ready  []int
	// mu guards the descriptors against being used after Close
	mu     sync.RWMutex
	closed bool
}

// New returns a kqueue-based poller, woken up via a self-pipe.
func New() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	unix.CloseOnExec(kqfd)

	var fds [2]int
	if err = unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(kqfd)
		return nil, os.NewSyscallError("pipe", err)
	}

	p := &kqueue{
		kqfd:   kqfd,
		wakeR:  fds[0],
		wakeW:  fds[1],
		events: make([]unix.Kevent_t, 1024),
	}

	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err = unix.SetNonblock(fd, true); err != nil {
			_ = p.Close()
			return nil, os.NewSyscallError("fcntl", err)
		}
	}

	if err = p.Add(p.wakeR); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

func (p *kqueue) control(fd int, flags int) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	var change [1]unix.Kevent_t
	unix.SetKevent(&change[0], fd, unix.EVFILT_READ, flags)

	_, err := unix.Kevent(p.kqfd, change[:], nil, nil)
	return os.NewSyscallError("kevent", err)
}

func (p *kqueue) Add(fd int) error {
	return p.control(fd, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueue) Remove(fd int) error {
	return p.control(fd, unix.EV_DELETE)
}

func (p *kqueue) Wait(timeout time.Duration) ([]int, error) {
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(p.kqfd, nil, p.events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, os.NewSyscallError("kevent", err)
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Ident)
		if fd == p.wakeR {
			p.drainWake()
			continue
		}

		p.ready = append(p.ready, fd)
	}

	return p.ready, nil
}

func (p *kqueue) Wake() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	_, err := unix.Write(p.wakeW, []byte{1})
	if err == unix.EAGAIN {
		// the pipe is full, so the wake-up is pending anyway
		return nil
	}

	return os.NewSyscallError("write", err)
}

func (p *kqueue) drainWake() {
	var buff [64]byte
	for {
		if n, err := unix.Read(p.wakeR, buff[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (p *kqueue) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	_ = unix.Close(p.wakeR)
	_ = unix.Close(p.wakeW)
	return os.NewSyscallError("close", unix.Close(p.kqfd))
}
