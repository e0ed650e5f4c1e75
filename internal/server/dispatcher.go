package server

import (
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/vireo/internal/poller"
	"github.com/indigo-web/vireo/internal/record"
	"github.com/indigo-web/vireo/internal/timer"
	"github.com/indigo-web/vireo/internal/transport"
	"go.uber.org/zap"
)

// waitTimeout bounds a single poller wait, so the termination flag is checked regularly.
const waitTimeout = time.Second

const connIDLen = 12

// acceptBackoff is how long the listener is ignored after a failed accept. The listener
// stays readable, e.g. when running out of descriptors, so the loop would spin otherwise.
const acceptBackoff = 100 * time.Millisecond

func (s *Server) loop() {
	defer close(s.done)

	for !s.finished.Load() {
		s.drainEvents()
		s.registerPending()
		s.resumeAccept()

		ready, err := s.poller.Wait(waitTimeout)
		if err != nil {
			if !s.terminating.Load() {
				s.log.Error("dispatcher stopped", zap.Error(err))
			}

			return
		}

		for _, fd := range ready {
			if fd == s.lfd {
				s.accept()
				continue
			}

			s.readable(fd)
		}
	}
}

func (s *Server) accept() {
	if s.terminating.Load() {
		return
	}

	raw, err := transport.Accept(s.listener, s.cfg.NET.AcceptTimeout)
	if err != nil {
		if !s.terminating.Load() {
			s.log.Warn("accept failed", zap.Error(err), zap.Duration("backoff", acceptBackoff))
			s.pauseAccept()
		}

		return
	}

	if raw == nil {
		return
	}

	_ = raw.SetNoDelay(s.cfg.NET.NoDelay)

	fd, err := poller.FD(raw)
	if err != nil {
		s.log.Warn("can't obtain the descriptor", zap.Error(err))
		_ = raw.Close()
		return
	}

	var t transport.Transport
	if s.tls != nil {
		t = transport.NewTLS(raw, record.ConfigFor(s.tls, raw.RemoteAddr()))
	} else {
		t = transport.NewPlain(raw)
	}

	c := newConnection(uniuri.NewLen(connIDLen), raw, fd, t, s.cfg.NET.ReadBufferSize, s.cfg.Headers.MaxNumber)
	s.all.Store(c, struct{}{})
	s.requestStarted(c)

	if err = s.register(c); err != nil {
		s.log.Warn("can't register the connection", connField(c), zap.Error(err))
		s.closeConnection(c)
		return
	}

	s.log.Debug("connection accepted", connField(c), zap.Stringer("remote", raw.RemoteAddr()))
}

func (s *Server) pauseAccept() {
	if !s.paused.CompareAndSwap(false, true) {
		return
	}

	_ = s.poller.Remove(s.lfd)
	time.AfterFunc(acceptBackoff, func() {
		s.resume.Store(true)
		_ = s.poller.Wake()
	})
}

func (s *Server) resumeAccept() {
	if !s.resume.CompareAndSwap(true, false) {
		return
	}

	s.paused.Store(false)
	if s.terminating.Load() {
		return
	}

	if err := s.poller.Add(s.lfd); err != nil {
		s.log.Error("can't resume accepting", zap.Error(err))
	}
}

// readable hands the connection over to a worker.
func (s *Server) readable(fd int) {
	c, ok := s.fds.Load(fd)
	if !ok {
		_ = s.poller.Remove(fd)
		return
	}

	if !c.registered.CompareAndSwap(true, false) {
		// being closed by a timer
		return
	}

	s.unregister(c)
	if _, wasIdle := s.idle.LoadAndDelete(c); wasIdle {
		s.requestStarted(c)
	}

	s.dispatch(c)
}

func (s *Server) dispatch(c *Connection) {
	s.executor.Execute(func() {
		s.serve(c)
	})
}

// complete is called by workers once the exchange is over.
func (s *Server) complete(ex *exchange) {
	s.events.Push(Event{exchange: ex})
	_ = s.poller.Wake()
}

func (s *Server) drainEvents() {
	for {
		ev, ok := s.events.Pop()
		if !ok {
			return
		}

		s.handleEvent(ev)
	}
}

func (s *Server) handleEvent(ev Event) {
	ex, c := ev.exchange, ev.exchange.conn

	if s.exchanges.Add(-1) == 0 && s.terminating.Load() {
		s.finished.Store(true)
	}

	s.responseCompleted(c)

	switch {
	case c.Closed():
		return
	case ex.isAborted(), !ex.in.EOF(), ex.closeConn, s.terminating.Load():
		s.closeConnection(c)
		return
	}

	if c.Buffered() > 0 {
		// pipelined request
		s.requestStarted(c)
		s.dispatch(c)
		return
	}

	if !s.makeRoom() {
		s.closeConnection(c)
		return
	}

	c.idleDeadline.Store(timer.Now().Add(s.cfg.Idle.Interval).UnixNano())
	s.idle.Store(c, struct{}{})
	s.toRegister = append(s.toRegister, c)
}

// makeRoom ensures the idle pool can take one more connection, evicting the oldest one
// if needed.
func (s *Server) makeRoom() bool {
	limit := s.cfg.Idle.MaxConnections
	if limit <= 0 {
		return false
	}

	for s.idle.Size() >= limit {
		var oldest *Connection
		s.idle.Range(func(c *Connection, _ struct{}) bool {
			if oldest == nil || c.idleDeadline.Load() < oldest.idleDeadline.Load() {
				oldest = c
			}

			return true
		})

		if oldest == nil {
			return false
		}

		s.idle.Delete(oldest)
		if oldest.registered.CompareAndSwap(true, false) {
			s.unregister(oldest)
		}

		s.log.Debug("closing: idle pool is full", connField(oldest))
		s.closeConnection(oldest)
	}

	return true
}

func (s *Server) registerPending() {
	for i, c := range s.toRegister {
		s.toRegister[i] = nil
		if c.Closed() {
			continue
		}

		if err := s.register(c); err != nil {
			s.log.Warn("can't register the connection", connField(c), zap.Error(err))
			s.closeConnection(c)
		}
	}

	s.toRegister = s.toRegister[:0]
}

func (s *Server) register(c *Connection) error {
	if err := s.poller.Add(c.fd); err != nil {
		return err
	}

	s.fds.Store(c.fd, c)
	c.registered.Store(true)

	return nil
}

// unregister stops watching the connection. The caller must own it already.
func (s *Server) unregister(c *Connection) {
	_ = s.poller.Remove(c.fd)
	s.fds.Compute(c.fd, func(old *Connection, loaded bool) (*Connection, bool) {
		return old, !loaded || old == c
	})
}

func (s *Server) requestStarted(c *Connection) {
	if c.Closed() {
		return
	}

	c.setState(Request)
	c.created.Store(timer.Now().UnixNano())
	s.responses.Delete(c)
	s.requests.Store(c, struct{}{})
}

func (s *Server) requestCompleted(c *Connection) {
	if !c.state.CompareAndSwap(uint32(Request), uint32(Response)) {
		return
	}

	s.requests.Delete(c)
	c.responseStarted.Store(timer.Now().UnixNano())
	s.responses.Store(c, struct{}{})
}

func (s *Server) responseCompleted(c *Connection) {
	if c.Closed() {
		return
	}

	c.setState(Idle)
	s.requests.Delete(c)
	s.responses.Delete(c)
}

// closeConnection is idempotent and safe to be called from any goroutine.
func (s *Server) closeConnection(c *Connection) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.setState(Closed)
	if c.registered.Swap(false) {
		s.unregister(c)
	}

	s.all.Delete(c)
	s.idle.Delete(c)
	s.requests.Delete(c)
	s.responses.Delete(c)

	_ = c.transport.Close()
	_ = c.raw.Close()

	s.log.Debug("connection closed", connField(c))
}
