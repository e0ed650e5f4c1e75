package server

import (
	"time"

	"github.com/indigo-web/vireo/internal/timer"
)

func (s *Server) startTimers() {
	s.timers.Add(1)
	go s.tick(s.cfg.Timers.ClockTick, s.sweepIdle)

	if s.cfg.Deadlines.Request > 0 || s.cfg.Deadlines.Response > 0 {
		s.timers.Add(1)
		go s.tick(s.cfg.Timers.DeadlineTick, s.sweepDeadlines)
	}
}

func (s *Server) tick(period time.Duration, sweep func(now int64)) {
	defer s.timers.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			sweep(timer.Now().UnixNano())
		}
	}
}

// sweepIdle closes idle connections whose deadline passed. A connection, which became
// readable in the meantime, belongs to the dispatcher already and is skipped.
func (s *Server) sweepIdle(now int64) {
	s.idle.Range(func(c *Connection, _ struct{}) bool {
		if c.idleDeadline.Load() > now || !c.registered.CompareAndSwap(true, false) {
			return true
		}

		s.idle.Delete(c)
		s.unregister(c)
		s.log.Info("closing: idle connection", connField(c))
		s.closeConnection(c)

		return true
	})
}

// sweepDeadlines closes connections, which are too long in the request or the response
// phase. Their workers notice it by failing I/O.
func (s *Server) sweepDeadlines(now int64) {
	expire := func(phase set, limit time.Duration, started func(*Connection) int64, msg string) {
		if limit <= 0 {
			return
		}

		phase.Range(func(c *Connection, _ struct{}) bool {
			if now-started(c) >= int64(limit) {
				s.log.Info(msg, connField(c))
				s.closeConnection(c)
			}

			return true
		})
	}

	expire(s.requests, s.cfg.Deadlines.Request, func(c *Connection) int64 {
		return c.created.Load()
	}, "closing: no request")
	expire(s.responses, s.cfg.Deadlines.Response, func(c *Connection) int64 {
		return c.responseStarted.Load()
	}, "closing: no response")
}
