package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/vireo/config"
	"github.com/indigo-web/vireo/http"
	"github.com/indigo-web/vireo/http/status"
	"github.com/indigo-web/vireo/internal/poller"
	"github.com/indigo-web/vireo/internal/record"
	"github.com/indigo-web/vireo/internal/transport"
	"github.com/indigo-web/vireo/internal/workers"
	"github.com/indigo-web/vireo/router"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

var (
	ErrNotBound      = errors.New("server is not bound")
	ErrAlreadyBound  = errors.New("server is already bound")
	ErrStarted       = errors.New("server is already started")
	ErrNotStarted    = errors.New("server is not started")
	ErrStopped       = errors.New("server is stopped")
	ErrNegativeGrace = errors.New("grace period must not be negative")
	ErrHasContexts   = errors.New("protocol can't be changed once contexts are created")
)

const (
	HTTP  = "http"
	HTTPS = "https"
)

// shutdownPoll is how often Stop checks whether in-flight exchanges are done.
const shutdownPoll = 200 * time.Millisecond

type set = *xsync.MapOf[*Connection, struct{}]

// Server accepts connections and dispatches their requests to the contexts.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	contexts *router.Table
	protocol string
	tls      record.Configurator
	executor workers.Executor
	pool     *workers.Pool

	listener *net.TCPListener
	lfd      int
	poller   poller.Poller
	events   *events
	// paused is set while the listener is out of the poller after a failed accept,
	// resume once the backoff is over
	paused, resume atomic.Bool

	all, idle, requests, responses set
	// fds maps registered descriptors to their connections
	fds *xsync.MapOf[int, *Connection]
	// toRegister is touched by the dispatcher goroutine only
	toRegister []*Connection

	exchanges   atomic.Int64
	mu          sync.Mutex
	bound       bool
	started     atomic.Bool
	terminating atomic.Bool
	finished    atomic.Bool
	done        chan struct{}
	quit        chan struct{}
	timers      sync.WaitGroup
}

func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Server{
		cfg:       cfg,
		log:       zap.NewNop(),
		contexts:  router.New(),
		protocol:  HTTP,
		all:       xsync.NewMapOf[*Connection, struct{}](),
		idle:      xsync.NewMapOf[*Connection, struct{}](),
		requests:  xsync.NewMapOf[*Connection, struct{}](),
		responses: xsync.NewMapOf[*Connection, struct{}](),
		fds:       xsync.NewMapOf[int, *Connection](),
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
}

// SetTLS makes the server terminate TLS. It must be done before any context is created,
// as the contexts are bound to the protocol.
func (s *Server) SetTLS(c record.Configurator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.started.Load():
		return ErrStarted
	case s.contexts.Len() > 0:
		return ErrHasContexts
	}

	s.tls = c
	s.protocol = HTTP
	if c != nil {
		s.protocol = HTTPS
	}

	return nil
}

func (s *Server) SetExecutor(e workers.Executor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return ErrStarted
	}

	s.executor = e
	return nil
}

func (s *Server) SetLogger(log *zap.Logger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return ErrStarted
	}

	if log == nil {
		log = zap.NewNop()
	}

	s.log = log
	return nil
}

func (s *Server) Protocol() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.protocol
}

// Bind opens the listening socket. Non-positive backlog falls back to the configured one.
func (s *Server) Bind(addr string, backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound {
		return ErrAlreadyBound
	}

	if backlog <= 0 {
		backlog = s.cfg.NET.Backlog
	}

	l, err := transport.Listen(addr, backlog)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	lfd, err := poller.FD(l)
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	s.listener, s.lfd, s.bound = l, lfd, true
	return nil
}

// Address returns the bound address, or nil.
func (s *Server) Address() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Start launches the dispatcher and the timers. It doesn't block.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.bound:
		return ErrNotBound
	case s.terminating.Load():
		return ErrStopped
	case s.started.Load():
		return ErrStarted
	}

	if err := config.Validate(s.cfg); err != nil {
		return err
	}

	p, err := poller.New()
	if err != nil {
		return err
	}

	if err = p.Add(s.lfd); err != nil {
		_ = p.Close()
		return err
	}

	if s.executor == nil {
		if s.cfg.Workers.Number > 0 {
			s.pool = workers.NewPool(s.cfg.Workers.Number)
			s.executor = s.pool
		} else {
			s.executor = workers.Inline{}
		}
	}

	s.poller = p
	s.events = newEvents(s.cfg.Events.QueueSize)
	s.started.Store(true)
	s.startTimers()
	go s.loop()

	s.log.Info("server started",
		zap.String("protocol", s.protocol),
		zap.Stringer("address", s.listener.Addr()),
	)

	return nil
}

// Stop closes the listener and waits up to grace for the in-flight exchanges to complete.
// Afterward every connection is closed, no matter what state it's in.
func (s *Server) Stop(grace time.Duration) error {
	if grace < 0 {
		return ErrNegativeGrace
	}

	if !s.started.Load() {
		return ErrNotStarted
	}

	if !s.terminating.CompareAndSwap(false, true) {
		return ErrStopped
	}

	_ = s.poller.Remove(s.lfd)
	_ = s.listener.Close()
	_ = s.poller.Wake()

	deadline := time.Now().Add(grace)
	for s.exchanges.Load() > 0 {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}

		time.Sleep(min(left, shutdownPoll))
	}

	s.finished.Store(true)
	_ = s.poller.Wake()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		s.log.Warn("dispatcher is still busy, closing anyway")
	}

	s.all.Range(func(c *Connection, _ struct{}) bool {
		s.closeConnection(c)
		return true
	})

	close(s.quit)
	s.timers.Wait()
	err := s.poller.Close()

	if s.pool != nil {
		s.pool.Close()
	}

	s.log.Info("server stopped", zap.Int64("abandoned", s.exchanges.Load()))

	return err
}

// CreateContext binds the handler to the path. The handler may be nil and set later.
func (s *Server) CreateContext(path string, handler http.Handler) (*router.Context, error) {
	ctx, err := s.contexts.Create(s.Protocol(), path, handler)
	if err != nil {
		return nil, err
	}

	s.log.Info("context created", zap.String("path", path))
	return ctx, nil
}

func (s *Server) RemoveContext(path string) error {
	if err := s.contexts.Remove(s.Protocol(), path); err != nil {
		return err
	}

	s.log.Info("context removed", zap.String("path", path))
	return nil
}

func (s *Server) RemoveContextHandle(ctx *router.Context) error {
	if err := s.contexts.RemoveContext(ctx); err != nil {
		return err
	}

	s.log.Info("context removed", zap.String("path", ctx.Path()))
	return nil
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	return s.all.Size()
}

// IdleConnections returns the number of connections waiting for the next request.
func (s *Server) IdleConnections() int {
	return s.idle.Size()
}

func connField(c *Connection) zap.Field {
	return zap.String("conn", c.id)
}

func codeField(code status.Code) zap.Field {
	return zap.Uint16("code", uint16(code))
}
