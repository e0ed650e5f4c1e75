package vireo

import (
	"net"
	"time"

	"github.com/indigo-web/vireo/config"
	"github.com/indigo-web/vireo/http"
	"github.com/indigo-web/vireo/internal/record"
	"github.com/indigo-web/vireo/internal/server"
	"github.com/indigo-web/vireo/internal/workers"
	"github.com/indigo-web/vireo/router"
	"go.uber.org/zap"
)

// Executor runs the exchanges. By default, they're run right on the dispatcher goroutine,
// unless config.Workers.Number is set.
type Executor = workers.Executor

// Configurator supplies the TLS configuration, possibly different per client.
type Configurator = record.Configurator

// Parameters are the per-connection TLS settings, adjustable by a Configurator.
type Parameters = record.Parameters

var (
	ErrNotBound      = server.ErrNotBound
	ErrAlreadyBound  = server.ErrAlreadyBound
	ErrStarted       = server.ErrStarted
	ErrNotStarted    = server.ErrNotStarted
	ErrStopped       = server.ErrStopped
	ErrNegativeGrace = server.ErrNegativeGrace
	ErrHasContexts   = server.ErrHasContexts
)

// Server is an HTTP/1.x server. Create it with New, bind it, register the contexts and
// start it. Both plaintext and TLS connections are served by the same engine, TLS is
// enabled via Server.TLS.
type Server struct {
	impl *server.Server
}

// New returns a server. Nil config stands for config.Default().
func New(cfg *config.Config) *Server {
	return &Server{
		impl: server.New(cfg),
	}
}

// Bind opens the listening socket at addr, e.g. ":8080". Non-positive backlog leaves it to
// the config, or the system if unset there too.
func (s *Server) Bind(addr string, backlog int) error {
	return s.impl.Bind(addr, backlog)
}

// Start launches the server in the background.
func (s *Server) Start() error {
	return s.impl.Start()
}

// Stop stops accepting new connections, waits up to grace for the ongoing exchanges and
// closes every connection left.
func (s *Server) Stop(grace time.Duration) error {
	return s.impl.Stop(grace)
}

// CreateContext binds the handler to every request path, starting with the path. The
// longest matching context wins. The handler is optional and can be set later via
// router.Context.SetHandler.
func (s *Server) CreateContext(path string, handler ...http.Handler) (*router.Context, error) {
	var h http.Handler
	if len(handler) > 0 {
		h = handler[0]
	}

	return s.impl.CreateContext(path, h)
}

// RemoveContext removes the context bound to exactly the path.
func (s *Server) RemoveContext(path string) error {
	return s.impl.RemoveContext(path)
}

// RemoveContextHandle removes the context.
func (s *Server) RemoveContextHandle(ctx *router.Context) error {
	return s.impl.RemoveContextHandle(ctx)
}

// Address returns the bound address, or nil if the server isn't bound.
func (s *Server) Address() net.Addr {
	return s.impl.Address()
}

// TLS enables TLS. It must be called before creating any context.
func (s *Server) TLS(c Configurator) error {
	return s.impl.SetTLS(c)
}

// Executor replaces the executor. It must be called before Start.
func (s *Server) Executor(e Executor) error {
	return s.impl.SetExecutor(e)
}

// Logger replaces the logger, which is zap.NewNop() by default. It must be called
// before Start.
func (s *Server) Logger(log *zap.Logger) error {
	return s.impl.SetLogger(log)
}

// Protocol returns either "http" or "https".
func (s *Server) Protocol() string {
	return s.impl.Protocol()
}
