package server

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"github.com/indigo-web/vireo/internal/protocol/http1"
	"github.com/indigo-web/vireo/internal/timer"
	"github.com/indigo-web/vireo/internal/transport"
	"go.uber.org/zap"
)

const (
	http10 = "HTTP/1.0"
	http11 = "HTTP/1.1"
)

// serve runs a single exchange. It's executed by a worker, which owns the connection
// for the whole time.
func (s *Server) serve(c *Connection) {
	if c.Closed() {
		return
	}

	if t, ok := c.transport.(*transport.TLS); ok && t.TLS() == nil {
		if err := t.Handshake(context.Background()); err != nil {
			s.log.Debug("tls handshake failed", connField(c), zap.Error(err))
			s.closeConnection(c)
			return
		}
	}

	ex, err := s.readRequest(c)
	if err != nil {
		s.reject(c, err)
		return
	}

	s.run(ex)
	s.complete(ex)
}

// readRequest parses the request head and builds the exchange.
func (s *Server) readRequest(c *Connection) (*exchange, error) {
	method, target, proto, err := c.parser.RequestLine(c.reader)
	if err != nil {
		return nil, err
	}

	if proto != http11 && proto != http10 {
		return nil, status.ErrUnsupportedProtocol
	}

	uri, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, status.ErrBadRequestURI
	}

	hdrs := headers.NewPrealloc(16)
	if err = c.parser.Headers(c.reader, hdrs); err != nil {
		return nil, err
	}

	length, err := http1.BodyLength(hdrs)
	if err != nil {
		return nil, err
	}

	ctx := s.contexts.Find(s.protocol, uri.Path)
	if ctx == nil {
		return nil, status.ErrNoContext
	}

	if ctx.Handler() == nil {
		return nil, status.ErrNoHandler
	}

	ex := newExchange(s, c, ctx, method, uri, proto, hdrs, length)
	s.exchanges.Add(1)

	if length == 0 {
		s.requestCompleted(c)
	}

	s.keepAlive(ex)

	if proto == http11 && strcomp.EqualFold(hdrs.Value("Expect"), "100-continue") {
		if _, err = c.transport.Write(http1.AppendInterim(nil, status.Continue)); err != nil {
			s.log.Debug("can't send interim response", connField(c), zap.Error(err))
			ex.Abort()
		}
	}

	return ex, nil
}

// keepAlive decides whether the connection outlives the exchange.
func (s *Server) keepAlive(ex *exchange) {
	conn := ex.request.Values("Connection")

	if ex.protocol == http10 {
		if !http1.HasToken(conn, "keep-alive") {
			ex.closeConn = true
			ex.response.Set("Connection", "close")
			return
		}

		ex.response.Set("Connection", "keep-alive")
		ex.response.Set("Keep-Alive",
			"timeout="+strconv.FormatInt(int64(s.cfg.Idle.Interval.Seconds()), 10)+
				", max="+strconv.Itoa(s.cfg.Idle.MaxConnections),
		)
		return
	}

	if http1.HasToken(conn, "close") {
		ex.closeConn = true
	}
}

func (s *Server) run(ex *exchange) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("handler panicked",
				connField(ex.conn),
				zap.String("path", ex.uri.Path),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			ex.Abort()
		}

		ex.release()
	}()

	if ex.isAborted() {
		return
	}

	if err := ex.ctx.Chain().Next(ex); err != nil {
		s.log.Info("exchange failed",
			connField(ex.conn),
			zap.String("path", ex.uri.Path),
			zap.Error(err),
		)
		ex.Abort()
	}
}

// reject answers protocol violations with an error reply. Anything else is a transport
// failure, after which the connection is just closed.
func (s *Server) reject(c *Connection, err error) {
	var httpErr status.HTTPError

	switch {
	case errors.As(err, &httpErr):
		s.log.Info("rejecting request",
			connField(c),
			codeField(httpErr.Code),
			zap.String("reason", httpErr.Message),
		)
		reply := http1.AppendErrorReply(nil, httpErr.Code, httpErr.Message, timer.Date())
		_, _ = c.transport.Write(reply)
	case errors.Is(err, io.EOF):
	default:
		s.log.Debug("closing: bad request", connField(c), zap.Error(err))
	}

	s.closeConnection(c)
}
