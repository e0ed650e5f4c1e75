package server

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/indigo-web/vireo/http"
	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"github.com/indigo-web/vireo/internal/protocol/http1"
	"github.com/indigo-web/vireo/internal/timer"
	"github.com/indigo-web/vireo/router"
)

var ErrHeadersSent = errors.New("headers already sent")

const (
	pending uint32 = iota
	finished
	aborted
)

// exchange implements http.Exchange on top of a connection. It's driven by a single
// worker; only the completion flag is touched from elsewhere.
type exchange struct {
	server *Server
	conn   *Connection
	ctx    *router.Context

	method   string
	uri      *url.URL
	protocol string
	request  *headers.Headers
	response *headers.Headers
	length   int64

	// in and out are the underlying streams, userIn and userOut are those the handler sees
	in      *http1.LeftOver
	out     *placeholder
	userIn  io.ReadCloser
	userOut io.WriteCloser

	code       status.Code
	sent       bool
	closed     bool
	closeConn  bool
	completion atomic.Uint32
}

var (
	_ http.Exchange    = new(exchange)
	_ http1.Completion = new(exchange)
)

func newExchange(s *Server, c *Connection, ctx *router.Context, method string, uri *url.URL, proto string, hdrs *headers.Headers, length int64) *exchange {
	ex := &exchange{
		server:   s,
		conn:     c,
		ctx:      ctx,
		method:   method,
		uri:      uri,
		protocol: proto,
		request:  hdrs,
		response: headers.NewPrealloc(8),
		length:   length,
		out:      new(placeholder),
	}

	var body io.Reader
	if length == http1.Chunked {
		body = http1.NewChunkedReader(c.reader)
	} else {
		body = http1.NewFixedReader(c.reader, length)
	}

	ex.in = http1.NewLeftOver(body, s.cfg.Body.DrainAmount, func() {
		s.requestCompleted(c)
	})
	ex.userIn = ex.in
	ex.userOut = ex.out

	return ex
}

func (ex *exchange) Method() string                    { return ex.method }
func (ex *exchange) URI() *url.URL                     { return ex.uri }
func (ex *exchange) Protocol() string                  { return ex.protocol }
func (ex *exchange) RequestHeaders() *headers.Headers  { return ex.request }
func (ex *exchange) ResponseHeaders() *headers.Headers { return ex.response }
func (ex *exchange) RequestBody() io.ReadCloser        { return ex.userIn }
func (ex *exchange) ResponseBody() io.WriteCloser      { return ex.userOut }
func (ex *exchange) ResponseCode() status.Code         { return ex.code }
func (ex *exchange) RemoteAddr() net.Addr              { return ex.conn.raw.RemoteAddr() }
func (ex *exchange) LocalAddr() net.Addr               { return ex.conn.raw.LocalAddr() }
func (ex *exchange) TLS() *tls.ConnectionState         { return ex.conn.transport.TLS() }
func (ex *exchange) ContextPath() string               { return ex.ctx.Path() }

func (ex *exchange) Attribute(name string) (any, bool) {
	return ex.ctx.Attribute(name)
}

func (ex *exchange) SetAttribute(name string, value any) {
	ex.ctx.SetAttribute(name, value)
}

func (ex *exchange) SetStreams(in io.ReadCloser, out io.WriteCloser) {
	if in != nil {
		ex.userIn = in
	}

	if out != nil {
		ex.userOut = out
	}
}

func (ex *exchange) SendResponseHeaders(code status.Code, length int64) error {
	if ex.sent {
		return ErrHeadersSent
	}

	ex.sent = true
	ex.code = code
	hdrs := ex.response
	hdrs.Set("Date", timer.Date())

	noBody := code < 200 || code == status.NoContent || code == status.NotModified
	if noBody {
		if length != http.NoBody {
			ex.server.log.Debug("body is not allowed for the response code, ignoring the length",
				connField(ex.conn), codeField(code))
		}

		length = http.NoBody
	}

	var out io.WriteCloser
	switch {
	case ex.method == "HEAD":
		out = http1.NewEmptyWriter(ex.in, ex)
	case noBody:
		if code == status.NoContent || code < 200 {
			hdrs.Del("Content-length")
		}

		out = http1.NewEmptyWriter(ex.in, ex)
	case length == http.Streamed:
		if ex.protocol == "HTTP/1.0" {
			ex.closeConn = true
			out = http1.NewUndefinedWriter(ex.conn.wire, ex.in, ex)
			break
		}

		hdrs.Del("Content-length")
		hdrs.Set("Transfer-encoding", "chunked")
		out = http1.NewChunkedWriter(ex.conn.wire, ex.server.cfg.Body.ChunkSize, ex.in, ex)
	case length == http.NoBody:
		hdrs.Set("Content-length", "0")
		out = http1.NewEmptyWriter(ex.in, ex)
	default:
		hdrs.Set("Content-length", strconv.FormatInt(length, 10))
		out = http1.NewFixedWriter(ex.conn.wire, length, ex.in, ex)
	}

	if http1.HasToken(hdrs.Values("Connection"), "close") {
		ex.closeConn = true
	}

	if ex.closeConn {
		hdrs.Set("Connection", "close")
		hdrs.Del("Keep-Alive")
	}

	head, err := http1.AppendResponseHead(ex.conn.wire.head[:0], code, hdrs)
	if err != nil {
		ex.Abort()
		return err
	}

	ex.conn.wire.head = head
	ex.out.set(out)

	return nil
}

// Close completes the exchange. Without the headers sent the response can't be completed
// properly, so the connection is dropped.
func (ex *exchange) Close() error {
	if ex.closed {
		return nil
	}

	ex.closed = true

	if !ex.sent {
		ex.Abort()
		return nil
	}

	if !ex.in.Closed() {
		_ = ex.in.Close()
	}

	err := ex.userOut.Close()
	if cerr := ex.out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		ex.Abort()
	}

	return err
}

// release is called once the chain returned. Aborted exchanges aren't closed, their
// connection is dropped anyway.
func (ex *exchange) release() {
	if ex.isAborted() {
		ex.closed = true
		return
	}

	_ = ex.Close()
}

// Finished flushes the response head, if no body write did it yet.
func (ex *exchange) Finished() {
	if err := ex.conn.wire.Flush(); err != nil {
		ex.Abort()
		return
	}

	ex.completion.CompareAndSwap(pending, finished)
}

func (ex *exchange) Abort() {
	ex.completion.Store(aborted)
}

func (ex *exchange) isAborted() bool {
	return ex.completion.Load() == aborted
}

// placeholder is the response body stream until the headers are sent. Afterward it
// forwards to the framing stream selected by them.
type placeholder struct {
	w io.WriteCloser
}

func (p *placeholder) set(w io.WriteCloser) {
	p.w = w
}

func (p *placeholder) Write(b []byte) (int, error) {
	if p.w == nil {
		return 0, http1.ErrHeadersNotSent
	}

	return p.w.Write(b)
}

// Flush is available for chunked responses only.
func (p *placeholder) Flush() error {
	if f, ok := p.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}

	return nil
}

func (p *placeholder) Close() error {
	if p.w == nil {
		return http1.ErrHeadersNotSent
	}

	return p.w.Close()
}
