package http

import (
	"crypto/tls"
	"io"
	"net"
	"net/url"

	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
)

// Response lengths with a special meaning for Exchange.SendResponseHeaders.
const (
	// Streamed makes the response body chunked (or delimited by connection close on HTTP/1.0).
	Streamed int64 = 0
	// NoBody sends the response without any body.
	NoBody int64 = -1
)

// Exchange is a single request and the response produced for it. The exchange is only valid
// until it is closed, which also happens automatically as soon as the handler returns.
type Exchange interface {
	// Method returns the request method as it was received.
	Method() string
	// URI returns the parsed request target.
	URI() *url.URL
	// Protocol returns the protocol version of the request, e.g. HTTP/1.1.
	Protocol() string
	// RequestHeaders returns the request headers. They must not be modified.
	RequestHeaders() *headers.Headers
	// ResponseHeaders returns the headers, which are going to be sent by SendResponseHeaders.
	ResponseHeaders() *headers.Headers
	// RequestBody returns the request body stream. Reading it past the body returns io.EOF.
	RequestBody() io.ReadCloser
	// ResponseBody returns the response body stream. It is usable only after the headers
	// were sent and must be closed in order to complete the exchange.
	ResponseBody() io.WriteCloser
	// SendResponseHeaders writes the status line and the response headers. Length Streamed
	// selects chunked encoding, NoBody forbids the body and any positive value fixes it.
	SendResponseHeaders(code status.Code, length int64) error
	// ResponseCode returns the code passed to SendResponseHeaders, or zero.
	ResponseCode() status.Code
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	// TLS returns the state of the TLS session, or nil for plaintext connections.
	TLS() *tls.ConnectionState
	// ContextPath returns the path of the context, which serves the exchange.
	ContextPath() string
	// Attribute returns the attribute of the context.
	Attribute(name string) (any, bool)
	SetAttribute(name string, value any)
	// SetStreams replaces the request and/or response body streams. Nil leaves the current
	// stream as is. Filters use it to wrap the streams.
	SetStreams(in io.ReadCloser, out io.WriteCloser)
	// Close completes the exchange. It is idempotent.
	Close() error
}

// Handler processes exchanges. Returned error abandons the exchange and closes the connection.
type Handler interface {
	Handle(ex Exchange) error
}

type HandlerFunc func(ex Exchange) error

func (h HandlerFunc) Handle(ex Exchange) error {
	return h(ex)
}
