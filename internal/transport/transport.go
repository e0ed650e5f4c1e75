package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/indigo-web/vireo/internal/record"
)

// Transport is the byte stream of a single connection. Reads and writes carry plaintext
// HTTP regardless of whether the connection is encrypted.
type Transport interface {
	io.ReadWriteCloser
	// Buffered returns the number of bytes already received from the socket, but not
	// consumed yet.
	Buffered() int
	// TLS returns the session state, or nil for plaintext connections.
	TLS() *tls.ConnectionState
}

// Plain is the transport of unencrypted connections.
type Plain struct {
	conn net.Conn
}

func NewPlain(conn net.Conn) Plain {
	return Plain{conn: conn}
}

func (p Plain) Read(b []byte) (int, error) {
	return p.conn.Read(b)
}

func (p Plain) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (Plain) Buffered() int {
	return 0
}

func (Plain) TLS() *tls.ConnectionState {
	return nil
}

func (p Plain) Close() error {
	return p.conn.Close()
}

// TLS is the transport of TLS-terminated connections.
type TLS struct {
	engine *record.Engine
	state  *tls.ConnectionState
}

func NewTLS(conn net.Conn, cfg *tls.Config) *TLS {
	return &TLS{
		engine: record.New(conn, cfg),
	}
}

// Handshake runs the TLS handshake. It is otherwise done implicitly on the first read.
func (t *TLS) Handshake(ctx context.Context) error {
	if err := t.engine.Handshake(ctx); err != nil {
		return err
	}

	if t.state == nil {
		state := t.engine.State()
		t.state = &state
	}

	return nil
}

func (t *TLS) Read(b []byte) (int, error) {
	return t.engine.Decrypt(b)
}

func (t *TLS) Write(b []byte) (int, error) {
	return t.engine.Encrypt(b)
}

func (t *TLS) Buffered() int {
	return t.engine.Buffered()
}

func (t *TLS) TLS() *tls.ConnectionState {
	return t.state
}

func (t *TLS) Close() error {
	return t.engine.Close()
}
