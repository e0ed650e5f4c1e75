package transport

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"testing"
	"time"

	"github.com/indigo-web/vireo/internal/record"
	"github.com/stretchr/testify/require"
)

func TestListen(t *testing.T) {
	t.Run("with backlog", func(t *testing.T) {
		l, err := Listen("127.0.0.1:0", 16)
		require.NoError(t, err)
		defer l.Close()

		go func() {
			conn, err := net.Dial("tcp", l.Addr().String())
			if err == nil {
				_, _ = conn.Write([]byte("hello"))
				_ = conn.Close()
			}
		}()

		conn, err := Accept(l, time.Second)
		require.NoError(t, err)
		require.NotNil(t, conn)
		data, err := io.ReadAll(NewPlain(conn))
		require.NoError(t, err)
		require.Equal(t, "hello", string(data))
	})

	t.Run("system backlog", func(t *testing.T) {
		l, err := Listen("127.0.0.1:0", 0)
		require.NoError(t, err)
		require.NoError(t, l.Close())
	})

	t.Run("accept times out", func(t *testing.T) {
		l, err := Listen("127.0.0.1:0", 0)
		require.NoError(t, err)
		defer l.Close()

		conn, err := Accept(l, 10*time.Millisecond)
		require.NoError(t, err)
		require.Nil(t, conn)
	})

	t.Run("bad address", func(t *testing.T) {
		_, err := Listen("not an address", 16)
		require.Error(t, err)
	})
}

func TestTLS(t *testing.T) {
	cert, err := record.SelfSigned()
	require.NoError(t, err)

	l, err := Listen("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer l.Close()

	hangup := make(chan struct{})
	defer close(hangup)

	go func() {
		conn, err := tls.Dial("tcp", l.Addr().String(), &tls.Config{InsecureSkipVerify: true})
		if err != nil {
			return
		}

		_, _ = conn.Write([]byte("ping"))
		// close_notify would be counted as buffered ciphertext
		<-hangup
		_ = conn.Close()
	}()

	conn, err := Accept(l, time.Second)
	require.NoError(t, err)

	transport := NewTLS(conn, &tls.Config{Certificates: []tls.Certificate{cert}})
	defer transport.Close()
	require.Nil(t, transport.TLS())

	buff := make([]byte, 16)
	n, err := transport.Read(buff)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buff[:n]))
	require.Zero(t, transport.Buffered())
	require.NoError(t, transport.Handshake(context.Background()))
	require.NotNil(t, transport.TLS())
	require.True(t, transport.TLS().HandshakeComplete)
}
