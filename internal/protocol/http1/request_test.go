package http1

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"github.com/stretchr/testify/require"
)

func reader(data string) *bufio.Reader {
	return bufio.NewReaderSize(strings.NewReader(data), 16)
}

func parseHead(t *testing.T, p *Parser, data string) (method, target, proto string, hdrs *headers.Headers, err error) {
	r := reader(data)
	method, target, proto, err = p.RequestLine(r)
	if err != nil {
		return
	}

	hdrs = headers.New()
	err = p.Headers(r, hdrs)
	return
}

func TestRequestLine(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		method, target, proto, err := NewParser(10).RequestLine(reader("GET /foo?bar=1 HTTP/1.1\r\n"))
		require.NoError(t, err)
		require.Equal(t, "GET", method)
		require.Equal(t, "/foo?bar=1", target)
		require.Equal(t, "HTTP/1.1", proto)
	})

	t.Run("leading empty lines", func(t *testing.T) {
		method, _, _, err := NewParser(10).RequestLine(reader("\r\n\r\nPOST / HTTP/1.0\r\n"))
		require.NoError(t, err)
		require.Equal(t, "POST", method)
	})

	t.Run("bare LF", func(t *testing.T) {
		_, target, proto, err := NewParser(10).RequestLine(reader("GET /bare HTTP/1.1\n"))
		require.NoError(t, err)
		require.Equal(t, "/bare", target)
		require.Equal(t, "HTTP/1.1", proto)
	})

	t.Run("line longer than the reader buffer", func(t *testing.T) {
		path := "/" + strings.Repeat("a", 500)
		_, target, _, err := NewParser(10).RequestLine(reader("GET " + path + " HTTP/1.1\r\n"))
		require.NoError(t, err)
		require.Equal(t, path, target)
	})

	t.Run("too long", func(t *testing.T) {
		path := "/" + strings.Repeat("a", maxLineLength)
		_, _, _, err := NewParser(10).RequestLine(reader("GET " + path + " HTTP/1.1\r\n"))
		require.ErrorIs(t, err, status.ErrTooLongRequestLine)
	})

	t.Run("missing spaces", func(t *testing.T) {
		for _, line := range []string{"GET\r\n", "GET /\r\n", " / HTTP/1.1\r\n", "GET  HTTP/1.1\r\n"} {
			_, _, _, err := NewParser(10).RequestLine(reader(line))
			require.ErrorIs(t, err, status.ErrBadRequestLine, line)
		}
	})

	t.Run("EOF", func(t *testing.T) {
		_, _, _, err := NewParser(10).RequestLine(reader(""))
		require.ErrorIs(t, err, io.EOF)
		_, _, _, err = NewParser(10).RequestLine(reader("GET / HT"))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestHeaders(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		_, _, _, hdrs, err := parseHead(t, NewParser(10),
			"GET / HTTP/1.1\r\nHost: localhost\r\nAccept: */*\r\naccept: text/html\r\n\r\n",
		)
		require.NoError(t, err)
		require.Equal(t, "localhost", hdrs.Value("host"))
		require.Equal(t, []string{"*/*", "text/html"}, hdrs.Values("Accept"))
	})

	t.Run("folding", func(t *testing.T) {
		_, _, _, hdrs, err := parseHead(t, NewParser(10),
			"GET / HTTP/1.1\r\nX-Long: first\r\n  second\r\n\tthird\r\nHost: x\r\n\r\n",
		)
		require.NoError(t, err)
		require.Equal(t, "first second third", hdrs.Value("X-Long"))
		require.Equal(t, 2, hdrs.Len())
	})

	t.Run("whitespace normalization", func(t *testing.T) {
		_, _, _, hdrs, err := parseHead(t, NewParser(10),
			"GET / HTTP/1.1\r\nX-Tabs:\ta\tb \t \r\nEmpty:\r\n\r\n",
		)
		require.NoError(t, err)
		require.Equal(t, "a b", hdrs.Value("X-Tabs"))
		value, found := hdrs.Get("Empty")
		require.True(t, found)
		require.Empty(t, value)
	})

	t.Run("continuation without header", func(t *testing.T) {
		_, _, _, _, err := parseHead(t, NewParser(10), "GET / HTTP/1.1\r\n folded\r\n\r\n")
		require.ErrorIs(t, err, status.ErrBadHeaderLine)
	})

	t.Run("illegal key", func(t *testing.T) {
		for _, line := range []string{"Bad Key: v", "Bad\"Key: v", ": v", "no colon"} {
			_, _, _, _, err := parseHead(t, NewParser(10), "GET / HTTP/1.1\r\n"+line+"\r\n\r\n")
			require.ErrorIs(t, err, status.ErrIllegalHeaderKey, line)
		}
	})

	t.Run("control characters in value", func(t *testing.T) {
		_, _, _, _, err := parseHead(t, NewParser(10), "GET / HTTP/1.1\r\nX: a\rb\r\n\r\n")
		require.ErrorIs(t, err, status.ErrIllegalHeaderValue)
		_, _, _, _, err = parseHead(t, NewParser(10), "GET / HTTP/1.1\r\nX: a\x00b\r\n\r\n")
		require.ErrorIs(t, err, status.ErrIllegalHeaderValue)
	})

	t.Run("max headers", func(t *testing.T) {
		var request strings.Builder
		request.WriteString("GET / HTTP/1.1\r\n")
		for i := 0; i < 5; i++ {
			request.WriteString("X-" + uniuri.NewLen(8) + ": " + uniuri.New() + "\r\n")
		}
		request.WriteString("\r\n")

		_, _, _, hdrs, err := parseHead(t, NewParser(5), request.String())
		require.NoError(t, err)
		require.Equal(t, 5, hdrs.Len())

		_, _, _, _, err = parseHead(t, NewParser(4), request.String())
		require.ErrorIs(t, err, ErrTooManyHeaders)
	})

	t.Run("pipelined requests stay in the reader", func(t *testing.T) {
		p := NewParser(10)
		r := reader("GET /1 HTTP/1.1\r\nA: 1\r\n\r\nGET /2 HTTP/1.1\r\nB: 2\r\n\r\n")

		for _, want := range []string{"/1", "/2"} {
			_, target, _, err := p.RequestLine(r)
			require.NoError(t, err)
			require.Equal(t, want, target)
			require.NoError(t, p.Headers(r, headers.New()))
		}
	})
}

func TestBodyLength(t *testing.T) {
	length := func(pairs ...string) (int64, error) {
		hdrs := headers.New()
		for i := 0; i < len(pairs); i += 2 {
			hdrs.Add(pairs[i], pairs[i+1])
		}

		return BodyLength(hdrs)
	}

	t.Run("no body", func(t *testing.T) {
		n, err := length()
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("content length", func(t *testing.T) {
		n, err := length("Content-Length", "13")
		require.NoError(t, err)
		require.Equal(t, int64(13), n)
	})

	t.Run("chunked", func(t *testing.T) {
		n, err := length("Transfer-Encoding", "Chunked")
		require.NoError(t, err)
		require.Equal(t, Chunked, n)
	})

	t.Run("both", func(t *testing.T) {
		_, err := length("Content-Length", "5", "Transfer-Encoding", "chunked")
		require.ErrorIs(t, err, status.ErrConflictingHeaders)
	})

	t.Run("multiple content lengths", func(t *testing.T) {
		_, err := length("Content-Length", "5", "content-length", "5")
		require.ErrorIs(t, err, status.ErrConflictingHeaders)
	})

	t.Run("unsupported encodings", func(t *testing.T) {
		_, err := length("Transfer-Encoding", "gzip")
		require.ErrorIs(t, err, status.ErrUnsupportedTransferEncoding)
		_, err = length("Transfer-Encoding", "gzip", "Transfer-Encoding", "chunked")
		require.ErrorIs(t, err, status.ErrUnsupportedTransferEncoding)
	})

	t.Run("malformed content length", func(t *testing.T) {
		for _, value := range []string{"", "-1", "+5", "0x10", "1 2", "99999999999999999999"} {
			_, err := length("Content-Length", value)
			require.ErrorIs(t, err, status.ErrBadContentLength, value)
		}
	})
}

func TestHasToken(t *testing.T) {
	require.True(t, HasToken([]string{"keep-alive, Close"}, "close"))
	require.True(t, HasToken([]string{"Upgrade", "close"}, "close"))
	require.False(t, HasToken([]string{"keep-alive"}, "close"))
	require.False(t, HasToken(nil, "close"))
}
