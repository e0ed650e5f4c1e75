package http1

import (
	"bufio"
	"bytes"
	"io"
	stdhttp "net/http"
	"testing"

	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"github.com/stretchr/testify/require"
)

func TestAppendResponseHead(t *testing.T) {
	t.Run("status line and headers in order", func(t *testing.T) {
		hdrs := headers.New().
			Add("Date", "Mon, 02 Jan 2006 15:04:05 GMT").
			Add("Content-Length", "2").
			Add("X-Multi", "1").
			Add("X-Multi", "2")
		head, err := AppendResponseHead(nil, status.OK, hdrs)
		require.NoError(t, err)
		require.Equal(t,
			"HTTP/1.1 200 OK\r\nDate: Mon, 02 Jan 2006 15:04:05 GMT\r\nContent-Length: 2\r\nX-Multi: 1\r\nX-Multi: 2\r\n\r\n",
			string(head),
		)

		resp, err := stdhttp.ReadResponse(bufio.NewReader(bytes.NewReader(append(head, "ok"...))), nil)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, []string{"1", "2"}, resp.Header.Values("X-Multi"))
	})

	t.Run("header injection", func(t *testing.T) {
		_, err := AppendResponseHead(nil, status.OK, headers.New().Add("X", "a\r\nInjected: yes"))
		require.ErrorIs(t, err, ErrBadResponseHeader)
		_, err = AppendResponseHead(nil, status.OK, headers.New().Add("Bad Key", "a"))
		require.ErrorIs(t, err, ErrBadResponseHeader)
	})
}

func TestAppendInterim(t *testing.T) {
	require.Equal(t, "HTTP/1.1 100 Continue\r\n\r\n", string(AppendInterim(nil, status.Continue)))
}

func TestAppendErrorReply(t *testing.T) {
	reply := AppendErrorReply(nil, status.BadRequest, "Bad request line", "Mon, 02 Jan 2006 15:04:05 GMT")
	resp, err := stdhttp.ReadResponse(bufio.NewReader(bytes.NewReader(reply)), nil)
	require.NoError(t, err)
	require.Equal(t, 400, resp.StatusCode)
	require.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	require.True(t, resp.Close)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "<h1>400 Bad Request</h1>Bad request line", string(body))
	require.Equal(t, int64(len(body)), resp.ContentLength)
}
