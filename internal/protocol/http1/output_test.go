package http1

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/indigo-web/chunkedbody"
	"github.com/stretchr/testify/require"
)

type completion struct {
	finished, aborted int
}

func (c *completion) Finished() {
	c.finished++
}

func (c *completion) Abort() {
	c.aborted++
}

// scatter splits the data into pieces of n bytes, the last one may be shorter.
func scatter(data []byte, n int) (pieces [][]byte) {
	for len(data) > 0 {
		end := min(n, len(data))
		pieces = append(pieces, data[:end])
		data = data[end:]
	}

	return pieces
}

func decodeChunked(t *testing.T, data []byte) string {
	parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())
	var body []byte

	for len(data) > 0 {
		chunk, extra, err := parser.Parse(data, false)
		if err != nil {
			require.EqualError(t, err, io.EOF.Error())
			require.Empty(t, extra)
			return string(append(body, chunk...))
		}

		body = append(body, chunk...)
		data = extra
	}

	require.Fail(t, "no terminating chunk")
	return ""
}

func TestFixedWriter(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		out := new(bytes.Buffer)
		done := new(completion)
		in := NewLeftOver(NewFixedReader(strings.NewReader("abc"), 3), 64, nil)
		w := NewFixedWriter(out, 13, in, done)

		_, err := w.Write([]byte("Hello, "))
		require.NoError(t, err)
		_, err = w.Write([]byte("world!"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.Equal(t, "Hello, world!", out.String())
		require.Equal(t, 1, done.finished)
		require.True(t, in.EOF(), "request body must be drained")

		require.NoError(t, w.Close())
		require.Equal(t, 1, done.finished)
		_, err = w.Write([]byte("x"))
		require.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("too many bytes", func(t *testing.T) {
		out := new(bytes.Buffer)
		w := NewFixedWriter(out, 5, nil, new(completion))
		_, err := w.Write([]byte("Hello, world!"))
		require.ErrorIs(t, err, ErrTooManyBytes)
		require.Zero(t, out.Len())

		_, err = w.Write([]byte("Hello"))
		require.NoError(t, err)
		_, err = w.Write([]byte("!"))
		require.ErrorIs(t, err, ErrStreamClosed)
	})

	t.Run("insufficient bytes", func(t *testing.T) {
		done := new(completion)
		w := NewFixedWriter(new(bytes.Buffer), 5, nil, done)
		_, err := w.Write([]byte("Hel"))
		require.NoError(t, err)
		require.ErrorIs(t, w.Close(), ErrInsufficientBytes)
		require.Equal(t, 1, done.aborted)
		require.Zero(t, done.finished)
	})
}

func TestChunkedWriter(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		out := new(bytes.Buffer)
		done := new(completion)
		w := NewChunkedWriter(out, 64, nil, done)
		payload := strings.Repeat("abcdefgh", 100)

		for _, piece := range scatter([]byte(payload), 37) {
			n, err := w.Write(piece)
			require.NoError(t, err)
			require.Equal(t, len(piece), n)
		}

		require.NoError(t, w.Close())
		require.Equal(t, payload, decodeChunked(t, out.Bytes()))
		require.True(t, bytes.HasSuffix(out.Bytes(), []byte("0\r\n\r\n")))
		require.Equal(t, 1, done.finished)
	})

	t.Run("framing", func(t *testing.T) {
		out := new(bytes.Buffer)
		w := NewChunkedWriter(out, 4096, nil, new(completion))
		_, err := w.Write([]byte("Hello, world!"))
		require.NoError(t, err)
		require.Zero(t, out.Len(), "partial chunk must be buffered")
		require.NoError(t, w.Flush())
		require.Equal(t, "d\r\nHello, world!\r\n", out.String())
		require.NoError(t, w.Flush())
		require.NoError(t, w.Close())
		require.Equal(t, "d\r\nHello, world!\r\n0\r\n\r\n", out.String())
	})

	t.Run("full chunks", func(t *testing.T) {
		out := new(bytes.Buffer)
		w := NewChunkedWriter(out, 4, nil, new(completion))
		_, err := w.Write([]byte("abcdefghij"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.Equal(t, "4\r\nabcd\r\n4\r\nefgh\r\n2\r\nij\r\n0\r\n\r\n", out.String())
	})

	t.Run("drains input before terminating", func(t *testing.T) {
		in := NewLeftOver(NewFixedReader(strings.NewReader("unread body"), 11), 64, nil)
		done := new(completion)
		w := NewChunkedWriter(new(bytes.Buffer), 16, in, done)
		require.NoError(t, w.Close())
		require.True(t, in.EOF())
		require.True(t, in.Closed())
	})

	t.Run("close twice", func(t *testing.T) {
		out := new(bytes.Buffer)
		done := new(completion)
		w := NewChunkedWriter(out, 16, nil, done)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
		require.Equal(t, "0\r\n\r\n", out.String())
		require.Equal(t, 1, done.finished)
		_, err := w.Write([]byte("x"))
		require.ErrorIs(t, err, ErrStreamClosed)
		require.ErrorIs(t, w.Flush(), ErrStreamClosed)
	})
}

func TestUndefinedWriter(t *testing.T) {
	out := new(bytes.Buffer)
	done := new(completion)
	w := NewUndefinedWriter(out, nil, done)
	_, err := w.Write([]byte("Hello, world!"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.Equal(t, "Hello, world!", out.String())
	require.Equal(t, 1, done.finished)
}

func TestEmptyWriter(t *testing.T) {
	done := new(completion)
	in := NewLeftOver(NewFixedReader(strings.NewReader("abc"), 3), 64, nil)
	w := NewEmptyWriter(in, done)
	_, err := w.Write([]byte("body"))
	require.ErrorIs(t, err, ErrBodyNotAllowed)
	n, err := w.Write(nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, w.Close())
	require.True(t, in.EOF())
	require.Equal(t, 1, done.finished)
}
