package http1

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// failingReader fails on every read, making sure a stream doesn't touch its source.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("must not be read")
}

func TestFixedReader(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		src := strings.NewReader("Hello, world!GET / HTTP/1.1")
		body, err := io.ReadAll(NewFixedReader(src, 13))
		require.NoError(t, err)
		require.Equal(t, "Hello, world!", string(body))
		require.Equal(t, 14, src.Len())
	})

	t.Run("EOF comes with the last bytes", func(t *testing.T) {
		r := NewFixedReader(strings.NewReader("abc"), 3)
		buff := make([]byte, 10)
		n, err := r.Read(buff)
		require.Equal(t, 3, n)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("zero length", func(t *testing.T) {
		n, err := NewFixedReader(failingReader{}, 0).Read(make([]byte, 10))
		require.Zero(t, n)
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("premature EOF", func(t *testing.T) {
		_, err := io.ReadAll(NewFixedReader(strings.NewReader("abc"), 10))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestLeftOver(t *testing.T) {
	t.Run("EOF notifies once", func(t *testing.T) {
		calls := 0
		l := NewLeftOver(NewFixedReader(strings.NewReader("Hello"), 5), 64, func() {
			calls++
		})

		body, err := io.ReadAll(l)
		require.NoError(t, err)
		require.Equal(t, "Hello", string(body))
		_, err = l.Read(make([]byte, 1))
		require.ErrorIs(t, err, io.EOF)
		require.True(t, l.EOF())
		require.Equal(t, 1, calls)
		require.NoError(t, l.Close())
		require.Equal(t, 1, calls)
	})

	t.Run("drain on close", func(t *testing.T) {
		src := strings.NewReader(strings.Repeat("a", 5000) + "next")
		calls := 0
		l := NewLeftOver(NewFixedReader(src, 5000), 64*1024, func() {
			calls++
		})

		require.NoError(t, l.Close())
		require.True(t, l.EOF())
		require.True(t, l.Closed())
		require.Equal(t, 1, calls)
		require.Equal(t, 4, src.Len())
	})

	t.Run("exactly the limit", func(t *testing.T) {
		l := NewLeftOver(NewFixedReader(strings.NewReader(strings.Repeat("a", 4096)), 4096), 4096, nil)
		require.NoError(t, l.Close())
		require.True(t, l.EOF())
	})

	t.Run("limit exceeded", func(t *testing.T) {
		src := strings.NewReader(strings.Repeat("a", 10000))
		l := NewLeftOver(NewFixedReader(src, 10000), 4096, func() {
			require.Fail(t, "EOF must not be reached")
		})

		require.NoError(t, l.Close())
		require.False(t, l.EOF())
		require.True(t, l.Closed())
		require.Equal(t, 10000-4096, src.Len())
	})

	t.Run("read after close", func(t *testing.T) {
		l := NewLeftOver(NewFixedReader(strings.NewReader("abc"), 3), 64, nil)
		require.NoError(t, l.Close())
		_, err := l.Read(make([]byte, 3))
		require.ErrorIs(t, err, ErrStreamClosed)
		require.NoError(t, l.Close())
	})

	t.Run("zero length body", func(t *testing.T) {
		calls := 0
		l := NewLeftOver(NewFixedReader(failingReader{}, 0), 64, func() {
			calls++
		})
		require.NoError(t, l.Close())
		require.True(t, l.EOF())
		require.Equal(t, 1, calls)
	})

	t.Run("chunked drain", func(t *testing.T) {
		src := bufio.NewReader(strings.NewReader("5\r\nHello\r\n0\r\n\r\nGET /"))
		l := NewLeftOver(NewChunkedReader(src), 64, nil)
		require.NoError(t, l.Close())
		require.True(t, l.EOF())
		rest, err := io.ReadAll(src)
		require.NoError(t, err)
		require.Equal(t, "GET /", string(rest))
	})

	t.Run("chunked body of exactly the limit", func(t *testing.T) {
		src := bufio.NewReader(strings.NewReader("5\r\nHello\r\n0\r\n\r\n"))
		l := NewLeftOver(NewChunkedReader(src), 5, nil)
		require.NoError(t, l.Close())
		require.True(t, l.EOF())
	})
}
