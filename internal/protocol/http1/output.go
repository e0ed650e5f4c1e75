package http1

import (
	"errors"
	"io"
	"strconv"
)

var (
	ErrTooManyBytes      = errors.New("too many bytes to write to stream")
	ErrInsufficientBytes = errors.New("insufficient bytes written to stream")
	ErrBodyNotAllowed    = errors.New("response must not have a body")
	ErrHeadersNotSent    = errors.New("response headers not sent yet")
	errBadChunkSize      = errors.New("chunk size must be positive")
)

// Completion receives the outcome of a response body stream.
type Completion interface {
	// Finished is called once the response body is fully written and the request body
	// is drained, or at least an attempt to drain it was made.
	Finished()
	// Abort is called when the response can't be completed and the connection must be
	// closed.
	Abort()
}

// finish drains the request body, if the handler didn't close it, and reports completion.
func finish(in *LeftOver, done Completion) {
	if in != nil && !in.Closed() {
		_ = in.Close()
	}

	done.Finished()
}

// FixedWriter passes exactly the declared number of bytes through.
type FixedWriter struct {
	w         io.Writer
	in        *LeftOver
	done      Completion
	remaining int64
	closed    bool
}

func NewFixedWriter(w io.Writer, length int64, in *LeftOver, done Completion) *FixedWriter {
	return &FixedWriter{
		w:         w,
		in:        in,
		done:      done,
		remaining: length,
	}
}

// Write rejects the whole write if it would exceed the declared length. The stream stays
// usable after that.
func (f *FixedWriter) Write(p []byte) (n int, err error) {
	if f.closed {
		return 0, ErrStreamClosed
	}

	if len(p) == 0 {
		return 0, nil
	}

	if f.remaining == 0 {
		return 0, ErrStreamClosed
	}

	if int64(len(p)) > f.remaining {
		return 0, ErrTooManyBytes
	}

	n, err = f.w.Write(p)
	f.remaining -= int64(n)

	return n, err
}

// Close completes the response. Having fewer bytes written than declared breaks the
// framing, so the connection is aborted.
func (f *FixedWriter) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	if f.remaining > 0 {
		f.done.Abort()
		return ErrInsufficientBytes
	}

	finish(f.in, f.done)
	return nil
}

// chunkHeadroom reserves the space for the chunk size line in front of the chunk data.
const chunkHeadroom = 16 + len("\r\n")

// ChunkedWriter frames the written data as chunks of at most size bytes.
type ChunkedWriter struct {
	w      io.Writer
	in     *LeftOver
	done   Completion
	buff   []byte
	size   int
	count  int
	closed bool
}

func NewChunkedWriter(w io.Writer, size int, in *LeftOver, done Completion) *ChunkedWriter {
	if size <= 0 {
		panic(errBadChunkSize)
	}

	return &ChunkedWriter{
		w:    w,
		in:   in,
		done: done,
		buff: make([]byte, chunkHeadroom+size+len("\r\n")),
		size: size,
	}
}

func (c *ChunkedWriter) Write(p []byte) (n int, err error) {
	if c.closed {
		return 0, ErrStreamClosed
	}

	for len(p) > 0 {
		copied := copy(c.buff[chunkHeadroom+c.count:chunkHeadroom+c.size], p)
		c.count += copied
		n += copied
		p = p[copied:]

		if c.count == c.size {
			if err = c.writeChunk(); err != nil {
				return n, err
			}
		}
	}

	return n, nil
}

// Flush emits the buffered data as a chunk, even if it isn't full.
func (c *ChunkedWriter) Flush() error {
	if c.closed {
		return ErrStreamClosed
	}

	if c.count == 0 {
		return nil
	}

	return c.writeChunk()
}

// Close drains the request body, emits buffered data and the terminating zero-size chunk.
func (c *ChunkedWriter) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	if c.in != nil && !c.in.Closed() {
		_ = c.in.Close()
	}

	if c.count > 0 {
		if err := c.writeChunk(); err != nil {
			c.done.Abort()
			return err
		}
	}

	// zero-sized chunk is the terminator
	if err := c.writeChunk(); err != nil {
		c.done.Abort()
		return err
	}

	c.done.Finished()
	return nil
}

// writeChunk places the size line right before the data and the CRLF right after it,
// writing the whole frame at once.
func (c *ChunkedWriter) writeChunk() error {
	var sizeLine [16]byte
	hex := strconv.AppendUint(sizeLine[:0], uint64(c.count), 16)
	start := chunkHeadroom - len(hex) - len("\r\n")
	copy(c.buff[start:], hex)
	c.buff[chunkHeadroom-2], c.buff[chunkHeadroom-1] = '\r', '\n'
	end := chunkHeadroom + c.count
	c.buff[end], c.buff[end+1] = '\r', '\n'
	c.count = 0

	_, err := c.w.Write(c.buff[start : end+2])
	return err
}

// UndefinedWriter passes the data through as is. The end of the body is signalled by
// closing the connection.
type UndefinedWriter struct {
	w      io.Writer
	in     *LeftOver
	done   Completion
	closed bool
}

func NewUndefinedWriter(w io.Writer, in *LeftOver, done Completion) *UndefinedWriter {
	return &UndefinedWriter{
		w:    w,
		in:   in,
		done: done,
	}
}

func (u *UndefinedWriter) Write(p []byte) (int, error) {
	if u.closed {
		return 0, ErrStreamClosed
	}

	return u.w.Write(p)
}

func (u *UndefinedWriter) Close() error {
	if u.closed {
		return nil
	}

	u.closed = true
	finish(u.in, u.done)

	return nil
}

// EmptyWriter is the response body stream of responses, which must not have a body.
type EmptyWriter struct {
	in     *LeftOver
	done   Completion
	closed bool
}

func NewEmptyWriter(in *LeftOver, done Completion) *EmptyWriter {
	return &EmptyWriter{
		in:   in,
		done: done,
	}
}

func (e *EmptyWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrStreamClosed
	}

	if len(p) > 0 {
		return 0, ErrBodyNotAllowed
	}

	return 0, nil
}

func (e *EmptyWriter) Close() error {
	if e.closed {
		return nil
	}

	e.closed = true
	finish(e.in, e.done)

	return nil
}
