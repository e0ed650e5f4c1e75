package http1

import (
	"errors"
	"io"
	"sync"
)

var (
	// ErrStreamClosed is returned by any operation on a closed body stream.
	ErrStreamClosed = errors.New("stream is closed")
)

// FixedReader yields exactly the declared number of bytes. Reading past them returns io.EOF
// without touching the underlying stream.
type FixedReader struct {
	r         io.Reader
	remaining int64
}

func NewFixedReader(r io.Reader, length int64) *FixedReader {
	return &FixedReader{
		r:         r,
		remaining: length,
	}
}

// Read caps reads at the remaining length. The last portion of the body is returned
// together with io.EOF.
func (f *FixedReader) Read(p []byte) (n int, err error) {
	if f.remaining == 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}

	n, err = f.r.Read(p)
	f.remaining -= int64(n)

	switch {
	case f.remaining == 0:
		return n, io.EOF
	case err == io.EOF:
		return n, io.ErrUnexpectedEOF
	default:
		return n, err
	}
}

// LeftOver is the request body as the handler sees it. Closing it drains what's left of
// the body up to a limit, so the next request on the connection can be read.
type LeftOver struct {
	mu     sync.Mutex
	src    io.Reader
	limit  int64
	onEOF  func()
	eof    bool
	closed bool
}

// NewLeftOver wraps the body stream. Draining on close reads at most limit bytes. onEOF is
// called once, when the end of the body is observed.
func NewLeftOver(src io.Reader, limit int64, onEOF func()) *LeftOver {
	return &LeftOver{
		src:   src,
		limit: limit,
		onEOF: onEOF,
	}
}

func (l *LeftOver) Read(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrStreamClosed
	}

	if l.eof {
		return 0, io.EOF
	}

	n, err = l.src.Read(p)
	if err == io.EOF {
		l.markEOF()
	}

	return n, err
}

// Close drains the rest of the body, unless the limit is exceeded, in which case the stream
// remains not at EOF. Subsequent calls are no-op.
func (l *LeftOver) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	if l.eof {
		return nil
	}

	return l.drain()
}

func (l *LeftOver) drain() error {
	buff := make([]byte, 2048)

	for left := l.limit; left > 0; {
		n, err := l.src.Read(buff[:min(int64(len(buff)), left)])
		left -= int64(n)

		switch err {
		case nil:
		case io.EOF:
			l.markEOF()
			return nil
		default:
			return err
		}
	}

	return nil
}

func (l *LeftOver) markEOF() {
	if l.eof {
		return
	}

	l.eof = true
	if l.onEOF != nil {
		l.onEOF()
	}
}

// EOF reports whether the whole body was consumed.
func (l *LeftOver) EOF() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.eof
}

func (l *LeftOver) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}
