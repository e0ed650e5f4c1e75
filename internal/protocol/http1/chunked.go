package http1

import (
	"bufio"
	"bytes"
	"io"

	"github.com/indigo-web/vireo/http/status"
	"github.com/indigo-web/vireo/internal/hexconv"
)

// maxSizeDigits bounds the chunk size to 16 hex digits, which is exactly what fits
// into uint64.
const maxSizeDigits = 16

// lastChunk is how the body ends in the absolute majority of cases: the CRLF closing
// the last data chunk, the zero-sized chunk and no trailers.
var lastChunk = []byte("\r\n0\r\n\r\n")

type chunkedState uint8

const (
	chunkSize chunkedState = iota
	chunkData
	chunkDataEnd
	chunkTrailers
	chunkDone
)

// ChunkedReader decodes the chunked transfer coding, directly out of the buffered stream.
// Chunk extensions and trailers are discarded. Bytes past the terminating chunk are left
// untouched. Bare LF line endings are tolerated.
type ChunkedReader struct {
	r         *bufio.Reader
	state     chunkedState
	remaining uint64
}

func NewChunkedReader(r *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{
		r: r,
	}
}

// Read returns the data of at most one chunk at a time.
func (c *ChunkedReader) Read(p []byte) (n int, err error) {
	if c.state == chunkDone {
		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	for {
		switch c.state {
		case chunkSize:
			size, err := c.readSize()
			if err != nil {
				return 0, err
			}

			if size == 0 {
				c.state = chunkTrailers
				continue
			}

			c.remaining, c.state = size, chunkData
		case chunkData:
			return c.readData(p)
		case chunkDataEnd:
			if err = c.readLineEnd(); err != nil {
				return 0, err
			}

			c.state = chunkSize
		case chunkTrailers:
			if err = c.skipTrailers(); err != nil {
				return 0, err
			}

			c.state = chunkDone
			return 0, io.EOF
		default:
			return 0, io.EOF
		}
	}
}

func (c *ChunkedReader) readData(p []byte) (n int, err error) {
	if uint64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	n, err = c.r.Read(p)
	c.remaining -= uint64(n)
	if err != nil {
		return n, unexpected(err)
	}

	if c.remaining > 0 {
		return n, nil
	}

	c.state = chunkDataEnd
	if c.r.Buffered() >= len(lastChunk) {
		if ahead, _ := c.r.Peek(len(lastChunk)); bytes.Equal(ahead, lastChunk) {
			_, _ = c.r.Discard(len(lastChunk))
			c.state = chunkDone
			return n, io.EOF
		}
	}

	return n, nil
}

func (c *ChunkedReader) readSize() (size uint64, err error) {
	for digits := 0; ; {
		char, err := c.r.ReadByte()
		if err != nil {
			return 0, unexpected(err)
		}

		switch char {
		case ';', '\r', '\n':
			if digits == 0 {
				return 0, status.ErrBadChunk
			}

			switch char {
			case ';':
				err = c.skipLine()
			case '\r':
				err = c.expectLF()
			}

			return size, err
		}

		value := hexconv.Halfbyte[char]
		if value == 0xFF {
			return 0, status.ErrBadChunk
		}

		if digits++; digits > maxSizeDigits {
			return 0, status.ErrBadChunk
		}

		size = size<<4 | uint64(value)
	}
}

// readLineEnd consumes the line ending after the chunk data.
func (c *ChunkedReader) readLineEnd() error {
	char, err := c.r.ReadByte()
	if err != nil {
		return unexpected(err)
	}

	switch char {
	case '\r':
		return c.expectLF()
	case '\n':
		return nil
	default:
		return status.ErrBadChunk
	}
}

func (c *ChunkedReader) expectLF() error {
	char, err := c.r.ReadByte()
	if err != nil {
		return unexpected(err)
	}

	if char != '\n' {
		return status.ErrBadChunk
	}

	return nil
}

// skipLine discards everything up to and including the next LF, no matter how long the
// line is.
func (c *ChunkedReader) skipLine() error {
	for {
		_, err := c.r.ReadSlice('\n')
		switch err {
		case nil:
			return nil
		case bufio.ErrBufferFull:
		default:
			return unexpected(err)
		}
	}
}

// skipTrailers discards the trailer field lines up to the empty line.
func (c *ChunkedReader) skipTrailers() error {
	for {
		line, err := c.r.ReadSlice('\n')
		switch err {
		case nil:
			if len(line) == 1 || (len(line) == 2 && line[0] == '\r') {
				return nil
			}
		case bufio.ErrBufferFull:
			if err = c.skipLine(); err != nil {
				return err
			}
		default:
			return unexpected(err)
		}
	}
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}

	return err
}
