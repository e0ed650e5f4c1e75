package http1

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"github.com/indigo-web/vireo/internal/buffer"
	"golang.org/x/net/http/httpguts"
)

// Chunked is the body length of requests with chunked Transfer-Encoding.
const Chunked int64 = -1

// maxLineLength limits both the request line and every single header line.
const maxLineLength = 64 * 1024

var (
	// ErrTooManyHeaders is returned when the request exceeds the configured number of headers.
	// It isn't a protocol error: the connection is dropped without a reply.
	ErrTooManyHeaders = errors.New("too many request headers")

	errLineTooLong = errors.New("line is too long")
)

// Parser reads request heads off the buffered connection stream. A single parser serves
// all the requests of one connection, reusing the line buffer.
type Parser struct {
	line       *buffer.Buffer
	maxHeaders int
}

// NewParser returns a parser, allowing at most maxHeaders header lines per request. Zero
// or negative value disables the limit.
func NewParser(maxHeaders int) *Parser {
	return &Parser{
		line:       buffer.New(256),
		maxHeaders: maxHeaders,
	}
}

// RequestLine reads the request line, skipping empty lines before it. io.EOF is returned
// if the stream ended before anything was received.
func (p *Parser) RequestLine(r *bufio.Reader) (method, target, proto string, err error) {
	for {
		line, err := p.readLine(r)
		switch err {
		case nil:
		case errLineTooLong:
			return "", "", "", status.ErrTooLongRequestLine
		default:
			return "", "", "", err
		}

		if len(line) > 0 {
			return ParseRequestLine(string(line))
		}
	}
}

// ParseRequestLine splits the request line on the first two spaces.
func ParseRequestLine(line string) (method, target, proto string, err error) {
	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return "", "", "", status.ErrBadRequestLine
	}

	method, line = line[:sp], line[sp+1:]
	sp = strings.IndexByte(line, ' ')
	if sp <= 0 {
		return "", "", "", status.ErrBadRequestLine
	}

	return method, line[:sp], line[sp+1:], nil
}

// Headers reads header lines until the empty one and adds them to hdrs. Continuation lines
// are folded into the previous value, separated by a single space.
func (p *Parser) Headers(r *bufio.Reader, hdrs *headers.Headers) error {
	var (
		key, value string
		pending    bool
	)

	for {
		line, err := p.readLine(r)
		switch err {
		case nil:
		case errLineTooLong:
			return status.ErrBadHeaderLine
		default:
			return err
		}

		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if !pending {
				return status.ErrBadHeaderLine
			}

			value += " " + normalizeValue(line)
			continue
		}

		if pending {
			if err = p.add(hdrs, key, value); err != nil {
				return err
			}

			pending = false
		}

		if len(line) == 0 {
			return nil
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 || !httpguts.ValidHeaderFieldName(uf.B2S(line[:colon])) {
			return status.ErrIllegalHeaderKey
		}

		key, value, pending = string(line[:colon]), normalizeValue(line[colon+1:]), true
	}
}

func (p *Parser) add(hdrs *headers.Headers, key, value string) error {
	if p.maxHeaders > 0 && hdrs.Len() >= p.maxHeaders {
		return ErrTooManyHeaders
	}

	if !httpguts.ValidHeaderFieldValue(value) {
		return status.ErrIllegalHeaderValue
	}

	hdrs.Add(key, value)
	return nil
}

// readLine returns the next line without its terminator, which is either CRLF or a bare LF.
// A CR, not followed by LF, is kept. The returned slice is valid until the next call.
func (p *Parser) readLine(r *bufio.Reader) ([]byte, error) {
	p.line.Reset()

	for {
		fragment, err := r.ReadSlice('\n')
		if p.line.Len()+len(fragment) > maxLineLength {
			return nil, errLineTooLong
		}

		p.line.Append(fragment)

		switch err {
		case nil:
			line := p.line.Bytes()
			line = line[:len(line)-1]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}

			return line, nil
		case bufio.ErrBufferFull:
		case io.EOF:
			if p.line.Len() == 0 {
				return nil, io.EOF
			}

			return nil, io.ErrUnexpectedEOF
		default:
			return nil, err
		}
	}
}

func normalizeValue(value []byte) string {
	trimmed := strings.Trim(string(value), " \t")
	if strings.IndexByte(trimmed, '\t') == -1 {
		return trimmed
	}

	return strings.ReplaceAll(trimmed, "\t", " ")
}

// BodyLength determines the framing of the request body: a fixed number of bytes, Chunked
// or zero for no body at all.
func BodyLength(hdrs *headers.Headers) (int64, error) {
	lengths := hdrs.Values("Content-Length")
	encodings := hdrs.Values("Transfer-Encoding")

	if len(lengths) > 0 && (len(encodings) > 0 || len(lengths) > 1) {
		return 0, status.ErrConflictingHeaders
	}

	if len(encodings) > 0 {
		if len(encodings) != 1 || !strcomp.EqualFold(encodings[0], "chunked") {
			return 0, status.ErrUnsupportedTransferEncoding
		}

		return Chunked, nil
	}

	if len(lengths) == 0 {
		return 0, nil
	}

	return parseContentLength(lengths[0])
}

func parseContentLength(value string) (int64, error) {
	if len(value) == 0 {
		return 0, status.ErrBadContentLength
	}

	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, status.ErrBadContentLength
		}
	}

	length, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, status.ErrBadContentLength
	}

	return length, nil
}

// HasToken reports whether any of the comma-separated values contains the token,
// compared case-insensitively. Used for the Connection header.
func HasToken(values []string, token string) bool {
	return httpguts.HeaderValuesContainsToken(values, token)
}
