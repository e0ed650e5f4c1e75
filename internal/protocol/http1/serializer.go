package http1

import (
	"errors"
	"strconv"

	"github.com/indigo-web/vireo/http/headers"
	"github.com/indigo-web/vireo/http/status"
	"golang.org/x/net/http/httpguts"
)

var ErrBadResponseHeader = errors.New("response header contains illegal characters")

const crlf = "\r\n"

// AppendResponseHead serializes the status line and the headers in order of insertion,
// followed by the empty line. Responses are always of HTTP/1.1.
func AppendResponseHead(buff []byte, code status.Code, hdrs *headers.Headers) ([]byte, error) {
	buff = appendStatusLine(buff, code)

	for _, pair := range hdrs.Expose() {
		if !httpguts.ValidHeaderFieldName(pair.Key) || !httpguts.ValidHeaderFieldValue(pair.Value) {
			return buff, ErrBadResponseHeader
		}

		buff = append(buff, pair.Key...)
		buff = append(buff, ": "...)
		buff = append(buff, pair.Value...)
		buff = append(buff, crlf...)
	}

	return append(buff, crlf...), nil
}

// AppendInterim serializes an informational response, which carries no headers.
func AppendInterim(buff []byte, code status.Code) []byte {
	return append(appendStatusLine(buff, code), crlf...)
}

// AppendErrorReply serializes the fixed-format error response. The connection is closed
// after it is sent.
func AppendErrorReply(buff []byte, code status.Code, message, date string) []byte {
	body := "<h1>" + status.StringCode(code) + " " + status.Text(code) + "</h1>" + message

	buff = appendStatusLine(buff, code)
	if len(date) > 0 {
		buff = append(buff, "Date: "...)
		buff = append(buff, date...)
		buff = append(buff, crlf...)
	}

	buff = append(buff, "Content-Type: text/html"+crlf...)
	buff = append(buff, "Content-Length: "...)
	buff = strconv.AppendInt(buff, int64(len(body)), 10)
	buff = append(buff, crlf...)
	buff = append(buff, "Connection: close"+crlf+crlf...)

	return append(buff, body...)
}

func appendStatusLine(buff []byte, code status.Code) []byte {
	buff = append(buff, "HTTP/1.1 "...)
	buff = append(buff, status.StringCode(code)...)
	buff = append(buff, ' ')
	buff = append(buff, status.Text(code)...)

	return append(buff, crlf...)
}
