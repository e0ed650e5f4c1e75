package status

// HTTPError is a protocol violation, which is answered with a fixed-format error reply
// carrying the code and the message.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest                  = NewError(BadRequest, "Bad request")
	ErrBadRequestLine              = NewError(BadRequest, "Bad request line")
	ErrTooLongRequestLine          = NewError(BadRequest, "Request line is too long")
	ErrBadRequestURI               = NewError(BadRequest, "Bad request URI")
	ErrIllegalHeaderKey            = NewError(BadRequest, "Header key contains illegal characters")
	ErrIllegalHeaderValue          = NewError(BadRequest, "Header value contains illegal characters")
	ErrBadHeaderLine               = NewError(BadRequest, "Malformed header line")
	ErrConflictingHeaders          = NewError(BadRequest, "Conflicting or malformed headers detected")
	ErrBadContentLength            = NewError(BadRequest, "Bad Content-Length header")
	ErrBadChunk                    = NewError(BadRequest, "Malformed chunk-encoded data")
	ErrNoContext                   = NewError(NotFound, "No context found for request")
	ErrNoHandler                   = NewError(InternalServerError, "No handler for context")
	ErrUnsupportedTransferEncoding = NewError(NotImplemented, "Unsupported Transfer-Encoding value")
	ErrUnsupportedProtocol         = NewError(HTTPVersionNotSupported, "Unsupported protocol version")
)
