package status

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
	ErrBadRequest              = NewError(BadRequest, "bad request")
	ErrBadHeader               = NewError(BadRequest, "malformed header line")
	ErrBadContentLength        = NewError(BadRequest, "invalid Content-Length value")
	ErrBadVersion              = NewError(BadRequest, "malformed protocol version")
	ErrNotFound                = NewError(NotFound, "not found")
	ErrMethodNotAllowed        = NewError(MethodNotAllowed, "method not allowed")
	ErrURITooLong              = NewError(RequestURITooLong, "request URI too long")
	ErrHeaderFieldsTooLarge    = NewError(RequestURITooLong, "too large headers section")
	ErrContentTooLarge         = NewError(RequestURITooLong, "too large content piece")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")
	ErrHTTPVersionNotSupported = NewError(HTTPVersionNotSupported, "HTTP version not supported")
)

// CodeOf extracts the status code out of the error. Errors that don't carry one are
// internal server errors.
func CodeOf(err error) Code {
	if httpErr, ok := err.(HTTPError); ok {
		return httpErr.Code
	}

	return InternalServerError
}
