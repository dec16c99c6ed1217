package status

import "strconv"

type (
	Code   uint16
	Status string
)

// The subset of codes the engine itself produces or expects connectors to produce.
const (
	OK                            Code = 200 // RFC 9110, 15.3.1
	MovedPermanently              Code = 301 // RFC 9110, 15.4.2
	Found                         Code = 302 // RFC 9110, 15.4.3
	NotModified                   Code = 304 // RFC 9110, 15.4.5
	BadRequest                    Code = 400 // RFC 9110, 15.5.1
	Unauthorized                  Code = 401 // RFC 9110, 15.5.2
	Forbidden                     Code = 403 // RFC 9110, 15.5.4
	NotFound                      Code = 404 // RFC 9110, 15.5.5
	MethodNotAllowed              Code = 405 // RFC 9110, 15.5.6
	RequestURITooLong             Code = 414 // RFC 9110, 15.5.15
	InternalServerError           Code = 500 // RFC 9110, 15.6.1
	HTTPVersionNotSupported       Code = 505 // RFC 9110, 15.6.6
	NetworkAuthenticationRequired Code = 511 // RFC 6585, 6
)

// KnownCodes lists every code Text knows a reason for.
var KnownCodes = []Code{
	OK, MovedPermanently, Found, NotModified, BadRequest, Unauthorized, Forbidden, NotFound,
	MethodNotAllowed, RequestURITooLong, InternalServerError, HTTPVersionNotSupported,
	NetworkAuthenticationRequired,
}

// Text returns a reason phrase for the HTTP status code. It returns the empty
// string if the code is unknown.
func Text(code Code) Status {
	switch code {
	case OK:
		return "OK"
	case MovedPermanently:
		return "Moved Permanently"
	case Found:
		return "Found"
	case NotModified:
		return "Not Modified"
	case BadRequest:
		return "Bad Request"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "Not Found"
	case MethodNotAllowed:
		return "Method Not Allowed"
	case RequestURITooLong:
		return "Request URI Too Long"
	case InternalServerError:
		return "Internal Server Error"
	case HTTPVersionNotSupported:
		return "HTTP Version Not Supported"
	case NetworkAuthenticationRequired:
		return "Network Authentication Required"
	}

	return ""
}

// StringCode returns the code in its decimal form.
func StringCode(code Code) string {
	return strconv.Itoa(int(code))
}

// IsError reports whether the code must be treated as a failed response.
func IsError(code Code) bool {
	return code != OK
}
