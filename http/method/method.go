package method

import "github.com/indigo-web/utils/strcomp"

type Method uint8

const (
	Unknown Method = iota
	GET
	HEAD
	POST
	PUT
	DELETE
)

// Basic contains the methods every server accepts. Extended adds PUT and DELETE on top.
var (
	Basic    = []Method{GET, POST, HEAD}
	Extended = []Method{GET, POST, HEAD, PUT, DELETE}
)

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case HEAD:
		return "HEAD"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	}

	return ""
}

// Parse matches the method token case-insensitively.
func Parse(str string) Method {
	for _, m := range Extended {
		if strcomp.EqualFold(str, m.String()) {
			return m
		}
	}

	return Unknown
}

// Join renders the methods as a comma-separated list, suitable for the Allow header.
func Join(methods []Method) string {
	var str string
	for i, m := range methods {
		if i > 0 {
			str += ", "
		}

		str += m.String()
	}

	return str
}
