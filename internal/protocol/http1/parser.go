package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/method"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

// Parser advances requests through their parse states. It keeps no state of its own: the
// progress lives in the request, so a single parser serves every request of a connection.
//
// The input is the unread part of the data buffer. Whatever the parser consumes, it marks
// as read by advancing the buffer's cursor. Bytes that can't be interpreted yet (a partial
// method token, an unterminated version line) are left unread until more data arrives.
type Parser struct {
	methods []method.Method
	tokens  []string
}

func NewParser(cfg *config.Config) *Parser {
	methods := method.Basic
	if cfg.Server.ExtendedMethods {
		methods = method.Extended
	}

	tokens := make([]string, len(methods))
	for i, m := range methods {
		tokens[i] = m.String() + " "
	}

	return &Parser{
		methods: methods,
		tokens:  tokens,
	}
}

// Methods returns the methods the parser accepts.
func (p *Parser) Methods() []method.Method {
	return p.methods
}

// Parse advances the request as far as the data allows. On Reject, the request's Code
// holds the status to respond with.
func (p *Parser) Parse(request *http.Request, data *buffer.Buffer) http.Result {
	switch request.State {
	case http.StateInit:
		goto initial
	case http.StateURI:
		goto uri
	case http.StateVersion:
		goto version
	case http.StateHeader:
		goto header
	case http.StateHeaderNext:
		goto headerNext
	case http.StateContent:
		goto content
	case http.StateEnd:
		return http.Success
	default:
		panic("unreachable code")
	}

initial:
	{
		chunk := data.Unread()
		// empty lines preceding the request line are tolerated
		skip := 0
		for skip < len(chunk) && (chunk[skip] == '\r' || chunk[skip] == '\n') {
			skip++
		}

		data.Advance(skip)
		chunk = chunk[skip:]
		if len(chunk) == 0 {
			return http.Incomplete
		}

		partial := false

		for i, token := range p.tokens {
			n := min(len(chunk), len(token))
			if !strcomp.EqualFold(uf.B2S(chunk[:n]), token[:n]) {
				continue
			}

			if n < len(token) {
				partial = true
				continue
			}

			request.Method = p.methods[i]
			request.State = http.StateURI
			data.Advance(n)
			goto uri
		}

		if partial {
			return http.Incomplete
		}

		return reject(request, status.ErrMethodNotAllowed)
	}

uri:
	{
		chunk := data.Unread()

		for i := 0; i < len(chunk); i++ {
			switch chunk[i] {
			case 0:
				return reject(request, status.ErrBadRequest)
			case ' ':
				if _, err := request.Target.Append(chunk[:i]); err != nil {
					return reject(request, status.ErrURITooLong)
				}

				data.Advance(i + 1)
				if request.Target.Len() == 0 {
					return reject(request, status.ErrURITooLong)
				}

				locateQuery(request)
				request.State = http.StateVersion
				goto version
			case '\r', '\n':
				if _, err := request.Target.Append(chunk[:i]); err != nil {
					return reject(request, status.ErrURITooLong)
				}

				if chunk[i] == '\r' && i+1 == len(chunk) {
					// wait for the line feed, so it isn't taken for an empty line later
					data.Advance(i)
					return http.Incomplete
				}

				n := i + 1
				if chunk[i] == '\r' && chunk[i+1] == '\n' {
					n++
				}

				data.Advance(n)
				if request.Target.Len() == 0 {
					return reject(request, status.ErrURITooLong)
				}

				locateQuery(request)
				request.Protocol = proto.HTTP09
				request.State = http.StateHeader
				goto header
			}
		}

		if _, err := request.Target.Append(chunk); err != nil {
			return reject(request, status.ErrURITooLong)
		}

		data.Advance(len(chunk))
		return http.Incomplete
	}

version:
	{
		chunk := data.Unread()
		lf := bytes.IndexByte(chunk, '\n')
		if lf == -1 {
			return http.Incomplete
		}

		line := uf.B2S(stripCR(chunk[:lf]))
		request.Protocol = proto.Match(line)
		if request.Protocol == proto.Unknown {
			request.Protocol = proto.HTTP10
			if len(line) >= len("HTTP/") && strcomp.EqualFold(line[:len("HTTP/")], "HTTP/") {
				return reject(request, status.ErrHTTPVersionNotSupported)
			}

			return reject(request, status.ErrBadVersion)
		}

		data.Advance(lf + 1)
		request.State = http.StateHeader
		goto header
	}

header:
	{
		storage := request.Headers.Storage()
		chunk := data.Unread()
		checkpoint := 0

		for i := 0; i < len(chunk); i++ {
			switch chunk[i] {
			case 0:
				// zero terminates stored lines, so it must never come from the wire
				return reject(request, status.ErrBadHeader)
			case '\r':
				if _, err := storage.Append(chunk[checkpoint:i]); err != nil {
					return reject(request, status.ErrHeaderFieldsTooLarge)
				}

				checkpoint = i + 1
			case '\n':
				if _, err := storage.Append(chunk[checkpoint:i]); err != nil {
					return reject(request, status.ErrHeaderFieldsTooLarge)
				}

				checkpoint = i + 1

				if storage.SegmentLength() == 0 && !request.Continuation {
					data.Advance(i + 1)
					request.State = http.StateHeaderNext
					goto headerNext
				}

				if err := storage.AppendByte(0); err != nil {
					return reject(request, status.ErrHeaderFieldsTooLarge)
				}

				storage.Finish()
				request.Continuation = false
			}
		}

		if _, err := storage.Append(chunk[checkpoint:]); err != nil {
			return reject(request, status.ErrHeaderFieldsTooLarge)
		}

		data.Advance(len(chunk))
		request.Continuation = storage.SegmentLength() > 0
		return http.Incomplete
	}

headerNext:
	{
		storage := request.Headers.Storage()
		raw := storage.Bytes()

		for start := 0; start < len(raw); {
			end := start + bytes.IndexByte(raw[start:], 0)
			colon := bytes.IndexByte(raw[start:end], ':')
			if colon == -1 {
				return reject(request, status.ErrBadHeader)
			}

			storage.Set(start+colon, 0)
			key := buffer.View{Offset: start, Length: colon}
			valueStart := start + colon + 1 + countSpaces(raw[start+colon+1:end])
			value := buffer.View{Offset: valueStart, Length: end - valueStart}
			request.Headers.Bind(key, value)

			if err := applyHeader(request, storage.String(key), storage.String(value)); err != nil {
				return reject(request, err)
			}

			start = end + 1
		}

		data.Compact()
		request.Remaining = request.ContentLength
		request.State = http.StateContent
		goto content
	}

content:
	{
		if request.Remaining == 0 {
			request.State = http.StateEnd
			return http.Success
		}

		chunk := data.Unread()
		body := request.Body()
		n := min(len(chunk), request.Remaining, body.Room())
		if n > 0 {
			if _, err := body.Append(chunk[:n]); err != nil {
				return reject(request, status.ErrContentTooLarge)
			}

			data.Advance(n)
			request.Remaining -= n
		}

		if request.Remaining == 0 {
			request.State = http.StateEnd
			return http.Success
		}

		return http.Incomplete
	}
}

// applyHeader updates the request according to the headers it understands.
func applyHeader(request *http.Request, key, value string) error {
	switch {
	case strcomp.EqualFold(key, "content-length"):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return status.ErrBadContentLength
		}

		request.ContentLength = n
	case strcomp.EqualFold(key, "connection"):
		if hasToken(value, "keep-alive") {
			request.KeepAlive = true
		} else if hasToken(value, "close") {
			request.KeepAlive = false
		}
	}

	return nil
}

func reject(request *http.Request, err error) http.Result {
	request.Code = status.CodeOf(err)
	return http.Reject
}

// locateQuery finds the first question mark of the target.
func locateQuery(request *http.Request) {
	if q := bytes.IndexByte(request.Target.Bytes(), '?'); q != -1 {
		request.QueryAt = q + 1
	}
}

// hasToken reports whether the comma-separated list contains the token.
func hasToken(list, token string) bool {
	for len(list) > 0 {
		var elem string
		elem, list, _ = strings.Cut(list, ",")
		if strcomp.EqualFold(strings.TrimSpace(elem), token) {
			return true
		}
	}

	return false
}

func countSpaces(b []byte) (n int) {
	for n < len(b) && (b[n] == ' ' || b[n] == '\t') {
		n++
	}

	return n
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}
