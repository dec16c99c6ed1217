package http1

import (
	"strconv"

	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/strand/internal/buffer"
)

// Serializer renders the status line and the headers of a response. The body is written
// separately, as it may be produced in pieces.
type Serializer struct {
	buff *buffer.Buffer
	err  error
}

func NewSerializer(buff *buffer.Buffer) *Serializer {
	return &Serializer{buff: buff}
}

// Header renders the response head. The Content-Length is emitted only if declared. The
// Connection header tells whether the connection is kept: keep-alive is announced
// explicitly, and so is closing, starting from HTTP/1.1 where persistence is the default.
// The returned slice is valid until the next call.
func (s *Serializer) Header(protocol proto.Protocol, response *http.Response, keepAlive bool) ([]byte, error) {
	s.buff.Reset()
	s.err = nil

	s.appendProtocol(protocol)
	s.appendStatus(response.Status())

	for key, value := range response.Headers.Iter() {
		s.appendHeader(key, value)
	}

	if length, declared := response.Declared(); declared {
		s.appendContentLength(length)
	}

	if keepAlive {
		s.appendKnownHeader("Connection: ", "keep-alive")
	} else if protocol >= proto.HTTP11 {
		s.appendKnownHeader("Connection: ", "close")
	}

	s.crlf()

	return s.buff.Bytes(), s.err
}

func (s *Serializer) appendProtocol(protocol proto.Protocol) {
	if protocol == proto.Unknown {
		protocol = proto.HTTP11
	}

	s.write(protocol.String())
	s.sp()
}

func (s *Serializer) appendStatus(code status.Code) {
	s.write(status.StringCode(code))
	s.sp()

	text := status.Text(code)
	if len(text) == 0 {
		text = "Unknown Status Code"
	}

	s.write(string(text))
	s.crlf()
}

func (s *Serializer) appendHeader(key, value string) {
	s.write(key)
	s.colonsp()
	s.write(value)
	s.crlf()
}

// appendKnownHeader differs from appendHeader only by the fact that the key is known to already
// have a colon and a space included.
func (s *Serializer) appendKnownHeader(key, value string) {
	s.write(key)
	s.write(value)
	s.crlf()
}

func (s *Serializer) appendContentLength(value int) {
	s.appendKnownHeader("Content-Length: ", strconv.Itoa(value))
}

func (s *Serializer) write(str string) {
	if s.err != nil {
		return
	}

	_, s.err = s.buff.AppendString(str)
}

func (s *Serializer) sp() {
	s.write(" ")
}

func (s *Serializer) colonsp() {
	s.write(": ")
}

const crlf = "\r\n"

func (s *Serializer) crlf() {
	s.write(crlf)
}
