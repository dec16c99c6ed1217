package http

import (
	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/strand/kv"
)

// ParseState tracks how far a request has been read off the wire. It never goes back while
// the same request is being parsed.
type ParseState uint8

const (
	StateInit ParseState = iota
	StateURI
	StateVersion
	StateHeader
	StateHeaderNext
	StateContent
	StateEnd
)

// Result is what the parser and connectors report back to the connection.
type Result uint8

const (
	// Success means the work is done: the message is fully parsed or the response is ready.
	Success Result = iota
	// Reject means the input is malformed or the connector declines the request for good.
	Reject
	// Continue means the connector claims the request but isn't finished yet, or the parser
	// needs more bytes.
	Continue
	// Pass skips the connector for this request without dropping it from the chain.
	Pass
)

// Incomplete is how the parser spells Continue.
const Incomplete = Continue

// Connector produces responses. Once it returned Continue for a request, it stays bound to
// it and is called again on every pass until it returns Success or Reject.
type Connector interface {
	Serve(req *Request, resp *Response) Result
}

type ConnectorFunc func(req *Request, resp *Response) Result

func (c ConnectorFunc) Serve(req *Request, resp *Response) Result {
	return c(req, resp)
}

// Message holds what requests and responses have in common.
type Message struct {
	// Protocol is the version of the message.
	Protocol proto.Protocol
	// Headers are views into the message-owned header storage.
	Headers *kv.Table
	// ContentLength is the declared length of the body.
	ContentLength int
	// KeepAlive tells whether the side asked for a persistent connection.
	KeepAlive bool
	body      *buffer.Buffer
	cfg       *config.Config
}

func newMessage(cfg *config.Config) Message {
	return Message{
		Headers: kv.NewTable(NewBuffer(cfg, cfg.Buffer.Headers)),
		cfg:     cfg,
	}
}

// Body returns the content buffer, allocating it on the first call.
func (m *Message) Body() *buffer.Buffer {
	if m.body == nil {
		m.body = NewBuffer(m.cfg, m.cfg.Buffer.Content)
	}

	return m.body
}

// Content returns the bytes currently held by the content buffer.
func (m *Message) Content() []byte {
	if m.body == nil {
		return nil
	}

	return m.body.Bytes()
}

func (m *Message) reset() {
	m.Headers.Reset()
	m.ContentLength = 0
	m.KeepAlive = false

	if m.body != nil {
		m.body.Reset()
	}
}

// NewBuffer returns a buffer bounded by the limits.
func NewBuffer(cfg *config.Config, limits config.Limits) *buffer.Buffer {
	return buffer.New(limits.Chunks, cfg.Buffer.ChunkSize, limits.Ceiling)
}
