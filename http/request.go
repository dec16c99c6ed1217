package http

import (
	"net"
	"strconv"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/http/method"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/strand/kv"
	"github.com/indigo-web/utils/uf"
)

// Env is the part of the connection visible to connectors. It lives as long as the
// connection does and is shared by every request on it.
type Env struct {
	// Server describes the serving side.
	Server ServerInfo
	// Remote holds the remote address.
	Remote net.Addr
	// Session is the per-connection key-value store.
	Session *kv.Session
}

// ServerInfo is what the server reports about itself to connectors.
type ServerInfo struct {
	Name     string
	Protocol proto.Protocol
	Port     string
}

// Request represents HTTP request. Strings returned by its methods share memory with the
// request and are valid only until it is released after the response is sent; copy them
// (e.g. via strings.Clone) to keep them longer.
type Request struct {
	Message
	// Method is an enum representing the request method.
	Method method.Method
	// State is the parsing progress. Continuation is set when the last piece of data ended in
	// the middle of a header line.
	State        ParseState
	Continuation bool
	// Remaining is the number of body bytes not yet consumed.
	Remaining int
	// Code is the result status of the request. It is status.OK unless parsing failed.
	Code status.Code
	// Target stores the request target as it came. QueryAt is the index of the first byte
	// after '?', or -1.
	Target  *buffer.Buffer
	QueryAt int
	// Env is the back-reference to the connection.
	Env *Env
	// Response is the response of this request. Both share a single lifetime.
	Response *Response
	// Private is left for the connector bound to the request.
	Private any
	bound   Connector
}

func NewRequest(cfg *config.Config, env *Env) *Request {
	req := &Request{
		Message: newMessage(cfg),
		Target:  NewBuffer(cfg, cfg.Buffer.URI),
		Env:     env,
	}
	req.Response = NewResponse(cfg)
	req.Reset()

	return req
}

// URI returns the whole request target, including the query. Valid until the request is
// released.
func (r *Request) URI() string {
	return uf.B2S(r.Target.Bytes())
}

// Path returns the request target without the query.
func (r *Request) Path() string {
	if r.QueryAt == -1 {
		return r.URI()
	}

	return uf.B2S(r.Target.Bytes()[:r.QueryAt-1])
}

// Query returns the query string, if any.
func (r *Request) Query() string {
	if r.QueryAt == -1 {
		return ""
	}

	return uf.B2S(r.Target.Bytes()[r.QueryAt:])
}

// Header returns the first value of the header, or an empty string.
func (r *Request) Header(key string) string {
	return r.Headers.Value(key)
}

// Session returns the session store of the connection.
func (r *Request) Session() *kv.Session {
	return r.Env.Session
}

// Meta looks up server and request metadata by key. Unknown keys are treated as header
// names. Request-derived values are valid until the request is released.
func (r *Request) Meta(key string) string {
	switch key {
	case "name":
		return r.Env.Server.Name
	case "protocol":
		return r.Env.Server.Protocol.String()
	case "port":
		return r.Env.Server.Port
	case "remote_addr", "remote_host":
		host, _ := splitAddr(r.Env.Remote)
		return host
	case "remote_port", "remote_service":
		_, port := splitAddr(r.Env.Remote)
		return port
	case "uri":
		return r.URI()
	case "path":
		return r.Path()
	case "query":
		return r.Query()
	case "method":
		return r.Method.String()
	case "content-length":
		return strconv.Itoa(r.ContentLength)
	case "content":
		return uf.B2S(r.Content())
	}

	return r.Headers.Value(key)
}

// Bind makes the connector the only one serving this request from now on.
func (r *Request) Bind(c Connector) {
	r.bound = c
}

// Bound returns the connector claimed the request, if any.
func (r *Request) Bound() Connector {
	return r.bound
}

// Reset prepares the request and its response for the next use.
func (r *Request) Reset() {
	r.Message.reset()
	r.Protocol = proto.HTTP10
	r.Method = method.Unknown
	r.State = StateInit
	r.Continuation = false
	r.Remaining = 0
	r.Code = status.OK
	r.Target.Reset()
	r.QueryAt = -1
	r.Private = nil
	r.bound = nil
	r.Response.Reset()
}

func splitAddr(addr net.Addr) (host, port string) {
	if addr == nil {
		return "", ""
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), ""
	}

	return host, port
}
