package client

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/connector"
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/method"
	"github.com/indigo-web/strand/http/proto"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/strand/internal/buffer"
	"github.com/indigo-web/strand/internal/pool"
	"github.com/indigo-web/strand/internal/protocol/http1"
	"github.com/indigo-web/strand/kv"
	"github.com/indigo-web/strand/transport"
)

var _ transport.Runner = new(Client)

// Client is a single connection. It reads requests into a queue and serves them strictly
// in order, one state per Step. Everything it owns is touched only by the goroutine (or the
// event loop) driving it.
type Client struct {
	srv        *Server
	cfg        *config.Config
	ops        transport.Ops
	chain      *connector.Chain
	env        *http.Env
	state      State
	requests   *pool.ObjectPool[*http.Request]
	queue      []*http.Request
	current    *http.Request
	scratch    *buffer.Buffer
	readBuff   []byte
	serializer *http1.Serializer
	contexts   []ModuleContext
	// starved is set when the scratch buffer holds nothing the parser could advance on.
	starved bool
	// closing is set when no more requests are read: the input was malformed or the
	// transport failed. The queued requests are still served.
	closing bool

	// the following relate to the head of the queue only
	early     http.Result
	protocol  proto.Protocol
	keepAlive bool
	ready     bool
	errored   bool
}

func newClient(srv *Server, ops transport.Ops, remote net.Addr) *Client {
	cfg := srv.cfg
	env := &http.Env{
		Server: http.ServerInfo{
			Name:     cfg.Server.Name,
			Protocol: cfg.Server.Version,
			Port:     localPort(ops.Conn()),
		},
		Remote:  remote,
		Session: kv.NewSession(http.NewBuffer(cfg, cfg.Buffer.Session)),
	}

	c := &Client{
		srv:        srv,
		cfg:        cfg,
		ops:        ops,
		chain:      srv.chain.Clone(),
		env:        env,
		scratch:    http.NewBuffer(cfg, cfg.Buffer.Scratch),
		readBuff:   make([]byte, cfg.NET.ReadBufferSize),
		serializer: http1.NewSerializer(http.NewBuffer(cfg, cfg.Buffer.Response)),
		starved:    true,
	}
	c.requests = pool.NewObjectPool[*http.Request](cfg.Server.MaxPipelined, func() *http.Request {
		return http.NewRequest(cfg, env)
	})
	c.resetCycle()

	return c
}

func localPort(conn net.Conn) string {
	if conn == nil || conn.LocalAddr() == nil {
		return ""
	}

	_, port, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return ""
	}

	return port
}

// Config returns the server configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Transport returns the transport currently in use.
func (c *Client) Transport() transport.Ops {
	return c.ops
}

// SetTransport replaces the transport. Meant to be called by modules while opening.
func (c *Client) SetTransport(ops transport.Ops) {
	c.ops = ops
}

// Env returns the connection environment shared by all its requests.
func (c *Client) Env() *http.Env {
	return c.env
}

// Remote returns the address of the peer.
func (c *Client) Remote() net.Addr {
	return c.env.Remote
}

// Session returns the session store of the connection.
func (c *Client) Session() *kv.Session {
	return c.env.Session
}

// State returns the current stage of the cycle.
func (c *Client) State() State {
	return c.state
}

// Pipelined returns the number of requests waiting for their responses.
func (c *Client) Pipelined() int {
	return len(c.queue)
}

// Run drives the connection until it stops.
func (c *Client) Run() {
	transport.Drive(c)
}

// Close tears the connection down, unless it's already stopped.
func (c *Client) Close() {
	if c.state != StateStopped {
		c.teardown()
	}
}

// Step advances the connection by a single state.
func (c *Client) Step() transport.Progress {
	switch c.state {
	case StateRequest:
		return c.request()
	case StatePushRequest:
		c.pushRequest()
	case StateParser1:
		c.parser1()
	case StateResponseHeader:
		c.responseHeader()
	case StateParser2:
		return c.parser2()
	case StateResponseContent:
		c.responseContent()
	case StateParserError:
		c.parserError()
	case StateComplete:
		return c.complete()
	case StateStopped:
		return transport.Stopped
	default:
		panic(fmt.Sprintf("BUG: unexpected connection state %d", c.state))
	}

	return transport.Running
}

func (c *Client) request() transport.Progress {
	switch {
	case len(c.queue) > 0 && (c.closing || len(c.queue) >= c.cfg.Server.MaxPipelined):
		c.state = StatePushRequest
		return transport.Running
	case c.closing:
		return c.teardown()
	case c.starved:
		if len(c.queue) > 0 {
			// don't wait for more input while there's a response to produce
			c.state = StatePushRequest
			return transport.Running
		}

		return c.receive()
	}

	req := c.parsing()
	head := len(c.queue) == 0
	if head {
		c.feed(req)
	}

	switch c.srv.parser.Parse(req, c.scratch) {
	case http.Success:
		c.enqueue()
		c.starved = len(c.scratch.Unread()) == 0
	case http.Reject:
		c.enqueue()
		c.closing = true
		c.scratch.Reset()
	default:
		c.starved = !(head && c.feed(req)) || len(c.scratch.Unread()) == 0
	}

	return transport.Running
}

// receive reads the next piece of data into the scratch buffer.
func (c *Client) receive() transport.Progress {
	n, err := c.ops.Recv(c.readBuff)
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return transport.Waiting
	case err != nil:
		c.closing = true
		return transport.Running
	case n == 0:
		return transport.Running
	}

	c.scratch.Compact()
	if _, err = c.scratch.Append(c.readBuff[:n]); err != nil {
		req := c.parsing()
		req.Code = status.CodeOf(status.ErrURITooLong)
		c.enqueue()
		c.closing = true
		c.scratch.Reset()

		return transport.Running
	}

	c.starved = false
	return transport.Running
}

// parsing returns the request currently being parsed.
func (c *Client) parsing() *http.Request {
	if c.current == nil {
		c.current = c.requests.Acquire()
	}

	return c.current
}

func (c *Client) enqueue() {
	c.queue = append(c.queue, c.current)
	c.current = nil
}

// feed hands the body received so far to the connector, so bodies larger than the content
// buffer can be streamed. Only the head of the queue is fed: the rest wait, holding their
// content until their turn comes. Returns whether any content was consumed.
func (c *Client) feed(req *http.Request) bool {
	if req.State != http.StateContent || len(req.Content()) == 0 {
		return false
	}

	if c.early == http.Continue {
		c.early = c.serve(req)
	}

	req.Body().Reset()
	return true
}

// serve calls the connector bound to the request or, if there's none, the chain.
func (c *Client) serve(req *http.Request) http.Result {
	bound := req.Bound()
	if bound == nil {
		return c.chain.Dispatch(req, req.Response)
	}

	switch result := bound.Serve(req, req.Response); result {
	case http.Success:
		if req.Response.Status() != status.OK {
			return http.Reject
		}

		return http.Success
	case http.Reject:
		return http.Reject
	default:
		return http.Continue
	}
}

func (c *Client) head() *http.Request {
	return c.queue[0]
}

func (c *Client) pushRequest() {
	req := c.head()
	c.protocol = proto.Min(req.Protocol, c.cfg.Server.Version)
	c.keepAlive = req.KeepAlive && req.Response.KeepAlive

	switch {
	case req.Code != status.OK:
		req.Response.Code(req.Code)
		c.state = StateParserError
	case c.early == http.Reject:
		c.unclaimed(req)
		c.state = StateParserError
	case c.early == http.Success:
		c.succeed(req.Response)
	default:
		c.state = StateParser1
	}
}

func (c *Client) parser1() {
	req := c.head()

	switch c.serve(req) {
	case http.Reject:
		c.unclaimed(req)
		c.state = StateParserError
	case http.Success:
		c.succeed(req.Response)
	default:
		c.state = c.headerStage()
	}
}

// succeed marks the response as complete, declaring its length unless the connector did.
func (c *Client) succeed(resp *http.Response) {
	if resp.Err() != nil {
		resp.Code(status.InternalServerError)
		c.state = StateParserError
		return
	}

	c.ready = true
	declare(resp)
	c.state = c.headerStage()
}

// unclaimed picks the status of a request nobody served.
func (c *Client) unclaimed(req *http.Request) {
	if req.Response.Status() != status.OK {
		return
	}

	switch req.Method {
	case method.PUT, method.DELETE:
		req.Response.Code(status.MethodNotAllowed)
	default:
		req.Response.Code(status.NotFound)
	}
}

// headerStage skips the response head for HTTP/0.9, which has none.
func (c *Client) headerStage() State {
	if c.protocol == proto.HTTP09 {
		return StateResponseContent
	}

	return StateResponseHeader
}

func (c *Client) responseHeader() {
	resp := c.head().Response
	head, err := c.serializer.Header(c.protocol, resp, c.persistent(resp))
	if err == nil {
		err = c.write(head)
	}

	switch {
	case err != nil:
		c.errored = true
		c.state = StateComplete
	case c.ready:
		c.state = StateResponseContent
	default:
		c.state = StateParser2
	}
}

func (c *Client) parser2() transport.Progress {
	resp := c.head().Response

	switch c.serve(c.head()) {
	case http.Reject:
		// the head is already sent, so there's no way to report the error
		c.errored = true
		c.state = StateComplete
	case http.Success:
		c.ready = true
		if len(resp.Content()) > 0 {
			c.state = StateResponseContent
		} else {
			c.state = StateComplete
		}
	default:
		if len(resp.Content()) == 0 {
			// the connector has nothing yet; let the others run meanwhile
			return transport.Yielded
		}

		c.state = StateResponseContent
	}

	return transport.Running
}

func (c *Client) responseContent() {
	req := c.head()
	resp := req.Response

	if req.Method != method.HEAD {
		if err := c.write(resp.Content()); err != nil {
			c.errored = true
			c.state = StateComplete
			return
		}
	}

	resp.Body().Reset()
	if c.ready {
		c.state = StateComplete
	} else {
		c.state = StateParser2
	}
}

// parserError turns the response into an error one. A body is synthesized from the status
// unless the connector provided its own.
func (c *Client) parserError() {
	resp := c.head().Response
	if resp.Err() != nil {
		resp.Discard()
	}

	if len(resp.Content()) == 0 {
		code := resp.Status()
		_ = resp.String(http.MIMEPlain, fmt.Sprintf("%d %s", code, status.Text(code)))
	}

	resp.Header("Allow", method.Join(c.srv.parser.Methods()))
	c.errored = true
	c.ready = true
	declare(resp)
	c.state = c.headerStage()
}

func (c *Client) complete() transport.Progress {
	if c.ops.Status() == transport.Ready {
		_ = c.ops.Flush()
	}

	if len(c.queue) == 0 {
		return c.teardown()
	}

	req := c.head()
	keep := c.persistent(req.Response)
	c.queue = c.queue[1:]
	c.release(req)
	c.resetCycle()

	if !keep {
		return c.teardown()
	}

	c.state = StateRequest
	c.starved = false

	return transport.Running
}

// persistent tells whether the connection may serve another request after this response.
// Without a declared length the peer can't tell where the body ends.
func (c *Client) persistent(resp *http.Response) bool {
	_, declared := resp.Declared()

	return c.cfg.Server.KeepAlive &&
		c.keepAlive && resp.KeepAlive &&
		c.protocol > proto.HTTP10 &&
		!c.errored &&
		declared
}

func (c *Client) resetCycle() {
	c.early = http.Continue
	c.protocol = proto.HTTP10
	c.keepAlive = false
	c.ready = false
	c.errored = false
}

func (c *Client) release(req *http.Request) {
	req.Reset()
	c.requests.Release(req)
}

// write sends the whole buffer, looping over partial writes.
func (c *Client) write(b []byte) error {
	for len(b) > 0 {
		n, err := c.ops.Send(b)
		if err != nil {
			return err
		}

		if n == 0 {
			return io.ErrShortWrite
		}

		b = b[n:]
	}

	return nil
}

// teardown closes the module contexts in reverse order, then the transport, and drops
// every request left.
func (c *Client) teardown() transport.Progress {
	for i := len(c.contexts) - 1; i >= 0; i-- {
		c.contexts[i].Close()
	}

	c.contexts = nil
	_ = c.ops.Disconnect()
	c.ops.Destroy()

	for _, req := range c.queue {
		c.release(req)
	}

	c.queue = nil
	if c.current != nil {
		c.release(c.current)
		c.current = nil
	}

	c.state = StateStopped
	return transport.Stopped
}

// declare sets the content length to what's buffered, unless already declared.
func declare(resp *http.Response) {
	if _, declared := resp.Declared(); !declared {
		resp.ContentLength(len(resp.Content()))
	}
}
