package client

// Module extends every connection. Open is called once the connection is accepted, before
// a single byte is read; the returned context is closed when the connection is torn down,
// in the reverse order of opening.
//
// A module may replace the connection's transport (see Client.SetTransport), e.g. to wrap
// the socket into TLS.
type Module interface {
	Open(c *Client) (ModuleContext, error)
}

type ModuleContext interface {
	Close()
}

// ModuleFunc is a module keeping no per-connection context.
type ModuleFunc func(c *Client) error

func (m ModuleFunc) Open(c *Client) (ModuleContext, error) {
	return nopContext{}, m(c)
}

type nopContext struct{}

func (nopContext) Close() {}

// CloseFunc adapts a function into a module context.
type CloseFunc func()

func (c CloseFunc) Close() {
	c()
}
