package dummy

import (
	"io"
	"net"
	"time"
)

var _ net.Conn = new(Conn)

// Conn is a do-nothing socket, reporting the addresses it was given.
type Conn struct {
	Local, Remote net.Addr
}

func (*Conn) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (*Conn) Write(b []byte) (int, error) {
	return len(b), nil
}

func (*Conn) Close() error {
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return c.Local
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.Remote
}

func (*Conn) SetDeadline(time.Time) error {
	return nil
}

func (*Conn) SetReadDeadline(time.Time) error {
	return nil
}

func (*Conn) SetWriteDeadline(time.Time) error {
	return nil
}
