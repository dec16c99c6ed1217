package transport

import (
	"net"
	"time"

	"github.com/indigo-web/strand/internal/timer"
)

var _ Ops = new(Plain)

// Plain is the default transport over a blocking socket. Every read and write is bounded
// by the timeout.
type Plain struct {
	conn    net.Conn
	timeout time.Duration
}

func NewPlain(conn net.Conn, timeout time.Duration) *Plain {
	return &Plain{
		conn:    conn,
		timeout: timeout,
	}
}

func (p *Plain) Recv(b []byte) (int, error) {
	if err := p.conn.SetReadDeadline(timer.Deadline(p.timeout)); err != nil {
		return 0, err
	}

	return p.conn.Read(b)
}

func (p *Plain) Send(b []byte) (int, error) {
	if err := p.conn.SetWriteDeadline(timer.Deadline(p.timeout)); err != nil {
		return 0, err
	}

	return p.conn.Write(b)
}

func (*Plain) Status() Status {
	return Ready
}

func (p *Plain) Flush() error {
	return noDelay(p.conn)
}

func (p *Plain) Disconnect() error {
	if tcp, ok := p.conn.(*net.TCPConn); ok {
		return tcp.CloseWrite()
	}

	return nil
}

func (p *Plain) Destroy() {
	_ = p.conn.Close()
}

func (p *Plain) Conn() net.Conn {
	return p.conn
}

func noDelay(conn net.Conn) error {
	if tcp, ok := conn.(*net.TCPConn); ok {
		return tcp.SetNoDelay(true)
	}

	return nil
}
