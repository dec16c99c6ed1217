package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/indigo-web/strand/internal/timer"
)

var _ Ops = new(TLS)

// TLS wraps a plain socket into a server-side TLS session. The handshake is done by the
// first Recv, which reports no data; the transport is Pending until then.
type TLS struct {
	conn    *tls.Conn
	raw     net.Conn
	timeout time.Duration
	ready   bool
}

func NewTLS(conn net.Conn, cfg *tls.Config, timeout time.Duration) *TLS {
	return &TLS{
		conn:    tls.Server(conn, cfg),
		raw:     conn,
		timeout: timeout,
	}
}

func (t *TLS) Recv(b []byte) (int, error) {
	if !t.ready {
		if err := t.handshake(); err != nil {
			return 0, err
		}

		return 0, nil
	}

	if err := t.conn.SetReadDeadline(timer.Deadline(t.timeout)); err != nil {
		return 0, err
	}

	return t.conn.Read(b)
}

func (t *TLS) handshake() error {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	if err := t.conn.HandshakeContext(ctx); err != nil {
		return err
	}

	t.ready = true
	return nil
}

func (t *TLS) Send(b []byte) (int, error) {
	if err := t.conn.SetWriteDeadline(timer.Deadline(t.timeout)); err != nil {
		return 0, err
	}

	return t.conn.Write(b)
}

func (t *TLS) Status() Status {
	if t.ready {
		return Ready
	}

	return Pending
}

func (t *TLS) Flush() error {
	return noDelay(t.raw)
}

func (t *TLS) Disconnect() error {
	if !t.ready {
		return nil
	}

	return t.conn.CloseWrite()
}

func (t *TLS) Destroy() {
	_ = t.conn.Close()
}

// Conn returns the TLS connection. The state of the session is accessible via
// ConnectionState.
func (t *TLS) Conn() net.Conn {
	return t.conn
}
