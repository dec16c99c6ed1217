package transport

import (
	"context"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/internal/timer"
	"github.com/panjf2000/gnet/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var _ Transport = new(EventLoop)

// EventLoop drives all the connections from a single gnet event loop. Every connection is
// advanced step by step as long as it can progress without blocking; connections idle for
// longer than the keep-alive timeout are reaped by the ticker.
type EventLoop struct {
	gnet.BuiltinEventEngine
	addr   string
	cfg    *config.Config
	spawn  Spawner
	engine gnet.Engine
	booted chan struct{}
	done   chan struct{}
	stop   *atomic.Bool
	live   *xsync.MapOf[gnet.Conn, *loopConn]
	logger *log.Logger
}

type loopConn struct {
	runner Runner
	// seen is the unix time in milliseconds of the last traffic.
	seen atomic.Int64
}

func (l *loopConn) touch() {
	l.seen.Store(timer.Now().UnixMilli())
}

func (l *loopConn) lastSeen() time.Time {
	return time.UnixMilli(l.seen.Load())
}

func NewEventLoop(logger *log.Logger) *EventLoop {
	if logger == nil {
		logger = log.Default()
	}

	return &EventLoop{
		booted: make(chan struct{}),
		done:   make(chan struct{}),
		stop:   new(atomic.Bool),
		live:   xsync.NewMapOf[gnet.Conn, *loopConn](),
		logger: logger,
	}
}

// Bind only validates the address, as the listener is created by the engine itself.
func (e *EventLoop) Bind(addr string) error {
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}

	e.addr = addr
	return nil
}

func (e *EventLoop) Listen(cfg *config.Config, spawn Spawner) error {
	defer close(e.done)

	e.cfg = cfg
	e.spawn = spawn

	return gnet.Run(e, "tcp://"+e.addr,
		gnet.WithMulticore(false),
		gnet.WithTicker(true),
		gnet.WithReadBufferCap(cfg.NET.ReadBufferSize),
	)
}

func (e *EventLoop) OnBoot(eng gnet.Engine) gnet.Action {
	e.engine = eng
	close(e.booted)

	return gnet.None
}

func (e *EventLoop) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if e.stop.Load() {
		return nil, gnet.Close
	}

	if e.live.Size() >= e.cfg.Server.MaxClients {
		e.logger.Printf("WARNING: dropping connection from %s: too many clients", c.RemoteAddr())
		return nil, gnet.Close
	}

	conn := &loopConn{runner: e.spawn(loopOps{conn: c}, c.RemoteAddr())}
	conn.touch()
	c.SetContext(conn)
	e.live.Store(c, conn)

	return nil, advance(c, conn)
}

func (e *EventLoop) OnTraffic(c gnet.Conn) gnet.Action {
	conn, ok := c.Context().(*loopConn)
	if !ok {
		return gnet.Close
	}

	// wake-ups of yielded connections aren't traffic
	if c.InboundBuffered() > 0 {
		conn.touch()
	}

	return advance(c, conn)
}

func (e *EventLoop) OnClose(c gnet.Conn, _ error) gnet.Action {
	if conn, ok := c.Context().(*loopConn); ok {
		conn.runner.Close()
		e.live.Delete(c)
	}

	return gnet.None
}

// OnTick reaps idle connections. Once stopped, the engine shuts down as soon as the last
// connection is gone.
func (e *EventLoop) OnTick() (time.Duration, gnet.Action) {
	e.live.Range(func(c gnet.Conn, conn *loopConn) bool {
		if timer.Expired(conn.lastSeen(), e.cfg.NET.KeepAliveTimeout) {
			_ = c.Close()
		}

		return true
	})

	if e.stop.Load() {
		if e.live.Size() == 0 {
			return 0, gnet.Shutdown
		}

		return 50 * time.Millisecond, gnet.None
	}

	return tickInterval(e.cfg.NET.KeepAliveTimeout), gnet.None
}

func tickInterval(timeout time.Duration) time.Duration {
	const maxInterval = time.Second

	if interval := timeout / 4; interval > 0 && interval < maxInterval {
		return interval
	}

	return maxInterval
}

// advance runs the connection until it has to wait for more data. A yielded connection is
// woken up again once the loop has served the others.
func advance(c gnet.Conn, conn *loopConn) gnet.Action {
	for {
		switch conn.runner.Step() {
		case Running:
		case Waiting:
			return gnet.None
		case Yielded:
			if err := c.Wake(nil); err != nil {
				return gnet.Close
			}

			return gnet.None
		case Stopped:
			return gnet.Close
		}
	}
}

// Live returns the number of connections being served.
func (e *EventLoop) Live() int {
	return e.live.Size()
}

func (e *EventLoop) Stop() {
	e.stop.Store(true)
}

func (e *EventLoop) Abort() {
	e.stop.Store(true)

	select {
	case <-e.booted:
	case <-e.done:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.engine.Stop(ctx); err != nil {
		e.logger.Printf("WARNING: stopping event loop: %s", err)
	}
}

func (*EventLoop) Close() {}

func (e *EventLoop) Wait() {
	<-e.done
}

// loopOps reads what the engine has already buffered, never blocking. Closing is done by
// the loop itself once the connection stops.
type loopOps struct {
	conn gnet.Conn
}

func (l loopOps) Recv(b []byte) (int, error) {
	if l.conn.InboundBuffered() == 0 {
		return 0, ErrWouldBlock
	}

	return l.conn.Read(b)
}

func (l loopOps) Send(b []byte) (int, error) {
	return l.conn.Write(b)
}

func (loopOps) Status() Status {
	return Ready
}

func (l loopOps) Flush() error {
	return l.conn.SetNoDelay(true)
}

func (loopOps) Disconnect() error {
	return nil
}

func (loopOps) Destroy() {}

func (l loopOps) Conn() net.Conn {
	return l.conn
}
