package transport

import (
	"errors"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/internal/timer"
	"github.com/puzpuzpuz/xsync/v3"
)

var _ Transport = new(TCP)

// TCP runs every connection on its own goroutine. The accept loop is periodically
// interrupted in order to check whether it's time to stop.
type TCP struct {
	l      *net.TCPListener
	wg     *sync.WaitGroup
	stop   *atomic.Bool
	live   *xsync.MapOf[net.Conn, struct{}]
	logger *log.Logger
}

func NewTCP(logger *log.Logger) *TCP {
	if logger == nil {
		logger = log.Default()
	}

	return &TCP{
		wg:     new(sync.WaitGroup),
		stop:   new(atomic.Bool),
		live:   xsync.NewMapOf[net.Conn, struct{}](),
		logger: logger,
	}
}

func bindTCP(addr string) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}

func (t *TCP) Bind(addr string) (err error) {
	t.l, err = bindTCP(addr)
	return err
}

// Addr returns the address the listener is bound to.
func (t *TCP) Addr() net.Addr {
	return t.l.Addr()
}

func (t *TCP) Listen(cfg *config.Config, spawn Spawner) error {
	for !t.stop.Load() {
		err := t.l.SetDeadline(timer.Deadline(cfg.NET.AcceptLoopInterruptPeriod))
		if err != nil {
			return err
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			if t.stop.Load() {
				break
			}

			return err
		}

		if t.live.Size() >= cfg.Server.MaxClients {
			t.logger.Printf("WARNING: dropping connection from %s: too many clients", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		t.live.Store(conn, struct{}{})
		t.wg.Add(1)

		go func(conn net.Conn) {
			defer t.wg.Done()
			Drive(spawn(NewPlain(conn, cfg.NET.KeepAliveTimeout), conn.RemoteAddr()))
			_ = conn.Close()
			t.live.Delete(conn)
		}(conn)
	}

	return nil
}

// Live returns the number of connections being served.
func (t *TCP) Live() int {
	return t.live.Size()
}

func (t *TCP) Stop() {
	t.stop.Store(true)
	// interrupt the pending Accept() right away
	_ = t.l.SetDeadline(time.Now())
}

func (t *TCP) Abort() {
	t.Stop()
	t.live.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
}

func (t *TCP) Close() {
	_ = t.l.Close()
}

func (t *TCP) Wait() {
	t.wg.Wait()
}
