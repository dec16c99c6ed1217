package transport

import (
	"sync/atomic"

	"github.com/indigo-web/strand/config"
)

// Supervisor runs several transports at once. If any of them fails, the rest are stopped
// too.
type Supervisor struct {
	stopped *atomic.Bool
	ts      []boundTransport
	stopch  chan struct{}
	done    chan struct{}
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		stopped: new(atomic.Bool),
		stopch:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Add binds the transport to the address. On failure, all the previously added
// transports are closed.
func (s *Supervisor) Add(addr string, transport Transport, spawn Spawner) error {
	err := transport.Bind(addr)
	if err != nil {
		s.close()
		return err
	}

	s.ts = append(s.ts, boundTransport{
		spawn: spawn,
		t:     transport,
	})

	return nil
}

func (s *Supervisor) Run(cfg *config.Config) error {
	defer close(s.done)

	if len(s.ts) == 0 {
		return nil
	}

	errch := make(chan error)

	for _, t := range s.ts {
		go func(t boundTransport, ch chan<- error) {
			ch <- t.t.Listen(cfg, t.spawn)
		}(t, errch)
	}

	select {
	case err := <-errch:
		s.stop()
		drain(errch, len(s.ts)-1)

		return err
	case <-s.stopch:
		s.stop()
		drain(errch, len(s.ts))

		return nil
	}
}

// Stop stops accepting connections and blocks until the served ones complete and Run
// returns.
func (s *Supervisor) Stop() {
	select {
	case s.stopch <- struct{}{}:
		<-s.done
	case <-s.done:
	}
}

// Abort closes every live connection, then stops.
func (s *Supervisor) Abort() {
	for _, t := range s.ts {
		t.t.Abort()
	}

	s.Stop()
}

func (s *Supervisor) stop() {
	if s.stopped.Load() {
		return
	}

	s.stopped.Store(true)

	for _, t := range s.ts {
		t.t.Stop()
	}

	for _, t := range s.ts {
		t.t.Wait()
		t.t.Close()
	}
}

func (s *Supervisor) close() {
	for _, t := range s.ts {
		t.t.Close()
	}
}

type boundTransport struct {
	spawn Spawner
	t     Transport
}

func drain(ch <-chan error, n int) {
	for range n {
		<-ch
	}
}
