package transport

import (
	"errors"
	"net"
	"runtime"
)

// ErrWouldBlock is returned by Recv when no data is available at the moment and the
// caller must wait for the next readiness notification.
var ErrWouldBlock = errors.New("transport: would block")

// Status tells whether the transport is ready to carry application data.
type Status uint8

const (
	Ready Status = iota
	// Pending means the transport is still setting itself up (e.g. a TLS handshake is in
	// progress).
	Pending
)

// Ops is the set of operations a connection performs on its transport. Implementations
// may replace one another during the connection's lifetime, e.g. a TLS module wraps the
// plain socket before the first byte is read.
type Ops interface {
	// Recv reads into b. It may return (0, nil) when the transport made progress without
	// producing data, or ErrWouldBlock when nothing is available yet.
	Recv(b []byte) (int, error)
	// Send writes b, possibly partially.
	Send(b []byte) (int, error)
	Status() Status
	// Flush pushes out everything written so far. Nagle's delay is disabled on the way.
	Flush() error
	// Disconnect shuts the outgoing direction down.
	Disconnect() error
	// Destroy releases the transport, closing the socket.
	Destroy()
	// Conn returns the socket underneath.
	Conn() net.Conn
}

// Progress is what a single step of a connection reports to the scheduler.
type Progress uint8

const (
	// Running means the connection can advance further right away.
	Running Progress = iota
	// Waiting means the connection can't advance until more data arrives.
	Waiting
	// Stopped means the connection is done and already torn down.
	Stopped
	// Yielded means the step made no progress, but the connection doesn't wait for data
	// either. It must be resumed after others had their turn.
	Yielded
)

// Runner is a connection as seen by the scheduler.
type Runner interface {
	Step() Progress
	// Close tears the connection down, if it isn't yet. It is called when the connection
	// was closed from the outside, e.g. the peer went away or the idle timeout fired.
	Close()
}

// Spawner creates a connection on top of the transport.
type Spawner func(ops Ops, remote net.Addr) Runner

// Drive advances the runner until it stops. Waiting is treated as running, because
// blocking transports suspend inside Recv.
func Drive(r Runner) {
	for {
		switch r.Step() {
		case Stopped:
			return
		case Yielded:
			runtime.Gosched()
		}
	}
}
