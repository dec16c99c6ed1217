package dummy

import (
	"errors"
	"io"
	"net"

	"github.com/indigo-web/strand/transport"
)

var _ transport.Ops = new(Ops)

// ErrWriteFailed is returned by Send once the configured write budget is exhausted.
var ErrWriteFailed = errors.New("dummy: write failed")

// Ops replays a script of reads and records everything written. A nil piece in the script
// makes the corresponding Recv report transport.ErrWouldBlock. When the script is over,
// Recv returns io.EOF, unless set to block instead.
type Ops struct {
	script     [][]byte
	pointer    int
	pending    []byte
	written    []byte
	writeLimit int
	maxWrite   int
	blockAtEnd bool
	status     transport.Status

	Flushes      int
	Disconnected bool
	Destroyed    bool
	conn         *Conn
}

func New(pieces ...string) *Ops {
	o := &Ops{
		writeLimit: -1,
		conn:       new(Conn),
	}

	return o.Then(pieces...)
}

// Then appends more pieces to the script.
func (o *Ops) Then(pieces ...string) *Ops {
	for _, piece := range pieces {
		o.script = append(o.script, []byte(piece))
	}

	return o
}

// Block makes the next Recv in the script report that no data is available.
func (o *Ops) Block() *Ops {
	o.script = append(o.script, nil)
	return o
}

// BlockAtEnd makes Recv report ErrWouldBlock instead of io.EOF after the script ends.
func (o *Ops) BlockAtEnd() *Ops {
	o.blockAtEnd = true
	return o
}

// FailWritesAfter makes Send fail once n bytes in total were written.
func (o *Ops) FailWritesAfter(n int) *Ops {
	o.writeLimit = n
	return o
}

// PartialWrites limits how many bytes a single Send accepts.
func (o *Ops) PartialWrites(n int) *Ops {
	o.maxWrite = n
	return o
}

// Pending makes the transport report Pending until the first Recv.
func (o *Ops) Pending() *Ops {
	o.status = transport.Pending
	return o
}

// WithRemote sets the address reported by the socket.
func (o *Ops) WithRemote(addr net.Addr) *Ops {
	o.conn.Remote = addr
	return o
}

func (o *Ops) Recv(b []byte) (int, error) {
	if o.status == transport.Pending {
		o.status = transport.Ready
		return 0, nil
	}

	if len(o.pending) == 0 {
		if o.pointer >= len(o.script) {
			if o.blockAtEnd {
				return 0, transport.ErrWouldBlock
			}

			return 0, io.EOF
		}

		o.pending = o.script[o.pointer]
		o.pointer++

		if o.pending == nil {
			return 0, transport.ErrWouldBlock
		}
	}

	n := copy(b, o.pending)
	o.pending = o.pending[n:]

	return n, nil
}

func (o *Ops) Send(b []byte) (int, error) {
	if o.maxWrite > 0 && len(b) > o.maxWrite {
		b = b[:o.maxWrite]
	}

	if o.writeLimit >= 0 {
		room := o.writeLimit - len(o.written)
		if room <= 0 {
			return 0, ErrWriteFailed
		}

		if len(b) > room {
			b = b[:room]
		}
	}

	o.written = append(o.written, b...)
	return len(b), nil
}

func (o *Ops) Status() transport.Status {
	return o.status
}

func (o *Ops) Flush() error {
	o.Flushes++
	return nil
}

func (o *Ops) Disconnect() error {
	o.Disconnected = true
	return nil
}

func (o *Ops) Destroy() {
	o.Destroyed = true
}

func (o *Ops) Conn() net.Conn {
	return o.conn
}

// Written returns everything sent so far.
func (o *Ops) Written() string {
	return string(o.written)
}

// Drained reports whether the whole script was read.
func (o *Ops) Drained() bool {
	return o.pointer >= len(o.script) && len(o.pending) == 0
}
