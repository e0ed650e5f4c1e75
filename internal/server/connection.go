package server

import (
	"bufio"
	"net"
	"sync/atomic"

	"github.com/indigo-web/vireo/internal/protocol/http1"
	"github.com/indigo-web/vireo/internal/transport"
)

type State uint32

const (
	Idle State = iota
	Request
	Response
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Request:
		return "request"
	case Response:
		return "response"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is a single accepted socket along with everything needed to serve requests
// off it. At any moment it's either registered in the poller or owned by a worker.
type Connection struct {
	id        string
	raw       net.Conn
	fd        int
	transport transport.Transport
	reader    *bufio.Reader
	parser    *http1.Parser
	wire      *wire

	state atomic.Uint32
	// registered is set while the socket is watched by the poller. Whoever resets it owns
	// the connection.
	registered atomic.Bool
	closed     atomic.Bool

	// the timestamps are nanoseconds of the coarse clock
	created         atomic.Int64
	responseStarted atomic.Int64
	idleDeadline    atomic.Int64
}

func newConnection(id string, raw net.Conn, fd int, t transport.Transport, readBuff, maxHeaders int) *Connection {
	return &Connection{
		id:        id,
		raw:       raw,
		fd:        fd,
		transport: t,
		reader:    bufio.NewReaderSize(t, readBuff),
		parser:    http1.NewParser(maxHeaders),
		wire:      newWire(t),
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) setState(state State) {
	c.state.Store(uint32(state))
}

// Buffered reports the bytes already received but not yet parsed, both in the read buffer
// and inside the transport.
func (c *Connection) Buffered() int {
	return c.reader.Buffered() + c.transport.Buffered()
}

func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// wire delays the response head until the first body write, so both leave in a single
// write. The head buffer is reused by all the exchanges of the connection.
type wire struct {
	t    transport.Transport
	head []byte
}

func newWire(t transport.Transport) *wire {
	return &wire{
		t:    t,
		head: make([]byte, 0, 512),
	}
}

func (w *wire) Write(p []byte) (n int, err error) {
	if len(w.head) == 0 {
		return w.t.Write(p)
	}

	w.head = append(w.head, p...)
	_, err = w.t.Write(w.head)
	w.head = w.head[:0]
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// Flush writes out the pending head, if any.
func (w *wire) Flush() error {
	if len(w.head) == 0 {
		return nil
	}

	_, err := w.t.Write(w.head)
	w.head = w.head[:0]

	return err
}
