package record

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/indigo-web/vireo/internal/buffer"
)

const recordHeaderLen = 5

// pipe is the transport the TLS state machine runs over. Received ciphertext is handed out
// one record at a time, so bytes of the following records remain in the receive buffer,
// where they can be seen. Produced records are collected in the send buffer and flushed
// right away.
type pipe struct {
	raw    net.Conn
	engine *Engine

	in         *buffer.Buffer
	recordLeft int
	out        *buffer.Buffer
}

func newPipe(raw net.Conn, engine *Engine, packetSize int) *pipe {
	return &pipe{
		raw:    raw,
		engine: engine,
		in:     buffer.New(packetSize),
		out:    buffer.New(packetSize),
	}
}

func (p *pipe) Read(b []byte) (int, error) {
	p.engine.unwrapping()

	if p.recordLeft == 0 {
		if err := p.fill(recordHeaderLen); err != nil {
			return 0, err
		}

		header := p.in.Bytes()[:recordHeaderLen]
		p.recordLeft = recordHeaderLen + int(binary.BigEndian.Uint16(header[3:]))

		if p.in.Cap() < p.recordLeft {
			// the record doesn't fit, so grow to hold it as a whole
			p.in.Grow(p.recordLeft - p.in.Len())
		}
	}

	if err := p.fill(1); err != nil {
		return 0, err
	}

	available := p.in.Bytes()
	n := copy(b, available[:min(len(available), p.recordLeft)])
	p.in.Discard(n)
	p.recordLeft -= n

	return n, nil
}

// fill reads from the transport until at least need bytes are buffered.
func (p *pipe) fill(need int) error {
	for p.in.Len() < need {
		atLeast := max(need-p.in.Len(), p.engine.PacketBufferSize()-p.in.Len())
		_, err := p.in.ReadFrom(p.raw, atLeast)
		if err != nil {
			if p.in.Len() >= need {
				return nil
			}

			return err
		}
	}

	return nil
}

// pending returns the number of received ciphertext bytes not yet handed to the state machine.
func (p *pipe) pending() int {
	return p.in.Len()
}

func (p *pipe) Write(b []byte) (int, error) {
	p.engine.wrapping()
	p.out.Append(b)

	for p.out.Len() > 0 {
		n, err := p.raw.Write(p.out.Bytes())
		p.out.Discard(n)
		if err != nil {
			p.out.Reset()
			return 0, err
		}
	}

	return len(b), nil
}

func (p *pipe) Close() error {
	return p.raw.Close()
}

func (p *pipe) LocalAddr() net.Addr {
	return p.raw.LocalAddr()
}

func (p *pipe) RemoteAddr() net.Addr {
	return p.raw.RemoteAddr()
}

func (p *pipe) SetDeadline(t time.Time) error {
	return p.raw.SetDeadline(t)
}

func (p *pipe) SetReadDeadline(t time.Time) error {
	return p.raw.SetReadDeadline(t)
}

func (p *pipe) SetWriteDeadline(t time.Time) error {
	return p.raw.SetWriteDeadline(t)
}
