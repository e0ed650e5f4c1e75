package record

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/indigo-web/vireo/internal/buffer"
)

const (
	// maxPlaintext is the largest amount of application data a single record may carry.
	maxPlaintext = 1 << 14
	// TLS 1.2 allows up to 2048 bytes of expansion per record, TLS 1.3 only 256
	maxExpansion12 = 2048
	maxExpansion13 = 256
)

var ErrClosed = errors.New("record: engine is closed")

type HandshakeStatus uint32

const (
	NotHandshaking HandshakeStatus = iota
	// NeedUnwrap means the handshake waits for the peer's records
	NeedUnwrap
	// NeedWrap means the handshake is flushing own records
	NeedWrap
	Finished
)

func (h HandshakeStatus) String() string {
	switch h {
	case NotHandshaking:
		return "NOT_HANDSHAKING"
	case NeedUnwrap:
		return "NEED_UNWRAP"
	case NeedWrap:
		return "NEED_WRAP"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Engine terminates TLS on a raw connection. Plaintext is sealed by Encrypt and opened by
// Decrypt, either of them runs the handshake first if it isn't done yet. Reads and writes
// are serialized per direction, so one reader and one writer may work concurrently.
type Engine struct {
	conn *tls.Conn
	pipe *pipe

	handshakeMu sync.Mutex
	handshaken  atomic.Bool
	status      atomic.Uint32

	readMu sync.Mutex
	plain  *buffer.Buffer
	// inboundDone is set once close-notify was received
	inboundDone bool

	writeMu      sync.Mutex
	outboundDone atomic.Bool

	packetSize atomic.Int64
	appSize    atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func New(raw net.Conn, cfg *tls.Config) *Engine {
	e := &Engine{
		plain: buffer.New(0),
	}
	e.packetSize.Store(recordHeaderLen + maxPlaintext + maxExpansion12)
	e.appSize.Store(maxPlaintext)
	e.pipe = newPipe(raw, e, int(e.packetSize.Load()))
	e.conn = tls.Server(e.pipe, cfg)

	return e
}

// Handshake runs the handshake, unless it's already done. Concurrent callers wait for
// the one actually performing it.
func (e *Engine) Handshake(ctx context.Context) error {
	if e.handshaken.Load() {
		return nil
	}

	e.handshakeMu.Lock()
	defer e.handshakeMu.Unlock()

	if e.handshaken.Load() {
		return nil
	}

	e.setStatus(NeedUnwrap)
	if err := e.conn.HandshakeContext(ctx); err != nil {
		e.setStatus(NotHandshaking)
		return fmt.Errorf("record: handshake: %w", err)
	}

	e.setStatus(Finished)
	e.deriveSizes()
	e.handshaken.Store(true)
	e.setStatus(NotHandshaking)

	return nil
}

func (e *Engine) deriveSizes() {
	expansion := maxExpansion12
	if e.conn.ConnectionState().Version == tls.VersionTLS13 {
		expansion = maxExpansion13
	}

	e.packetSize.Store(recordHeaderLen + maxPlaintext + int64(expansion))
}

// Decrypt fills p with plaintext. Already decrypted bytes are returned first, otherwise
// the next record is read and opened. io.EOF is returned once the peer sent close-notify.
func (e *Engine) Decrypt(p []byte) (int, error) {
	if err := e.Handshake(context.Background()); err != nil {
		return 0, err
	}

	e.readMu.Lock()
	defer e.readMu.Unlock()

	if e.plain.Len() == 0 {
		if err := e.unwrap(); err != nil {
			return 0, err
		}
	}

	n := copy(p, e.plain.Bytes())
	e.plain.Discard(n)

	return n, nil
}

func (e *Engine) unwrap() error {
	if e.inboundDone {
		return io.EOF
	}

	for {
		e.plain.Grow(e.ApplicationBufferSize())
		free := e.plain.Free()
		n, err := e.conn.Read(free)
		e.plain.Commit(n)

		if n == len(free) {
			// the record filled the buffer up, so have more room next time
			e.appSize.CompareAndSwap(int64(len(free)), int64(2*len(free)))
		}

		switch {
		case err == io.EOF:
			e.inboundDone = true
			e.closure()

			if n > 0 {
				return nil
			}

			return io.EOF
		case err != nil:
			return fmt.Errorf("record: decrypt: %w", err)
		case n > 0:
			return nil
		}
	}
}

// Encrypt seals the plaintext into records and writes them to the connection.
func (e *Engine) Encrypt(p []byte) (int, error) {
	if err := e.Handshake(context.Background()); err != nil {
		return 0, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.outboundDone.Load() {
		return 0, ErrClosed
	}

	n, err := e.conn.Write(p)
	if err != nil {
		err = fmt.Errorf("record: encrypt: %w", err)
	}

	return n, err
}

// closure sends close-notify. It's done at most once and only after a completed handshake.
func (e *Engine) closure() {
	if !e.handshaken.Load() || !e.outboundDone.CompareAndSwap(false, true) {
		return
	}

	_ = e.conn.CloseWrite()
}

// Close sends close-notify, unless a write is in progress, and closes the connection.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.writeMu.TryLock() {
			e.closure()
			e.writeMu.Unlock()
		}

		e.closeErr = e.pipe.Close()
	})

	return e.closeErr
}

// Buffered returns the number of bytes received, but not consumed yet: both decrypted
// plaintext and ciphertext of records not yet opened.
func (e *Engine) Buffered() int {
	e.readMu.Lock()
	defer e.readMu.Unlock()

	return e.plain.Len() + e.pipe.pending()
}

// State returns the negotiated session state.
func (e *Engine) State() tls.ConnectionState {
	return e.conn.ConnectionState()
}

func (e *Engine) Status() HandshakeStatus {
	return HandshakeStatus(e.status.Load())
}

// PacketBufferSize is the largest size of a single record on the wire.
func (e *Engine) PacketBufferSize() int {
	return int(e.packetSize.Load())
}

// ApplicationBufferSize is the size of the buffer records are opened into.
func (e *Engine) ApplicationBufferSize() int {
	return int(e.appSize.Load())
}

func (e *Engine) setStatus(status HandshakeStatus) {
	e.status.Store(uint32(status))
}

func (e *Engine) unwrapping() {
	if !e.handshaken.Load() {
		e.setStatus(NeedUnwrap)
	}
}

func (e *Engine) wrapping() {
	if !e.handshaken.Load() {
		e.setStatus(NeedWrap)
	}
}
