package buffer

import "io"

// Buffer is a growable byte buffer with a read offset. Consumed bytes are released by moving
// the offset; free space is reclaimed by compacting the unread tail to the front before the
// capacity is doubled. Capacity never shrinks.
type Buffer struct {
	memory []byte
	offset int
}

func New(initialSize int) *Buffer {
	return &Buffer{
		memory: make([]byte, 0, initialSize),
	}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.memory) - b.offset
}

// Cap returns the current capacity of the underlying memory.
func (b *Buffer) Cap() int {
	return cap(b.memory)
}

// Bytes returns unread bytes. The slice is valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.memory[b.offset:]
}

// Grow guarantees at least n bytes of free space after the unread data.
func (b *Buffer) Grow(n int) {
	if cap(b.memory)-len(b.memory) >= n {
		return
	}

	if b.offset > 0 {
		live := copy(b.memory, b.memory[b.offset:])
		b.memory = b.memory[:live]
		b.offset = 0

		if cap(b.memory)-len(b.memory) >= n {
			return
		}
	}

	newCap := max(cap(b.memory), 1)
	for newCap-len(b.memory) < n {
		newCap *= 2
	}

	memory := make([]byte, len(b.memory), newCap)
	copy(memory, b.memory)
	b.memory = memory
}

// Free returns the writable tail. Bytes written there become visible after Commit.
func (b *Buffer) Free() []byte {
	return b.memory[len(b.memory):cap(b.memory)]
}

// Commit marks n bytes of the free tail as written.
func (b *Buffer) Commit(n int) {
	b.memory = b.memory[:len(b.memory)+n]
}

// Append copies p to the end of the buffer, growing it if needed.
func (b *Buffer) Append(p []byte) {
	b.Grow(len(p))
	b.memory = append(b.memory, p...)
}

// Discard marks n unread bytes as consumed.
func (b *Buffer) Discard(n int) {
	b.offset = min(b.offset+n, len(b.memory))
	if b.offset == len(b.memory) {
		b.Reset()
	}
}

// ReadFrom performs a single read from r into the free tail, guaranteeing at least atLeast
// bytes of free space beforehand.
func (b *Buffer) ReadFrom(r io.Reader, atLeast int) (int, error) {
	b.Grow(atLeast)
	n, err := r.Read(b.Free())
	b.Commit(n)

	return n, err
}

// Reset drops all the data, keeping the memory.
func (b *Buffer) Reset() {
	b.memory = b.memory[:0]
	b.offset = 0
}
