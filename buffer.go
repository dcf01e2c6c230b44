package qzip

import (
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sys/unix"
)

// Buffer is a cursor view over a fixed chunk of memory, either Go heap or
// page-aligned anonymous mmap ("direct") storage. Session calls consume
// and fill the window between position and limit, with
// 0 <= position <= limit <= Cap(). Buffers are not safe for concurrent
// use.
type Buffer struct {
	buf    []byte
	pos    int
	lim    int
	direct bool
	ro     bool

	// Direct owners only: the full mapping handed back to munmap.
	mapped  []byte
	cleanup runtime.Cleanup
	closed  bool
}

// NewBuffer allocates a heap-backed buffer. Position starts at 0 and the
// limit at capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, capacity), lim: capacity}
}

// WrapBuffer wraps an existing slice without copying. Position starts at
// 0 and the limit at len(p).
func WrapBuffer(p []byte) *Buffer {
	return &Buffer{buf: p, lim: len(p)}
}

// NewDirectBuffer allocates off-heap storage with an anonymous mmap,
// rounded up to the page boundary. The mapping is released by Close or,
// if the owner leaks, by a GC cleanup.
func NewDirectBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("direct buffer capacity %d must be positive", capacity)
	}
	data, err := unix.Mmap(-1, 0, int(roundToPage(int64(capacity))),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", capacity, err)
	}
	b := &Buffer{buf: data[:capacity], lim: capacity, direct: true, mapped: data}
	b.cleanup = runtime.AddCleanup(b, func(d []byte) { _ = unix.Munmap(d) }, data)
	return b, nil
}

// AsReadOnly returns a read-only view sharing the backing store and
// current cursor values. The owner must stay open while views are in use.
func (b *Buffer) AsReadOnly() *Buffer {
	return &Buffer{buf: b.buf, pos: b.pos, lim: b.lim, direct: b.direct, ro: true}
}

func (b *Buffer) Cap() int       { return len(b.buf) }
func (b *Buffer) Position() int  { return b.pos }
func (b *Buffer) Limit() int     { return b.lim }
func (b *Buffer) Remaining() int { return b.lim - b.pos }
func (b *Buffer) Direct() bool   { return b.direct }
func (b *Buffer) ReadOnly() bool { return b.ro }

// SetPosition moves the cursor within [0, limit].
func (b *Buffer) SetPosition(n int) error {
	if n < 0 || n > b.lim {
		return fmt.Errorf("position %d out of range (0..%d)", n, b.lim)
	}
	b.pos = n
	return nil
}

// SetLimit moves the limit within [0, Cap()], clamping the position down
// to it if needed.
func (b *Buffer) SetLimit(n int) error {
	if n < 0 || n > len(b.buf) {
		return fmt.Errorf("limit %d out of range (0..%d)", n, len(b.buf))
	}
	b.lim = n
	if b.pos > n {
		b.pos = n
	}
	return nil
}

// Clear resets the window to the whole capacity: position 0, limit Cap().
func (b *Buffer) Clear() {
	b.pos, b.lim = 0, len(b.buf)
}

// Flip readies filled data for consumption: limit moves to the current
// position, position back to 0.
func (b *Buffer) Flip() {
	b.lim, b.pos = b.pos, 0
}

// Rewind moves the position back to 0, keeping the limit.
func (b *Buffer) Rewind() {
	b.pos = 0
}

// Write copies p into the window and advances the position. A window too
// small for all of p copies what fits and returns io.ErrShortWrite.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.ro {
		return 0, ErrReadOnlyBuffer
	}
	n := copy(b.buf[b.pos:b.lim], p)
	b.pos += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Read drains the window into p and advances the position. Returns io.EOF
// once the window is empty.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.Remaining() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:b.lim])
	b.pos += n
	return n, nil
}

// window is the active region handed to the engine.
func (b *Buffer) window() []byte {
	return b.buf[b.pos:b.lim]
}

// Close releases direct storage. Closing a heap buffer or a view is a
// no-op.
func (b *Buffer) Close() error {
	if b.mapped == nil || b.closed {
		return nil
	}
	b.closed = true
	b.cleanup.Stop()
	b.buf = nil
	b.pos, b.lim = 0, 0
	err := unix.Munmap(b.mapped)
	b.mapped = nil
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

func roundToPage(size int64) int64 {
	const pageSize = 4096
	return (size + pageSize - 1) & ^(pageSize - 1)
}
