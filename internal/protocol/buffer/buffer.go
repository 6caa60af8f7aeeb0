// Package buffer owns the growable byte region backing the incremental
// decoder.
//
// Layout: [0, consumed) is recyclable, [consumed, filled) is pending input and
// [filled, cap) is free space for the next stream read.
package buffer

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfMemory = errors.New("buffer: out of memory")
	ErrOverCommit  = errors.New("buffer: commit exceeds free space")
)

// Limits constrains buffer memory use.
type Limits struct {
	InitialSize int
	MaxSize     int
}

func DefaultLimits() Limits {
	return Limits{
		InitialSize: 64 * 1024,
		MaxSize:     64 * 1024 * 1024,
	}
}

// Buffer is a growable byte region with committed and free views. It is not
// safe for concurrent use.
type Buffer struct {
	buf      []byte
	consumed int
	filled   int
	limits   Limits
}

// New returns a buffer whose backing array is allocated lazily on the first
// Reserve.
func New(limits Limits) *Buffer {
	if limits.InitialSize <= 0 {
		limits.InitialSize = DefaultLimits().InitialSize
	}
	if limits.MaxSize > 0 && limits.InitialSize > limits.MaxSize {
		limits.InitialSize = limits.MaxSize
	}
	return &Buffer{limits: limits}
}

// Reserve guarantees at least n bytes of free space. Pending bytes are
// compacted to the front first; the backing array only grows when compaction
// is not enough. Capacity never shrinks.
func (b *Buffer) Reserve(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative reserve %d", ErrOutOfMemory, n)
	}
	if len(b.buf)-b.filled >= n && b.buf != nil {
		return nil
	}
	pending := b.filled - b.consumed
	if len(b.buf)-pending >= n && b.buf != nil {
		b.compact()
		return nil
	}

	need := pending + n
	if need < pending {
		return fmt.Errorf("%w: reserve %d overflows", ErrOutOfMemory, n)
	}
	if b.limits.MaxSize > 0 && need > b.limits.MaxSize {
		return fmt.Errorf("%w: need %d bytes, limit %d", ErrOutOfMemory, need, b.limits.MaxSize)
	}

	size := len(b.buf) * 2
	if size < b.limits.InitialSize {
		size = b.limits.InitialSize
	}
	if size < need {
		size = need
	}
	if b.limits.MaxSize > 0 && size > b.limits.MaxSize {
		size = b.limits.MaxSize
	}

	next := make([]byte, size)
	copy(next, b.buf[b.consumed:b.filled])
	b.buf = next
	b.filled = pending
	b.consumed = 0
	return nil
}

func (b *Buffer) compact() {
	if b.consumed == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.consumed:b.filled])
	b.consumed = 0
	b.filled = n
}

// Free returns the free region. Bytes written there become pending only after
// Commit.
func (b *Buffer) Free() []byte {
	return b.buf[b.filled:]
}

// Commit marks n bytes of the free region as filled.
func (b *Buffer) Commit(n int) error {
	if n < 0 || n > len(b.buf)-b.filled {
		return fmt.Errorf("%w: commit %d, free %d", ErrOverCommit, n, len(b.buf)-b.filled)
	}
	b.filled += n
	return nil
}

// Pending returns the committed but not yet consumed bytes. The slice aliases
// the buffer and is only valid until the next Reserve.
func (b *Buffer) Pending() []byte {
	return b.buf[b.consumed:b.filled]
}

// Consume advances past n pending bytes.
func (b *Buffer) Consume(n int) {
	if n > b.filled-b.consumed {
		n = b.filled - b.consumed
	}
	if n > 0 {
		b.consumed += n
	}
	b.rewind()
}

// Discard drops all pending bytes.
func (b *Buffer) Discard() {
	b.consumed = b.filled
	b.rewind()
}

// rewind makes the whole capacity free once nothing is pending.
func (b *Buffer) rewind() {
	if b.consumed == b.filled {
		b.consumed = 0
		b.filled = 0
	}
}

// Reset drops pending bytes and keeps the backing array.
func (b *Buffer) Reset() {
	b.consumed = 0
	b.filled = 0
}

// Release drops the backing array. A later Reserve allocates again.
func (b *Buffer) Release() {
	b.buf = nil
	b.consumed = 0
	b.filled = 0
}

func (b *Buffer) Len() int       { return b.filled - b.consumed }
func (b *Buffer) Cap() int       { return len(b.buf) }
func (b *Buffer) Available() int { return len(b.buf) - b.filled }
func (b *Buffer) Consumed() int  { return b.consumed }
func (b *Buffer) Limits() Limits { return b.limits }
