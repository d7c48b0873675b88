package blobstore

import (
	"errors"
	"fmt"
	"slices"
)

var errBufferConsumed = errors.New("blobstore: sized buffer already consumed")

// SizedBuffer is an append-only byte accumulator with a hard capacity
// ceiling. It guards reads of remote objects whose declared size cannot be
// trusted: the ceiling is enforced on every write, not only on a final
// total, so peak memory stays bounded no matter how large the remote object
// actually is.
type SizedBuffer struct {
	buf      []byte
	max      int
	consumed bool
}

// NewSizedBuffer returns a buffer that never holds more than maxSize bytes.
func NewSizedBuffer(maxSize int) *SizedBuffer {
	if maxSize < 0 {
		maxSize = 0
	}
	return &SizedBuffer{max: maxSize}
}

// Write appends p to the buffer. If the buffer would grow past its ceiling
// the whole chunk is rejected with ErrSizeLimit and nothing is written.
func (b *SizedBuffer) Write(p []byte) (int, error) {
	if b.consumed {
		return 0, errBufferConsumed
	}
	if len(b.buf)+len(p) > b.max {
		return 0, fmt.Errorf("%w: %d+%d bytes over %d byte ceiling", ErrSizeLimit, len(b.buf), len(p), b.max)
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Reserve preallocates capacity for n more bytes. It is a hint only: the
// requested growth is clamped to the ceiling and never relaxes it.
func (b *SizedBuffer) Reserve(n int) {
	if b.consumed || n <= 0 {
		return
	}
	if room := b.max - len(b.buf); n > room {
		n = room
	}
	b.buf = slices.Grow(b.buf, n)
}

// Len returns the number of bytes accumulated so far.
func (b *SizedBuffer) Len() int {
	return len(b.buf)
}

// Max returns the capacity ceiling.
func (b *SizedBuffer) Max() int {
	return b.max
}

// Take returns the accumulated bytes and consumes the buffer. Subsequent
// writes fail.
func (b *SizedBuffer) Take() []byte {
	b.consumed = true
	buf := b.buf
	b.buf = nil
	return buf
}
