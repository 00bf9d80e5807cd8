package engine

import (
	"fmt"
	"math"
)

// DefaultBufferSize is the initial capacity of a Buffer.
const DefaultBufferSize = 4096

// Buffer is an append-only byte accumulator. Capacity doubles whenever an
// append would overflow it and never shrinks. A Buffer is owned by the
// call that created it and is not safe for concurrent use.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty buffer with the given initial capacity, or
// DefaultBufferSize when size <= 0.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{data: make([]byte, 0, size)}
}

// Append adds text to the end of the buffer.
func (b *Buffer) Append(text string) {
	b.grow(len(text))
	b.data = append(b.data, text...)
}

// Appendf formats and appends.
func (b *Buffer) Appendf(format string, args ...any) {
	b.Append(fmt.Sprintf(format, args...))
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(len(p))
	b.data = append(b.data, p...)
	return len(p), nil
}

// grow makes room for n more bytes, doubling capacity as often as needed.
// Growth past the addressable size panics with an allocation failure.
func (b *Buffer) grow(n int) {
	if b.data == nil {
		b.data = make([]byte, 0, DefaultBufferSize)
	}

	length, capacity := len(b.data), cap(b.data)
	if n > math.MaxInt-length {
		panic(NewAllocationError(math.MaxInt))
	}
	need := length + n
	if need <= capacity {
		return
	}

	for capacity < need {
		if capacity > math.MaxInt/2 {
			panic(NewAllocationError(need))
		}
		capacity *= 2
	}

	grown := make([]byte, length, capacity)
	copy(grown, b.data)
	b.data = grown
}

// Bytes returns the accumulated bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// String returns the accumulated text.
func (b *Buffer) String() string {
	return string(b.data)
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}
