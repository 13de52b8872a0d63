package kfmt

import "io"

// earlyBufferSize is the number of bytes of Printf output retained until the
// UART is configured. It must be a power of 2.
const earlyBufferSize = 4096

// earlyBuffer retains the most recent earlyBufferSize bytes written to it.
// Once full, every write overwrites the oldest bytes and counts them as
// dropped.
type earlyBuffer struct {
	data       [earlyBufferSize]byte
	head, size int
	dropped    int
}

// Write appends p to the buffer. It never fails.
func (b *earlyBuffer) Write(p []byte) (int, error) {
	for _, ch := range p {
		b.data[(b.head+b.size)&(earlyBufferSize-1)] = ch
		if b.size < earlyBufferSize {
			b.size++
			continue
		}

		b.head = (b.head + 1) & (earlyBufferSize - 1)
		b.dropped++
	}

	return len(p), nil
}

// Read drains up to len(p) buffered bytes in the order they were written.
// It returns io.EOF once the buffer is empty.
func (b *earlyBuffer) Read(p []byte) (int, error) {
	if b.size == 0 {
		return 0, io.EOF
	}

	var n int
	for n < len(p) && b.size != 0 {
		run := min(earlyBufferSize-b.head, b.size, len(p)-n)
		copy(p[n:], b.data[b.head:b.head+run])

		n += run
		b.size -= run
		b.head = (b.head + run) & (earlyBufferSize - 1)
	}

	return n, nil
}

// reset discards the buffered output.
func (b *earlyBuffer) reset() {
	b.head, b.size, b.dropped = 0, 0, 0
}
