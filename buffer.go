package rapidrpc

// Buffer is a contiguous growable byte region with a read index and a
// write index, 0 <= r <= w <= len(buf). It is the Go analogue of
// tcp_buffer.cc's TcpBuffer: a single-owner, non-concurrent-safe scratch
// area for one connection's inbound or outbound bytes.
type Buffer struct {
	buf []byte
	r   int
	w   int
}

// NewBuffer allocates a Buffer with the given initial capacity.
func NewBuffer(size int) *Buffer {
	return &Buffer{buf: make([]byte, size)}
}

// ReadAvailable returns the number of unread bytes.
func (b *Buffer) ReadAvailable() int { return b.w - b.r }

// WriteAvailable returns the number of bytes that can be appended before
// the buffer must grow.
func (b *Buffer) WriteAvailable() int { return len(b.buf) - b.w }

// ReadIndex returns the current read index.
func (b *Buffer) ReadIndex() int { return b.r }

// WriteIndex returns the current write index.
func (b *Buffer) WriteIndex() int { return b.w }

// Bytes exposes the full backing slice; callers index it with
// ReadIndex/WriteIndex like the source does with m_buffer directly.
func (b *Buffer) Bytes() []byte { return b.buf }

// Unread returns the slice of currently readable bytes.
func (b *Buffer) Unread() []byte { return b.buf[b.r:b.w] }

// Write appends data to the buffer, growing it if necessary.
func (b *Buffer) Write(data []byte) int {
	if len(data) > b.WriteAvailable() {
		b.Resize(2 * (b.ReadAvailable() + len(data)))
	}
	n := copy(b.buf[b.w:], data)
	b.w += n
	return n
}

// Read copies up to len(p) readable bytes into p, advances the read index,
// and shifts the buffer if the read index crossed the half-capacity mark.
func (b *Buffer) Read(p []byte) int {
	if b.ReadAvailable() <= 0 || len(p) == 0 {
		return -1
	}
	n := copy(p, b.buf[b.r:b.w])
	b.r += n
	b.shift()
	return n
}

// Resize grows the backing array to at least size bytes, sliding unread
// bytes to the front in the process.
func (b *Buffer) Resize(size int) {
	readLen := b.ReadAvailable()
	if size < readLen {
		size = readLen
	}
	newBuf := make([]byte, size)
	copy(newBuf, b.buf[b.r:b.w])
	b.buf = newBuf
	b.w = readLen
	b.r = 0
}

// shift moves unread bytes to the front once the read index has crossed
// the half-capacity mark, matching tcp_buffer.cc's shiftBuffer threshold
// (">=", not ">").
func (b *Buffer) shift() {
	if b.r >= len(b.buf)/2 {
		readLen := b.ReadAvailable()
		copy(b.buf, b.buf[b.r:b.w])
		b.w = readLen
		b.r = 0
	}
}

// MoveReadIndex advances the read index by size, matching tcp_buffer.cc's
// moveReadIndex: an overrun resets both indices to zero rather than
// panicking, since the source treats it as a non-fatal bookkeeping error.
func (b *Buffer) MoveReadIndex(size int) {
	newR := b.r + size
	if newR >= b.w {
		b.r = 0
		b.w = 0
		return
	}
	b.r = newR
	b.shift()
}

// MoveWriteIndex advances the write index by size after bytes have been
// copied directly into Bytes()[WriteIndex():] by the caller (e.g. a raw
// socket Read).
func (b *Buffer) MoveWriteIndex(size int) {
	newW := b.w + size
	if newW > len(b.buf) {
		return
	}
	b.w = newW
}

// EnsureWritable grows the buffer, if needed, so that at least n more
// bytes can be written starting at WriteIndex().
func (b *Buffer) EnsureWritable(n int) {
	if b.WriteAvailable() < n {
		b.Resize(2 * len(b.buf))
		if b.WriteAvailable() < n {
			b.Resize(2 * (b.ReadAvailable() + n))
		}
	}
}
