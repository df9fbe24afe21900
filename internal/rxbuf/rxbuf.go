// Package rxbuf implements the two receive-buffering strategies the
// drivers use to hand a deserializer complete, newline-terminated
// datagrams out of a raw byte stream: a non-wrapping Buffer for
// read-then-drain transports, and a wrapping RingBuffer for transports
// that interleave reads and writes continuously.
package rxbuf

import "github.com/Simsys/espcand/internal/proto"

// Buffer is a non-wrapping receive window: a driver fills it (via Slice)
// up to some valid length (SetHead), and Read drains complete datagrams
// out of it front-to-back, discarding any noise before the first '$'.
// It never wraps; refilling always starts the window over at offset 0.
type Buffer struct {
	buf  []byte
	head int
	tail int
}

// NewBuffer returns a Buffer with the given fixed capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, capacity)}
}

// Slice resets the window to empty and returns the full backing array for
// the caller to fill directly (e.g. via an io.Reader).
func (b *Buffer) Slice() []byte {
	b.head = 0
	b.tail = 0
	return b.buf
}

// SetHead marks the first n bytes of the backing array (as filled by a
// prior Slice call) as valid, resetting the read cursor to the start.
func (b *Buffer) SetHead(n int) {
	b.tail = 0
	b.head = n
}

// Read scans from the current cursor for one newline-terminated datagram,
// discarding any bytes before the first '$' seen, and pushes it byte by
// byte into deser. It reports BufIsEmpty if the window holds nothing new,
// EndNotFound if no newline terminates the remaining valid bytes, and
// BufIsFull if deser's capacity is exceeded mid-scan (the cursor is left
// at the offending byte so a fresh Deser can resume the scan).
func (b *Buffer) Read(deser *proto.Deser) error {
	if b.head == b.tail {
		return proto.BufIsEmpty
	}
	tail := b.tail
	started := false
	for tail != b.head {
		c := b.buf[tail]
		if c == '$' {
			started = true
		}
		if started {
			if err := deser.Push(c); err != nil {
				b.tail = tail
				return proto.BufIsFull
			}
		}
		tail++
		if c == '\n' {
			b.tail = tail
			return nil
		}
	}
	return proto.EndNotFound
}

// RingBuffer is a wrapping receive window sized for continuous
// interleaved writes and reads, distinguishing full from empty by never
// letting the write cursor catch up to the read cursor exactly (a
// single-byte gap is always kept).
type RingBuffer struct {
	buf  []byte
	head int
	tail int
}

// NewRingBuffer returns a RingBuffer with the given fixed capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Clear empties the buffer.
func (r *RingBuffer) Clear() {
	r.head = 0
	r.tail = 0
}

// Len reports the number of valid unread bytes.
func (r *RingBuffer) Len() int {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.buf) - r.tail + r.head
}

// Write appends slice, wrapping at capacity. It reports BufIsFull as soon
// as the one-byte gap invariant would be violated, matching the upstream
// semantics exactly (a write may partially land before the error is
// returned, as upstream's recursive split does).
func (r *RingBuffer) Write(slice []byte) error {
	cap := len(r.buf)
	srcLen := len(slice)
	if r.head >= r.tail {
		var dstLen int
		if r.tail == 0 {
			dstLen = cap - r.head - 1
		} else {
			dstLen = cap - r.head
		}
		if dstLen >= srcLen {
			copy(r.buf[r.head:r.head+srcLen], slice)
			r.head += srcLen
			if r.head == cap {
				r.head = 0
			}
			return nil
		}
		copy(r.buf[r.head:r.head+dstLen], slice[:dstLen])
		if r.tail == 0 {
			return proto.BufIsFull
		}
		r.head = 0
		return r.Write(slice[dstLen:])
	}
	if r.tail == 0 {
		return proto.BufIsFull
	}
	if r.tail-r.head > srcLen {
		copy(r.buf[r.head:r.head+srcLen], slice)
		r.head += srcLen
		return nil
	}
	return proto.BufIsFull
}

// Read scans from the current cursor for one newline-terminated datagram,
// discarding any bytes before the first '$' seen, and pushes it byte by
// byte into deser, wrapping the read cursor at capacity.
func (r *RingBuffer) Read(deser *proto.Deser) error {
	cap := len(r.buf)
	tail := r.tail
	started := false
	for tail != r.head {
		c := r.buf[tail]
		if c == '$' {
			started = true
		}
		if started {
			if err := deser.Push(c); err != nil {
				r.tail = tail
				return proto.BufIsFull
			}
		}
		tail++
		if tail == cap {
			tail = 0
		}
		if c == '\n' {
			r.tail = tail
			return nil
		}
	}
	return proto.EndNotFound
}
