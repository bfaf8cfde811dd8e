// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE. }}}

// Package ring contains a bounded single-producer, multi-consumer byte
// buffer used to fan IQ samples out from the capture loop to any number
// of sinks.
//
// The producer never waits for a consumer. A consumer that falls more
// than the buffer capacity behind has its cursor yanked forward ("slip"),
// and is told about the gap on its next Read.
package ring

import (
	"fmt"
	"io"
	"sync"
)

var (
	// ErrClosed will be returned when operating on a Buffer after Close.
	ErrClosed error = fmt.Errorf("ring: buffer is closed")

	// ErrReserveTooLarge will be returned if a Reserve request can never
	// be satisfied, because it's larger than the Buffer itself.
	ErrReserveTooLarge error = fmt.Errorf("ring: reserve request exceeds buffer capacity")
)

// Buffer is a bounded circular byte buffer with a single writer and any
// number of independent readers.
//
// Cursors are unbounded 64 bit counters; positions only wrap modulo the
// capacity when indexing storage. The writer publishes with Reserve and
// Commit, readers attach with Subscribe and pull with Consumer.Read.
type Buffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	storage []byte
	mask    uint64

	// head is the producer cursor: the count of bytes committed over the
	// lifetime of the buffer.
	head uint64

	// reserved tracks bytes handed out by Reserve but not yet published
	// by Commit.
	reserved uint64

	// margin is the headroom left in front of a slipped consumer so that
	// the very next Commit doesn't immediately lap it again.
	margin uint64

	consumers map[*Consumer]struct{}

	closed bool
	err    error
}

// Consumer is a single reader's view into a Buffer. Consumers are created
// with Buffer.Subscribe, and must not be shared between goroutines.
type Consumer struct {
	buf    *Buffer
	cursor uint64
	slips  uint64

	// slipped is latched by the publisher when the cursor is reset, and
	// cleared when the gap is reported out of Read.
	slipped bool

	// limit is the producer cursor at Unsubscribe time: a removed
	// consumer may still drain up to it, but sees nothing newer.
	removed bool
	limit   uint64
}

func nextPowerOfTwo(n uint64) uint64 {
	ret := uint64(1)
	for ret < n {
		ret <<= 1
	}
	return ret
}

// New will create a Buffer with at least `capacity` bytes of storage
// (rounded up to the next power of two), leaving `margin` bytes of headroom
// in front of slipped consumers. The margin should be on the order of one
// maximum-size frame.
func New(capacity, margin int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive")
	}
	if margin < 0 || uint64(margin) >= nextPowerOfTwo(uint64(capacity)) {
		return nil, fmt.Errorf("ring: margin must be smaller than capacity")
	}

	size := nextPowerOfTwo(uint64(capacity))
	buf := &Buffer{
		storage:   make([]byte, size),
		mask:      size - 1,
		margin:    uint64(margin),
		consumers: map[*Consumer]struct{}{},
	}
	buf.cond = sync.NewCond(&buf.mu)
	return buf, nil
}

// Cap returns the buffer capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.storage)
}

// Head returns the producer cursor -- the total number of bytes committed
// into the Buffer over its lifetime.
func (b *Buffer) Head() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// Reserve returns a writable region of up to n bytes. If n runs past the
// point where storage wraps, a shorter slice is returned, and the writer
// may call Reserve again to get the remainder. Reserved bytes are not
// visible to any Consumer until Commit.
//
// Reserve and Commit may only be called from the single producer.
func (b *Buffer) Reserve(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.reserved+uint64(n) > uint64(len(b.storage)) {
		return nil, ErrReserveTooLarge
	}

	idx := (b.head + b.reserved) & b.mask
	span := uint64(len(b.storage)) - idx
	if uint64(n) < span {
		span = uint64(n)
	}
	b.reserved += span
	return b.storage[idx : idx+span], nil
}

// Commit publishes n reserved bytes, advancing the producer cursor. Any
// consumer that would now be more than the capacity behind is slipped:
// its cursor is reset to leave `margin` bytes of headroom, and its slip
// count is incremented. The producer never waits.
func (b *Buffer) Commit(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if uint64(n) > b.reserved {
		return fmt.Errorf("ring: commit of %d bytes exceeds %d reserved", n, b.reserved)
	}

	b.head += uint64(n)
	b.reserved -= uint64(n)

	capacity := uint64(len(b.storage))
	for consumer := range b.consumers {
		if b.head-consumer.cursor > capacity {
			consumer.cursor = b.head - (capacity - b.margin)
			consumer.slips++
			consumer.slipped = true
		}
	}

	b.cond.Broadcast()
	return nil
}

// Subscribe registers a new Consumer, positioned at the current producer
// cursor. A late subscriber only observes samples committed after the
// Subscribe call.
func (b *Buffer) Subscribe() *Consumer {
	b.mu.Lock()
	defer b.mu.Unlock()

	consumer := &Consumer{
		buf:    b,
		cursor: b.head,
	}
	b.consumers[consumer] = struct{}{}
	return consumer
}

// Unsubscribe removes the Consumer from the Buffer. The Consumer may
// still drain bytes committed before the Unsubscribe; past those, Read
// returns ErrClosed. A Read blocked on an empty Buffer returns at once.
func (b *Buffer) Unsubscribe(c *Consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.consumers[c]; !ok {
		return
	}
	delete(b.consumers, c)
	c.removed = true
	c.limit = b.head
	b.cond.Broadcast()
}

// Close marks the Buffer as terminal. Consumers drain any committed bytes,
// and then observe the provided error (or io.EOF if err is nil) from Read.
func (b *Buffer) Close(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	if err == nil {
		err = io.EOF
	}
	b.err = err
	b.cond.Broadcast()
}

// Read copies up to len(p) committed bytes into p, blocking while the
// Buffer is empty. The second return value reports whether the Consumer
// slipped since the previous Read -- the bytes returned are contiguous, but
// a gap precedes them.
//
// After the Buffer is closed, Read drains the remaining committed bytes
// and then returns the Close error (io.EOF by default).
func (c *Consumer) Read(p []byte) (int, bool, error) {
	b := c.buf

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.head == c.cursor && !b.closed && !c.removed {
		b.cond.Wait()
	}

	head := b.head
	if c.removed && c.limit < head {
		head = c.limit
	}

	avail := head - c.cursor
	if avail == 0 {
		// Drained past the end: either the Buffer closed, or this
		// Consumer was unsubscribed.
		if c.removed {
			return 0, false, ErrClosed
		}
		return 0, false, b.err
	}

	n := uint64(len(p))
	if avail < n {
		n = avail
	}

	idx := c.cursor & b.mask
	span := uint64(len(b.storage)) - idx
	if span >= n {
		copy(p, b.storage[idx:idx+n])
	} else {
		copy(p, b.storage[idx:])
		copy(p[span:], b.storage[:n-span])
	}

	c.cursor += n

	slipped := c.slipped
	c.slipped = false
	return int(n), slipped, nil
}

// Cursor returns the Consumer's cursor: the count of bytes that have moved
// past this Consumer, including bytes skipped by slips.
func (c *Consumer) Cursor() uint64 {
	b := c.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.cursor
}

// Slips returns how many times this Consumer has been slipped.
func (c *Consumer) Slips() uint64 {
	b := c.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.slips
}

// vim: foldmethod=marker
