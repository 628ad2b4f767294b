// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ring provides a bounded, mutex protected FIFO ring buffer
// suitable for many producers and a single consumer.
package ring

import (
	"errors"
	"sync"
)

var (
	// ErrFull is returned by [Buffer.Push] when the buffer is at capacity.
	ErrFull = errors.New("ring: buffer is full")

	// ErrClosed is returned by [Buffer.Push] after [Buffer.Close] has been called.
	ErrClosed = errors.New("ring: buffer is closed")
)

// Buffer is a fixed capacity FIFO. Push never blocks and never evicts
// already accepted items; new items are refused when the buffer is full.
type Buffer[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	closed bool
}

// New returns a [Buffer] which holds at most capacity items.
// A non-positive capacity is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{
		items: make([]T, capacity),
	}
}

// Push appends v to the tail of the buffer and returns the new length.
func (b *Buffer[T]) Push(v T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return b.size, ErrClosed
	}
	if b.size == len(b.items) {
		return b.size, ErrFull
	}

	b.items[(b.head+b.size)%len(b.items)] = v
	b.size++
	return b.size, nil
}

// PopN removes up to n items from the head of the buffer and appends
// them, oldest first, to dst.
func (b *Buffer[T]) PopN(dst []T, n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}

	var zero T
	for range n {
		dst = append(dst, b.items[b.head])
		b.items[b.head] = zero
		b.head = (b.head + 1) % len(b.items)
		b.size--
	}
	return dst
}

// Discard empties the buffer and reports how many items were removed.
func (b *Buffer[T]) Discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.size
	clear(b.items)
	b.head = 0
	b.size = 0
	return n
}

// Close refuses all future pushes. Items already buffered stay poppable.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.size
}

// Cap returns the fixed capacity of the buffer.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
