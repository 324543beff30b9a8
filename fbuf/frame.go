package fbuf

import (
	"errors"
	"sync/atomic"
)

// Frame is an owned buffer holding one Ethernet frame.
type Frame struct {
	buf []byte

	// Nil for frames created with NewFrame.
	pool *Pool

	released atomic.Bool
}

// NewFrame wraps b in a Frame that is not backed by any pool.
// Release on such a frame only marks it released.
func NewFrame(b []byte) *Frame {
	return &Frame{buf: b}
}

// Bytes returns the frame contents.
// The slice must not be used after [*Frame.Release].
func (f *Frame) Bytes() []byte {
	return f.buf
}

// Len is the number of bytes in the frame.
func (f *Frame) Len() int {
	return len(f.buf)
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}

// Release returns the frame to its allocator.
//
// Release panics if called more than once.
func (f *Frame) Release() {
	if !f.released.CompareAndSwap(false, true) {
		panic(errors.New("BUG: frame released more than once"))
	}

	if f.pool != nil {
		f.pool.put(f)
	}
}
