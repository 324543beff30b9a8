package fstack

import (
	"errors"

	"github.com/gordian-engine/ferry/fbuf"
)

// ErrInboxFull is returned from [*Inbox.Input]
// when the stack has not kept up with received frames.
var ErrInboxFull = errors.New("inbox full")

// Inbox buffers received frames for a consumer goroutine.
type Inbox struct {
	ch chan *fbuf.Frame
}

// NewInbox returns an Inbox buffering up to size frames.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		panic(errors.New("BUG: inbox size must be positive"))
	}
	return &Inbox{ch: make(chan *fbuf.Frame, size)}
}

// Input queues f without blocking.
// Its signature matches the link's input function.
// On ErrInboxFull, the caller keeps ownership of f.
func (in *Inbox) Input(f *fbuf.Frame) error {
	select {
	case in.ch <- f:
		return nil
	default:
		return ErrInboxFull
	}
}

// Frames is the channel of received frames.
// The consumer owns, and must release, every frame it reads.
func (in *Inbox) Frames() <-chan *fbuf.Frame {
	return in.ch
}

// Drain releases every frame still buffered,
// returning how many there were.
func (in *Inbox) Drain() int {
	n := 0
	for {
		select {
		case f := <-in.ch:
			f.Release()
			n++
		default:
			return n
		}
	}
}
