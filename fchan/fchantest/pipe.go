package fchantest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/gordian-engine/ferry/fchan"
)

// PipeEnd is one side of an in-memory, capacity-bounded message pipe.
// It behaves like a real transport under load:
// TrySend fails with [fchan.ErrWouldBlock] once capacity messages
// are waiting for the peer to read them.
type PipeEnd struct {
	maxPayload int

	out chan<- []byte
	in  <-chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

var _ fchan.Channel = (*PipeEnd)(nil)

// NewPipe returns two connected ends.
// Each direction buffers at most capacity messages.
func NewPipe(capacity, maxPayload int) (a, b *PipeEnd) {
	if maxPayload == 0 {
		maxPayload = fchan.DefaultMaxPayload
	}

	ab := make(chan []byte, capacity)
	ba := make(chan []byte, capacity)

	a = &PipeEnd{
		maxPayload: maxPayload,
		out:        ab,
		in:         ba,
		closed:     make(chan struct{}),
	}
	b = &PipeEnd{
		maxPayload: maxPayload,
		out:        ba,
		in:         ab,
		closed:     make(chan struct{}),
	}
	return a, b
}

// TrySend implements [fchan.Channel].
func (e *PipeEnd) TrySend(p []byte) error {
	if len(p) > e.maxPayload {
		return fmt.Errorf("%w: %d > %d", fchan.ErrTooLarge, len(p), e.maxPayload)
	}

	select {
	case <-e.closed:
		return fchan.ErrClosed
	default:
	}

	select {
	case e.out <- bytes.Clone(p):
		return nil
	default:
		return fchan.ErrWouldBlock
	}
}

// MaxPayload implements [fchan.Channel].
func (e *PipeEnd) MaxPayload() int {
	return e.maxPayload
}

// Run delivers messages from the peer until ctx is canceled
// or this end is closed.
func (e *PipeEnd) Run(ctx context.Context, deliver fchan.DeliverFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.closed:
			return nil
		case p := <-e.in:
			deliver(p)
		}
	}
}

// Close stops this end from sending and receiving.
// It is safe to call more than once.
func (e *PipeEnd) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
	})
	return nil
}
