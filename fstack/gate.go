package fstack

import (
	"context"
	"sync"
)

// Gate is a transmit queue that a producer waits on.
//
// A Gate starts stopped.
// Stop and Wake never block, so they are safe to call
// while the link holds its internal lock.
type Gate struct {
	mu sync.Mutex

	// Closed while the gate is open;
	// replaced with a fresh channel on Stop.
	ready chan struct{}
	open  bool
}

// NewGate returns a stopped Gate.
func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// Stop closes the gate.
// Stopping a stopped gate is a no-op.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return
	}
	g.open = false
	g.ready = make(chan struct{})
}

// Wake opens the gate, releasing any waiters.
// Waking an open gate is a no-op.
func (g *Gate) Wake() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		return
	}
	g.open = true
	close(g.ready)
}

// Stopped reports whether the gate is closed.
func (g *Gate) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.open
}

// Ready returns a channel that is closed once the gate is open.
// The returned channel is not reused after a later Stop,
// so callers must call Ready again after each wait.
func (g *Gate) Ready() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Wait blocks until the gate is open or ctx is canceled.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-g.Ready():
		return nil
	}
}
