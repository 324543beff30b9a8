package fquictest

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/gordian-engine/ferry/fquic"
)

// ErrStubClosed is returned from a closed [*StubConn].
var ErrStubClosed = errors.New("stub connection closed")

// StubConn is an in-memory [fquic.Conn].
//
// Datagrams passed to SendDatagram appear on Sent,
// and datagrams written to Incoming are returned from ReceiveDatagram.
// SendErr, if set, replaces every send result.
type StubConn struct {
	Sent     chan []byte
	Incoming chan []byte

	mu        sync.Mutex
	sendErr   error
	closed    chan struct{}
	closeCode fquic.ApplicationErrorCode
	closeMsg  string
	closes    int

	LocalAddrValue, RemoteAddrValue StubNetAddr
}

var _ fquic.Conn = (*StubConn)(nil)

// NewStubConn returns a StubConn whose channels buffer size datagrams.
func NewStubConn(size int) *StubConn {
	return &StubConn{
		Sent:     make(chan []byte, size),
		Incoming: make(chan []byte, size),
		closed:   make(chan struct{}),
	}
}

// SetSendErr makes every later SendDatagram call return err.
func (c *StubConn) SetSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// SendDatagram implements [fquic.Conn].
func (c *StubConn) SendDatagram(p []byte) error {
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrStubClosed
	case c.Sent <- p:
		return nil
	}
}

// ReceiveDatagram implements [fquic.Conn].
func (c *StubConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	case <-c.closed:
		return nil, ErrStubClosed
	case d := <-c.Incoming:
		return d, nil
	}
}

// CloseWithError implements [fquic.Conn].
func (c *StubConn) CloseWithError(code fquic.ApplicationErrorCode, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closes++
	if c.closes == 1 {
		c.closeCode = code
		c.closeMsg = msg
		close(c.closed)
	}
	return nil
}

// Closed reports the code and message of the first close,
// and how many times CloseWithError was called.
func (c *StubConn) Closed() (code fquic.ApplicationErrorCode, msg string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeMsg, c.closes
}

// LocalAddr implements [fquic.Conn].
func (c *StubConn) LocalAddr() net.Addr {
	return c.LocalAddrValue
}

// RemoteAddr implements [fquic.Conn].
func (c *StubConn) RemoteAddr() net.Addr {
	return c.RemoteAddrValue
}

// StubNetAddr holds the return values for
// [*StubConn.LocalAddr] and [*StubConn.RemoteAddr].
type StubNetAddr struct {
	NetworkValue string
	StringValue  string
}

func (a StubNetAddr) Network() string { return a.NetworkValue }
func (a StubNetAddr) String() string  { return a.StringValue }
