package fchantest

import (
	"bytes"
	"sync"

	"github.com/gordian-engine/ferry/fchan"
)

// Channel is an instrumented [fchan.Channel].
//
// Each TrySend consumes the next scripted error pushed with [*Channel.Push].
// When the script is empty, Decide is consulted if set;
// otherwise the send succeeds.
// Successful sends are recorded and available through [*Channel.Sent].
type Channel struct {
	// Decide chooses the result once the script is exhausted.
	// It must be set before the first call to TrySend.
	Decide func(call int, p []byte) error

	// OnSend is called from inside TrySend,
	// after the result is chosen but before it is returned,
	// without any Channel lock held.
	// Tests use it to inject concurrent events into the middle of a send.
	// It must be set before the first call to TrySend.
	OnSend func(call int, p []byte, err error)

	maxPayload int

	mu     sync.Mutex
	script []error
	sent   [][]byte
	calls  int
	closes int

	sendCh chan []byte
}

var _ fchan.Channel = (*Channel)(nil)

// NewChannel returns a Channel accepting messages up to maxPayload bytes.
// If maxPayload is zero, [fchan.DefaultMaxPayload] is used.
func NewChannel(maxPayload int) *Channel {
	if maxPayload == 0 {
		maxPayload = fchan.DefaultMaxPayload
	}
	return &Channel{
		maxPayload: maxPayload,

		// Arbitrary size, large enough that tests rarely need to drain it.
		sendCh: make(chan []byte, 64),
	}
}

// Push appends results for upcoming TrySend calls.
// A nil entry is a successful send.
func (c *Channel) Push(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, errs...)
}

// TrySend implements [fchan.Channel].
func (c *Channel) TrySend(p []byte) error {
	c.mu.Lock()
	c.calls++
	call := c.calls

	var err error
	if len(c.script) > 0 {
		err = c.script[0]
		c.script = c.script[1:]
	} else if c.Decide != nil {
		err = c.Decide(call, p)
	}

	var cp []byte
	if err == nil {
		cp = bytes.Clone(p)
		c.sent = append(c.sent, cp)
	}
	c.mu.Unlock()

	if cp != nil {
		select {
		case c.sendCh <- cp:
		default:
			// Nobody is watching; Sent still has the record.
		}
	}

	if c.OnSend != nil {
		c.OnSend(call, p, err)
	}

	return err
}

// MaxPayload implements [fchan.Channel].
func (c *Channel) MaxPayload() int {
	return c.maxPayload
}

// Close records the call so tests can assert the link tore the channel down.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Calls reports the total number of TrySend calls.
func (c *Channel) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Closes reports how many times Close was called.
func (c *Channel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Sent returns copies of every successfully sent message, in order.
func (c *Channel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// SendCh carries successfully sent messages,
// for tests that wait on asynchronous sends.
// Messages are dropped from this channel (but not from Sent)
// if its buffer is full.
func (c *Channel) SendCh() <-chan []byte {
	return c.sendCh
}
