package fquic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordian-engine/ferry/fchan"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"
)

// DefaultSendQueueSize is the number of encoded datagrams
// that may wait for the send loop.
const DefaultSendQueueSize = 16

// ChannelConfig is the configuration for [NewChannel].
type ChannelConfig struct {
	// Largest frame TrySend accepts.
	// If zero, [fchan.DefaultMaxPayload] is used.
	MaxPayload int

	// Datagrams waiting to be sent.
	// Once full, TrySend reports [fchan.ErrWouldBlock].
	// If zero, [DefaultSendQueueSize] is used.
	SendQueueSize int

	// Snappy-compress outgoing frames when that makes them smaller.
	// Receivers always accept both encodings.
	Compress bool
}

// Channel is an [fchan.Channel] over a QUIC connection's datagrams.
type Channel struct {
	log *slog.Logger

	conn Conn

	maxPayload int
	compress   bool

	sendQ chan []byte

	// Closed once the channel stops accepting sends,
	// either through Close or because Run returned.
	done     chan struct{}
	doneOnce sync.Once

	// Held for reading while TrySend enqueues,
	// and for writing while done is closed,
	// so no datagram is accepted after done is closed.
	sendMu sync.RWMutex

	closeOnce sync.Once
	closeErr  error
}

var _ fchan.Channel = (*Channel)(nil)

// NewChannel returns a Channel over conn.
// Call [*Channel.Run] to start moving datagrams.
func NewChannel(log *slog.Logger, conn Conn, cfg ChannelConfig) *Channel {
	if conn == nil {
		panic(errors.New("BUG: NewChannel requires a connection"))
	}

	maxPayload := cfg.MaxPayload
	if maxPayload <= 0 {
		maxPayload = fchan.DefaultMaxPayload
	}
	qSize := cfg.SendQueueSize
	if qSize <= 0 {
		qSize = DefaultSendQueueSize
	}

	return &Channel{
		log: log,

		conn: conn,

		maxPayload: maxPayload,
		compress:   cfg.Compress,

		sendQ: make(chan []byte, qSize),

		done: make(chan struct{}),
	}
}

// TrySend implements [fchan.Channel].
// The frame is copied into the send queue, so p may be reused on return.
//
// Once Close has started or Run has returned, TrySend reports [fchan.ErrClosed].
// Datagrams accepted before that but still queued are discarded.
func (c *Channel) TrySend(p []byte) error {
	if len(p) > c.maxPayload {
		return fmt.Errorf("%w: %d > %d", fchan.ErrTooLarge, len(p), c.maxPayload)
	}

	if c.isDone() {
		return fchan.ErrClosed
	}

	d := encodeEnvelope(p, c.compress)

	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.isDone() {
		return fchan.ErrClosed
	}

	select {
	case c.sendQ <- d:
		return nil
	default:
		return fchan.ErrWouldBlock
	}
}

// MaxPayload implements [fchan.Channel].
func (c *Channel) MaxPayload() int {
	return c.maxPayload
}

// Run sends queued datagrams and delivers received frames
// until ctx is canceled, the channel is closed, or the connection fails.
// deliver is called from a single goroutine,
// and the slice it receives is only valid during the call.
//
// Once Run returns, TrySend reports [fchan.ErrClosed].
func (c *Channel) Run(ctx context.Context, deliver fchan.DeliverFunc) error {
	defer c.markDone()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.sendLoop(ctx)
	})
	eg.Go(func() error {
		return c.receiveLoop(ctx, deliver)
	})

	return eg.Wait()
}

func (c *Channel) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case d := <-c.sendQ:
			err := c.conn.SendDatagram(d)
			if err == nil {
				continue
			}

			var tooLarge *quic.DatagramTooLargeError
			if errors.As(err, &tooLarge) {
				// Path MTU is smaller than configured; this frame is lost
				// but later, smaller frames may still fit.
				c.log.Warn(
					"Dropping datagram larger than path allows",
					"size", len(d), "max", tooLarge.MaxDatagramPayloadSize,
				)
				continue
			}

			if c.isDone() {
				return nil
			}
			return fmt.Errorf("failed to send datagram: %w", err)
		}
	}
}

func (c *Channel) receiveLoop(ctx context.Context, deliver fchan.DeliverFunc) error {
	for {
		d, err := c.conn.ReceiveDatagram(ctx)
		if err != nil {
			if ctx.Err() != nil || c.isDone() {
				return nil
			}
			return fmt.Errorf("failed to receive datagram: %w", err)
		}

		p, err := decodeEnvelope(d, c.maxPayload)
		if err != nil {
			c.log.Debug("Dropping malformed datagram", "size", len(d), "err", err)
			continue
		}

		deliver(p)
	}
}

// Close closes the QUIC connection with [LinkClosedCode].
// Later calls return the first call's result.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.markDone()
		if err := c.conn.CloseWithError(LinkClosedCode, LinkClosedMessage); err != nil {
			c.closeErr = fmt.Errorf("failed to close QUIC connection: %w", err)
		}
	})
	return c.closeErr
}

func (c *Channel) markDone() {
	c.doneOnce.Do(func() {
		c.sendMu.Lock()
		close(c.done)
		c.sendMu.Unlock()
	})
}

func (c *Channel) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
