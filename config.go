package ferry

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fchan"
	"github.com/gordian-engine/ferry/fether"
	"github.com/gordian-engine/ferry/fwork"
	"github.com/gordian-engine/ferry/internal/fegress"
	"github.com/gordian-engine/ferry/internal/fingress"
	"github.com/gordian-engine/ferry/internal/ftrace"
)

// DefaultPoolLimit is the number of frames a link-owned pool
// allows outstanding at once.
const DefaultPoolLimit = 64

// DefaultHardwareAddr is the link's MAC address when none is configured.
// It has the locally administered bit set.
var DefaultHardwareAddr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

// TxQueue is the network stack's transmit queue,
// stopped while a frame is in flight and woken when the link can take another.
//
// Stop and Wake are called with the link's internal lock held.
// They must not block and must not call back into the link.
type TxQueue = fegress.TxQueue

// InputFunc receives frames from [*Link.Deliver].
// On a nil return the stack owns the frame;
// on error, the link releases it and counts a drop.
type InputFunc = fingress.InputFunc

// LinkConfig is the configuration for [NewLink].
type LinkConfig struct {
	// Transport to the peer.
	// If it implements io.Closer, [*Link.Close] closes it.
	Channel fchan.Channel

	TxQueue TxQueue
	Input   InputFunc

	// Allocates received frames.
	// Its frame size must be at least the channel's MaxPayload.
	// If nil, the link creates a pool limited to [DefaultPoolLimit] frames.
	Pool *fbuf.Pool

	// Runs the transmit work.
	// If nil, the link starts a single-worker [fwork.Queue]
	// and stops it during Close.
	Scheduler fwork.Scheduler

	// Delay before retrying a frame the channel had no room for.
	// If zero, [fegress.DefaultRetryInterval] (10ms) is used.
	RetryInterval time.Duration

	// How many times a frame is retried before it is dropped.
	// Zero means 1; a negative value disables retries.
	MaxRetries int

	// Replaces RetryInterval and MaxRetries entirely.
	// Setting both is a configuration error.
	RetryPolicy backoff.BackOff

	// EtherTypes delivered to Input; everything else is discarded.
	// If nil, [fether.DefaultTypes] is used.
	AcceptTypes []fether.EtherType

	// If nil, [DefaultHardwareAddr] is used.
	HardwareAddr net.HardwareAddr

	// If nil, tracing is disabled.
	TracerProvider ftrace.TracerProvider
}

// validate panics if there are any illegal settings in the configuration.
// It also warns about any suspect settings.
func (c LinkConfig) validate(log *slog.Logger) {
	// Collect every problem so a single panic reports all of them.
	var panicErrs error

	if c.Channel == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("LinkConfig.Channel may not be nil"),
		)
	} else {
		mp := c.Channel.MaxPayload()
		if mp <= fether.HeaderSize {
			panicErrs = errors.Join(
				panicErrs,
				fmt.Errorf(
					"LinkConfig.Channel.MaxPayload must exceed the Ethernet header size %d (got %d)",
					fether.HeaderSize, mp,
				),
			)
		}

		if c.Pool != nil && c.Pool.FrameSize() < mp {
			panicErrs = errors.Join(
				panicErrs,
				fmt.Errorf(
					"LinkConfig.Pool frame size %d is smaller than channel max payload %d",
					c.Pool.FrameSize(), mp,
				),
			)
		}
	}

	if c.TxQueue == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("LinkConfig.TxQueue may not be nil"),
		)
	}

	if c.Input == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("LinkConfig.Input may not be nil"),
		)
	}

	if c.RetryPolicy != nil && (c.RetryInterval != 0 || c.MaxRetries != 0) {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("LinkConfig.RetryPolicy is mutually exclusive with RetryInterval and MaxRetries"),
		)
	}

	if c.RetryInterval < 0 {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf("LinkConfig.RetryInterval must not be negative (got %s)", c.RetryInterval),
		)
	}

	if c.HardwareAddr != nil && len(c.HardwareAddr) != fether.AddrSize {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf(
				"LinkConfig.HardwareAddr must be %d bytes (got %d)",
				fether.AddrSize, len(c.HardwareAddr),
			),
		)
	}

	if panicErrs != nil {
		panic(fmt.Errorf("BUG: invalid link configuration: %w", panicErrs))
	}

	// Everything past this point is legal but probably unintended.

	if c.RetryInterval > time.Second {
		log.Warn(
			"Retry interval is long; the transmit queue stays stopped for the whole wait",
			"retry_interval", c.RetryInterval,
		)
	}

	if c.AcceptTypes != nil && len(c.AcceptTypes) == 0 {
		log.Warn("LinkConfig.AcceptTypes is empty; every received frame will be discarded")
	}

	if len(c.HardwareAddr) == fether.AddrSize && c.HardwareAddr[0]&0x01 != 0 {
		log.Error(
			"Hardware address has the multicast bit set; peers may not route unicast frames to it",
			"addr", c.HardwareAddr,
		)
	}
}

// NewRetryPolicy returns a policy for [LinkConfig.RetryPolicy]
// that retries up to maxRetries times at a fixed interval.
// A maxRetries of zero or less never retries.
func NewRetryPolicy(interval time.Duration, maxRetries int) backoff.BackOff {
	return fegress.NewRetryPolicy(interval, maxRetries)
}

func (c LinkConfig) retryPolicy() backoff.BackOff {
	if c.RetryPolicy != nil {
		return c.RetryPolicy
	}

	interval := c.RetryInterval
	if interval == 0 {
		interval = fegress.DefaultRetryInterval
	}

	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = fegress.DefaultMaxRetries
	}

	// Negative passes through, which NewRetryPolicy treats as no retries.
	return fegress.NewRetryPolicy(interval, maxRetries)
}

func (c LinkConfig) acceptTypes() *fether.TypeSet {
	if c.AcceptTypes == nil {
		return fether.NewTypeSet(fether.DefaultTypes()...)
	}
	return fether.NewTypeSet(c.AcceptTypes...)
}

func (c LinkConfig) hardwareAddr() net.HardwareAddr {
	if c.HardwareAddr == nil {
		return DefaultHardwareAddr
	}
	return c.HardwareAddr
}
