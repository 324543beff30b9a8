// Package fingress turns transport messages into frames for the network stack.
package fingress

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fether"
	"github.com/gordian-engine/ferry/internal/fstats"
	"golang.org/x/time/rate"
)

// InputFunc hands a received frame to the network stack.
//
// On a nil return the stack owns f.
// On error, ownership stays with the caller, which releases f.
type InputFunc func(f *fbuf.Frame) error

// Config is the configuration for [New].
type Config struct {
	// Allocates a frame for every accepted message.
	Pool *fbuf.Pool

	// Frames of other EtherTypes are discarded.
	Types *fether.TypeSet

	Input InputFunc

	// Messages longer than this are discarded.
	// Zero means the pool's frame size.
	MaxFrameSize int

	// If nil, a private set of counters is used.
	Counters *fstats.Counters
}

// Ingress accepts messages from the transport channel.
// Deliver is safe to call from multiple goroutines,
// as long as the configured InputFunc is.
type Ingress struct {
	log *slog.Logger

	pool     *fbuf.Pool
	types    *fether.TypeSet
	input    InputFunc
	maxSize  int
	counters *fstats.Counters

	dropLog  rate.Sometimes
	allocLog rate.Sometimes
}

// New returns a new Ingress.
// It panics if a required field of cfg is missing.
func New(log *slog.Logger, cfg Config) *Ingress {
	var errs error
	if cfg.Pool == nil {
		errs = errors.Join(errs, errors.New("Config.Pool may not be nil"))
	}
	if cfg.Types == nil {
		errs = errors.Join(errs, errors.New("Config.Types may not be nil"))
	}
	if cfg.Input == nil {
		errs = errors.Join(errs, errors.New("Config.Input may not be nil"))
	}
	if errs != nil {
		panic(fmt.Errorf("BUG: invalid ingress configuration: %w", errs))
	}

	maxSize := cfg.MaxFrameSize
	if maxSize <= 0 || maxSize > cfg.Pool.FrameSize() {
		maxSize = cfg.Pool.FrameSize()
	}

	counters := cfg.Counters
	if counters == nil {
		counters = new(fstats.Counters)
	}

	return &Ingress{
		log: log,

		pool:     cfg.Pool,
		types:    cfg.Types,
		input:    cfg.Input,
		maxSize:  maxSize,
		counters: counters,

		dropLog:  rate.Sometimes{First: 5, Interval: time.Second},
		allocLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// Deliver processes one message received from the channel.
// p is only read during the call.
func (in *Ingress) Deliver(p []byte) {
	if len(p) < fether.HeaderSize {
		in.counters.RxDropped.Add(1)
		in.dropLog.Do(func() {
			in.log.Debug("Dropping runt frame", "len", len(p))
		})
		return
	}
	if len(p) > in.maxSize {
		in.counters.RxDropped.Add(1)
		in.dropLog.Do(func() {
			in.log.Warn("Dropping oversize frame", "len", len(p), "max", in.maxSize)
		})
		return
	}

	// Length was checked above, so the header is present.
	et := fether.Header(p).Type()
	if !in.types.Has(et) {
		in.counters.RxUnknown.Add(1)
		return
	}

	f, err := in.pool.Copy(p)
	if err != nil {
		in.counters.RxDropped.Add(1)
		if errors.Is(err, fbuf.ErrExhausted) {
			in.allocLog.Do(func() {
				in.log.Warn("Dropping received frame: frame pool exhausted")
			})
		} else {
			in.log.Error("Failed to allocate received frame", "err", err)
		}
		return
	}

	if err := in.input(f); err != nil {
		f.Release()
		in.counters.RxDropped.Add(1)
		in.dropLog.Do(func() {
			in.log.Warn("Network stack rejected received frame", "type", et, "err", err)
		})
		return
	}

	in.counters.RxPackets.Add(1)
	in.counters.RxBytes.Add(uint64(len(p)))
}
