package fstack

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/internal/fegress"
)

// Transmitter accepts outbound frames.
// It is satisfied by the root package's Link.
type Transmitter interface {
	// Transmit takes ownership of f on a nil return.
	Transmit(f *fbuf.Frame) error
}

// Pump feeds frames from a channel into a [Transmitter],
// waiting on a [Gate] before every frame.
type Pump struct {
	log *slog.Logger

	gate *Gate
	tx   Transmitter
	in   <-chan *fbuf.Frame
}

// NewPump returns a Pump reading from in.
// The gate must be the transmit queue of the link behind tx.
func NewPump(log *slog.Logger, gate *Gate, tx Transmitter, in <-chan *fbuf.Frame) *Pump {
	return &Pump{
		log: log,

		gate: gate,
		tx:   tx,
		in:   in,
	}
}

// Run pumps frames until in is closed or ctx is canceled.
// Frames the pump could not hand off are released.
func (p *Pump) Run(ctx context.Context) error {
	for {
		var f *fbuf.Frame
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case fr, ok := <-p.in:
			if !ok {
				return nil
			}
			f = fr
		}

		if err := p.send(ctx, f); err != nil {
			return err
		}
	}
}

func (p *Pump) send(ctx context.Context, f *fbuf.Frame) error {
	for {
		if err := p.gate.Wait(ctx); err != nil {
			f.Release()
			return err
		}

		err := p.tx.Transmit(f)
		if err == nil {
			return nil
		}

		if errors.Is(err, fegress.ErrBusy) {
			// Another producer won the slot between our wait and transmit.
			continue
		}

		// Nothing else is retryable.
		p.log.Warn("Dropping outbound frame", "len", f.Len(), "err", err)
		f.Release()
		return nil
	}
}
