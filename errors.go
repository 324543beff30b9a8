package ferry

import (
	"github.com/gordian-engine/ferry/internal/fegress"
)

var (
	// ErrBusy is returned from [*Link.Transmit]
	// when a previous frame is still in flight.
	// The caller keeps ownership of the frame and should wait
	// for the transmit queue to be woken before trying again.
	ErrBusy = fegress.ErrBusy

	// ErrFrameTooLarge is returned from [*Link.Transmit]
	// for frames longer than [*Link.MaxFrameSize].
	// The caller keeps ownership of the frame.
	ErrFrameTooLarge = fegress.ErrFrameTooLarge
)
