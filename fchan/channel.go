package fchan

import "errors"

// DefaultMaxPayload is the reference payload limit of the transport:
// a 512-byte message buffer minus its 16-byte header.
const DefaultMaxPayload = 496

var (
	// ErrWouldBlock is returned from [Channel.TrySend]
	// when the channel has no capacity right now.
	// It is the only transient send failure.
	ErrWouldBlock = errors.New("channel would block")

	// ErrClosed is returned from [Channel.TrySend]
	// after the channel has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrTooLarge is returned from [Channel.TrySend]
	// when the message exceeds [Channel.MaxPayload].
	// Callers are expected to enforce the bound before sending.
	ErrTooLarge = errors.New("message exceeds channel payload limit")
)

// Channel is the send side of the transport.
type Channel interface {
	// TrySend offers p to the channel without blocking.
	//
	// A nil return means the channel took responsibility for the bytes;
	// the caller may reuse or release p immediately afterward.
	// An error wrapping ErrWouldBlock is transient.
	// Every other error is fatal for this message.
	TrySend(p []byte) error

	// MaxPayload is the largest message TrySend accepts.
	MaxPayload() int
}

// DeliverFunc receives one inbound message from a channel.
// The callee must not retain p after returning.
type DeliverFunc func(p []byte)

// Outcome is the classified result of a [Channel.TrySend] call.
type Outcome uint8

const (
	Sent Outcome = iota
	WouldBlock
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case WouldBlock:
		return "would_block"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps a TrySend error to its [Outcome].
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Sent
	case errors.Is(err, ErrWouldBlock):
		return WouldBlock
	default:
		return Fatal
	}
}
