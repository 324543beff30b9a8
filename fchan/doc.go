// Package fchan defines the boundary to the narrow transport channel
// that carries frames to the peer processor.
//
// A [Channel] is message oriented and capacity bounded.
// Its only send operation, [Channel.TrySend], never blocks:
// when the channel's internal buffer is full it returns [ErrWouldBlock],
// and the caller is expected to try again later.
// Any other error is fatal for the message being sent.
//
// Implementations live in [github.com/gordian-engine/ferry/fquic]
// and, for tests, [github.com/gordian-engine/ferry/fchan/fchantest].
package fchan
