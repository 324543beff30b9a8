// Package ferry bridges Ethernet frames between a network stack
// and a peer that is only reachable through a narrow transport channel:
// message oriented, limited to a few hundred bytes per message,
// and able to push back when the peer is not keeping up.
//
// A [*Link] is one such network interface.
// The stack hands outbound frames to [*Link.Transmit],
// which accepts a single frame at a time and stops the stack's
// transmit queue until that frame has been sent or dropped.
// Sending happens on a work queue, never on the caller's goroutine,
// and a full channel is retried once after a short delay.
//
// Frames received from the channel go through [*Link.Deliver],
// which copies them into pooled buffers,
// discards protocols the link does not carry,
// and passes the rest to the configured input function.
//
// [*Link.Close] tears the link down without leaking the in-flight frame
// or leaving transmit work running.
package ferry
