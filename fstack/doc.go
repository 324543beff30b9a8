// Package fstack adapts a link to a network stack
// that consumes frames from Go channels.
//
// [Gate] implements the link's transmit queue flow control,
// [Pump] moves outbound frames from a channel into the link
// while respecting the gate,
// and [Inbox] buffers inbound frames for the stack to read.
package fstack
