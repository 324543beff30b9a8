// Package fquic carries link frames as QUIC datagrams.
//
// A [*Channel] implements [fchan.Channel] on top of a [Conn]:
// TrySend encodes the frame and places it on a bounded send queue,
// reporting [fchan.ErrWouldBlock] when the queue is full,
// and [*Channel.Run] moves queued datagrams onto the connection
// and hands received frames to a delivery callback.
//
// Each datagram starts with a one-byte envelope header
// saying whether the rest is the raw frame or a snappy block.
package fquic
