package fquic

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// ApplicationErrorCode is used for [Conn.CloseWithError].
type ApplicationErrorCode uint64

const (
	// LinkClosedCode is sent to the peer when the local link shuts down.
	LinkClosedCode ApplicationErrorCode = 0x1e7

	// LinkClosedMessage accompanies [LinkClosedCode].
	LinkClosedMessage = "link closed"
)

// Conn is the subset of [*quic.Conn] used by [Channel].
type Conn interface {
	SendDatagram([]byte) error
	ReceiveDatagram(context.Context) ([]byte, error)

	CloseWithError(code ApplicationErrorCode, msg string) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

var _ Conn = ConnAdapter{}

// ConnAdapter wraps a [*quic.Conn], implementing the [Conn] interface.
//
// Create an instance with [WrapConn].
type ConnAdapter struct {
	qc *quic.Conn
}

// WrapConn wraps the given connection,
// returning a value implementing [Conn].
func WrapConn(qc *quic.Conn) ConnAdapter {
	return ConnAdapter{qc: qc}
}

func (c ConnAdapter) SendDatagram(p []byte) error {
	return c.qc.SendDatagram(p)
}

func (c ConnAdapter) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.qc.ReceiveDatagram(ctx)
}

func (c ConnAdapter) CloseWithError(code ApplicationErrorCode, msg string) error {
	if (code >> 62) > 0 {
		panic(fmt.Errorf(
			"BUG: application error code must fit in 62 bits (got 0x%x)", code,
		))
	}
	return c.qc.CloseWithError(quic.ApplicationErrorCode(code), msg)
}

func (c ConnAdapter) LocalAddr() net.Addr { return c.qc.LocalAddr() }

func (c ConnAdapter) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

// DefaultQUICConfig returns a QUIC configuration
// with datagram support enabled, which Channel requires on both sides.
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,

		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}
}
