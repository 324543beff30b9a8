package fquictest

import (
	"context"
	"crypto/ed25519"
	crand "crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/gordian-engine/ferry/fquic"
	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"
)

// ALPN is the application protocol negotiated by [NewPair].
const ALPN = "ferry"

// NewPair returns the two ends of a QUIC connection over loopback UDP,
// with datagrams enabled.
// Both connections are closed during test cleanup.
func NewPair(t *testing.T, ctx context.Context) (client, server fquic.Conn) {
	t.Helper()

	cert := selfSignedCert(t)

	serverTLS := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
	}

	roots := x509.NewCertPool()
	roots.AddCert(cert.Leaf)
	clientTLS := &tls.Config{
		RootCAs:    roots,
		ServerName: "localhost",
		NextProtos: []string{ALPN},
	}

	ln, err := quic.ListenAddr("127.0.0.1:0", serverTLS, fquic.DefaultQUICConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	type acceptResult struct {
		qc  *quic.Conn
		err error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		qc, err := ln.Accept(ctx)
		accepted <- acceptResult{qc: qc, err: err}
	}()

	cqc, err := quic.DialAddr(ctx, ln.Addr().String(), clientTLS, fquic.DefaultQUICConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cqc.CloseWithError(0, "") })

	var res acceptResult
	select {
	case res = <-accepted:
	case <-ctx.Done():
		t.Fatalf("context canceled before server accepted: %v", context.Cause(ctx))
	}
	require.NoError(t, res.err)
	t.Cleanup(func() { _ = res.qc.CloseWithError(0, "") })

	return fquic.WrapConn(cqc), fquic.WrapConn(res.qc)
}

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(crand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},

		NotBefore: time.Now().Add(-15 * time.Second),
		NotAfter:  time.Now().Add(time.Hour),

		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(crand.Reader, template, template, pub, priv)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}
}
