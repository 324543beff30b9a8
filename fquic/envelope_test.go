package fquic_test

import (
	"bytes"
	"testing"

	"github.com/golang/snappy"
	"github.com/gordian-engine/ferry/fquic"
	"github.com/gordian-engine/ferry/internal/ftest"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_raw(t *testing.T) {
	t.Parallel()

	p := ftest.RandomDataForTest(t, 100)
	d := fquic.EncodeEnvelope(p, false)
	require.Equal(t, byte(0), d[0])
	require.Equal(t, p, d[1:])

	got, err := fquic.DecodeEnvelope(d, 100)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = fquic.DecodeEnvelope(d, 99)
	require.Error(t, err)
}

func TestEnvelope_compressesWhenSmaller(t *testing.T) {
	t.Parallel()

	p := bytes.Repeat([]byte("ferry"), 40)
	d := fquic.EncodeEnvelope(p, true)
	require.Equal(t, byte(1), d[0])
	require.Less(t, len(d), len(p))

	got, err := fquic.DecodeEnvelope(d, len(p))
	require.NoError(t, err)
	require.Equal(t, p, got)

	// The decoded length is checked before decompressing.
	_, err = fquic.DecodeEnvelope(d, len(p)-1)
	require.ErrorContains(t, err, "exceeds limit")
}

func TestEnvelope_incompressibleStaysRaw(t *testing.T) {
	t.Parallel()

	p := ftest.RandomDataForTest(t, 200)
	d := fquic.EncodeEnvelope(p, true)
	require.Equal(t, byte(0), d[0])
	require.Len(t, d, 1+len(p))
}

func TestEnvelope_malformed(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		d    []byte
	}{
		{name: "empty", d: nil},
		{name: "unknown type", d: []byte{7, 1, 2, 3}},
		{name: "bad snappy", d: append([]byte{1}, 0xff, 0xff, 0xff, 0xff, 0xff)},
		{name: "truncated snappy", d: append([]byte{1}, snappy.Encode(nil, bytes.Repeat([]byte("x"), 64))[:4]...)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := fquic.DecodeEnvelope(tc.d, 1024)
			require.Error(t, err)
		})
	}
}
