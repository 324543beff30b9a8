package fether_test

import (
	"net"
	"testing"

	"github.com/gordian-engine/ferry/fether"
	"github.com/stretchr/testify/require"
)

func TestHeader_roundTrip(t *testing.T) {
	t.Parallel()

	dst := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xfe}
	src := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}

	frame := fether.AppendFrame(nil, fether.Fields{
		Dst:  dst,
		Src:  src,
		Type: fether.TypeARP,
	}, []byte("payload"))
	require.Len(t, frame, fether.HeaderSize+len("payload"))

	h, err := fether.ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, dst, h.Destination())
	require.Equal(t, src, h.Source())
	require.Equal(t, fether.TypeARP, h.Type())
	require.Equal(t, []byte("payload"), frame[fether.HeaderSize:])
}

func TestParseHeader_runt(t *testing.T) {
	t.Parallel()

	_, err := fether.ParseHeader(make([]byte, fether.HeaderSize-1))
	require.Error(t, err)
}

func TestEtherType_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "IPv4", fether.TypeIPv4.String())
	require.Equal(t, "0x88cc", fether.EtherType(0x88cc).String())
}

func TestTypeSet(t *testing.T) {
	t.Parallel()

	s := fether.NewTypeSet(fether.DefaultTypes()...)
	require.True(t, s.Has(fether.TypeIPv4))
	require.True(t, s.Has(fether.TypeARP))
	require.False(t, s.Has(fether.TypeIPv6))
	require.Equal(t, 2, s.Len())

	s.Add(fether.TypeIPv6)
	s.Add(0xFFFF)
	require.True(t, s.Has(0xFFFF))
	require.Equal(t, []fether.EtherType{
		fether.TypeIPv4, fether.TypeARP, fether.TypeIPv6, 0xFFFF,
	}, s.Types())

	var zero fether.TypeSet
	require.False(t, zero.Has(fether.TypeIPv4))
	require.Empty(t, zero.Types())
}
