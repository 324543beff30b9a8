package fingress_test

import (
	"errors"
	"net"
	"testing"

	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fether"
	"github.com/gordian-engine/ferry/internal/fingress"
	"github.com/gordian-engine/ferry/internal/fstats"
	"github.com/gordian-engine/ferry/internal/ftest"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	In       *fingress.Ingress
	Pool     *fbuf.Pool
	Counters *fstats.Counters

	Got    []*fbuf.Frame
	Reject error
}

func newFixture(t *testing.T, poolLimit int) *fixture {
	t.Helper()

	fx := &fixture{
		Pool:     fbuf.NewPool(fbuf.PoolConfig{FrameSize: 128, Limit: poolLimit}),
		Counters: new(fstats.Counters),
	}
	fx.In = fingress.New(ftest.NewLogger(t), fingress.Config{
		Pool:  fx.Pool,
		Types: fether.NewTypeSet(fether.DefaultTypes()...),
		Input: func(f *fbuf.Frame) error {
			if fx.Reject != nil {
				return fx.Reject
			}
			fx.Got = append(fx.Got, f)
			return nil
		},
		MaxFrameSize: 100,
		Counters:     fx.Counters,
	})
	return fx
}

func frameOf(t *testing.T, et fether.EtherType, payloadLen int) []byte {
	t.Helper()

	return fether.AppendFrame(nil, fether.Fields{
		Dst:  net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		Src:  net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		Type: et,
	}, ftest.RandomDataForTest(t, payloadLen))
}

func TestDeliver_accepted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 0)

	p := frameOf(t, fether.TypeIPv4, 40)
	fx.In.Deliver(p)

	require.Len(t, fx.Got, 1)
	require.Equal(t, p, fx.Got[0].Bytes())

	// The frame is a copy, not an alias of the message.
	p[0] ^= 0xff
	require.NotEqual(t, p, fx.Got[0].Bytes())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.RxPackets)
	require.Equal(t, uint64(len(p)), st.RxBytes)
	require.Zero(t, st.RxDropped)

	fx.Got[0].Release()
	require.Zero(t, fx.Pool.Outstanding())
}

func TestDeliver_sizeLimits(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 0)

	fx.In.Deliver(make([]byte, fether.HeaderSize-1))
	fx.In.Deliver(frameOf(t, fether.TypeARP, 101-fether.HeaderSize))
	require.Empty(t, fx.Got)
	require.Equal(t, uint64(2), fx.Counters.Snapshot().RxDropped)

	// Bare header and exact maximum are both accepted.
	fx.In.Deliver(frameOf(t, fether.TypeARP, 0))
	fx.In.Deliver(frameOf(t, fether.TypeARP, 100-fether.HeaderSize))
	require.Len(t, fx.Got, 2)
	require.Equal(t, 2, fx.Pool.Outstanding())
}

func TestDeliver_unknownType(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 0)

	fx.In.Deliver(frameOf(t, fether.TypeIPv6, 20))

	require.Empty(t, fx.Got)
	require.Zero(t, fx.Pool.Outstanding())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.RxUnknown)
	require.Zero(t, st.RxDropped)
	require.Zero(t, st.RxPackets)
}

func TestDeliver_poolExhausted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 1)

	fx.In.Deliver(frameOf(t, fether.TypeIPv4, 20))
	fx.In.Deliver(frameOf(t, fether.TypeIPv4, 20))

	require.Len(t, fx.Got, 1)
	require.Equal(t, uint64(1), fx.Counters.Snapshot().RxDropped)

	// Freeing the held frame makes room again.
	fx.Got[0].Release()
	fx.In.Deliver(frameOf(t, fether.TypeIPv4, 20))
	require.Len(t, fx.Got, 2)
}

func TestDeliver_inputRejects(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, 0)
	fx.Reject = errors.New("stack busy")

	fx.In.Deliver(frameOf(t, fether.TypeIPv4, 20))

	require.Empty(t, fx.Got)
	require.Zero(t, fx.Pool.Outstanding())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.RxDropped)
	require.Zero(t, st.RxPackets)
}

func TestNew_panicsOnMissingFields(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		fingress.New(ftest.NewLogger(t), fingress.Config{})
	})
}
