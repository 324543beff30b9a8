package fstats

import "sync/atomic"

// Counters are the live per-link counters.
// All fields are safe for concurrent use.
type Counters struct {
	TxPackets atomic.Uint64
	TxBytes   atomic.Uint64
	TxDropped atomic.Uint64
	TxRetries atomic.Uint64
	TxErrors  atomic.Uint64

	RxPackets atomic.Uint64
	RxBytes   atomic.Uint64
	RxDropped atomic.Uint64
	RxUnknown atomic.Uint64
}

// Stats is a point-in-time copy of [Counters].
type Stats struct {
	// Frames and bytes accepted by the transport channel.
	TxPackets, TxBytes uint64

	// Outbound frames that never reached the channel,
	// for any reason including shutdown.
	TxDropped uint64

	// Delayed retries scheduled after the channel reported backpressure.
	TxRetries uint64

	// Fatal channel errors; each is also counted in TxDropped.
	TxErrors uint64

	// Frames and bytes handed to the network stack.
	RxPackets, RxBytes uint64

	// Inbound frames discarded for size, allocation, or input failures.
	RxDropped uint64

	// Inbound frames discarded because of an unaccepted EtherType.
	RxUnknown uint64
}

// Snapshot loads every counter.
// Counters are read individually,
// so a snapshot taken under load may be slightly inconsistent across fields.
func (c *Counters) Snapshot() Stats {
	return Stats{
		TxPackets: c.TxPackets.Load(),
		TxBytes:   c.TxBytes.Load(),
		TxDropped: c.TxDropped.Load(),
		TxRetries: c.TxRetries.Load(),
		TxErrors:  c.TxErrors.Load(),

		RxPackets: c.RxPackets.Load(),
		RxBytes:   c.RxBytes.Load(),
		RxDropped: c.RxDropped.Load(),
		RxUnknown: c.RxUnknown.Load(),
	}
}
