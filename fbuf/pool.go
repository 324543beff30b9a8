package fbuf

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrExhausted is returned from [*Pool.Get]
// when the pool's outstanding frame limit has been reached.
var ErrExhausted = errors.New("frame pool exhausted")

// PoolConfig is the configuration for [NewPool].
type PoolConfig struct {
	// Capacity of every buffer handed out.
	// Get fails for larger requests.
	FrameSize int

	// Maximum number of frames outstanding at once.
	// Zero means no limit.
	Limit int
}

// Pool hands out frames backed by reusable fixed-size buffers.
type Pool struct {
	frameSize int
	limit     int64

	bufs sync.Pool

	outstanding atomic.Int64
	gets        atomic.Uint64
	puts        atomic.Uint64
}

// NewPool returns a new Pool.
// It panics if cfg.FrameSize is not positive.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.FrameSize <= 0 {
		panic(fmt.Errorf(
			"BUG: PoolConfig.FrameSize must be positive (got %d)", cfg.FrameSize,
		))
	}

	p := &Pool{
		frameSize: cfg.FrameSize,
		limit:     int64(cfg.Limit),
	}
	p.bufs.New = func() any {
		b := make([]byte, p.frameSize)
		return &b
	}
	return p
}

// FrameSize is the largest frame the pool can hand out.
func (p *Pool) FrameSize() int {
	return p.frameSize
}

// Get returns a frame of length n.
// The contents are unspecified; callers overwrite them.
func (p *Pool) Get(n int) (*Frame, error) {
	if n < 0 || n > p.frameSize {
		return nil, fmt.Errorf(
			"requested frame of %d bytes from pool of %d-byte frames", n, p.frameSize,
		)
	}

	if cur := p.outstanding.Add(1); p.limit > 0 && cur > p.limit {
		p.outstanding.Add(-1)
		return nil, ErrExhausted
	}
	p.gets.Add(1)

	bp := p.bufs.Get().(*[]byte)
	return &Frame{
		buf:  (*bp)[:n],
		pool: p,
	}, nil
}

// Copy returns a new frame holding a copy of b.
func (p *Pool) Copy(b []byte) (*Frame, error) {
	f, err := p.Get(len(b))
	if err != nil {
		return nil, err
	}
	copy(f.buf, b)
	return f, nil
}

func (p *Pool) put(f *Frame) {
	b := f.buf[:cap(f.buf)]
	f.buf = nil
	p.bufs.Put(&b)

	p.puts.Add(1)
	p.outstanding.Add(-1)
}

// Outstanding is the number of frames obtained but not yet released.
// Tests use it to detect leaks.
func (p *Pool) Outstanding() int {
	return int(p.outstanding.Load())
}

// PoolStats is a snapshot of a pool's lifetime counters.
type PoolStats struct {
	Gets, Puts  uint64
	Outstanding int
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Gets:        p.gets.Load(),
		Puts:        p.puts.Load(),
		Outstanding: p.Outstanding(),
	}
}
