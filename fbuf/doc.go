// Package fbuf contains the owned frame buffers passed between
// the network stack adapter, the egress scheduler, and the ingress path.
//
// A [*Frame] has exactly one owner at a time,
// and must be released exactly once by its final owner.
// Releasing a frame twice is a programming error and panics,
// which makes ownership bugs loud in tests instead of silently corrupting a pool.
package fbuf
