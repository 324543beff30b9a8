package ftest

import (
	"crypto/sha256"
	"math/rand/v2"
	"testing"
)

// RandomDataForTest returns a byte slice of size sz
// containing pseudorandom data, derived from a seed based on the test name.
func RandomDataForTest(t *testing.T, sz int) []byte {
	t.Helper()

	out := make([]byte, sz)
	if _, err := NewChaCha8ForTest(t).Read(out); err != nil {
		panic(err)
	}

	return out
}

// NewChaCha8ForTest returns a ChaCha8 source seeded from the test name,
// so that a failing randomized test reproduces on every run.
func NewChaCha8ForTest(t *testing.T) *rand.ChaCha8 {
	// Sha256 happens to be the right size for the chacha8 seed,
	// and we are not limited by the length of any particular test name.
	seed := sha256.Sum256([]byte(t.Name()))
	return rand.NewChaCha8(seed)
}

// NewRandForTest wraps [NewChaCha8ForTest] in a [*rand.Rand].
func NewRandForTest(t *testing.T) *rand.Rand {
	return rand.New(NewChaCha8ForTest(t))
}
