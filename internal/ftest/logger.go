package ftest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a logger that writes through t.Log,
// so output is only shown for failing or verbose tests.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
