package fether

import (
	"github.com/bits-and-blooms/bitset"
)

// TypeSet is a set of EtherTypes.
// The zero value is empty and ready to use,
// but a TypeSet must not be modified concurrently with reads.
type TypeSet struct {
	bs bitset.BitSet
}

// NewTypeSet returns a set containing the given types.
func NewTypeSet(types ...EtherType) *TypeSet {
	s := new(TypeSet)
	for _, t := range types {
		s.Add(t)
	}
	return s
}

// DefaultTypes are the protocols delivered to the network stack
// when no explicit set is configured.
func DefaultTypes() []EtherType {
	return []EtherType{TypeIPv4, TypeARP}
}

// Add inserts t into the set.
func (s *TypeSet) Add(t EtherType) {
	s.bs.Set(uint(t))
}

// Has reports whether t is in the set.
func (s *TypeSet) Has(t EtherType) bool {
	return s.bs.Test(uint(t))
}

// Len is the number of types in the set.
func (s *TypeSet) Len() int {
	return int(s.bs.Count())
}

// Types returns the members of the set in ascending order.
func (s *TypeSet) Types() []EtherType {
	out := make([]EtherType, 0, s.bs.Count())
	for i, ok := s.bs.NextSet(0); ok; i, ok = s.bs.NextSet(i + 1) {
		out = append(out, EtherType(i))
	}
	return out
}
