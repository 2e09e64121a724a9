// Package bloom implements the fixed-size bloom filter used by every SST:
// m independently-addressable positions, k hash probes per key, no false
// negatives. The on-disk representation is a raw byte array of length m,
// one byte per position, non-zero meaning "set" — this matches the SST's
// fixed 8192-byte bloom region exactly, so Filter can be serialized into
// and deserialized from that region without any additional framing.
package bloom

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/Priyanshu23/FlashLogGo/internal/xhash"
)

// DefaultM and DefaultK are the store's compile-time bloom tunables.
const (
	DefaultM = 8192
	DefaultK = 3
)

// Filter is a fixed-m, fixed-k bloom filter over uint64 keys. The bit
// array is backed by a bitset.BitSet for compact in-memory storage; it is
// only ever expanded to one-byte-per-position when serialized to or from
// an SST's bloom region.
type Filter struct {
	bits *bitset.BitSet
	m    uint
	k    uint
}

// New allocates an empty filter with m positions and k hash probes.
func New(m, k uint) *Filter {
	return &Filter{bits: bitset.New(m), m: m, k: k}
}

// NewDefault allocates a filter using the store's default m and k.
func NewDefault() *Filter {
	return New(DefaultM, DefaultK)
}

// M returns the number of positions in the filter.
func (f *Filter) M() uint { return f.m }

// K returns the number of hash probes per key.
func (f *Filter) K() uint { return f.k }

// Insert records key's presence; it can never be undone (bloom filters do
// not support deletion).
func (f *Filter) Insert(key uint64) {
	for i := uint8(0); i < uint8(f.k); i++ {
		_, lo := xhash.Hash128(key, i)
		f.bits.Set(uint(lo % uint64(f.m)))
	}
}

// Query reports whether key may be present. A false result is certain; a
// true result may be a false positive.
func (f *Filter) Query(key uint64) bool {
	for i := uint8(0); i < uint8(f.k); i++ {
		_, lo := xhash.Hash128(key, i)
		if !f.bits.Test(uint(lo % uint64(f.m))) {
			return false
		}
	}
	return true
}

// SerializeInto writes the filter's bit array as m bytes into dst
// (non-zero == set), matching the SST's fixed bloom region layout.
func (f *Filter) SerializeInto(dst []byte) error {
	if uint(len(dst)) != f.m {
		return fmt.Errorf("bloom: serialize buffer has length %d, want %d", len(dst), f.m)
	}
	for i := uint(0); i < f.m; i++ {
		if f.bits.Test(i) {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return nil
}

// DeserializeFrom rebuilds a filter of m positions and k probes from a
// serialized byte array produced by SerializeInto.
func DeserializeFrom(src []byte, k uint) (*Filter, error) {
	m := uint(len(src))
	f := New(m, k)
	for i, b := range src {
		if b != 0 {
			f.bits.Set(uint(i))
		}
	}
	return f, nil
}
