// Package bloom provides the membership filter used to reject search
// queries that cannot match before the index is walked.
//
// A filter answers "definitely absent" or "maybe present". Anything added
// always tests present; absent items test present at roughly the configured
// false-positive rate. Items cannot be removed.
package bloom

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// ErrInvalidParams is returned for n <= 0 or a rate outside (0, 1).
var ErrInvalidParams = errors.New("bloom: expected items must be positive and false positive rate in (0, 1)")

// Filter is a Bloom filter over strings. Contains is safe for concurrent
// use once building is done; Add is not.
type Filter struct {
	bits  *bitset.BitSet
	m     uint64
	k     int
	seeds [][8]byte
	count uint64
}

// Size computes the bit count m = ceil(-n·ln(p) / (ln 2)²) and hash count
// k = round((m/n)·ln 2), both at least 1.
func Size(n int, p float64) (m uint64, k int, err error) {
	if n <= 0 || p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0, 0, ErrInvalidParams
	}
	mf := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if mf < 1 {
		mf = 1
	}
	kf := math.Round(mf / float64(n) * math.Ln2)
	if kf < 1 {
		kf = 1
	}
	return uint64(mf), int(kf), nil
}

// New creates a filter sized for n items at false-positive rate p.
func New(n int, p float64) (*Filter, error) {
	m, k, err := Size(n, p)
	if err != nil {
		return nil, err
	}
	seeds := make([][8]byte, k)
	for i := range seeds {
		// distinct odd seeds spread over the 64-bit space
		binary.LittleEndian.PutUint64(seeds[i][:], uint64(i)*0x9E3779B97F4A7C15+1)
	}
	return &Filter{
		bits:  bitset.New(uint(m)),
		m:     m,
		k:     k,
		seeds: seeds,
	}, nil
}

// position hashes item under seed i and maps it into the bit array.
func (f *Filter) position(d *xxhash.Digest, i int, item string) uint {
	d.Reset()
	_, _ = d.Write(f.seeds[i][:])
	_, _ = d.WriteString(item)
	return uint(d.Sum64() % f.m)
}

// Add sets the k bits for item.
func (f *Filter) Add(item string) {
	d := xxhash.New()
	for i := 0; i < f.k; i++ {
		f.bits.Set(f.position(d, i, item))
	}
	f.count++
}

// Contains reports whether item may have been added. False is definitive.
func (f *Filter) Contains(item string) bool {
	d := xxhash.New()
	for i := 0; i < f.k; i++ {
		if !f.bits.Test(f.position(d, i, item)) {
			return false
		}
	}
	return true
}

// Count returns how many Add calls the filter has seen.
func (f *Filter) Count() uint64 {
	return f.count
}

// Bits returns m.
func (f *Filter) Bits() uint64 {
	return f.m
}

// Hashes returns k.
func (f *Filter) Hashes() int {
	return f.k
}

// FillRatio is the share of bits set.
func (f *Filter) FillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.m)
}

// EstimatedFalsePositiveRate estimates the current rate as (1 - e^(-k·n/m))^k.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	kn := float64(f.k) * float64(f.count)
	return math.Pow(1-math.Exp(-kn/float64(f.m)), float64(f.k))
}
