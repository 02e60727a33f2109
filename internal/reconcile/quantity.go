package reconcile

import (
	"math"
	"math/bits"
)

// netSum is the exact signed sum of a sequence of quantities. Positive and
// negative parts are kept as separate 128-bit magnitudes, so the result does
// not depend on the order of additions and never wraps.
type netSum struct {
	posHi, posLo uint64
	negHi, negLo uint64
}

func (s *netSum) add(q int64) {
	var carry uint64
	if q >= 0 {
		s.posLo, carry = bits.Add64(s.posLo, uint64(q), 0)
		s.posHi += carry
		return
	}
	// -(q+1)+1 is |q| without overflowing on math.MinInt64.
	s.negLo, carry = bits.Add64(s.negLo, uint64(-(q+1))+1, 0)
	s.negHi += carry
}

// value returns the sum clamped to [-math.MaxInt64, math.MaxInt64].
func (s netSum) value() int64 {
	if s.posHi > s.negHi || (s.posHi == s.negHi && s.posLo >= s.negLo) {
		return clampMagnitude(sub128(s.posHi, s.posLo, s.negHi, s.negLo))
	}
	return -clampMagnitude(sub128(s.negHi, s.negLo, s.posHi, s.posLo))
}

func sub128(aHi, aLo, bHi, bLo uint64) (hi, lo uint64) {
	lo, borrow := bits.Sub64(aLo, bLo, 0)
	hi, _ = bits.Sub64(aHi, bHi, borrow)
	return hi, lo
}

func clampMagnitude(hi, lo uint64) int64 {
	if hi > 0 || lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(lo)
}

// addCapped adds two non-negative quantities, saturating at math.MaxInt64.
// Saturation keeps sums of non-negative values order independent.
func addCapped(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

// percent returns floor(100 * counted / expected), or 100 when nothing is
// expected. counted is clamped to [0, expected].
func percent(counted, expected int64) int {
	if expected <= 0 {
		return 100
	}
	counted = min(max(counted, 0), expected)
	hi, lo := bits.Mul64(uint64(counted), 100)
	q, _ := bits.Div64(hi, lo, uint64(expected))
	return int(q)
}
