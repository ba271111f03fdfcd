// Package safemath provides overflow-checked unsigned 64-bit arithmetic.
//
// Balances and token amounts must never silently wrap: an overflowed add is
// a minting bug and an underflowed sub is a theft bug. Every balance
// mutation in this repository goes through the checked variants below, which
// return an error instead of wrapping.
//
// Saturating variants are provided for call sites where clamping to the
// representable range is the intended business behavior. Choosing them is
// always explicit; no checked operation ever falls back to saturation.
package safemath

import (
	"errors"
	"math"
	"math/bits"
)

var (
	// ErrOverflow is returned when a result exceeds the uint64 range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")
)

// Add returns a+b, or ErrOverflow if the sum does not fit in a uint64.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrUnderflow if b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns a*b, or ErrOverflow if the product does not fit in a uint64.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// SaturatingAdd returns a+b, clamped to math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// SaturatingSub returns a-b, clamped to zero.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// SaturatingMul returns a*b, clamped to math.MaxUint64.
func SaturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
