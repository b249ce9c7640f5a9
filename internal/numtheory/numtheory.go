// Package numtheory implements the modular arithmetic used by the toy RSA
// engine: exponentiation, greatest common divisor and modular inverse.
package numtheory

import (
	"errors"
	"fmt"
)

// ErrInverseUndefined indicates a modular inverse was requested for values
// that are not coprime.
var ErrInverseUndefined = errors.New("numtheory: inverse undefined")

// ModPow returns base^exp mod mod by square-and-multiply, consuming the
// exponent from its lowest bit. Intermediate products are held in 64 bits.
// A modulus of 1 yields 0.
func ModPow(base uint64, exp uint32, mod uint32) uint32 {
	if mod == 1 {
		return 0
	}

	m := uint64(mod)
	result := uint64(1)
	base %= m
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % m
		}
		exp >>= 1
		base = (base * base) % m
	}
	return uint32(result)
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ModInverse returns i in [0, b) such that i*a ≡ 1 (mod b). It returns
// ErrInverseUndefined when gcd(a, b) != 1 or b == 0.
func ModInverse(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: modulus is zero", ErrInverseUndefined)
	}

	// Bézout coefficients go negative mid-iteration
	oldR, r := int64(a), int64(b)
	oldS, s := int64(1), int64(0)
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
	}

	if oldR != 1 {
		return 0, fmt.Errorf("%w: gcd(%d, %d) = %d", ErrInverseUndefined, a, b, oldR)
	}

	oldS %= int64(b)
	if oldS < 0 {
		oldS += int64(b)
	}
	return uint32(oldS), nil
}
