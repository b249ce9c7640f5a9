// Package prime classifies and generates the small primes behind toy RSA keys.
//
// Classification runs trial division against the odd primes below 1000 and
// falls back to a probabilistic Miller-Rabin test. The test never accepts a
// composite but can reject a prime, which only costs the generator a redraw.
package prime

import (
	"errors"
	"log"

	"github.com/user/toyrsa/internal/numtheory"
)

const (
	// Bits is the width of generated primes; the top bit is always set.
	Bits = 8

	// MillerRabinRounds is the number of random witnesses tried per candidate.
	MillerRabinRounds = 10

	// MaxAttempts bounds the number of candidates Generate draws.
	MaxAttempts = 400
)

// ErrExhausted indicates no prime was found within MaxAttempts draws.
var ErrExhausted = errors.New("prime: generation attempts exhausted")

// the first 167 odd primes
var smallPrimes = [...]uint32{
	3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71, 73, 79, 83, 89,
	97, 101, 103, 107, 109, 113, 127, 131, 137, 139, 149, 151, 157, 163, 167, 173,
	179, 181, 191, 193, 197, 199, 211, 223, 227, 229, 233, 239, 241, 251, 257, 263,
	269, 271, 277, 281, 283, 293, 307, 311, 313, 317, 331, 337, 347, 349, 353, 359,
	367, 373, 379, 383, 389, 397, 401, 409, 419, 421, 431, 433, 439, 443, 449, 457,
	461, 463, 467, 479, 487, 491, 499, 503, 509, 521, 523, 541, 547, 557, 563, 569,
	571, 577, 587, 593, 599, 601, 607, 613, 617, 619, 631, 641, 643, 647, 653, 659,
	661, 673, 677, 683, 691, 701, 709, 719, 727, 733, 739, 743, 751, 757, 761, 769,
	773, 787, 797, 809, 811, 821, 823, 827, 829, 839, 853, 857, 859, 863, 877, 881,
	883, 887, 907, 911, 919, 929, 937, 941, 947, 953, 967, 971, 977, 983, 991, 997,
}

// trial division alone is exact below the square of the largest table prime
const trialDivisionBound = 997 * 997

// SmallPrimes returns a copy of the trial division table.
func SmallPrimes() []uint32 {
	out := make([]uint32, len(smallPrimes))
	copy(out, smallPrimes[:])
	return out
}

// Rand supplies uniform integers in [a, b).
type Rand interface {
	Range(a, b uint32) (uint32, error)
}

type verdict int

const (
	undecided verdict = iota
	isPrime
	isComposite
)

func trialDivide(n uint32) verdict {
	if n < 3 || n%2 == 0 {
		return isComposite
	}
	for _, p := range smallPrimes {
		if n == p {
			return isPrime
		}
		if n%p == 0 {
			return isComposite
		}
	}
	return undecided
}

// IsSmallPrime reports whether n is prime using trial division only. It
// treats 2 as composite, like the probabilistic test, and is exact for every
// other n below 994009.
func IsSmallPrime(n uint32) bool {
	switch trialDivide(n) {
	case isPrime:
		return true
	case isComposite:
		return false
	}
	return n < trialDivisionBound
}

// Tester runs primality checks and prime generation against a random source.
type Tester struct {
	Rand Rand
	// Log receives a trace of every candidate; nil disables tracing.
	Log *log.Logger
}

// NewTester returns a Tester drawing witnesses and candidates from rnd.
func NewTester(rnd Rand, logger *log.Logger) *Tester {
	return &Tester{Rand: rnd, Log: logger}
}

func (t *Tester) logf(format string, args ...any) {
	if t.Log != nil {
		t.Log.Printf(format, args...)
	}
}

// IsProbablePrime reports whether n is probably prime. A false result for a
// prime is possible; a true result for a composite is not.
func (t *Tester) IsProbablePrime(n uint32) (bool, error) {
	t.logf("checking if %d is prime", n)

	switch trialDivide(n) {
	case isPrime:
		return true, nil
	case isComposite:
		return false, nil
	}
	return t.millerRabin(n)
}

func (t *Tester) millerRabin(n uint32) (bool, error) {
	s := uint32(0)
	d := n - 1
	for d%2 == 0 {
		d /= 2
		s++
	}
	t.logf("miller-rabin on %d: %d = 2^%d * %d", n, n-1, s, d)

	for round := 0; round < MillerRabinRounds; round++ {
		base, err := t.Rand.Range(2, n-1)
		if err != nil {
			return false, err
		}
		if !witnessPasses(base, s, d, n) {
			t.logf("witness %d proves %d composite", base, n)
			return false, nil
		}
	}
	return true, nil
}

// witnessPasses reports whether base^d ≡ 1 or base^(d*2^r) ≡ n-1 for some
// r in [0, s-1), with r = 0 always examined.
func witnessPasses(base, s, d, n uint32) bool {
	x := numtheory.ModPow(uint64(base), d, n)
	if x == 1 {
		return true
	}
	for r := uint32(1); r+1 < s; r++ {
		if x == n-1 {
			return true
		}
		x = numtheory.ModPow(uint64(x), 2, n)
	}
	return x == n-1
}

// Generate draws Bits-wide candidates with the top bit set until one is prime.
// It returns ErrExhausted after MaxAttempts rejected candidates.
func (t *Tester) Generate() (uint32, error) {
	t.logf("getting a prime")

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		n, err := t.Rand.Range(1<<(Bits-1), 1<<Bits)
		if err != nil {
			return 0, err
		}

		ok, err := t.IsProbablePrime(n)
		if err != nil {
			return 0, err
		}
		if ok {
			t.logf("%d is prime", n)
			return n, nil
		}
		t.logf("%d is probably not prime", n)
	}
	return 0, ErrExhausted
}
