// Package rsa generates toy RSA keypairs from 8-bit primes and encrypts
// single bytes with raw modular exponentiation. It offers no padding and no
// side-channel protection and must not be used to protect anything.
package rsa

import (
	"errors"
	"fmt"

	"github.com/user/toyrsa/internal/numtheory"
	"github.com/user/toyrsa/internal/prime"
)

var (
	// ErrExponentExhausted indicates no public exponent coprime to the
	// totient was drawn within the attempt budget.
	ErrExponentExhausted = errors.New("rsa: public exponent search exhausted")

	// ErrInvalidKeypair indicates a keypair violates an RSA invariant.
	ErrInvalidKeypair = errors.New("rsa: invalid keypair")
)

// Keypair is a complete toy RSA key set together with its source primes.
type Keypair struct {
	Public  uint32 `json:"public"`
	Private uint32 `json:"private"`
	Modulus uint32 `json:"modulus"`
	P       uint32 `json:"p"`
	Q       uint32 `json:"q"`
}

// Totient returns (P-1)(Q-1).
func (k *Keypair) Totient() uint32 {
	return (k.P - 1) * (k.Q - 1)
}

func (k *Keypair) String() string {
	return fmt.Sprintf("public=%d private=%d modulus=%d", k.Public, k.Private, k.Modulus)
}

// Validate checks that k is a mathematically sound keypair.
func (k *Keypair) Validate() error {
	const lo, hi = 1 << (prime.Bits - 1), 1<<prime.Bits - 1

	for _, f := range []struct {
		name  string
		value uint32
	}{{"p", k.P}, {"q", k.Q}} {
		if f.value < lo || f.value > hi {
			return fmt.Errorf("%w: %s = %d outside [%d, %d]", ErrInvalidKeypair, f.name, f.value, lo, hi)
		}
		if !prime.IsSmallPrime(f.value) {
			return fmt.Errorf("%w: %s = %d is not prime", ErrInvalidKeypair, f.name, f.value)
		}
	}

	if k.P == k.Q {
		return fmt.Errorf("%w: p and q are both %d", ErrInvalidKeypair, k.P)
	}
	if k.Modulus != k.P*k.Q {
		return fmt.Errorf("%w: modulus %d != %d * %d", ErrInvalidKeypair, k.Modulus, k.P, k.Q)
	}

	totient := k.Totient()
	if k.Public == 0 || k.Public >= totient {
		return fmt.Errorf("%w: public exponent %d outside [1, %d)", ErrInvalidKeypair, k.Public, totient)
	}
	if g := numtheory.GCD(k.Public, totient); g != 1 {
		return fmt.Errorf("%w: gcd(public, totient) = %d", ErrInvalidKeypair, g)
	}
	if uint64(k.Public)*uint64(k.Private)%uint64(totient) != 1 {
		return fmt.Errorf("%w: private exponent %d is not the inverse of %d mod %d", ErrInvalidKeypair, k.Private, k.Public, totient)
	}
	return nil
}
