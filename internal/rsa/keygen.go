package rsa

import (
	"fmt"
	"log"

	"github.com/user/toyrsa/internal/numtheory"
	"github.com/user/toyrsa/internal/prime"
)

const (
	// MaxDistinctPrimeAttempts bounds the redraws of q while it equals p.
	MaxDistinctPrimeAttempts = 64

	// MaxExponentAttempts bounds the draws of a public exponent candidate.
	MaxExponentAttempts = 1 << 16
)

// Generator produces keypairs from a random source.
type Generator struct {
	Rand prime.Rand
	// Log receives a step-by-step trace; nil disables tracing.
	Log *log.Logger
}

// NewGenerator returns a Generator drawing from rnd and tracing to logger.
func NewGenerator(rnd prime.Rand, logger *log.Logger) *Generator {
	return &Generator{Rand: rnd, Log: logger}
}

// GenerateKeypair generates a keypair from rnd without tracing.
func GenerateKeypair(rnd prime.Rand) (*Keypair, error) {
	return NewGenerator(rnd, nil).Generate()
}

func (g *Generator) logf(format string, args ...any) {
	if g.Log != nil {
		g.Log.Printf(format, args...)
	}
}

// Generate builds a new keypair. Errors wrap prime.ErrExhausted when no
// suitable prime could be drawn, or the random source's error.
func (g *Generator) Generate() (*Keypair, error) {
	g.logf("generating keys")
	primes := prime.NewTester(g.Rand, g.Log)

	p, err := primes.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate p: %w", err)
	}
	g.logf("got p %d", p)

	q, err := g.distinctPrime(primes, p)
	if err != nil {
		return nil, err
	}
	g.logf("final q was %d", q)

	modulus := p * q
	totient := (p - 1) * (q - 1)
	g.logf("modulus is %d", modulus)
	g.logf("totient is %d", totient)

	public, err := g.publicExponent(totient)
	if err != nil {
		return nil, err
	}

	private, err := numtheory.ModInverse(public, totient)
	if err != nil {
		return nil, fmt.Errorf("failed to derive private exponent: %w", err)
	}
	g.logf("private key is %d", private)

	return &Keypair{
		Public:  public,
		Private: private,
		Modulus: modulus,
		P:       p,
		Q:       q,
	}, nil
}

func (g *Generator) distinctPrime(primes *prime.Tester, p uint32) (uint32, error) {
	for attempt := 0; attempt < MaxDistinctPrimeAttempts; attempt++ {
		q, err := primes.Generate()
		if err != nil {
			return 0, fmt.Errorf("failed to generate q: %w", err)
		}
		g.logf("trying q %d", q)
		if q != p {
			return q, nil
		}
	}
	return 0, fmt.Errorf("no q distinct from p = %d after %d primes: %w", p, MaxDistinctPrimeAttempts, prime.ErrExhausted)
}

func (g *Generator) publicExponent(totient uint32) (uint32, error) {
	for attempt := 0; attempt < MaxExponentAttempts; attempt++ {
		e, err := g.Rand.Range(1, totient)
		if err != nil {
			return 0, fmt.Errorf("failed to draw public exponent: %w", err)
		}
		g.logf("trying public key %d", e)
		if numtheory.GCD(e, totient) == 1 {
			return e, nil
		}
	}
	return 0, ErrExponentExhausted
}
