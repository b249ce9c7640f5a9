// Package random draws unbiased integers from an entropy stream.
package random

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

var (
	// ErrEntropyUnavailable indicates the underlying entropy stream could not be read.
	ErrEntropyUnavailable = errors.New("random: entropy source unavailable")

	// ErrEmptyRange indicates a request for a value from an empty interval.
	ErrEmptyRange = errors.New("random: empty range")
)

// Source reads fixed-width integers from an entropy stream. It is safe for
// concurrent use; reads are serialised.
type Source struct {
	mu sync.Mutex
	r  io.Reader
}

// New returns a Source reading from r.
func New(r io.Reader) *Source {
	return &Source{r: r}
}

// Open returns a Source reading from the file or device at path, such as
// /dev/random. Close releases the file.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return New(f), nil
}

// Close closes the underlying stream if it is closable.
func (s *Source) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Uint32 returns the next 32 bits of the stream.
func (s *Source) Uint32() (uint32, error) {
	var buf [4]byte

	s.mu.Lock()
	_, err := io.ReadFull(s.r, buf[:])
	s.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Uniform returns a value uniformly distributed in [0, max). Draws at or above
// the largest multiple of max that fits in 32 bits are rejected and redrawn.
func (s *Source) Uniform(max uint32) (uint32, error) {
	if max == 0 {
		return 0, ErrEmptyRange
	}

	limit := math.MaxUint32 - (math.MaxUint32 % max)
	for {
		v, err := s.Uint32()
		if err != nil {
			return 0, err
		}
		if v < limit {
			return v % max, nil
		}
	}
}

// Range returns a value uniformly distributed in [a, b).
func (s *Source) Range(a, b uint32) (uint32, error) {
	if b <= a {
		return 0, fmt.Errorf("%w: [%d, %d)", ErrEmptyRange, a, b)
	}
	v, err := s.Uniform(b - a)
	if err != nil {
		return 0, err
	}
	return v + a, nil
}
