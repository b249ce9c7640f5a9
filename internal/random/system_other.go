//go:build !linux

package random

import "crypto/rand"

// System returns a Source backed by the operating system entropy pool.
func System() *Source {
	return New(rand.Reader)
}
