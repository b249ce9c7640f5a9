//go:build linux

package random

import (
	"errors"

	"golang.org/x/sys/unix"
)

// getrandomReader reads the kernel entropy pool with getrandom(2). With no
// flags the call blocks until the pool has been initialised.
type getrandomReader struct{}

func (getrandomReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		m, err := unix.Getrandom(p[n:], 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

// System returns a Source backed by the operating system entropy pool.
func System() *Source {
	return New(getrandomReader{})
}
