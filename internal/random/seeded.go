package random

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

const seedLabel = "toyrsa seeded source"

// hkdf output is capped at 255 hash blocks per expansion
const blockBytes = 255 * sha256.Size

// Seeded returns a deterministic Source whose stream is expanded from seed
// with HKDF-SHA256. Equal seeds produce equal streams.
func Seeded(seed []byte) *Source {
	return New(&hkdfStream{prk: hkdf.Extract(sha256.New, seed, nil)})
}

// hkdfStream chains HKDF expansions, one per counter value, into an
// unbounded stream.
type hkdfStream struct {
	prk     []byte
	counter uint64
	left    int
	r       io.Reader
}

func (h *hkdfStream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if h.left == 0 {
			info := binary.BigEndian.AppendUint64([]byte(seedLabel), h.counter)
			h.counter++
			h.r = hkdf.Expand(sha256.New, h.prk, info)
			h.left = blockBytes
		}

		chunk := p[n:]
		if len(chunk) > h.left {
			chunk = chunk[:h.left]
		}
		m, err := io.ReadFull(h.r, chunk)
		n += m
		h.left -= m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
