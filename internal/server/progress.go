package server

import (
	"sync"

	"github.com/user/toyrsa/internal/benchmark"
)

const progressBuffer = 100

// progressHub copies one job's progress updates to every subscriber.
type progressHub struct {
	mu     sync.Mutex
	subs   map[chan benchmark.ProgressUpdate]struct{}
	closed bool
}

func newProgressHub() *progressHub {
	return &progressHub{
		subs: make(map[chan benchmark.ProgressUpdate]struct{}),
	}
}

// subscribe returns a channel receiving every later update and a function
// that detaches it. The channel is closed when the job finishes or on detach.
func (h *progressHub) subscribe() (<-chan benchmark.ProgressUpdate, func()) {
	ch := make(chan benchmark.ProgressUpdate, progressBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// publish never blocks; a subscriber with a full buffer misses the update.
func (h *progressHub) publish(update benchmark.ProgressUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

func (h *progressHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

// pump publishes updates until in is closed, then closes the hub.
func (h *progressHub) pump(in <-chan benchmark.ProgressUpdate) {
	for update := range in {
		h.publish(update)
	}
	h.close()
}
