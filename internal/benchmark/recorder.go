package benchmark

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

// Recorder runs a benchmark and saves every generated keypair to a KeyStore
// under the benchmark's ID.
type Recorder struct {
	runner      *Runner
	keyStore    *storage.KeyStore
	benchmarkID string

	mu     sync.Mutex
	keyIDs []string
	failed int
}

func NewRecorder(runner *Runner, keyStore *storage.KeyStore, benchmarkID string) *Recorder {
	rec := &Recorder{
		runner:      runner,
		keyStore:    keyStore,
		benchmarkID: benchmarkID,
	}
	runner.OnKey(rec.record)
	return rec
}

func (rec *Recorder) record(kp *rsa.Keypair) {
	stored, err := rec.keyStore.Store(kp, storage.OriginBenchmark, rec.benchmarkID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err != nil {
		rec.failed++
		return
	}
	rec.keyIDs = append(rec.keyIDs, stored.ID)
}

// Run executes the benchmark. A keypair that fails validation on store is
// counted as a run error.
func (rec *Recorder) Run(ctx context.Context) (Result, error) {
	result, err := rec.runner.Run(ctx)

	rec.mu.Lock()
	result.Errors += rec.failed
	rec.mu.Unlock()

	if err != nil {
		return result, fmt.Errorf("benchmark %s: %w", rec.benchmarkID, err)
	}
	return result, nil
}

// KeyIDs returns the IDs of stored keys in generation order.
func (rec *Recorder) KeyIDs() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	out := make([]string, len(rec.keyIDs))
	copy(out, rec.keyIDs)
	return out
}
