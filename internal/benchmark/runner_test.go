package benchmark

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/toyrsa/internal/random"
	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

func TestCalculateStatistics(t *testing.T) {
	timings := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		150 * time.Millisecond,
		180 * time.Millisecond,
		170 * time.Millisecond,
	}

	avg := calculateAverage(timings)
	expectedAvg := 160 * time.Millisecond
	if avg != expectedAvg {
		t.Errorf("Expected average %v, got %v", expectedAvg, avg)
	}

	min := calculateMin(timings)
	if min != 100*time.Millisecond {
		t.Errorf("Expected min %v, got %v", 100*time.Millisecond, min)
	}

	max := calculateMax(timings)
	if max != 200*time.Millisecond {
		t.Errorf("Expected max %v, got %v", 200*time.Millisecond, max)
	}

	stdDev := calculateStdDev(timings, avg)
	if stdDev < 35*time.Millisecond || stdDev > 40*time.Millisecond {
		t.Errorf("Expected stdDev around 37ms, got %v", stdDev)
	}
}

func TestStatisticsEmpty(t *testing.T) {
	if calculateAverage(nil) != 0 || calculateMin(nil) != 0 || calculateMax(nil) != 0 {
		t.Error("Expected zero statistics for no timings")
	}
	if calculateStdDev([]time.Duration{time.Second}, time.Second) != 0 {
		t.Error("Expected zero stdDev for a single timing")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Iterations != defaultIterations {
		t.Errorf("Expected %d iterations, got %d", defaultIterations, cfg.Iterations)
	}
	if cfg.Parallel != 1 {
		t.Errorf("Expected 1 worker, got %d", cfg.Parallel)
	}
	if cfg.Timeout != defaultTimeout {
		t.Errorf("Expected timeout %d, got %d", defaultTimeout, cfg.Timeout)
	}
}

func TestRunnerBasic(t *testing.T) {
	config := Config{
		Iterations: 20,
		Parallel:   1,
		Timeout:    10,
		Seed:       "runner basic",
	}

	runner := NewRunner(config, nil)
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Runner failed: %v", err)
	}

	if result.Iterations != 20 {
		t.Errorf("Expected 20 iterations, got %d", result.Iterations)
	}
	if result.Errors != 0 {
		t.Errorf("Expected 0 errors, got %d", result.Errors)
	}
	if result.Generated+result.Exhausted != 20 {
		t.Errorf("Expected 20 attempts, got %d generated and %d exhausted", result.Generated, result.Exhausted)
	}
	if result.Generated > 0 && result.MinTime > result.MaxTime {
		t.Errorf("Min %v exceeds max %v", result.MinTime, result.MaxTime)
	}
	if result.UniqueModuli > result.Generated {
		t.Errorf("Unique moduli %d exceeds generated %d", result.UniqueModuli, result.Generated)
	}
}

func TestRunnerParallel(t *testing.T) {
	config := Config{
		Iterations: 10,
		Parallel:   4,
		Timeout:    10,
	}

	var keys []*rsa.Keypair
	runner := NewRunner(config, random.Seeded([]byte("parallel")))
	keyCh := make(chan *rsa.Keypair, 40)
	runner.OnKey(func(kp *rsa.Keypair) { keyCh <- kp })

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Runner failed: %v", err)
	}
	close(keyCh)
	for kp := range keyCh {
		keys = append(keys, kp)
	}

	if result.Generated+result.Exhausted != 40 {
		t.Errorf("Expected 40 attempts, got %d", result.Generated+result.Exhausted)
	}
	if len(keys) != result.Generated {
		t.Errorf("Expected %d callbacks, got %d", result.Generated, len(keys))
	}
	for _, kp := range keys {
		if err := kp.Validate(); err != nil {
			t.Errorf("Generated invalid keypair %v: %v", kp, err)
		}
	}
}

func TestRunnerProgress(t *testing.T) {
	progress := make(chan ProgressUpdate, 100)

	runner := NewRunner(Config{Iterations: 5, Parallel: 1, Seed: "progress"}, nil)
	runner.SetProgressChannel(progress)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Runner failed: %v", err)
	}
	close(progress)

	var last ProgressUpdate
	count := 0
	for u := range progress {
		if u.Current < last.Current {
			t.Errorf("Progress went backwards: %d after %d", u.Current, last.Current)
		}
		last = u
		count++
	}

	if count != 5 {
		t.Errorf("Expected 5 progress updates, got %d", count)
	}
	if last.Total != 5 || last.Percentage != 100 {
		t.Errorf("Expected final update 5/5 at 100%%, got %+v", last)
	}
}

func TestRunnerEntropyFailure(t *testing.T) {
	runner := NewRunner(Config{Iterations: 3, Parallel: 1}, random.New(bytes.NewReader(nil)))

	result, err := runner.Run(context.Background())
	if !errors.Is(err, random.ErrEntropyUnavailable) {
		t.Fatalf("Expected entropy error, got %v", err)
	}
	if result.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", result.Errors)
	}
	if result.Generated != 0 {
		t.Errorf("Expected no keys, got %d", result.Generated)
	}
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(Config{Iterations: 50, Parallel: 2, Seed: "cancelled"}, nil)
	result, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Runner failed: %v", err)
	}
	if result.Generated != 0 {
		t.Errorf("Expected no keys after cancellation, got %d", result.Generated)
	}
	if result.TimedOut {
		t.Error("Cancellation should not be reported as a timeout")
	}
}

func TestRecorderStoresKeys(t *testing.T) {
	keyStore := storage.NewKeyStore()
	runner := NewRunner(Config{Iterations: 8, Parallel: 2, Seed: "recorder"}, nil)
	rec := NewRecorder(runner, keyStore, "bench-1")

	result, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("Recorder failed: %v", err)
	}

	ids := rec.KeyIDs()
	if len(ids) != result.Generated {
		t.Errorf("Expected %d stored keys, got %d", result.Generated, len(ids))
	}

	stored := keyStore.GetKeysByBenchmark("bench-1")
	if len(stored) != len(ids) {
		t.Errorf("Expected %d keys for benchmark, got %d", len(ids), len(stored))
	}
	for _, key := range stored {
		if key.Origin != storage.OriginBenchmark {
			t.Errorf("Expected origin %q, got %q", storage.OriginBenchmark, key.Origin)
		}
	}
}
