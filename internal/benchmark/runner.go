package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/user/toyrsa/internal/prime"
	"github.com/user/toyrsa/internal/random"
	"github.com/user/toyrsa/internal/rsa"
)

// Runner times repeated keypair generation across parallel workers.
type Runner struct {
	config   Config
	source   *random.Source
	progress chan<- ProgressUpdate
	onKey    func(*rsa.Keypair)
}

// NewRunner returns a Runner drawing from source, or from a source derived
// from config.Seed, or from the system entropy pool.
func NewRunner(config Config, source *random.Source) *Runner {
	if source == nil {
		if config.Seed != "" {
			source = random.Seeded([]byte(config.Seed))
		} else {
			source = random.System()
		}
	}
	return &Runner{config: config.withDefaults(), source: source}
}

// SetProgressChannel receives an update after every generation. Sends never
// block; updates are dropped when the channel is full.
func (r *Runner) SetProgressChannel(ch chan<- ProgressUpdate) {
	r.progress = ch
}

// OnKey registers fn to be called with every generated keypair.
func (r *Runner) OnKey(fn func(*rsa.Keypair)) {
	r.onKey = fn
}

func (r *Runner) Config() Config {
	return r.config
}

// Run generates Iterations keypairs on each of Parallel workers. Exhausted
// prime searches are counted; any other failure aborts the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	cfg := r.config
	total := cfg.Iterations * cfg.Parallel

	result := Result{
		Iterations: cfg.Iterations,
		Parallel:   cfg.Parallel,
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Generating %d keypairs on %d workers\n", total, cfg.Parallel)
	}

	var progress *progressbar.ProgressBar
	if cfg.ShowProgress {
		progress = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("[keygen]"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}

	initialCPU, _ := cpu.Percent(100*time.Millisecond, false)
	initialMem, _ := mem.VirtualMemory()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
	defer cancel()

	gen := rsa.NewGenerator(r.source, nil)

	var (
		mu      sync.Mutex
		timings []time.Duration
		moduli  = make(map[uint32]struct{})
		done    int
		fatal   error
	)

	startTime := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < cfg.Iterations; j++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				iterStart := time.Now()
				kp, err := gen.Generate()
				elapsed := time.Since(iterStart)

				mu.Lock()
				switch {
				case err == nil:
					timings = append(timings, elapsed)
					moduli[kp.Modulus] = struct{}{}
				case errors.Is(err, prime.ErrExhausted):
					result.Exhausted++
				default:
					result.Errors++
					if fatal == nil {
						fatal = err
					}
				}
				done++
				current := done
				mu.Unlock()

				if err == nil && r.onKey != nil {
					r.onKey(kp)
				}
				if progress != nil {
					progress.Add(1)
				}
				r.report(current, total, startTime)

				if err != nil && !errors.Is(err, prime.ErrExhausted) {
					cancel()
					return
				}
			}
		}()
	}

	wg.Wait()

	result.TotalTime = time.Since(startTime)
	result.CompletedAt = time.Now()
	result.Generated = len(timings)
	result.UniqueModuli = len(moduli)
	result.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)

	if len(timings) > 0 {
		result.AverageTime = calculateAverage(timings)
		result.MinTime = calculateMin(timings)
		result.MaxTime = calculateMax(timings)
		result.StdDev = calculateStdDev(timings, result.AverageTime)
		result.KeysPerSecond = float64(len(timings)) / result.TotalTime.Seconds()
	}

	finalCPU, _ := cpu.Percent(100*time.Millisecond, false)
	finalMem, _ := mem.VirtualMemory()

	if len(initialCPU) > 0 && len(finalCPU) > 0 {
		result.CPUUsage = finalCPU[0] - initialCPU[0]
	}

	if initialMem != nil && finalMem != nil && finalMem.Used > initialMem.Used {
		result.MemoryUsed = finalMem.Used - initialMem.Used
	}

	runtime.GC()

	if fatal != nil {
		return result, fmt.Errorf("benchmark aborted: %w", fatal)
	}
	return result, nil
}

func (r *Runner) report(current, total int, start time.Time) {
	if r.progress == nil {
		return
	}

	update := ProgressUpdate{
		Current:    current,
		Total:      total,
		Percentage: float64(current) / float64(total) * 100,
	}
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		update.Rate = float64(current) / elapsed
	}

	select {
	case r.progress <- update:
	default:
	}
}

func calculateAverage(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	var sum time.Duration
	for _, t := range timings {
		sum += t
	}
	return sum / time.Duration(len(timings))
}

func calculateMin(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	min := timings[0]
	for _, t := range timings[1:] {
		if t < min {
			min = t
		}
	}
	return min
}

func calculateMax(timings []time.Duration) time.Duration {
	if len(timings) == 0 {
		return 0
	}

	max := timings[0]
	for _, t := range timings[1:] {
		if t > max {
			max = t
		}
	}
	return max
}

func calculateStdDev(timings []time.Duration, avg time.Duration) time.Duration {
	if len(timings) <= 1 {
		return 0
	}

	var sum float64
	avgFloat := float64(avg)

	for _, t := range timings {
		diff := float64(t) - avgFloat
		sum += diff * diff
	}

	variance := sum / float64(len(timings)-1)
	return time.Duration(math.Sqrt(variance))
}
