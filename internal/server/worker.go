package server

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/user/toyrsa/internal/benchmark"
	"github.com/user/toyrsa/internal/random"
	"github.com/user/toyrsa/internal/storage"
)

const (
	StatusQueued     = "queued"
	StatusRunning    = "running"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusTerminated = "terminated"
)

type BenchmarkJob struct {
	ID          string            `json:"id"`
	Config      benchmark.Config  `json:"config"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *benchmark.Result `json:"result,omitempty"`
	KeyIDs      []string          `json:"key_ids,omitempty"`
	Error       string            `json:"error,omitempty"`

	progress *progressHub
}

func (j *BenchmarkJob) finished() bool {
	return j.CompletedAt != nil
}

// JobStore tracks benchmark jobs. Readers get copies, never the stored job.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*BenchmarkJob
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*BenchmarkJob),
	}
}

func (js *JobStore) Add(job *BenchmarkJob) {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[job.ID] = job
}

func (js *JobStore) Get(jobID string) (BenchmarkJob, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return BenchmarkJob{}, false
	}
	return *job, true
}

// List returns every job, oldest first.
func (js *JobStore) List() []BenchmarkJob {
	js.mu.RLock()
	jobs := make([]BenchmarkJob, 0, len(js.jobs))
	for _, job := range js.jobs {
		jobs = append(jobs, *job)
	}
	js.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// Subscribe attaches a progress viewer to a job. Every viewer receives every
// update; the returned function detaches it.
func (js *JobStore) Subscribe(jobID string) (<-chan benchmark.ProgressUpdate, func(), bool) {
	js.mu.RLock()
	job, exists := js.jobs[jobID]
	js.mu.RUnlock()

	if !exists {
		return nil, nil, false
	}
	if job.progress == nil {
		return nil, func() {}, true
	}
	updates, unsubscribe := job.progress.subscribe()
	return updates, unsubscribe, true
}

// markRunning moves a queued job to running. It fails for a job terminated
// while still queued.
func (js *JobStore) markRunning(jobID string) bool {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists || job.Status == StatusTerminated {
		return false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	return true
}

// Terminate marks an unfinished job terminated and reports whether it did.
func (js *JobStore) Terminate(jobID string) bool {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists || job.finished() {
		return false
	}
	job.Status = StatusTerminated
	job.UpdatedAt = time.Now()
	return true
}

// CompleteJob records the outcome. A terminated job keeps its status and
// any partial result.
func (js *JobStore) CompleteJob(jobID string, result *benchmark.Result, keyIDs []string, err error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt
	job.UpdatedAt = completedAt
	job.Result = result
	job.KeyIDs = keyIDs

	if err != nil {
		job.Error = err.Error()
	}

	switch {
	case job.Status == StatusTerminated:
	case err != nil:
		job.Status = StatusFailed
	default:
		job.Status = StatusCompleted
	}
}

type WorkerPool struct {
	workers    int
	jobQueue   chan *BenchmarkJob
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	jobStore   *JobStore
	keyStore   *storage.KeyStore
	source     *random.Source
	activeJobs map[string]context.CancelFunc
	stopped    bool
	mu         sync.Mutex
}

func NewWorkerPool(numWorkers int, jobStore *JobStore, keyStore *storage.KeyStore, source *random.Source) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers:    numWorkers,
		jobQueue:   make(chan *BenchmarkJob, numWorkers*2),
		ctx:        ctx,
		cancel:     cancel,
		jobStore:   jobStore,
		keyStore:   keyStore,
		source:     source,
		activeJobs: make(map[string]context.CancelFunc),
	}
}

func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) Stop() {
	log.Println("Stopping worker pool...")

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	wp.cancel()
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	log.Println("Worker pool stopped")
}

func (wp *WorkerPool) Submit(job *BenchmarkJob) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return fmt.Errorf("worker pool is shutting down")
	}

	select {
	case wp.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full")
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			log.Printf("Worker %d processing job %s", id, job.ID)
			wp.processJob(job)

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) TerminateJob(jobID string) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if cancel, exists := wp.activeJobs[jobID]; exists {
		cancel()
		delete(wp.activeJobs, jobID)
	}
}

func (wp *WorkerPool) processJob(job *BenchmarkJob) {
	var updates chan benchmark.ProgressUpdate
	if job.progress != nil {
		updates = make(chan benchmark.ProgressUpdate, progressBuffer)
		pumped := make(chan struct{})
		go func() {
			job.progress.pump(updates)
			close(pumped)
		}()
		defer func() {
			close(updates)
			<-pumped
		}()
	}

	jobCtx, jobCancel := context.WithCancel(wp.ctx)

	wp.mu.Lock()
	wp.activeJobs[job.ID] = jobCancel
	wp.mu.Unlock()

	defer func() {
		wp.mu.Lock()
		delete(wp.activeJobs, job.ID)
		wp.mu.Unlock()
		jobCancel()
	}()

	if !wp.jobStore.markRunning(job.ID) {
		wp.jobStore.CompleteJob(job.ID, nil, nil, nil)
		return
	}

	var source *random.Source
	if job.Config.Seed == "" {
		source = wp.source
	}

	runner := benchmark.NewRunner(job.Config, source)
	if updates != nil {
		runner.SetProgressChannel(updates)
	}
	rec := benchmark.NewRecorder(runner, wp.keyStore, job.ID)

	result, err := rec.Run(jobCtx)
	wp.jobStore.CompleteJob(job.ID, &result, rec.KeyIDs(), err)

	if err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
	} else {
		log.Printf("Job %s completed: %d keys in %s", job.ID, result.Generated, result.TotalTime)
	}
}
