package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/user/toyrsa/internal/benchmark"
	"github.com/user/toyrsa/internal/random"
	"github.com/user/toyrsa/internal/storage"
	"github.com/user/toyrsa/pkg/sysinfo"
)

type Config struct {
	Port    string
	Workers int
	// StoreDir enables file persistence of keys created with "save"; keys
	// already in it are loaded on startup.
	StoreDir string
	// Source backs key generation and every benchmark without a seed; nil
	// selects the system entropy pool.
	Source *random.Source
}

type Server struct {
	router     *mux.Router
	keyStore   *storage.KeyStore
	fileStore  *storage.FileStore
	jobStore   *JobStore
	workerPool *WorkerPool
	sysInfo    *sysinfo.SystemInfo
	source     *random.Source
	upgrader   websocket.Upgrader
	port       string
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Source == nil {
		cfg.Source = random.System()
	}

	sysInfo, err := sysinfo.Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to collect system info: %w", err)
	}

	keyStore := storage.NewKeyStore()

	var fileStore *storage.FileStore
	if cfg.StoreDir != "" {
		fileStore, err = storage.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create file storage: %w", err)
		}
		saved, err := fileStore.List()
		if err != nil {
			return nil, err
		}
		for _, key := range saved {
			if err := keyStore.Put(key); err != nil {
				log.Printf("Skipping stored key: %v", err)
			}
		}
	}

	jobStore := NewJobStore()

	s := &Server{
		router:    mux.NewRouter(),
		keyStore:  keyStore,
		fileStore: fileStore,
		jobStore:  jobStore,
		sysInfo:   sysInfo,
		source:    cfg.Source,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		port: cfg.Port,
	}

	s.workerPool = NewWorkerPool(cfg.Workers, jobStore, keyStore, cfg.Source)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/system-info", s.handleSystemInfo).Methods("GET")

	api.HandleFunc("/keys", s.handleCreateKey).Methods("POST")
	api.HandleFunc("/keys", s.handleListKeys).Methods("GET")
	api.HandleFunc("/keys/{id}", s.handleGetKey).Methods("GET")
	api.HandleFunc("/keys/{id}", s.handleDeleteKey).Methods("DELETE")

	api.HandleFunc("/encrypt", s.handleEncrypt).Methods("POST")
	api.HandleFunc("/decrypt", s.handleDecrypt).Methods("POST")

	api.HandleFunc("/benchmarks", s.handleCreateBenchmark).Methods("POST")
	api.HandleFunc("/benchmarks", s.handleListBenchmarks).Methods("GET")
	api.HandleFunc("/benchmarks/{id}", s.handleGetBenchmark).Methods("GET")
	api.HandleFunc("/benchmarks/{id}/progress", s.handleBenchmarkProgress).Methods("GET")
	api.HandleFunc("/benchmarks/{id}/terminate", s.handleTerminateBenchmark).Methods("POST")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// stops the worker pool.
func (s *Server) Start(ctx context.Context) error {
	s.workerPool.Start()
	defer s.workerPool.Stop()

	httpServer := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("toyrsa API listening on http://localhost:%s", s.port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Println("Shutting down API server...")
	return httpServer.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := *s.sysInfo
	info.EntropyBits = sysinfo.EntropyAvailable()
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreateBenchmark(w http.ResponseWriter, r *http.Request) {
	var config benchmark.Config
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// the progress bar belongs to the terminal, not the API
	config.ShowProgress = false

	log.Printf("Creating benchmark job - Iterations: %d, Parallel: %d", config.Iterations, config.Parallel)

	now := time.Now()
	job := &BenchmarkJob{
		ID:        uuid.New().String(),
		Config:    config,
		Status:    StatusQueued,
		StartedAt: now,
		UpdatedAt: now,
		progress:  newProgressHub(),
	}
	s.jobStore.Add(job)

	if err := s.workerPool.Submit(job); err != nil {
		s.jobStore.CompleteJob(job.ID, nil, nil, err)
		http.Error(w, "Server is busy, please try again later", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": StatusQueued,
	})
}

func (s *Server) handleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobStore.List())
}

func (s *Server) handleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobStore.Get(mux.Vars(r)["id"])
	if !exists {
		http.Error(w, "Benchmark not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleTerminateBenchmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.jobStore.Terminate(id) {
		http.Error(w, "Benchmark not found or already finished", http.StatusNotFound)
		return
	}
	s.workerPool.TerminateJob(id)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  StatusTerminated,
		"message": "Benchmark termination initiated",
	})
}

func (s *Server) handleBenchmarkProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	progress, unsubscribe, exists := s.jobStore.Subscribe(id)
	if !exists {
		http.Error(w, "Benchmark not found", http.StatusNotFound)
		return
	}
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-progress:
			if !ok {
				// drained; the ticker reports the final status
				progress = nil
				continue
			}
			err := conn.WriteJSON(map[string]any{
				"status":     StatusRunning,
				"completed":  false,
				"current":    update.Current,
				"total":      update.Total,
				"percentage": update.Percentage,
				"rate":       update.Rate,
			})
			if err != nil {
				return
			}

		case <-ticker.C:
			job, exists := s.jobStore.Get(id)
			if !exists {
				return
			}
			if job.finished() {
				conn.WriteJSON(map[string]any{
					"status":    job.Status,
					"completed": true,
					"result":    job.Result,
					"error":     job.Error,
				})
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}
