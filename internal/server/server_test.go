package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/toyrsa/internal/benchmark"
	"github.com/user/toyrsa/internal/random"
	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

func newTestServer(t *testing.T, storeDir string) *Server {
	t.Helper()

	srv, err := NewServer(Config{
		Port:     "0",
		Workers:  1,
		StoreDir: storeDir,
		Source:   random.Seeded([]byte(t.Name())),
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	srv.workerPool.Start()
	t.Cleanup(srv.workerPool.Stop)
	return srv
}

func do(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func waitForJob(t *testing.T, srv *Server, jobID string) BenchmarkJob {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		w := do(srv, "GET", "/api/v1/benchmarks/"+jobID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var job BenchmarkJob
		json.NewDecoder(w.Body).Decode(&job)
		if job.CompletedAt != nil {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", jobID)
	return BenchmarkJob{}
}

func createBenchmark(t *testing.T, srv *Server, config benchmark.Config) string {
	t.Helper()

	w := do(srv, "POST", "/api/v1/benchmarks", config)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]string
	json.NewDecoder(w.Body).Decode(&response)

	jobID, ok := response["job_id"]
	if !ok {
		t.Fatal("No job_id in response")
	}
	return jobID
}

func TestSystemInfo(t *testing.T) {
	srv := newTestServer(t, "")

	w := do(srv, "GET", "/api/v1/system-info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var info map[string]any
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if info["os"] == "" {
		t.Error("Missing os in system info")
	}
	if _, ok := info["entropy_bits"]; !ok {
		t.Error("Missing entropy_bits in system info")
	}
}

func TestKeyLifecycle(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, dir)

	w := do(srv, "POST", "/api/v1/keys", map[string]bool{"save": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var key storage.StoredKey
	json.NewDecoder(w.Body).Decode(&key)
	if err := key.Keypair.Validate(); err != nil {
		t.Errorf("Server returned invalid keypair: %v", err)
	}
	if key.Origin != storage.OriginAPI {
		t.Errorf("Expected origin api, got %s", key.Origin)
	}
	if _, err := os.Stat(filepath.Join(dir, key.ID+".json")); err != nil {
		t.Errorf("Saved key file missing: %v", err)
	}

	w = do(srv, "GET", "/api/v1/keys", nil)
	var keys []storage.StoredKey
	json.NewDecoder(w.Body).Decode(&keys)
	if len(keys) != 1 || keys[0].ID != key.ID {
		t.Errorf("Expected the created key in the listing, got %v", keys)
	}

	w = do(srv, "GET", "/api/v1/keys/"+key.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = do(srv, "DELETE", "/api/v1/keys/"+key.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(dir, key.ID+".json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Key file survived deletion: %v", err)
	}

	w = do(srv, "GET", "/api/v1/keys/"+key.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	w = do(srv, "DELETE", "/api/v1/keys/"+key.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateKeyWithoutBody(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("POST", "/api/v1/keys", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSaveWithoutFileStorage(t *testing.T) {
	srv := newTestServer(t, "")

	w := do(srv, "POST", "/api/v1/keys", map[string]bool{"save": true})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
	if srv.keyStore.Count() != 0 {
		t.Errorf("Expected no keys, got %d", srv.keyStore.Count())
	}
}

func TestStoredKeysLoadedOnStartup(t *testing.T) {
	dir := t.TempDir()

	fileStore, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	key, err := storage.NewStoredKey(&rsa.Keypair{Public: 7, Private: 14263, Modulus: 25283, P: 131, Q: 193}, storage.OriginCLI, "")
	if err != nil {
		t.Fatalf("Failed to build key: %v", err)
	}
	if err := fileStore.Save(key); err != nil {
		t.Fatalf("Failed to save key: %v", err)
	}

	srv := newTestServer(t, dir)

	w := do(srv, "GET", "/api/v1/keys/"+key.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	srv := newTestServer(t, "")

	w := do(srv, "POST", "/api/v1/encrypt", map[string]any{
		"key":       7,
		"modulus":   25283,
		"plaintext": "Hi!",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var enc encryptResponse
	json.NewDecoder(w.Body).Decode(&enc)

	want := rsa.EncryptMessage([]byte("Hi!"), 7, 25283)
	if len(enc.Ciphertext) != len(want) {
		t.Fatalf("Expected %d units, got %d", len(want), len(enc.Ciphertext))
	}
	for i := range want {
		if enc.Ciphertext[i] != want[i] {
			t.Errorf("Unit %d: expected %d, got %d", i, want[i], enc.Ciphertext[i])
		}
	}

	w = do(srv, "POST", "/api/v1/decrypt", map[string]any{
		"key":        14263,
		"modulus":    25283,
		"ciphertext": enc.Ciphertext,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var dec decryptResponse
	json.NewDecoder(w.Body).Decode(&dec)
	if dec.Plaintext != "Hi!" {
		t.Errorf("Expected Hi!, got %q", dec.Plaintext)
	}
	if len(dec.Bytes) != 3 || dec.Bytes[0] != 'H' {
		t.Errorf("Expected bytes of Hi!, got %v", dec.Bytes)
	}
}

func TestDecryptNonUTF8Bytes(t *testing.T) {
	srv := newTestServer(t, "")

	w := do(srv, "POST", "/api/v1/encrypt", map[string]any{
		"key":     7,
		"modulus": 25283,
		"bytes":   []int{0xc8, 0xff},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var enc encryptResponse
	json.NewDecoder(w.Body).Decode(&enc)

	want := rsa.EncryptMessage([]byte{0xc8, 0xff}, 7, 25283)
	if len(enc.Ciphertext) != len(want) || enc.Ciphertext[0] != want[0] || enc.Ciphertext[1] != want[1] {
		t.Fatalf("Expected ciphertext %v, got %v", want, enc.Ciphertext)
	}

	w = do(srv, "POST", "/api/v1/decrypt", map[string]any{
		"key":        14263,
		"modulus":    25283,
		"ciphertext": enc.Ciphertext,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var dec decryptResponse
	json.NewDecoder(w.Body).Decode(&dec)
	if len(dec.Bytes) != 2 || dec.Bytes[0] != 0xc8 || dec.Bytes[1] != 0xff {
		t.Errorf("Expected bytes [200 255], got %v", dec.Bytes)
	}
}

func TestCipherRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		path string
		body any
	}{
		{"/api/v1/encrypt", map[string]any{"key": 7, "modulus": 0, "plaintext": "x"}},
		{"/api/v1/decrypt", map[string]any{"key": 7, "modulus": 0, "ciphertext": []int{1}}},
		{"/api/v1/encrypt", map[string]any{"key": -1, "modulus": 25283, "plaintext": "x"}},
		{"/api/v1/decrypt", map[string]any{"key": 7, "modulus": 1 << 33, "ciphertext": []int{1}}},
		{"/api/v1/decrypt", map[string]any{"key": 7, "modulus": 25283, "ciphertext": "12 34"}},
		{"/api/v1/encrypt", map[string]any{"key": 7, "modulus": 25283, "bytes": []int{65, 256}}},
	}

	for _, test := range tests {
		w := do(srv, "POST", test.path, test.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %v: expected status 400, got %d", test.path, test.body, w.Code)
		}
	}
}

func TestServerBenchmarkFlow(t *testing.T) {
	srv := newTestServer(t, "")

	jobID := createBenchmark(t, srv, benchmark.Config{
		Iterations:   5,
		Parallel:     1,
		ShowProgress: true,
		Timeout:      30,
		Seed:         "server benchmark",
	})

	job := waitForJob(t, srv, jobID)
	if job.Status != StatusCompleted {
		t.Fatalf("Expected status 'completed', got '%s' (%s)", job.Status, job.Error)
	}
	if job.Config.ShowProgress {
		t.Error("Server jobs must not draw a progress bar")
	}
	if job.Result == nil {
		t.Fatal("Completed job has no result")
	}
	if job.Result.Generated+job.Result.Exhausted != 5 {
		t.Errorf("Expected 5 attempts, got %+v", job.Result)
	}
	if len(job.KeyIDs) != job.Result.Generated {
		t.Errorf("Expected %d key IDs, got %d", job.Result.Generated, len(job.KeyIDs))
	}

	w := do(srv, "GET", "/api/v1/keys?benchmark_id="+jobID, nil)
	var keys []storage.StoredKey
	json.NewDecoder(w.Body).Decode(&keys)
	if len(keys) != job.Result.Generated {
		t.Errorf("Expected %d keys, got %d", job.Result.Generated, len(keys))
	}

	w = do(srv, "GET", "/api/v1/benchmarks", nil)
	var jobs []BenchmarkJob
	json.NewDecoder(w.Body).Decode(&jobs)
	if len(jobs) != 1 || jobs[0].ID != jobID {
		t.Errorf("Expected the job in the listing, got %v", jobs)
	}

	w = do(srv, "POST", "/api/v1/benchmarks/"+jobID+"/terminate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 terminating a finished job, got %d", w.Code)
	}
}

func TestBenchmarkProgressWebSocket(t *testing.T) {
	srv := newTestServer(t, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	jobID := createBenchmark(t, srv, benchmark.Config{
		Iterations: 5,
		Parallel:   1,
		Seed:       "websocket",
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/benchmarks/" + jobID + "/progress"

	// every viewer sees the job through to its final message
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Failed to dial viewer %d: %v", i, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(20 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("Viewer %d failed to read progress: %v", i, err)
			}
			if msg["completed"] == true {
				if msg["status"] != StatusCompleted {
					t.Errorf("Viewer %d: expected final status completed, got %v", i, msg["status"])
				}
				break
			}
			if msg["total"] != float64(5) {
				t.Errorf("Viewer %d: expected total 5, got %v", i, msg["total"])
			}
		}
	}
}

func TestProgressHubFansOut(t *testing.T) {
	hub := newProgressHub()
	first, _ := hub.subscribe()
	second, _ := hub.subscribe()

	in := make(chan benchmark.ProgressUpdate, 3)
	for i := 1; i <= 3; i++ {
		in <- benchmark.ProgressUpdate{Current: i, Total: 3}
	}
	close(in)
	hub.pump(in)

	for name, updates := range map[string]<-chan benchmark.ProgressUpdate{"first": first, "second": second} {
		var got []int
		for update := range updates {
			got = append(got, update.Current)
		}
		if len(got) != 3 || got[0] != 1 || got[2] != 3 {
			t.Errorf("%s subscriber: expected updates 1..3, got %v", name, got)
		}
	}
}

func TestProgressHubUnsubscribe(t *testing.T) {
	hub := newProgressHub()
	updates, unsubscribe := hub.subscribe()
	unsubscribe()
	unsubscribe()

	hub.publish(benchmark.ProgressUpdate{Current: 1})
	if _, ok := <-updates; ok {
		t.Error("Expected a detached subscriber to be closed")
	}

	hub.close()
	late, _ := hub.subscribe()
	if _, ok := <-late; ok {
		t.Error("Expected a subscriber to a finished job to be closed")
	}
}

func TestBenchmarkNotFound(t *testing.T) {
	srv := newTestServer(t, "")

	for _, req := range []struct{ method, path string }{
		{"GET", "/api/v1/benchmarks/missing"},
		{"POST", "/api/v1/benchmarks/missing/terminate"},
		{"GET", "/api/v1/benchmarks/missing/progress"},
	} {
		w := do(srv, req.method, req.path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected status 404, got %d", req.method, req.path, w.Code)
		}
	}
}

func TestCreateBenchmarkRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest("POST", "/api/v1/benchmarks", strings.NewReader("{"))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestJobStoreKeepsTermination(t *testing.T) {
	js := NewJobStore()
	js.Add(&BenchmarkJob{ID: "job", Status: StatusQueued, StartedAt: time.Now()})

	if !js.Terminate("job") {
		t.Fatal("Terminate failed on a queued job")
	}
	if js.markRunning("job") {
		t.Error("A terminated job must not start")
	}

	js.CompleteJob("job", &benchmark.Result{Generated: 3}, []string{"a", "b", "c"}, nil)

	job, _ := js.Get("job")
	if job.Status != StatusTerminated {
		t.Errorf("Expected status terminated, got %s", job.Status)
	}
	if job.Result == nil || job.Result.Generated != 3 {
		t.Errorf("Expected partial result to be kept, got %+v", job.Result)
	}
	if js.Terminate("job") {
		t.Error("Terminate succeeded on a finished job")
	}
}

func TestJobStoreFailure(t *testing.T) {
	js := NewJobStore()
	js.Add(&BenchmarkJob{ID: "job", Status: StatusQueued})
	js.markRunning("job")

	js.CompleteJob("job", nil, nil, errors.New("boom"))

	job, _ := js.Get("job")
	if job.Status != StatusFailed || job.Error != "boom" {
		t.Errorf("Expected failed job with error, got %s %q", job.Status, job.Error)
	}
}

func TestWorkerPoolRejectsAfterStop(t *testing.T) {
	pool := NewWorkerPool(1, NewJobStore(), storage.NewKeyStore(), random.Seeded([]byte("stop")))
	pool.Start()
	pool.Stop()
	pool.Stop()

	if err := pool.Submit(&BenchmarkJob{ID: "late"}); err == nil {
		t.Error("Expected Submit to fail after Stop")
	}
}
