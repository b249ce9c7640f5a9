package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/toyrsa/internal/rsa"
)

// ErrNotFound indicates no key with the requested ID exists.
var ErrNotFound = errors.New("storage: key not found")

// Origin records which surface produced a key.
type Origin string

const (
	OriginCLI       Origin = "cli"
	OriginAPI       Origin = "api"
	OriginBenchmark Origin = "benchmark"
)

type StoredKey struct {
	ID          string      `json:"id"`
	Keypair     rsa.Keypair `json:"keypair"`
	Fingerprint string      `json:"fingerprint"`
	Origin      Origin      `json:"origin"`
	BenchmarkID string      `json:"benchmark_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewStoredKey validates kp and wraps it with a fresh ID.
func NewStoredKey(kp *rsa.Keypair, origin Origin, benchmarkID string) (*StoredKey, error) {
	if err := kp.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to store key: %w", err)
	}

	return &StoredKey{
		ID:          uuid.New().String(),
		Keypair:     *kp,
		Fingerprint: Fingerprint(kp),
		Origin:      origin,
		BenchmarkID: benchmarkID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Fingerprint returns a short SHA-256 digest of the public half of kp.
func Fingerprint(kp *rsa.Keypair) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", kp.Public, kp.Modulus)))
	return hex.EncodeToString(sum[:8])
}

// KeyStore holds keys in memory.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]*StoredKey
}

func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string]*StoredKey),
	}
}

func (ks *KeyStore) Store(kp *rsa.Keypair, origin Origin, benchmarkID string) (*StoredKey, error) {
	key, err := NewStoredKey(kp, origin, benchmarkID)
	if err != nil {
		return nil, err
	}

	ks.mu.Lock()
	ks.keys[key.ID] = key
	ks.mu.Unlock()

	return key, nil
}

// Put inserts an existing key, such as one loaded from a FileStore.
func (ks *KeyStore) Put(key *StoredKey) error {
	if err := key.Keypair.Validate(); err != nil {
		return fmt.Errorf("refusing to store key %s: %w", key.ID, err)
	}

	ks.mu.Lock()
	ks.keys[key.ID] = key
	ks.mu.Unlock()
	return nil
}

func (ks *KeyStore) GetKey(id string) (*StoredKey, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	key, exists := ks.keys[id]
	return key, exists
}

func (ks *KeyStore) GetKeysByBenchmark(benchmarkID string) []*StoredKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	var keys []*StoredKey
	for _, key := range ks.keys {
		if key.BenchmarkID == benchmarkID {
			keys = append(keys, key)
		}
	}
	sortByCreation(keys)
	return keys
}

// DeleteKey removes id and reports whether it existed.
func (ks *KeyStore) DeleteKey(id string) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	_, exists := ks.keys[id]
	delete(ks.keys, id)
	return exists
}

func (ks *KeyStore) GetAllKeys() []*StoredKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	keys := make([]*StoredKey, 0, len(ks.keys))
	for _, key := range ks.keys {
		keys = append(keys, key)
	}
	sortByCreation(keys)
	return keys
}

func (ks *KeyStore) Count() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

func sortByCreation(keys []*StoredKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID < keys[j].ID
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
}
