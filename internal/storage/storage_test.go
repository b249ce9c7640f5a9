package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/toyrsa/internal/rsa"
)

var testKeypair = rsa.Keypair{Public: 7, Private: 14263, Modulus: 25283, P: 131, Q: 193}

func TestKeyStore(t *testing.T) {
	ks := NewKeyStore()
	kp := testKeypair

	stored, err := ks.Store(&kp, OriginAPI, "bench-1")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("Stored key has no ID")
	}
	if stored.Fingerprint != Fingerprint(&kp) {
		t.Errorf("Fingerprint mismatch: %s", stored.Fingerprint)
	}

	got, ok := ks.GetKey(stored.ID)
	if !ok || got.Keypair != testKeypair {
		t.Errorf("GetKey returned %v, %v", got, ok)
	}

	if n := len(ks.GetKeysByBenchmark("bench-1")); n != 1 {
		t.Errorf("Expected 1 key for benchmark, got %d", n)
	}
	if n := len(ks.GetKeysByBenchmark("other")); n != 0 {
		t.Errorf("Expected 0 keys for other benchmark, got %d", n)
	}

	if !ks.DeleteKey(stored.ID) {
		t.Error("DeleteKey reported missing key")
	}
	if ks.DeleteKey(stored.ID) {
		t.Error("DeleteKey reported deleted key as present")
	}
	if ks.Count() != 0 {
		t.Errorf("Expected empty store, got %d keys", ks.Count())
	}
}

func TestKeyStoreRejectsInvalidKeypair(t *testing.T) {
	ks := NewKeyStore()
	kp := testKeypair
	kp.Private++

	if _, err := ks.Store(&kp, OriginCLI, ""); !errors.Is(err, rsa.ErrInvalidKeypair) {
		t.Errorf("Expected ErrInvalidKeypair, got %v", err)
	}
}

func TestKeyStorePut(t *testing.T) {
	ks := NewKeyStore()
	kp := testKeypair

	key, err := NewStoredKey(&kp, OriginCLI, "")
	if err != nil {
		t.Fatalf("NewStoredKey failed: %v", err)
	}
	if err := ks.Put(key); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if got, ok := ks.GetKey(key.ID); !ok || got != key {
		t.Errorf("GetKey returned %v, %v", got, ok)
	}

	bad := *key
	bad.ID = "bad"
	bad.Keypair.Modulus++
	if err := ks.Put(&bad); !errors.Is(err, rsa.ErrInvalidKeypair) {
		t.Errorf("Expected ErrInvalidKeypair, got %v", err)
	}
	if ks.Count() != 1 {
		t.Errorf("Expected 1 key, got %d", ks.Count())
	}
}

func TestKeyStoreOrdering(t *testing.T) {
	ks := NewKeyStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 3; i > 0; i-- {
		kp := testKeypair
		key, err := NewStoredKey(&kp, OriginCLI, "")
		if err != nil {
			t.Fatal(err)
		}
		key.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		ks.keys[key.ID] = key
	}

	keys := ks.GetAllKeys()
	for i := 1; i < len(keys); i++ {
		if keys[i].CreatedAt.Before(keys[i-1].CreatedAt) {
			t.Errorf("Keys not ordered by creation time at %d", i)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	kp := testKeypair
	key, err := NewStoredKey(&kp, OriginCLI, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.Save(key); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key.ID+".json")); err != nil {
		t.Errorf("Key file missing: %v", err)
	}

	loaded, err := fs.Load(key.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Keypair != testKeypair || loaded.Fingerprint != key.Fingerprint || loaded.Origin != OriginCLI {
		t.Errorf("Loaded key differs: %+v", loaded)
	}

	keys, err := fs.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 key, got %d", len(keys))
	}

	tmpEntries, _ := os.ReadDir(filepath.Join(dir, "tmp"))
	if len(tmpEntries) != 0 {
		t.Errorf("Temp directory not empty: %d entries", len(tmpEntries))
	}

	if err := fs.Delete(key.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := fs.Load(key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := fs.Delete(key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestFileStoreRejectsNonUUIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"", "../escape", "not-a-uuid", "/etc/passwd"} {
		if _, err := fs.Load(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}
