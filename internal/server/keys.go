package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/user/toyrsa/internal/cli"
	"github.com/user/toyrsa/internal/rsa"
	"github.com/user/toyrsa/internal/storage"
)

type createKeyRequest struct {
	Save bool `json:"save"`
}

// encryptRequest carries the message either as text or, for arbitrary
// bytes, as a list of values in [0, 255]. Bytes wins when both are set.
type encryptRequest struct {
	Key       uint32   `json:"key"`
	Modulus   uint32   `json:"modulus"`
	Plaintext string   `json:"plaintext"`
	Bytes     []uint32 `json:"bytes,omitempty"`
}

type encryptResponse struct {
	Ciphertext []uint32 `json:"ciphertext"`
}

type decryptRequest struct {
	Key        uint32   `json:"key"`
	Modulus    uint32   `json:"modulus"`
	Ciphertext []uint32 `json:"ciphertext"`
}

// decryptResponse carries the message as text and as raw values. The text
// form replaces invalid UTF-8 with U+FFFD.
type decryptResponse struct {
	Plaintext string   `json:"plaintext"`
	Bytes     []uint32 `json:"bytes"`
}

func messageBytes(req encryptRequest) ([]byte, error) {
	if req.Bytes == nil {
		return []byte(req.Plaintext), nil
	}
	message := make([]byte, len(req.Bytes))
	for i, v := range req.Bytes {
		if v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range: %d", cli.ErrInvalidInput, i, v)
		}
		message[i] = byte(v)
	}
	return message, nil
}

// decodeBody tolerates an empty body, leaving v at its zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Save && s.fileStore == nil {
		http.Error(w, "File storage is not enabled", http.StatusBadRequest)
		return
	}

	kp, err := rsa.GenerateKeypair(s.source)
	if err != nil {
		log.Printf("Key generation failed: %v", err)
		http.Error(w, "Key generation failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	key, err := s.keyStore.Store(kp, storage.OriginAPI, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Save {
		if err := s.fileStore.Save(key); err != nil {
			log.Printf("Failed to save key %s: %v", key.ID, err)
			http.Error(w, "Failed to save key", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	benchmarkID := r.URL.Query().Get("benchmark_id")

	var keys []*storage.StoredKey
	if benchmarkID != "" {
		keys = s.keyStore.GetKeysByBenchmark(benchmarkID)
	} else {
		keys = s.keyStore.GetAllKeys()
	}
	if keys == nil {
		keys = []*storage.StoredKey{}
	}

	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	key, exists := s.keyStore.GetKey(mux.Vars(r)["id"])
	if !exists {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	found := s.keyStore.DeleteKey(id)
	if s.fileStore != nil {
		err := s.fileStore.Delete(id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, storage.ErrNotFound):
			log.Printf("Failed to delete key file for %s: %v", id, err)
		}
	}

	if !found {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cli.ValidateModulus(req.Modulus); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := messageBytes(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, encryptResponse{
		Ciphertext: rsa.EncryptMessage(message, req.Key, req.Modulus),
	})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := cli.ValidateModulus(req.Modulus); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message := rsa.DecryptMessage(req.Ciphertext, req.Key, req.Modulus)
	values := make([]uint32, len(message))
	for i, b := range message {
		values[i] = uint32(b)
	}

	writeJSON(w, http.StatusOK, decryptResponse{
		Plaintext: string(message),
		Bytes:     values,
	})
}
