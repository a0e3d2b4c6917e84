package session

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Keyring is the durable local key-value store backing the session. Every
// mutation is persisted atomically before it returns, so a read in the
// same tick always sees the write.
type Keyring struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

type persistedKeyringFile struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
	SavedAt int64             `json:"savedAt"`
}

// OpenKeyring loads the keyring at path, starting empty when the file is
// missing or unreadable. An empty path keeps the keyring memory-only.
func OpenKeyring(path string) *Keyring {
	k := &Keyring{path: path, values: make(map[string]string)}
	if path == "" {
		return k
	}
	if err := k.load(); err != nil {
		log.Printf("session keyring: load failed (%s): %v", path, err)
	}
	return k
}

func (k *Keyring) load() error {
	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedKeyringFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported keyring version")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for key, value := range file.Values {
		k.values[key] = value
	}
	return nil
}

func (k *Keyring) Get(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	value, ok := k.values[key]
	return value, ok
}

func (k *Keyring) Set(key, value string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.values[key] = value
	k.persistLocked()
}

func (k *Keyring) Delete(keys ...string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range keys {
		delete(k.values, key)
	}
	k.persistLocked()
}

// Clear removes every key. Logging out wipes the whole keyring, matching
// the "absence of either key means logged out" layout.
func (k *Keyring) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.values = make(map[string]string)
	k.persistLocked()
}

func (k *Keyring) persistLocked() {
	if k.path == "" {
		return
	}

	dir := filepath.Dir(k.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Printf("session keyring: mkdir failed (%s): %v", dir, err)
		return
	}

	file := persistedKeyringFile{Version: 1, Values: k.values, SavedAt: time.Now().UnixMilli()}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		log.Printf("session keyring: marshal failed: %v", err)
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(k.path)+".tmp-*")
	if err != nil {
		log.Printf("session keyring: create temp failed: %v", err)
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		log.Printf("session keyring: chmod temp failed: %v", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		log.Printf("session keyring: write temp failed: %v", err)
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		log.Printf("session keyring: sync temp failed: %v", err)
		return
	}
	if err := tmp.Close(); err != nil {
		log.Printf("session keyring: close temp failed: %v", err)
		return
	}
	if err := os.Rename(tmpName, k.path); err != nil {
		log.Printf("session keyring: rename failed: %v", err)
	}
}
