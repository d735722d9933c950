package identity

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/tinyland-inc/wahook/pkg/logger"
)

// Store is the persistent alias → canonical address mapping. Entries are
// first-write-wins: a recorded mapping is never displaced by a later,
// possibly transient resolution. Every successful Put rewrites the backing
// JSON file; a flush failure keeps the in-memory mapping authoritative for
// the process lifetime.
type Store struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		entries: make(map[string]string),
	}
}

// Load reads the mapping file. A missing file is an empty mapping; a file
// that exists but does not parse is an error so a corrupt cache is caught
// at startup instead of silently discarded.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

func (s *Store) Get(alias string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.entries[alias]
	return addr, ok
}

// Put records alias → address and flushes to disk. Returns false when the
// alias is already mapped (the existing entry wins, even if different).
func (s *Store) Put(alias, address string) bool {
	if alias == "" || address == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[alias]; ok {
		return false
	}
	s.entries[alias] = address

	if err := s.persistLocked(); err != nil {
		logger.WarnCF("identity", "Failed to persist identity cache", map[string]any{
			"path":  s.path,
			"error": err.Error(),
		})
	}
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	maps.Copy(out, s.entries)
	return out
}

// Reset clears the mapping and removes the backing file. Used for the
// optional hard reset on session logout.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]string)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
