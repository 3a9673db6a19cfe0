package memory

import (
	"context"
	"strconv"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store keeps documents in a map. It is the fake used by tests and the
// default backend for local runs.
type Store struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes map[string]int
}

func New() *Store {
	return &Store{docs: map[string][]byte{}, writes: map[string]int{}}
}

// NewFromDir seeds one document per <key>.json file found in dir. A missing
// directory yields an empty store.
func NewFromDir(dir string) *Store {
	s := New()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return s
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		s.docs[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return s
}

func (s *Store) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *Store) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), data...)
	s.writes[key]++
	return nil
}

// Writes reports how many times key has been saved.
func (s *Store) Writes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[key]
}

// Revision sums the save counters of keys.
func (s *Store) Revision(_ context.Context, keys ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range keys {
		n += s.writes[k]
	}
	return strconv.Itoa(n), nil
}
