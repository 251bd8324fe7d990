package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore keeps attempt records in process memory. State is per instance
// and lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]AttemptRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]AttemptRecord)}
}

func (s *MemoryStore) Get(_ context.Context, identifier string) (AttemptRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	return rec, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, identifier string, rec AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[identifier] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

// Len returns the number of tracked identifiers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
