package cache

import (
	"context"
	"sync"

	"github.com/magnifycash/backend/internal/domain/lending"
)

// MemoryStore keeps snapshots in process memory. Entries live until deleted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*lending.ContractData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*lending.ContractData{}}
}

func (s *MemoryStore) Get(_ context.Context, wallet string) (*lending.ContractData, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[wallet]
	return data, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, wallet string, data *lending.ContractData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[wallet] = data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, wallet)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]*lending.ContractData{}
	return nil
}
