package consent

import (
	"context"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryStore is an in-memory Store implementation
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.ProducerRecord
}

// NewMemoryStore creates an empty in-memory producer store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.ProducerRecord)}
}

// Get returns the producer record, or nil if absent
func (s *MemoryStore) Get(_ context.Context, producer string) (*types.ProducerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[producer]
	if !ok {
		return nil, nil
	}

	cp := *record
	cp.RecordIDs = append([]string(nil), record.RecordIDs...)
	return &cp, nil
}

// Put inserts or replaces a producer record
func (s *MemoryStore) Put(_ context.Context, record *types.ProducerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	cp.RecordIDs = append([]string(nil), record.RecordIDs...)
	s.records[record.Producer] = &cp
	return nil
}

// Remove deletes a producer record
func (s *MemoryStore) Remove(_ context.Context, producer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, producer)
	return nil
}
