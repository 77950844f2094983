package catalog

import (
	"context"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryStore is an in-memory Store implementation
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*types.HealthRecord
}

// NewMemoryStore creates an empty in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*types.HealthRecord)}
}

// Get returns the record, or nil if absent
func (s *MemoryStore) Get(_ context.Context, recordID string) (*types.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, nil
	}

	cp := *record
	cp.Signature = append([]byte(nil), record.Signature...)
	return &cp, nil
}

// Put inserts or replaces a record
func (s *MemoryStore) Put(_ context.Context, record *types.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	cp.Signature = append([]byte(nil), record.Signature...)
	s.records[record.RecordID] = &cp
	return nil
}

// DeleteByProducer removes all records owned by the producer and
// returns the number removed.
func (s *MemoryStore) DeleteByProducer(_ context.Context, producer string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, record := range s.records {
		if record.Producer == producer {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored records
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}
