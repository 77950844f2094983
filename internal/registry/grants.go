package registry

import (
	"context"
	"sync"
)

type grantKey struct {
	recordID    string
	consumerDID string
}

// MemoryGrantStore is an in-memory grant store for tests and local runs
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[grantKey]bool
}

// NewMemoryGrantStore creates an empty in-memory grant store
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[grantKey]bool)}
}

func (s *MemoryGrantStore) IsGranted(_ context.Context, recordID, consumerDID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[grantKey{recordID, consumerDID}], nil
}

func (s *MemoryGrantStore) SetGrant(_ context.Context, recordID, consumerDID string, granted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantKey{recordID, consumerDID}] = granted
	return nil
}
