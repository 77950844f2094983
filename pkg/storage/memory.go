package storage

import (
	"context"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryStore is an in-memory ContentStore used in tests and for
// single-process deployments without a durable blob store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory content store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores the content and returns its CID
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	cid, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[cid] = cp
	s.mu.Unlock()

	return cid, nil
}

// Get resolves a CID to its content bytes
func (s *MemoryStore) Get(_ context.Context, cid string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[cid]
	s.mu.RUnlock()

	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound, "content not found: "+cid)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Has reports whether the store holds content for the given CID
func (s *MemoryStore) Has(_ context.Context, cid string) (bool, error) {
	s.mu.RLock()
	_, ok := s.blobs[cid]
	s.mu.RUnlock()
	return ok, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
