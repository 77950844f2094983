package didauth

import (
	"context"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryStore is an in-memory Store implementation used in tests and
// single-process deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]*types.DidDocument
	byAddress map[string]string
	roles     map[string]map[types.Role]bool
}

// NewMemoryStore creates an empty in-memory DID store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]*types.DidDocument),
		byAddress: make(map[string]string),
		roles:     make(map[string]map[types.Role]bool),
	}
}

// GetDocument returns the document for a DID, or nil if absent
func (s *MemoryStore) GetDocument(_ context.Context, did string) (*types.DidDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[did]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

// GetDocumentByAddress returns the document bound to an address, or nil
func (s *MemoryStore) GetDocumentByAddress(_ context.Context, address string) (*types.DidDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	did, ok := s.byAddress[address]
	if !ok {
		return nil, nil
	}
	doc, ok := s.documents[did]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

// PutDocument inserts or replaces a DID document
func (s *MemoryStore) PutDocument(_ context.Context, doc *types.DidDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	s.documents[doc.DID] = &cp
	s.byAddress[doc.Subject] = doc.DID
	return nil
}

// HasRole reports whether the DID holds the role
func (s *MemoryStore) HasRole(_ context.Context, did string, role types.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.roles[did][role], nil
}

// GrantRole adds a role to a DID
func (s *MemoryStore) GrantRole(_ context.Context, did string, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roles[did] == nil {
		s.roles[did] = make(map[types.Role]bool)
	}
	s.roles[did][role] = true
	return nil
}

// RevokeRole removes a role from a DID
func (s *MemoryStore) RevokeRole(_ context.Context, did string, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roles[did], role)
	return nil
}

// RemoveBinding removes the address→DID reverse mapping
func (s *MemoryStore) RemoveBinding(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byAddress, address)
	return nil
}
