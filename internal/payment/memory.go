package payment

import (
	"context"
	"math/big"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryStore is an in-memory payment store for tests and local runs
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]*types.PaymentRecord
	balances map[string]*big.Int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]*types.PaymentRecord),
		balances: make(map[string]*big.Int),
	}
}

func (s *MemoryStore) GetPayment(_ context.Context, recordID string) (*types.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.payments[recordID]
	if !ok {
		return nil, nil
	}
	copied := *record
	copied.Amount = new(big.Int).Set(record.Amount)
	return &copied, nil
}

func (s *MemoryStore) PutPayment(_ context.Context, record *types.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	copied.Amount = new(big.Int).Set(record.Amount)
	s.payments[record.RecordID] = &copied
	return nil
}

func (s *MemoryStore) GetBalance(_ context.Context, account string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, ok := s.balances[account]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (s *MemoryStore) SetBalance(_ context.Context, account string, balance *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[account] = new(big.Int).Set(balance)
	return nil
}
