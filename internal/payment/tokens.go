package payment

import (
	"context"
	"math/big"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// MemoryToken is an in-process token bridge with ERC-20 style
// approve/transferFrom semantics. It backs tests and local runs; the
// registry itself is the only approved spender.
type MemoryToken struct {
	mu         sync.Mutex
	balances   map[string]*big.Int
	allowances map[string]*big.Int
	escrow     string
}

// NewMemoryToken creates a token bridge whose escrow account holds
// funds moved by TransferFrom and pays them out via Transfer.
func NewMemoryToken(escrow string) *MemoryToken {
	return &MemoryToken{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		escrow:     escrow,
	}
}

// Mint credits an account out of thin air. Test setup only.
func (t *MemoryToken) Mint(account string, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = new(big.Int).Add(t.balance(account), amount)
}

// Approve lets the registry spend up to amount of owner's balance
func (t *MemoryToken) Approve(owner string, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[owner] = new(big.Int).Set(amount)
}

// BalanceOf returns an account's token balance
func (t *MemoryToken) BalanceOf(account string) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.balance(account))
}

func (t *MemoryToken) TransferFrom(_ context.Context, from, to string, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowance(from)
	if allowance.Cmp(amount) < 0 {
		return types.NewPreconditionError(types.ErrCodeInsufficientAllowance, "payer has not approved the payment amount")
	}
	balance := t.balance(from)
	if balance.Cmp(amount) < 0 {
		return types.NewPreconditionError(types.ErrCodeInsufficientBalance, "payer balance is lower than the payment amount")
	}

	t.allowances[from] = new(big.Int).Sub(allowance, amount)
	t.balances[from] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *MemoryToken) Transfer(_ context.Context, to string, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	balance := t.balance(t.escrow)
	if balance.Cmp(amount) < 0 {
		return types.NewPreconditionError(types.ErrCodeInsufficientBalance, "escrow balance is lower than the transfer amount")
	}

	t.balances[t.escrow] = new(big.Int).Sub(balance, amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func (t *MemoryToken) balance(account string) *big.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return big.NewInt(0)
}

func (t *MemoryToken) allowance(owner string) *big.Int {
	if a, ok := t.allowances[owner]; ok {
		return a
	}
	return big.NewInt(0)
}
