package payment

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/interfaces"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// service fee accrues on a reserved account key, never a producer address
const serviceFeeAccount = "__service_fee__"

// bpsDenominator is the basis-point scale for the service fee split
const bpsDenominator = 10000

// Store is the persistence contract for payments and balances.
// GetPayment returns (nil, nil) when no payment exists; GetBalance
// returns zero for unknown accounts.
type Store interface {
	GetPayment(ctx context.Context, recordID string) (*types.PaymentRecord, error)
	PutPayment(ctx context.Context, record *types.PaymentRecord) error
	GetBalance(ctx context.Context, account string) (*big.Int, error)
	SetBalance(ctx context.Context, account string, balance *big.Int) error
}

// Params are the runtime-adjustable registry economics
type Params struct {
	UnitPrice       *big.Int
	ServiceFeeBps   int64
	MinimumWithdraw *big.Int
}

// Ledger tracks per-producer accrued balances, the per-record
// payment-verified flag and the service-fee accrual. It is the
// economic gate consumed by the authorization coordinator, and it
// executes withdrawals against the token bridge.
type Ledger struct {
	store     Store
	tokens    interfaces.TokenBridge
	auth      interfaces.DidAuthority
	producers interfaces.ProducerRegistry
	escrow    string
	logger    *logger.Logger

	paramsMu sync.RWMutex
	params   Params

	accounts *accountLocks
}

// New creates a new payment ledger
func New(store Store, tokens interfaces.TokenBridge, auth interfaces.DidAuthority, producers interfaces.ProducerRegistry, escrow string, params Params, log *logger.Logger) *Ledger {
	return &Ledger{
		store:     store,
		tokens:    tokens,
		auth:      auth,
		producers: producers,
		escrow:    escrow,
		params:    params,
		logger:    log,
		accounts:  newAccountLocks(),
	}
}

// ProcessPayment settles a consumer's payment for a record. The amount
// is dataSize times the unit price, split between the producer and the
// service fee; the fee share truncates down, so rounding always favors
// the producer. Payments are one-shot per record id.
func (l *Ledger) ProcessPayment(ctx context.Context, payer, producer, recordID string, dataSize uint64, consumerDID string) (*types.PaymentReceipt, error) {
	if recordID == "" || dataSize == 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "record id and a non-zero data size are required")
	}

	if !l.auth.Authenticate(ctx, consumerDID, types.RoleConsumer) {
		return nil, types.NewAuthorizationError(types.ErrCodeInvalidConsumer, "payment requires the consumer role")
	}

	producerRecord, err := l.producers.GetProducer(ctx, producer)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			return nil, types.NewAuthorizationError(types.ErrCodeInvalidProducer, "producer is not registered: "+producer)
		}
		return nil, err
	}
	if !l.auth.Authenticate(ctx, producerRecord.OwnerDID, types.RoleProducer) {
		return nil, types.NewAuthorizationError(types.ErrCodeInvalidProducer, "producer did does not hold the producer role")
	}

	// Payments per record are serialized to keep verified true-once
	unlock := l.accounts.lock("payment:" + recordID)
	defer unlock()

	existing, err := l.store.GetPayment(ctx, recordID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up payment", err)
	}
	if existing != nil && existing.Verified {
		return nil, types.NewConflictError(types.ErrCodePaymentAlreadyProcessed, "payment already processed for record: "+recordID)
	}

	amount, feeShare, producerShare := l.splitAmount(dataSize)

	if err := l.tokens.TransferFrom(ctx, payer, l.escrow, amount); err != nil {
		l.logger.Payment(ctx, recordID, consumerDID, amount.String(), false, map[string]interface{}{"payer": payer})
		if types.ErrorCode(err) != "" {
			return nil, err
		}
		return nil, types.NewExternalError(types.ErrCodeExternalError, "token transfer failed", err)
	}

	if err := l.credit(ctx, producer, producerShare); err != nil {
		return nil, err
	}
	if err := l.credit(ctx, serviceFeeAccount, feeShare); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := l.store.PutPayment(ctx, &types.PaymentRecord{
		RecordID:    recordID,
		ConsumerDID: consumerDID,
		Amount:      amount,
		Verified:    true,
		PaidAt:      now,
	}); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to store payment record", err)
	}

	receipt := &types.PaymentReceipt{
		ReceiptID:     uuid.New().String(),
		RecordID:      recordID,
		Producer:      producer,
		ConsumerDID:   consumerDID,
		Amount:        amount,
		ProducerShare: producerShare,
		ServiceFee:    feeShare,
		PaidAt:        now,
	}

	l.logger.Payment(ctx, recordID, consumerDID, amount.String(), true, map[string]interface{}{
		"producer_share": producerShare.String(),
		"service_fee":    feeShare.String(),
	})
	return receipt, nil
}

// splitAmount computes amount = dataSize * unitPrice and its fee split
func (l *Ledger) splitAmount(dataSize uint64) (amount, feeShare, producerShare *big.Int) {
	l.paramsMu.RLock()
	unitPrice := new(big.Int).Set(l.params.UnitPrice)
	feeBps := l.params.ServiceFeeBps
	l.paramsMu.RUnlock()

	amount = new(big.Int).Mul(unitPrice, new(big.Int).SetUint64(dataSize))

	feeShare = new(big.Int).Mul(amount, big.NewInt(feeBps))
	feeShare.Quo(feeShare, big.NewInt(bpsDenominator))

	producerShare = new(big.Int).Sub(amount, feeShare)
	return amount, feeShare, producerShare
}

// VerifyPayment reports whether a verified payment exists for the
// record. Never errors: unknown records read as unpaid.
func (l *Ledger) VerifyPayment(ctx context.Context, recordID string) bool {
	record, err := l.store.GetPayment(ctx, recordID)
	if err != nil {
		l.logger.WithError(err).WithField("record_id", recordID).Error("Payment lookup failed")
		return false
	}
	return record != nil && record.Verified
}

// GetProducerBalance returns the producer's accrued balance
func (l *Ledger) GetProducerBalance(ctx context.Context, producer string) *big.Int {
	return l.readBalance(ctx, producer)
}

// GetServiceFeeBalance returns the accrued service-fee balance
func (l *Ledger) GetServiceFeeBalance(ctx context.Context) *big.Int {
	return l.readBalance(ctx, serviceFeeAccount)
}

// WithdrawProducerBalance pays out part of a producer's accrued
// balance. The balance decrement happens before the token transfer;
// withdrawals against the same balance are serialized, so racing
// withdrawals can never overdraw.
func (l *Ledger) WithdrawProducerBalance(ctx context.Context, producer string, amount *big.Int) (*types.WithdrawalReceipt, error) {
	l.paramsMu.RLock()
	minimum := new(big.Int).Set(l.params.MinimumWithdraw)
	l.paramsMu.RUnlock()

	receipt, err := l.withdraw(ctx, producer, producer, amount, minimum)
	if err != nil {
		return nil, err
	}

	l.logger.Audit(producer, "withdraw_producer_balance", producer, true, map[string]interface{}{"amount": amount.String()})
	return receipt, nil
}

// WithdrawServiceFee pays out part of the accrued service fee to a
// destination account. Admin-only; the minimum-withdrawal threshold
// does not apply.
func (l *Ledger) WithdrawServiceFee(ctx context.Context, callerDID, destination string, amount *big.Int) (*types.WithdrawalReceipt, error) {
	if !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return nil, types.NewAuthorizationError(types.ErrCodeUnauthorized, "service fee withdrawal requires the admin role")
	}

	receipt, err := l.withdraw(ctx, serviceFeeAccount, destination, amount, nil)
	if err != nil {
		return nil, err
	}

	l.logger.Audit(callerDID, "withdraw_service_fee", destination, true, map[string]interface{}{"amount": amount.String()})
	return receipt, nil
}

// withdraw performs the serialized decrement-then-transfer sequence
func (l *Ledger) withdraw(ctx context.Context, account, destination string, amount, minimum *big.Int) (*types.WithdrawalReceipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, types.NewValidationError(types.ErrCodeInvalidParameter, "withdrawal amount must be positive")
	}

	unlock := l.accounts.lock("balance:" + account)
	defer unlock()

	balance := l.readBalance(ctx, account)
	if balance.Cmp(amount) < 0 {
		return nil, types.NewPreconditionError(types.ErrCodeInsufficientBalance, "balance is lower than the requested amount")
	}
	if minimum != nil && amount.Cmp(minimum) < 0 {
		return nil, types.NewPreconditionError(types.ErrCodeBelowMinimumWithdraw, "amount is below the minimum withdrawal")
	}

	// Effects before interactions: the balance is decremented before
	// the transfer so a failure path can never observe stale funds.
	remaining := new(big.Int).Sub(balance, amount)
	if err := l.store.SetBalance(ctx, account, remaining); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to update balance", err)
	}

	if err := l.tokens.Transfer(ctx, destination, amount); err != nil {
		// Re-credit the withdrawn amount as a delta against the stored
		// balance rather than restoring the pre-read snapshot; the lock
		// is still held.
		current := l.readBalance(ctx, account)
		if restoreErr := l.store.SetBalance(ctx, account, new(big.Int).Add(current, amount)); restoreErr != nil {
			l.logger.WithError(restoreErr).WithField("account", account).Error("Failed to restore balance after transfer failure")
		}
		return nil, types.NewExternalError(types.ErrCodeExternalError, "token transfer failed", err)
	}

	return &types.WithdrawalReceipt{
		ReceiptID: uuid.New().String(),
		Account:   destination,
		Amount:    amount,
		Remaining: remaining,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SetMinimumWithdrawAmount changes the withdrawal threshold. Admin-only.
func (l *Ledger) SetMinimumWithdrawAmount(ctx context.Context, callerDID string, amount *big.Int) error {
	if !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "parameter changes require the admin role")
	}
	if amount == nil || amount.Sign() <= 0 {
		return types.NewValidationError(types.ErrCodeInvalidParameter, "minimum withdrawal must be positive")
	}

	l.paramsMu.Lock()
	l.params.MinimumWithdraw = new(big.Int).Set(amount)
	l.paramsMu.Unlock()

	l.logger.Audit(callerDID, "set_minimum_withdraw", "registry", true, map[string]interface{}{"amount": amount.String()})
	return nil
}

// ChangeServiceFee changes the fee split. Admin-only, capped at 50%.
func (l *Ledger) ChangeServiceFee(ctx context.Context, callerDID string, bps int64) error {
	if !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "parameter changes require the admin role")
	}
	if bps < 0 || bps > 5000 {
		return types.NewValidationError(types.ErrCodeInvalidParameter, "service fee must be between 0 and 5000 bps")
	}

	l.paramsMu.Lock()
	l.params.ServiceFeeBps = bps
	l.paramsMu.Unlock()

	l.logger.Audit(callerDID, "change_service_fee", "registry", true, map[string]interface{}{"bps": bps})
	return nil
}

// ChangeUnitPrice changes the per-data-unit price. Admin-only.
func (l *Ledger) ChangeUnitPrice(ctx context.Context, callerDID string, amount *big.Int) error {
	if !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "parameter changes require the admin role")
	}
	if amount == nil || amount.Sign() <= 0 {
		return types.NewValidationError(types.ErrCodeInvalidParameter, "unit price must be positive")
	}

	l.paramsMu.Lock()
	l.params.UnitPrice = new(big.Int).Set(amount)
	l.paramsMu.Unlock()

	l.logger.Audit(callerDID, "change_unit_price", "registry", true, map[string]interface{}{"amount": amount.String()})
	return nil
}

// credit adds amount to an account balance. It takes the same account
// lock as withdraw, so a credit can never interleave with a racing
// withdrawal's read-modify-write.
func (l *Ledger) credit(ctx context.Context, account string, amount *big.Int) error {
	unlock := l.accounts.lock("balance:" + account)
	defer unlock()

	balance := l.readBalance(ctx, account)
	if err := l.store.SetBalance(ctx, account, new(big.Int).Add(balance, amount)); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to credit balance", err)
	}
	return nil
}

func (l *Ledger) readBalance(ctx context.Context, account string) *big.Int {
	balance, err := l.store.GetBalance(ctx, account)
	if err != nil {
		l.logger.WithError(err).WithField("account", account).Error("Balance lookup failed")
		return big.NewInt(0)
	}
	return balance
}

// accountLocks serializes mutations per account or record key
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its release func
func (a *accountLocks) lock(key string) func() {
	a.mu.Lock()
	m, ok := a.locks[key]
	if !ok {
		m = &sync.Mutex{}
		a.locks[key] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}
