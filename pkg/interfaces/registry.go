package interfaces

import (
	"context"
	"math/big"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// DidAuthority resolves addresses to DIDs and evaluates role
// predicates. Every component treats Authenticate()==false as a hard
// authorization failure; it is never silently skipped.
type DidAuthority interface {
	// GetDid resolves an address to its active DID. Fails with a
	// not-found error if the address never registered.
	GetDid(ctx context.Context, address string) (string, error)

	// GetDocument returns the DID document for a DID
	GetDocument(ctx context.Context, did string) (*types.DidDocument, error)

	// Authenticate reports whether the DID holds the role and its
	// underlying document is active. Read-only; resolution errors
	// evaluate to false.
	Authenticate(ctx context.Context, did string, role types.Role) bool
}

// DidRegistrar is the administrative write surface of the DID authority
type DidRegistrar interface {
	RegisterDid(ctx context.Context, did, address string) (*types.DidDocument, error)
	DeactivateDid(ctx context.Context, callerDID, did string) error
	GrantRole(ctx context.Context, callerDID, did string, role types.Role) error
	RevokeRole(ctx context.Context, callerDID, did string, role types.Role) error
}

// ProducerRegistry is the shared view of the per-producer aggregate.
// The consent ledger owns it; the record catalog mutates the nonce and
// record-id list through this interface.
type ProducerRegistry interface {
	GetProducer(ctx context.Context, producer string) (*types.ProducerRecord, error)
	IncrementNonce(ctx context.Context, producer string) (uint64, error)
	AppendRecordID(ctx context.Context, producer, recordID string) error
	RemoveProducer(ctx context.Context, producer string) error
}

// ConsentLedger is the per-producer consent gate
type ConsentLedger interface {
	ProducerRegistry

	RegisterProducer(ctx context.Context, producer, ownerDID string, status types.RecordStatus, consent types.ConsentStatus) (*types.ProducerRecord, error)
	UpdateConsent(ctx context.Context, callerDID, producer string, consent types.ConsentStatus) error
	UpdateStatus(ctx context.Context, callerDID, producer string, status types.RecordStatus) error
	GetConsent(ctx context.Context, producer string) (types.ConsentStatus, error)
}

// RecordCatalog stores per-producer record metadata and the verified flag
type RecordCatalog interface {
	RegisterRecord(ctx context.Context, producer, recordID string, signature []byte, resourceType string, metadata types.RecordMetadata) (*types.HealthRecord, error)
	UpdateRecord(ctx context.Context, recordID string, metadata types.RecordMetadata, signature []byte, updaterDID string) error
	VerifyRecord(ctx context.Context, recordID, verifierDID string) error
	IsVerified(ctx context.Context, recordID string) (bool, error)
	GetRecord(ctx context.Context, recordID string) (*types.HealthRecord, error)
	OwnerOf(ctx context.Context, recordID string) (string, error)
	RemoveProducerRecords(ctx context.Context, callerDID, producer string) error
}

// PaymentLedger tracks balances, the per-record payment-verified flag
// and the service-fee accrual.
type PaymentLedger interface {
	ProcessPayment(ctx context.Context, payer, producer, recordID string, dataSize uint64, consumerDID string) (*types.PaymentReceipt, error)
	VerifyPayment(ctx context.Context, recordID string) bool
	GetProducerBalance(ctx context.Context, producer string) *big.Int
	GetServiceFeeBalance(ctx context.Context) *big.Int

	WithdrawProducerBalance(ctx context.Context, producer string, amount *big.Int) (*types.WithdrawalReceipt, error)
	WithdrawServiceFee(ctx context.Context, callerDID, destination string, amount *big.Int) (*types.WithdrawalReceipt, error)

	SetMinimumWithdrawAmount(ctx context.Context, callerDID string, amount *big.Int) error
	ChangeServiceFee(ctx context.Context, callerDID string, bps int64) error
	ChangeUnitPrice(ctx context.Context, callerDID string, amount *big.Int) error
}

// TokenBridge is the token-transfer primitive consumed by settlement.
// Implementations bridge to an ERC-20 style token; the in-memory
// implementation backs tests.
type TokenBridge interface {
	// TransferFrom moves amount from the payer to the escrow account,
	// consuming a prior approval. Fails with an insufficient-allowance
	// error if the payer has not approved at least amount.
	TransferFrom(ctx context.Context, from, to string, amount *big.Int) error

	// Transfer moves amount from the escrow account to destination
	Transfer(ctx context.Context, to string, amount *big.Int) error
}
