package types

import (
	"math/big"
	"time"
)

// Role represents the roles a DID can hold in the registry
type Role string

const (
	RoleProducer        Role = "producer"
	RoleConsumer        Role = "consumer"
	RoleProvider        Role = "provider"
	RoleVerifier        Role = "verifier"
	RoleAdmin           Role = "admin"
	RoleServiceProvider Role = "service_provider"
)

// ConsentStatus is the producer-level flag controlling whether any of
// their records may be shared.
type ConsentStatus int

const (
	ConsentNotSet ConsentStatus = iota
	ConsentAllowed
	ConsentDenied
)

// String returns the human-readable consent status
func (c ConsentStatus) String() string {
	switch c {
	case ConsentAllowed:
		return "allowed"
	case ConsentDenied:
		return "denied"
	default:
		return "not_set"
	}
}

// ParseConsentStatus maps the wire representation back to a status.
// Unknown values read as not_set.
func ParseConsentStatus(value string) ConsentStatus {
	switch value {
	case "allowed":
		return ConsentAllowed
	case "denied":
		return ConsentDenied
	default:
		return ConsentNotSet
	}
}

// RecordStatus represents the lifecycle status of a producer's record set
type RecordStatus int

const (
	RecordStatusInactive RecordStatus = iota
	RecordStatusActive
	RecordStatusSuspended
	RecordStatusDeleted
)

// String returns the human-readable record status
func (s RecordStatus) String() string {
	switch s {
	case RecordStatusActive:
		return "active"
	case RecordStatusSuspended:
		return "suspended"
	case RecordStatusDeleted:
		return "deleted"
	default:
		return "inactive"
	}
}

// ParseRecordStatus maps the wire representation back to a status.
// Unknown values read as inactive.
func ParseRecordStatus(value string) RecordStatus {
	switch value {
	case "active":
		return RecordStatusActive
	case "suspended":
		return RecordStatusSuspended
	case "deleted":
		return RecordStatusDeleted
	default:
		return RecordStatusInactive
	}
}

// DidDocument binds a DID to the chain address that controls it.
// An address controls at most one active DID; deactivation is a soft
// flag flip, never a delete.
type DidDocument struct {
	DID       string    `json:"did"`
	Subject   string    `json:"subject"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProducerRecord is the per-producer aggregate: consent state, record
// lifecycle status and the optimistic-concurrency nonce that increments
// on every record mutation.
type ProducerRecord struct {
	Producer  string        `json:"producer"`
	OwnerDID  string        `json:"owner_did"`
	Status    RecordStatus  `json:"status"`
	Consent   ConsentStatus `json:"consent"`
	Nonce     uint64        `json:"nonce"`
	IsActive  bool          `json:"is_active"`
	RecordIDs []string      `json:"record_ids"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RecordMetadata carries the off-chain pointer for a health record
type RecordMetadata struct {
	CID      string `json:"cid"`
	URL      string `json:"url"`
	Hash     string `json:"hash"`
	DataSize uint64 `json:"data_size"`
}

// HealthRecord is a single registered record, keyed by (producer, recordID)
type HealthRecord struct {
	RecordID     string    `json:"record_id"`
	Producer     string    `json:"producer"`
	Signature    []byte    `json:"signature"`
	ResourceType string    `json:"resource_type"`
	CID          string    `json:"cid"`
	URL          string    `json:"url"`
	Hash         string    `json:"hash"`
	IsVerified   bool      `json:"is_verified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentRecord tracks the settlement state of a single record ID.
/// Verified is true-once: there is no re-payment path.
type PaymentRecord struct {
	RecordID    string    `json:"record_id"`
	ConsumerDID string    `json:"consumer_did"`
	Amount      *big.Int  `json:"amount"`
	Verified    bool      `json:"verified"`
	PaidAt      time.Time `json:"paid_at"`
}

// PaymentReceipt is returned to the consumer after a successful payment
type PaymentReceipt struct {
	ReceiptID     string    `json:"receipt_id"`
	RecordID      string    `json:"record_id"`
	Producer      string    `json:"producer"`
	ConsumerDID   string    `json:"consumer_did"`
	Amount        *big.Int  `json:"amount"`
	ProducerShare *big.Int  `json:"producer_share"`
	ServiceFee    *big.Int  `json:"service_fee"`
	PaidAt        time.Time `json:"paid_at"`
}

// WithdrawalReceipt is returned after a successful balance withdrawal
type WithdrawalReceipt struct {
	ReceiptID string    `json:"receipt_id"`
	Account   string    `json:"account"`
	Amount    *big.Int  `json:"amount"`
	Remaining *big.Int  `json:"remaining"`
	CreatedAt time.Time `json:"created_at"`
}

// UserClaims are the authenticated caller attributes extracted from a
// validated access token.
type UserClaims struct {
	DID     string `json:"did"`
	Address string `json:"address"`
	Role    Role   `json:"role"`
}
