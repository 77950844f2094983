package consent

import (
	"context"
	"time"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/interfaces"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// Store is the persistence contract for producer aggregates. Get
// returns (nil, nil) when no record exists.
type Store interface {
	Get(ctx context.Context, producer string) (*types.ProducerRecord, error)
	Put(ctx context.Context, record *types.ProducerRecord) error
	Remove(ctx context.Context, producer string) error
}

// Ledger is the per-producer consent gate. It owns the
// ProducerRecord aggregate: consent status, record lifecycle status
// and the nonce that increments on every record mutation.
type Ledger struct {
	store  Store
	auth   interfaces.DidAuthority
	logger *logger.Logger
}

// New creates a new consent ledger
func New(store Store, auth interfaces.DidAuthority, log *logger.Logger) *Ledger {
	return &Ledger{
		store:  store,
		auth:   auth,
		logger: log,
	}
}

// RegisterProducer creates the producer aggregate with nonce 0. Fails
// with a conflict error if the producer already registered.
func (l *Ledger) RegisterProducer(ctx context.Context, producer, ownerDID string, status types.RecordStatus, consent types.ConsentStatus) (*types.ProducerRecord, error) {
	if producer == "" || ownerDID == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "producer and owner did are required")
	}

	existing, err := l.store.Get(ctx, producer)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up producer", err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "producer already registered: "+producer)
	}

	record := &types.ProducerRecord{
		Producer:  producer,
		OwnerDID:  ownerDID,
		Status:    status,
		Consent:   consent,
		Nonce:     0,
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	}

	if err := l.store.Put(ctx, record); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to store producer record", err)
	}

	l.logger.WithProducer(producer).WithField("did", ownerDID).Info("Producer registered")
	return record, nil
}

// UpdateConsent transitions the producer's consent flag. Self- or
// admin-only. Existing authorization grants are not revoked when
// consent flips to denied; the gate is enforced at the next share.
func (l *Ledger) UpdateConsent(ctx context.Context, callerDID, producer string, consent types.ConsentStatus) error {
	record, err := l.requireProducer(ctx, producer)
	if err != nil {
		return err
	}

	if callerDID != record.OwnerDID && !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "consent updates are self- or admin-only")
	}

	record.Consent = consent
	record.UpdatedAt = time.Now().UTC()

	if err := l.store.Put(ctx, record); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update consent", err)
	}

	l.logger.Audit(callerDID, "update_consent", producer, true, map[string]interface{}{"consent": consent.String()})
	return nil
}

// UpdateStatus transitions the producer's record lifecycle status.
// Self- or admin-only.
func (l *Ledger) UpdateStatus(ctx context.Context, callerDID, producer string, status types.RecordStatus) error {
	record, err := l.requireProducer(ctx, producer)
	if err != nil {
		return err
	}

	if callerDID != record.OwnerDID && !l.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "status updates are self- or admin-only")
	}

	record.Status = status
	record.IsActive = status == types.RecordStatusActive
	record.UpdatedAt = time.Now().UTC()

	if err := l.store.Put(ctx, record); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update status", err)
	}

	l.logger.Audit(callerDID, "update_status", producer, true, map[string]interface{}{"status": status.String()})
	return nil
}

// GetConsent returns the producer's consent status. An unregistered
// producer is a not-found error, distinct from consent never set.
func (l *Ledger) GetConsent(ctx context.Context, producer string) (types.ConsentStatus, error) {
	record, err := l.requireProducer(ctx, producer)
	if err != nil {
		return types.ConsentNotSet, err
	}
	return record.Consent, nil
}

// GetProducer returns the full producer aggregate
func (l *Ledger) GetProducer(ctx context.Context, producer string) (*types.ProducerRecord, error) {
	return l.requireProducer(ctx, producer)
}

// IncrementNonce bumps the producer's optimistic-concurrency counter
// and returns the new value.
func (l *Ledger) IncrementNonce(ctx context.Context, producer string) (uint64, error) {
	record, err := l.requireProducer(ctx, producer)
	if err != nil {
		return 0, err
	}

	record.Nonce++
	record.UpdatedAt = time.Now().UTC()

	if err := l.store.Put(ctx, record); err != nil {
		return 0, types.NewInternalError(types.ErrCodeInternalError, "failed to increment nonce", err)
	}
	return record.Nonce, nil
}

// AppendRecordID appends a record ID to the producer's id list
func (l *Ledger) AppendRecordID(ctx context.Context, producer, recordID string) error {
	record, err := l.requireProducer(ctx, producer)
	if err != nil {
		return err
	}

	record.RecordIDs = append(record.RecordIDs, recordID)
	record.UpdatedAt = time.Now().UTC()

	if err := l.store.Put(ctx, record); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to append record id", err)
	}
	return nil
}

// RemoveProducer deletes the producer aggregate. Authorization is the
// record catalog's responsibility; this is the storage operation only.
func (l *Ledger) RemoveProducer(ctx context.Context, producer string) error {
	if _, err := l.requireProducer(ctx, producer); err != nil {
		return err
	}

	if err := l.store.Remove(ctx, producer); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to remove producer", err)
	}

	l.logger.WithProducer(producer).Info("Producer record removed")
	return nil
}

func (l *Ledger) requireProducer(ctx context.Context, producer string) (*types.ProducerRecord, error) {
	record, err := l.store.Get(ctx, producer)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up producer", err)
	}
	if record == nil {
		return nil, types.NewNotFoundError(types.ErrCodeProducerNotFound, "producer not found: "+producer)
	}
	return record, nil
}
