package catalog

import (
	"context"
	"time"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/interfaces"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// Store is the persistence contract for health records. Get returns
// (nil, nil) when no record exists.
type Store interface {
	Get(ctx context.Context, recordID string) (*types.HealthRecord, error)
	Put(ctx context.Context, record *types.HealthRecord) error
	DeleteByProducer(ctx context.Context, producer string) (int, error)
	Count(ctx context.Context) (int, error)
}

// BindingRemover removes a DID↔address binding when a producer's
// record set is removed. Implemented by the DID authority.
type BindingRemover interface {
	RemoveBinding(ctx context.Context, address string) error
}

// Catalog stores per-producer record metadata: the content pointer,
// integrity hash, signature and the verifier's attestation flag.
type Catalog struct {
	store     Store
	producers interfaces.ProducerRegistry
	auth      interfaces.DidAuthority
	bindings  BindingRemover
	logger    *logger.Logger
}

// New creates a new record catalog
func New(store Store, producers interfaces.ProducerRegistry, auth interfaces.DidAuthority, bindings BindingRemover, log *logger.Logger) *Catalog {
	return &Catalog{
		store:     store,
		producers: producers,
		auth:      auth,
		bindings:  bindings,
		logger:    log,
	}
}

// RegisterRecord inserts a new record for the producer. Record IDs are
// immutable and non-reusable: re-registering an existing id fails with
// a conflict error regardless of the other fields.
func (c *Catalog) RegisterRecord(ctx context.Context, producer, recordID string, signature []byte, resourceType string, metadata types.RecordMetadata) (*types.HealthRecord, error) {
	if recordID == "" || len(signature) == 0 || resourceType == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "record id, signature and resource type are required")
	}

	if _, err := c.producers.GetProducer(ctx, producer); err != nil {
		return nil, err
	}

	existing, err := c.store.Get(ctx, recordID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up record", err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeRecordAlreadyExists, "record already exists: "+recordID)
	}

	record := &types.HealthRecord{
		RecordID:     recordID,
		Producer:     producer,
		Signature:    signature,
		ResourceType: resourceType,
		CID:          metadata.CID,
		URL:          metadata.URL,
		Hash:         metadata.Hash,
		IsVerified:   false,
		UpdatedAt:    time.Now().UTC(),
	}

	if err := c.store.Put(ctx, record); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to store record", err)
	}

	if err := c.producers.AppendRecordID(ctx, producer, recordID); err != nil {
		return nil, err
	}
	if _, err := c.producers.IncrementNonce(ctx, producer); err != nil {
		return nil, err
	}

	c.logger.WithProducer(producer).WithField("record_id", recordID).Info("Record registered")
	return record, nil
}

// UpdateRecord replaces a record's metadata and signature. Authorized
// for the owning DID, service providers and producers. A successful
// update clears the verified flag: edited content is stale until a
// verifier re-attests it.
func (c *Catalog) UpdateRecord(ctx context.Context, recordID string, metadata types.RecordMetadata, signature []byte, updaterDID string) error {
	record, err := c.requireRecord(ctx, recordID)
	if err != nil {
		return err
	}

	producer, err := c.producers.GetProducer(ctx, record.Producer)
	if err != nil {
		return err
	}

	authorized := updaterDID == producer.OwnerDID ||
		c.auth.Authenticate(ctx, updaterDID, types.RoleServiceProvider) ||
		c.auth.Authenticate(ctx, updaterDID, types.RoleProducer)
	if !authorized {
		c.logger.Audit(updaterDID, "update_record", recordID, false, nil)
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "caller may not update this record")
	}

	if !producer.IsActive {
		return types.NewPreconditionError(types.ErrCodeRecordNotActive, "producer record set is not active")
	}

	record.CID = metadata.CID
	record.URL = metadata.URL
	record.Hash = metadata.Hash
	if len(signature) > 0 {
		record.Signature = signature
	}
	record.IsVerified = false
	record.UpdatedAt = time.Now().UTC()

	if err := c.store.Put(ctx, record); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update record", err)
	}

	if _, err := c.producers.IncrementNonce(ctx, record.Producer); err != nil {
		return err
	}

	c.logger.Audit(updaterDID, "update_record", recordID, true, nil)
	return nil
}

// VerifyRecord sets the verifier attestation flag. Verifier-only.
// Re-verifying an already-verified record is a no-op success.
func (c *Catalog) VerifyRecord(ctx context.Context, recordID, verifierDID string) error {
	if !c.auth.Authenticate(ctx, verifierDID, types.RoleVerifier) {
		c.logger.Audit(verifierDID, "verify_record", recordID, false, nil)
		return types.NewAuthorizationError(types.ErrCodeUnauthorizedVerifier, "record verification requires the verifier role")
	}

	record, err := c.requireRecord(ctx, recordID)
	if err != nil {
		return err
	}

	record.IsVerified = true
	record.UpdatedAt = time.Now().UTC()

	if err := c.store.Put(ctx, record); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to verify record", err)
	}

	c.logger.Audit(verifierDID, "verify_record", recordID, true, nil)
	return nil
}

// IsVerified returns the verifier attestation flag
func (c *Catalog) IsVerified(ctx context.Context, recordID string) (bool, error) {
	record, err := c.requireRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	return record.IsVerified, nil
}

// GetRecord returns a record by id
func (c *Catalog) GetRecord(ctx context.Context, recordID string) (*types.HealthRecord, error) {
	return c.requireRecord(ctx, recordID)
}

// OwnerOf resolves a record id to the producer address that owns it
func (c *Catalog) OwnerOf(ctx context.Context, recordID string) (string, error) {
	record, err := c.requireRecord(ctx, recordID)
	if err != nil {
		return "", err
	}
	return record.Producer, nil
}

// RemoveProducerRecords deletes the whole per-producer record set and
// the producer's DID binding. Admin-only.
func (c *Catalog) RemoveProducerRecords(ctx context.Context, callerDID, producer string) error {
	if !c.auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "removing producer records requires the admin role")
	}

	if _, err := c.producers.GetProducer(ctx, producer); err != nil {
		return err
	}

	removed, err := c.store.DeleteByProducer(ctx, producer)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to delete producer records", err)
	}

	if err := c.producers.RemoveProducer(ctx, producer); err != nil {
		return err
	}

	if err := c.bindings.RemoveBinding(ctx, producer); err != nil {
		return err
	}

	c.logger.Audit(callerDID, "remove_producer_records", producer, true, map[string]interface{}{"removed": removed})
	return nil
}

// TotalRecords returns the number of records in the catalog
func (c *Catalog) TotalRecords(ctx context.Context) (int, error) {
	count, err := c.store.Count(ctx)
	if err != nil {
		return 0, types.NewInternalError(types.ErrCodeInternalError, "failed to count records", err)
	}
	return count, nil
}

func (c *Catalog) requireRecord(ctx context.Context, recordID string) (*types.HealthRecord, error) {
	record, err := c.store.Get(ctx, recordID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up record", err)
	}
	if record == nil {
		return nil, types.NewNotFoundError(types.ErrCodeRecordNotFound, "record not found: "+recordID)
	}
	return record, nil
}
