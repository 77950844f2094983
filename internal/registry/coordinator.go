package registry

import (
	"context"
	"sync"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/interfaces"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/monitoring"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// GrantStore persists single-use authorization grants keyed by
// (recordID, consumerDID). A missing row reads as not granted.
type GrantStore interface {
	IsGranted(ctx context.Context, recordID, consumerDID string) (bool, error)
	SetGrant(ctx context.Context, recordID, consumerDID string, granted bool) error
}

// Coordinator is the authorization state machine. It joins the role
// predicate, the producer's consent flag, the record's payment flag
// and the grant flag; a share either passes all four and creates a
// grant, or fails with no state change.
//
// Mutations against the same producer are serialized so a grant can
// never be created under consent that was revoked mid-check.
type Coordinator struct {
	consents interfaces.ConsentLedger
	catalog  interfaces.RecordCatalog
	payments interfaces.PaymentLedger
	grants   GrantStore
	logger   *logger.Logger
	metrics  *monitoring.MetricsCollector

	authMu sync.RWMutex
	auth   interfaces.DidAuthority

	producers *producerLocks
}

// NewCoordinator creates the authorization coordinator. The metrics
// collector may be nil.
func NewCoordinator(auth interfaces.DidAuthority, consents interfaces.ConsentLedger, catalog interfaces.RecordCatalog, payments interfaces.PaymentLedger, grants GrantStore, log *logger.Logger, metrics *monitoring.MetricsCollector) *Coordinator {
	return &Coordinator{
		auth:      auth,
		consents:  consents,
		catalog:   catalog,
		payments:  payments,
		grants:    grants,
		logger:    log,
		metrics:   metrics,
		producers: newProducerLocks(),
	}
}

// UpdateDidAuthority hot-swaps the role-authentication oracle. In-flight
// operations keep the authority they resolved at entry.
func (c *Coordinator) UpdateDidAuthority(auth interfaces.DidAuthority) {
	c.authMu.Lock()
	c.auth = auth
	c.authMu.Unlock()
	c.logger.WithComponent("registry").Info("DID authority replaced")
}

func (c *Coordinator) authority() interfaces.DidAuthority {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.auth
}

// ShareData grants a consumer one-time access to a record. The
// predicates run in a fixed order so failures are deterministic:
// caller ownership first, then the consumer role, then payment,
// then consent.
func (c *Coordinator) ShareData(ctx context.Context, callerDID, consumerDID, recordID string) error {
	auth := c.authority()

	record, err := c.catalog.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}

	unlock := c.producers.lock(record.Producer)
	defer unlock()

	producerRecord, err := c.consents.GetProducer(ctx, record.Producer)
	if err != nil {
		return err
	}

	if callerDID != producerRecord.OwnerDID && !auth.Authenticate(ctx, callerDID, types.RoleProvider) {
		c.observeAuth("share", false)
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "sharing requires the record owner or an authorized provider")
	}

	if !auth.Authenticate(ctx, consumerDID, types.RoleConsumer) {
		c.observeAuth("share", false)
		return types.NewAuthorizationError(types.ErrCodeUnauthorizedConsumer, "recipient does not hold the consumer role")
	}

	if !c.payments.VerifyPayment(ctx, recordID) {
		return types.NewPreconditionError(types.ErrCodePaymentNotVerified, "no verified payment for record: "+recordID)
	}

	consent, err := c.consents.GetConsent(ctx, record.Producer)
	if err != nil {
		return err
	}
	if consent != types.ConsentAllowed {
		return types.NewPreconditionError(types.ErrCodeConsentNotAllowed, "producer consent is "+consent.String())
	}

	if err := c.grants.SetGrant(ctx, recordID, consumerDID, true); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to store grant", err)
	}

	c.observeAuth("share", true)
	if c.metrics != nil {
		c.metrics.RecordGrantIssued()
	}
	c.logger.DataAccess(ctx, callerDID, record.Producer, recordID, true, map[string]interface{}{"action": "share", "consumer_did": consumerDID})
	return nil
}

// GetRecordCid consumes a grant: it returns the record's content
// pointer and atomically flips the grant back off, so a second call
// with the same arguments fails. Never-granted and already-consumed
// both read as Unauthorized; the distinction would leak grant history
// to probers.
func (c *Coordinator) GetRecordCid(ctx context.Context, recordID, requesterDID string) (string, error) {
	auth := c.authority()

	record, err := c.catalog.GetRecord(ctx, recordID)
	if err != nil {
		if types.IsErrorType(err, types.ErrorTypeNotFound) {
			return "", types.NewAuthorizationError(types.ErrCodeUnauthorized, "access denied for record: "+recordID)
		}
		return "", err
	}

	unlock := c.producers.lock(record.Producer)
	defer unlock()

	granted, err := c.grants.IsGranted(ctx, recordID, requesterDID)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to read grant", err)
	}
	if !granted || !auth.Authenticate(ctx, requesterDID, types.RoleConsumer) {
		c.observeAuth("fetch", false)
		return "", types.NewAuthorizationError(types.ErrCodeUnauthorized, "access denied for record: "+recordID)
	}

	if !c.payments.VerifyPayment(ctx, recordID) {
		return "", types.NewPreconditionError(types.ErrCodePaymentNotVerified, "no verified payment for record: "+recordID)
	}

	if err := c.grants.SetGrant(ctx, recordID, requesterDID, false); err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to consume grant", err)
	}

	c.observeAuth("fetch", true)
	if c.metrics != nil {
		c.metrics.RecordGrantConsumed()
	}
	c.logger.DataAccess(ctx, requesterDID, record.Producer, recordID, true, map[string]interface{}{"action": "fetch"})
	return record.CID, nil
}

// Revoke flips a grant off without a consumption. Owner- or
// admin-initiated; revoking an absent grant is a no-op success.
func (c *Coordinator) Revoke(ctx context.Context, callerDID, recordID, consumerDID string) error {
	auth := c.authority()

	record, err := c.catalog.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}

	unlock := c.producers.lock(record.Producer)
	defer unlock()

	producerRecord, err := c.consents.GetProducer(ctx, record.Producer)
	if err != nil {
		return err
	}
	if callerDID != producerRecord.OwnerDID && !auth.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "revoking requires the record owner or an admin")
	}

	if err := c.grants.SetGrant(ctx, recordID, consumerDID, false); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to revoke grant", err)
	}

	if c.metrics != nil {
		c.metrics.RecordGrantRevoked()
	}
	c.logger.Audit(callerDID, "revoke_grant", recordID, true, map[string]interface{}{"consumer_did": consumerDID})
	return nil
}

// IsGranted reports whether a live grant exists. Read path, no locking.
func (c *Coordinator) IsGranted(ctx context.Context, recordID, consumerDID string) (bool, error) {
	return c.grants.IsGranted(ctx, recordID, consumerDID)
}

func (c *Coordinator) observeAuth(operation string, granted bool) {
	if c.metrics != nil {
		c.metrics.RecordAuthDecision(operation, granted)
	}
}

// producerLocks serializes grant mutations per producer address
type producerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProducerLocks() *producerLocks {
	return &producerLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *producerLocks) lock(producer string) func() {
	p.mu.Lock()
	m, ok := p.locks[producer]
	if !ok {
		m = &sync.Mutex{}
		p.locks[producer] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
