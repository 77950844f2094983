package didauth

import (
	"context"
	"time"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// Store is the persistence contract for DID documents and role grants.
// Lookups return (nil, nil) / (false, nil) when nothing is stored;
// non-nil errors are infrastructure failures.
type Store interface {
	GetDocument(ctx context.Context, did string) (*types.DidDocument, error)
	GetDocumentByAddress(ctx context.Context, address string) (*types.DidDocument, error)
	PutDocument(ctx context.Context, doc *types.DidDocument) error
	HasRole(ctx context.Context, did string, role types.Role) (bool, error)
	GrantRole(ctx context.Context, did string, role types.Role) error
	RevokeRole(ctx context.Context, did string, role types.Role) error
	RemoveBinding(ctx context.Context, address string) error
}

// Authority resolves account identifiers to DIDs and evaluates role
// predicates against them. It is the leaf dependency of every
// authorization decision in the registry.
type Authority struct {
	store  Store
	logger *logger.Logger
}

// New creates a new DID authority backed by the given store
func New(store Store, log *logger.Logger) *Authority {
	return &Authority{
		store:  store,
		logger: log,
	}
}

// RegisterDid binds a DID to a chain address. A DID is registered at
// most once and an address controls exactly one active DID; both
// violations fail with a conflict error.
func (a *Authority) RegisterDid(ctx context.Context, did, address string) (*types.DidDocument, error) {
	if did == "" || address == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "did and address are required")
	}

	existing, err := a.store.GetDocument(ctx, did)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up did", err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "did is already registered: "+did)
	}

	bound, err := a.store.GetDocumentByAddress(ctx, address)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up address binding", err)
	}
	if bound != nil && bound.Active {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "address already controls an active did")
	}

	now := time.Now().UTC()
	doc := &types.DidDocument{
		DID:       did,
		Subject:   address,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.store.PutDocument(ctx, doc); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to store did document", err)
	}

	a.logger.WithDID(did).WithField("address", address).Info("DID registered")
	return doc, nil
}

// GetDid resolves an address to its DID. Fails with a not-found error
// if the address never registered one.
func (a *Authority) GetDid(ctx context.Context, address string) (string, error) {
	doc, err := a.store.GetDocumentByAddress(ctx, address)
	if err != nil {
		return "", types.NewInternalError(types.ErrCodeInternalError, "failed to resolve address", err)
	}
	if doc == nil {
		return "", types.NewNotFoundError(types.ErrCodeDidNotFound, "no did registered for address: "+address)
	}
	return doc.DID, nil
}

// GetDocument returns the DID document for a DID
func (a *Authority) GetDocument(ctx context.Context, did string) (*types.DidDocument, error) {
	doc, err := a.store.GetDocument(ctx, did)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to look up did", err)
	}
	if doc == nil {
		return nil, types.NewNotFoundError(types.ErrCodeDidNotFound, "did not found: "+did)
	}
	return doc, nil
}

// DeactivateDid soft-deactivates a DID. Admin- or self-only. The
// document is never deleted; the active flag flips off.
func (a *Authority) DeactivateDid(ctx context.Context, callerDID, did string) error {
	if callerDID != did && !a.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "caller may not deactivate this did")
	}

	doc, err := a.store.GetDocument(ctx, did)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to look up did", err)
	}
	if doc == nil {
		return types.NewNotFoundError(types.ErrCodeDidNotFound, "did not found: "+did)
	}

	doc.Active = false
	doc.UpdatedAt = time.Now().UTC()

	if err := a.store.PutDocument(ctx, doc); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update did document", err)
	}

	a.logger.WithDID(did).Info("DID deactivated")
	return nil
}

// GrantRole adds a role to a DID. Admin-gated.
func (a *Authority) GrantRole(ctx context.Context, callerDID, did string, role types.Role) error {
	if !a.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "role grants require the admin role")
	}

	doc, err := a.store.GetDocument(ctx, did)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to look up did", err)
	}
	if doc == nil {
		return types.NewNotFoundError(types.ErrCodeDidNotFound, "did not found: "+did)
	}

	if err := a.store.GrantRole(ctx, did, role); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to grant role", err)
	}

	a.logger.Audit(callerDID, "grant_role", did, true, map[string]interface{}{"role": role})
	return nil
}

// RevokeRole removes a role from a DID. Admin-gated.
func (a *Authority) RevokeRole(ctx context.Context, callerDID, did string, role types.Role) error {
	if !a.Authenticate(ctx, callerDID, types.RoleAdmin) {
		return types.NewAuthorizationError(types.ErrCodeUnauthorized, "role revocations require the admin role")
	}

	if err := a.store.RevokeRole(ctx, did, role); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to revoke role", err)
	}

	a.logger.Audit(callerDID, "revoke_role", did, true, map[string]interface{}{"role": role})
	return nil
}

// Authenticate reports whether the DID holds the role and its document
// is active. Read-only; store failures evaluate to false and are
// logged, never surfaced as partial successes.
func (a *Authority) Authenticate(ctx context.Context, did string, role types.Role) bool {
	if did == "" {
		return false
	}

	doc, err := a.store.GetDocument(ctx, did)
	if err != nil {
		a.logger.WithError(err).WithField("did", did).Error("Role check failed on did lookup")
		return false
	}
	if doc == nil || !doc.Active {
		return false
	}

	held, err := a.store.HasRole(ctx, did, role)
	if err != nil {
		a.logger.WithError(err).WithField("did", did).Error("Role check failed on role lookup")
		return false
	}

	return held
}

// Bootstrap registers the configured admin identity if it does not
// exist yet. The first admin cannot be granted through the admin-gated
// path, so service startup seeds it directly.
func (a *Authority) Bootstrap(ctx context.Context, adminDID, adminAddress string) error {
	if adminDID == "" {
		return nil
	}

	doc, err := a.store.GetDocument(ctx, adminDID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to look up admin did", err)
	}

	if doc == nil {
		if _, err := a.RegisterDid(ctx, adminDID, adminAddress); err != nil {
			return err
		}
	}

	if err := a.store.GrantRole(ctx, adminDID, types.RoleAdmin); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to seed admin role", err)
	}

	a.logger.WithDID(adminDID).Info("Admin identity bootstrapped")
	return nil
}

// RemoveBinding removes the DID↔address reverse mapping for a
// producer whose record set is being removed. Admin-gated by the
// caller (the record catalog).
func (a *Authority) RemoveBinding(ctx context.Context, address string) error {
	if err := a.store.RemoveBinding(ctx, address); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to remove did binding", err)
	}
	return nil
}
