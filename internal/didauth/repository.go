package didauth

import (
	"context"
	"database/sql"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// Repository is a PostgreSQL-backed Store
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new DID repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// GetDocument returns the document for a DID, or nil if absent
func (r *Repository) GetDocument(ctx context.Context, did string) (*types.DidDocument, error) {
	query := `
		SELECT did, subject, active, created_at, updated_at
		FROM did_documents
		WHERE did = $1`

	return r.scanDocument(r.db.QueryRowContext(ctx, query, did))
}

// GetDocumentByAddress returns the document bound to an address, or nil
func (r *Repository) GetDocumentByAddress(ctx context.Context, address string) (*types.DidDocument, error) {
	query := `
		SELECT did, subject, active, created_at, updated_at
		FROM did_documents
		WHERE subject = $1`

	return r.scanDocument(r.db.QueryRowContext(ctx, query, address))
}

func (r *Repository) scanDocument(row *sql.Row) (*types.DidDocument, error) {
	doc := &types.DidDocument{}
	err := row.Scan(&doc.DID, &doc.Subject, &doc.Active, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithError(err).Error("Failed to read did document")
		return nil, err
	}
	return doc, nil
}

// PutDocument inserts or replaces a DID document
func (r *Repository) PutDocument(ctx context.Context, doc *types.DidDocument) error {
	query := `
		INSERT INTO did_documents (did, subject, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (did) DO UPDATE SET
			subject = EXCLUDED.subject,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, doc.DID, doc.Subject, doc.Active, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		r.logger.WithError(err).WithField("did", doc.DID).Error("Failed to store did document")
		return err
	}
	return nil
}

// HasRole reports whether the DID holds the role
func (r *Repository) HasRole(ctx context.Context, did string, role types.Role) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM role_grants WHERE did = $1 AND role = $2)`

	var held bool
	if err := r.db.QueryRowContext(ctx, query, did, string(role)).Scan(&held); err != nil {
		r.logger.WithError(err).WithField("did", did).Error("Failed to query role grant")
		return false, err
	}
	return held, nil
}

// GrantRole adds a role to a DID
func (r *Repository) GrantRole(ctx context.Context, did string, role types.Role) error {
	query := `
		INSERT INTO role_grants (did, role)
		VALUES ($1, $2)
		ON CONFLICT (did, role) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, did, string(role))
	if err != nil {
		r.logger.WithError(err).WithField("did", did).Error("Failed to grant role")
		return err
	}
	return nil
}

// RevokeRole removes a role from a DID
func (r *Repository) RevokeRole(ctx context.Context, did string, role types.Role) error {
	query := `DELETE FROM role_grants WHERE did = $1 AND role = $2`

	_, err := r.db.ExecContext(ctx, query, did, string(role))
	if err != nil {
		r.logger.WithError(err).WithField("did", did).Error("Failed to revoke role")
		return err
	}
	return nil
}

// RemoveBinding removes the address→DID reverse mapping by
// deactivating the bound document.
func (r *Repository) RemoveBinding(ctx context.Context, address string) error {
	query := `UPDATE did_documents SET active = FALSE, updated_at = NOW() WHERE subject = $1`

	_, err := r.db.ExecContext(ctx, query, address)
	if err != nil {
		r.logger.WithError(err).Error("Failed to remove did binding")
		return err
	}
	return nil
}
