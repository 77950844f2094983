package consent

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// Repository is a PostgreSQL-backed Store. The record-id list is
// served from the health_records table rather than denormalized.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new producer repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Get returns the producer record, or nil if absent
func (r *Repository) Get(ctx context.Context, producer string) (*types.ProducerRecord, error) {
	query := `
		SELECT p.producer, p.owner_did, p.status, p.consent, p.nonce, p.is_active, p.updated_at,
			   COALESCE(ARRAY_AGG(h.record_id) FILTER (WHERE h.record_id IS NOT NULL), '{}')
		FROM producer_records p
		LEFT JOIN health_records h ON h.producer = p.producer
		WHERE p.producer = $1
		GROUP BY p.producer`

	record := &types.ProducerRecord{}
	var recordIDs pq.StringArray
	err := r.db.QueryRowContext(ctx, query, producer).Scan(
		&record.Producer,
		&record.OwnerDID,
		&record.Status,
		&record.Consent,
		&record.Nonce,
		&record.IsActive,
		&record.UpdatedAt,
		&recordIDs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithError(err).WithField("producer", producer).Error("Failed to read producer record")
		return nil, err
	}

	record.RecordIDs = []string(recordIDs)
	return record, nil
}

// Put inserts or replaces a producer record
func (r *Repository) Put(ctx context.Context, record *types.ProducerRecord) error {
	query := `
		INSERT INTO producer_records (producer, owner_did, status, consent, nonce, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (producer) DO UPDATE SET
			status = EXCLUDED.status,
			consent = EXCLUDED.consent,
			nonce = EXCLUDED.nonce,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		record.Producer,
		record.OwnerDID,
		record.Status,
		record.Consent,
		record.Nonce,
		record.IsActive,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithField("producer", record.Producer).Error("Failed to store producer record")
		return err
	}
	return nil
}

// Remove deletes a producer record and its health records
func (r *Repository) Remove(ctx context.Context, producer string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM health_records WHERE producer = $1`, producer); err != nil {
		r.logger.WithError(err).WithField("producer", producer).Error("Failed to delete health records")
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM producer_records WHERE producer = $1`, producer); err != nil {
		r.logger.WithError(err).WithField("producer", producer).Error("Failed to delete producer record")
		return err
	}

	return tx.Commit()
}
