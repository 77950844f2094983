package catalog

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

// NewRepository creates a new record repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Get returns the record, or nil if absent
func (r *Repository) Get(ctx context.Context, recordID string) (*types.HealthRecord, error) {
	query := `
		SELECT record_id, producer, signature, resource_type, cid, url, hash, is_verified, updated_at
		FROM health_records
		WHERE record_id = $1`

	record := &types.HealthRecord{}
	var url sql.NullString
	err := r.db.QueryRowContext(ctx, query, recordID).Scan(
		&record.RecordID,
		&record.Producer,
		&record.Signature,
		&record.ResourceType,
		&record.CID,
		&url,
		&record.Hash,
		&record.IsVerified,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithError(err).WithField("record_id", recordID).Error("Failed to read record")
		return nil, err
	}

	record.URL = url.String
	return record, nil
}

// Put inserts or replaces a record
func (r *Repository) Put(ctx context.Context, record *types.HealthRecord) error {
	query := `
		INSERT INTO health_records (record_id, producer, signature, resource_type, cid, url, hash, is_verified, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (record_id) DO UPDATE SET
			signature = EXCLUDED.signature,
			resource_type = EXCLUDED.resource_type,
			cid = EXCLUDED.cid,
			url = EXCLUDED.url,
			hash = EXCLUDED.hash,
			is_verified = EXCLUDED.is_verified,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		record.RecordID,
		record.Producer,
		record.Signature,
		record.ResourceType,
		record.CID,
		record.URL,
		record.Hash,
		record.IsVerified,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithField("record_id", record.RecordID).Error("Failed to store record")
		return err
	}
	return nil
}

// DeleteByProducer removes all records owned by the producer
func (r *Repository) DeleteByProducer(ctx context.Context, producer string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM health_records WHERE producer = $1`, producer)
	if err != nil {
		r.logger.WithError(err).WithField("producer", producer).Error("Failed to delete producer records")
		return 0, err
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Count returns the number of stored records
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_records`).Scan(&count); err != nil {
		r.logger.WithError(err).Error("Failed to count records")
		return 0, err
	}
	return count, nil
}
