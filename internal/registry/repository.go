package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
)

// PostgresGrantStore persists authorization grants in PostgreSQL
type PostgresGrantStore struct {
	db *database.DB
}

// NewPostgresGrantStore creates a PostgreSQL-backed grant store
func NewPostgresGrantStore(db *database.DB) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

func (s *PostgresGrantStore) IsGranted(ctx context.Context, recordID, consumerDID string) (bool, error) {
	query := `
		SELECT granted FROM authorization_grants
		WHERE record_id = $1 AND consumer_did = $2`

	var granted bool
	err := s.db.QueryRowContext(ctx, query, recordID, consumerDID).Scan(&granted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query grant: %w", err)
	}
	return granted, nil
}

func (s *PostgresGrantStore) SetGrant(ctx context.Context, recordID, consumerDID string, granted bool) error {
	query := `
		INSERT INTO authorization_grants (record_id, consumer_did, granted, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (record_id, consumer_did) DO UPDATE SET
			granted = EXCLUDED.granted,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, recordID, consumerDID, granted)
	if err != nil {
		return fmt.Errorf("failed to store grant: %w", err)
	}
	return nil
}
