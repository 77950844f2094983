package payment

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// PostgresStore persists payments and balances in PostgreSQL.
// Amounts are NUMERIC(78,0) columns carried as decimal strings.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a PostgreSQL-backed payment store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetPayment(ctx context.Context, recordID string) (*types.PaymentRecord, error) {
	query := `
		SELECT record_id, consumer_did, amount, verified, paid_at
		FROM payments
		WHERE record_id = $1`

	var record types.PaymentRecord
	var amount string
	err := s.db.QueryRowContext(ctx, query, recordID).Scan(
		&record.RecordID, &record.ConsumerDID, &amount, &record.Verified, &record.PaidAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	record.Amount, err = parseAmount(amount)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *PostgresStore) PutPayment(ctx context.Context, record *types.PaymentRecord) error {
	query := `
		INSERT INTO payments (record_id, consumer_did, amount, verified, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id) DO UPDATE SET
			consumer_did = EXCLUDED.consumer_did,
			amount = EXCLUDED.amount,
			verified = EXCLUDED.verified,
			paid_at = EXCLUDED.paid_at`

	_, err := s.db.ExecContext(ctx, query,
		record.RecordID, record.ConsumerDID, record.Amount.String(), record.Verified, record.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	query := `SELECT balance FROM balances WHERE account = $1`

	var balance string
	err := s.db.QueryRowContext(ctx, query, account).Scan(&balance)
	if err == sql.ErrNoRows {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}
	return parseAmount(balance)
}

func (s *PostgresStore) SetBalance(ctx context.Context, account string, balance *big.Int) error {
	query := `
		INSERT INTO balances (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE SET
			balance = EXCLUDED.balance,
			updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, account, balance.String())
	if err != nil {
		return fmt.Errorf("failed to store balance: %w", err)
	}
	return nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric amount: %q", value)
	}
	return amount, nil
}
