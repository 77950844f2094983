package payment

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresStore(database.Wrap(db, logger.New("error"))), mock
}

func TestPostgresStore_GetPayment_Absent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT record_id, consumer_did, amount, verified, paid_at").
		WithArgs("rec-missing").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "consumer_did", "amount", "verified", "paid_at"}))

	record, err := store.GetPayment(context.Background(), "rec-missing")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPayment(t *testing.T) {
	store, mock := newMockStore(t)
	paidAt := time.Now().UTC()

	mock.ExpectQuery("SELECT record_id, consumer_did, amount, verified, paid_at").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "consumer_did", "amount", "verified", "paid_at"}).
			AddRow("rec-1", "did:ledup:c1", "1024000000000000000000", true, paidAt))

	record, err := store.GetPayment(context.Background(), "rec-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "did:ledup:c1", record.ConsumerDID)
	assert.True(t, record.Verified)
	assert.Equal(t, "1024000000000000000000", record.Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutPayment_Upsert(t *testing.T) {
	store, mock := newMockStore(t)
	paidAt := time.Now().UTC()

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("rec-1", "did:ledup:c1", "42", true, paidAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.PutPayment(context.Background(), &types.PaymentRecord{
		RecordID:    "rec-1",
		ConsumerDID: "did:ledup:c1",
		Amount:      big.NewInt(42),
		Verified:    true,
		PaidAt:      paidAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBalance_AbsentReadsZero(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT balance FROM balances").
		WithArgs("0xnobody").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := store.GetBalance(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetBalance_Upsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO balances").
		WithArgs("0xp1", "95000000000000000000").
		WillReturnResult(sqlmock.NewResult(0, 1))

	amount, _ := new(big.Int).SetString("95000000000000000000", 10)
	require.NoError(t, store.SetBalance(context.Background(), "0xp1", amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBalance_RejectsBadNumeric(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT balance FROM balances").
		WithArgs("0xp1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("not-a-number"))

	_, err := store.GetBalance(context.Background(), "0xp1")
	assert.Error(t, err)
}
