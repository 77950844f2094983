package consent

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(database.Wrap(db, logger.New("error")), logger.New("error")), mock
}

func TestRepository_Get_AbsentReadsNil(t *testing.T) {
	repo, mock := newMockRepository(t)

	cols := []string{"producer", "owner_did", "status", "consent", "nonce", "is_active", "updated_at", "record_ids"}
	mock.ExpectQuery("FROM producer_records p").
		WithArgs("0xmissing").
		WillReturnRows(sqlmock.NewRows(cols))

	record, err := repo.Get(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Get_AggregatesRecordIDs(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	cols := []string{"producer", "owner_did", "status", "consent", "nonce", "is_active", "updated_at", "record_ids"}
	mock.ExpectQuery("FROM producer_records p").
		WithArgs("0xp1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("0xp1", "did:ledup:p1", int64(types.RecordStatusActive), int64(types.ConsentAllowed), int64(3), true, now, []byte("{rec-1,rec-2}")))

	record, err := repo.Get(context.Background(), "0xp1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.ConsentAllowed, record.Consent)
	assert.Equal(t, uint64(3), record.Nonce)
	assert.Equal(t, []string{"rec-1", "rec-2"}, record.RecordIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Put_Upsert(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	record := &types.ProducerRecord{
		Producer:  "0xp1",
		OwnerDID:  "did:ledup:p1",
		Status:    types.RecordStatusActive,
		Consent:   types.ConsentDenied,
		Nonce:     4,
		IsActive:  true,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO producer_records").
		WithArgs("0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentDenied, uint64(4), true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Put(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Remove_DeletesRecordsInOneTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM health_records").
		WithArgs("0xp1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM producer_records").
		WithArgs("0xp1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Remove(context.Background(), "0xp1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
