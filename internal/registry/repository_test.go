package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/database"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
)

func newMockGrantStore(t *testing.T) (*PostgresGrantStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresGrantStore(database.Wrap(db, logger.New("error"))), mock
}

func TestPostgresGrantStore_IsGranted_AbsentReadsFalse(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery("SELECT granted FROM authorization_grants").
		WithArgs("rec-1", "did:ledup:c1").
		WillReturnRows(sqlmock.NewRows([]string{"granted"}))

	granted, err := store.IsGranted(context.Background(), "rec-1", "did:ledup:c1")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStore_IsGranted(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectQuery("SELECT granted FROM authorization_grants").
		WithArgs("rec-1", "did:ledup:c1").
		WillReturnRows(sqlmock.NewRows([]string{"granted"}).AddRow(true))

	granted, err := store.IsGranted(context.Background(), "rec-1", "did:ledup:c1")
	require.NoError(t, err)
	assert.True(t, granted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStore_SetGrant_Upsert(t *testing.T) {
	store, mock := newMockGrantStore(t)

	mock.ExpectExec("INSERT INTO authorization_grants").
		WithArgs("rec-1", "did:ledup:c1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetGrant(context.Background(), "rec-1", "did:ledup:c1", true))

	// Consumption flips the same row back to false
	mock.ExpectExec("INSERT INTO authorization_grants").
		WithArgs("rec-1", "did:ledup:c1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetGrant(context.Background(), "rec-1", "did:ledup:c1", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
