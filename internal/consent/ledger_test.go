package consent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/didauth"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

func setupLedger(t *testing.T) (*Ledger, *didauth.Authority) {
	t.Helper()
	log := logger.New("error")
	authority := didauth.New(didauth.NewMemoryStore(), log)
	require.NoError(t, authority.Bootstrap(context.Background(), "did:ledup:admin", "0xadmin"))
	return New(NewMemoryStore(), authority, log), authority
}

func TestRegisterProducer_Success(t *testing.T) {
	ledger, _ := setupLedger(t)

	record, err := ledger.RegisterProducer(context.Background(), "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), record.Nonce)
	assert.True(t, record.IsActive)
	assert.Equal(t, types.ConsentAllowed, record.Consent)
}

func TestRegisterProducer_AlreadyRegistered(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)

	_, err = ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentDenied)
	assert.Equal(t, types.ErrCodeAlreadyRegistered, types.ErrorCode(err))
}

func TestUpdateConsent_SelfOnly(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentNotSet)
	require.NoError(t, err)

	// Owner may flip their own consent
	require.NoError(t, ledger.UpdateConsent(ctx, "did:ledup:p1", "0xp1", types.ConsentAllowed))

	consent, err := ledger.GetConsent(ctx, "0xp1")
	require.NoError(t, err)
	assert.Equal(t, types.ConsentAllowed, consent)

	// A stranger may not
	err = ledger.UpdateConsent(ctx, "did:ledup:mallory", "0xp1", types.ConsentDenied)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))
}

func TestUpdateConsent_AdminAllowed(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)

	require.NoError(t, ledger.UpdateConsent(ctx, "did:ledup:admin", "0xp1", types.ConsentDenied))

	consent, err := ledger.GetConsent(ctx, "0xp1")
	require.NoError(t, err)
	assert.Equal(t, types.ConsentDenied, consent)
}

func TestUpdateConsent_ProducerNotFound(t *testing.T) {
	ledger, _ := setupLedger(t)

	err := ledger.UpdateConsent(context.Background(), "did:ledup:p1", "0xmissing", types.ConsentAllowed)
	assert.Equal(t, types.ErrCodeProducerNotFound, types.ErrorCode(err))
}

func TestGetConsent_ProducerNotFound(t *testing.T) {
	ledger, _ := setupLedger(t)

	_, err := ledger.GetConsent(context.Background(), "0xmissing")
	assert.Equal(t, types.ErrCodeProducerNotFound, types.ErrorCode(err))
}

func TestIncrementNonce_Monotonic(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)

	n1, err := ledger.IncrementNonce(ctx, "0xp1")
	require.NoError(t, err)
	n2, err := ledger.IncrementNonce(ctx, "0xp1")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), n1)
	assert.Equal(t, uint64(2), n2)
}

func TestUpdateStatus_TracksActiveFlag(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)

	require.NoError(t, ledger.UpdateStatus(ctx, "did:ledup:p1", "0xp1", types.RecordStatusSuspended))

	record, err := ledger.GetProducer(ctx, "0xp1")
	require.NoError(t, err)
	assert.Equal(t, types.RecordStatusSuspended, record.Status)
	assert.False(t, record.IsActive)
}

func TestRemoveProducer(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	_, err := ledger.RegisterProducer(ctx, "0xp1", "did:ledup:p1", types.RecordStatusActive, types.ConsentAllowed)
	require.NoError(t, err)

	require.NoError(t, ledger.RemoveProducer(ctx, "0xp1"))

	_, err = ledger.GetProducer(ctx, "0xp1")
	assert.Equal(t, types.ErrCodeProducerNotFound, types.ErrorCode(err))
}
