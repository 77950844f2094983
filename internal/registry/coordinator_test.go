package registry

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/catalog"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/consent"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/didauth"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/internal/payment"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

const (
	adminDID    = "did:ledup:admin"
	producerDID = "did:ledup:p1"
	consumerDID = "did:ledup:c1"
	verifierDID = "did:ledup:v1"
	producer    = "0xp1"
	consumer    = "0xc1"
	escrow      = "0xescrow"
)

var unitPrice = new(big.Int).SetUint64(1_000_000_000_000_000_000)

type fixture struct {
	coordinator *Coordinator
	authority   *didauth.Authority
	consents    *consent.Ledger
	catalog     *catalog.Catalog
	payments    *payment.Ledger
	tokens      *payment.MemoryToken
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.New("error")

	authority := didauth.New(didauth.NewMemoryStore(), log)
	require.NoError(t, authority.Bootstrap(ctx, adminDID, "0xadmin"))

	register := func(did, address string, role types.Role) {
		_, err := authority.RegisterDid(ctx, did, address)
		require.NoError(t, err)
		require.NoError(t, authority.GrantRole(ctx, adminDID, did, role))
	}
	register(producerDID, producer, types.RoleProducer)
	register(consumerDID, consumer, types.RoleConsumer)
	register(verifierDID, "0xv1", types.RoleVerifier)

	consents := consent.New(consent.NewMemoryStore(), authority, log)
	cat := catalog.New(catalog.NewMemoryStore(), consents, authority, authority, log)

	tokens := payment.NewMemoryToken(escrow)
	tokens.Mint(consumer, new(big.Int).Mul(unitPrice, big.NewInt(100_000)))
	tokens.Approve(consumer, new(big.Int).Mul(unitPrice, big.NewInt(100_000)))

	payments := payment.New(payment.NewMemoryStore(), tokens, authority, consents, escrow, payment.Params{
		UnitPrice:       new(big.Int).Set(unitPrice),
		ServiceFeeBps:   500,
		MinimumWithdraw: new(big.Int).Mul(unitPrice, big.NewInt(10)),
	}, log)

	coordinator := NewCoordinator(authority, consents, cat, payments, NewMemoryGrantStore(), log, nil)

	return &fixture{
		coordinator: coordinator,
		authority:   authority,
		consents:    consents,
		catalog:     cat,
		payments:    payments,
		tokens:      tokens,
	}
}

// registerRecord sets up an active producer with one registered record
func (f *fixture) registerRecord(t *testing.T, recordID string, consentStatus types.ConsentStatus) {
	t.Helper()
	ctx := context.Background()

	if _, err := f.consents.GetProducer(ctx, producer); err != nil {
		_, err := f.consents.RegisterProducer(ctx, producer, producerDID, types.RecordStatusActive, consentStatus)
		require.NoError(t, err)
	}

	_, err := f.catalog.RegisterRecord(ctx, producer, recordID, []byte("sig"), "Observation", types.RecordMetadata{
		CID:      "bafy-" + recordID,
		URL:      "https://store.example/" + recordID,
		Hash:     "deadbeef",
		DataSize: 1024,
	})
	require.NoError(t, err)
}

func (f *fixture) pay(t *testing.T, recordID string) {
	t.Helper()
	_, err := f.payments.ProcessPayment(context.Background(), consumer, producer, recordID, 1024, consumerDID)
	require.NoError(t, err)
}

func TestShareData_ConsentGate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentDenied)
	f.pay(t, "rec-1")

	err := f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1")
	assert.Equal(t, types.ErrCodeConsentNotAllowed, types.ErrorCode(err))

	// No grant was created by the failed share
	granted, err := f.coordinator.IsGranted(ctx, "rec-1", consumerDID)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestShareData_PaymentGate(t *testing.T) {
	f := setup(t)
	f.registerRecord(t, "rec-1", types.ConsentAllowed)

	err := f.coordinator.ShareData(context.Background(), producerDID, consumerDID, "rec-1")
	assert.Equal(t, types.ErrCodePaymentNotVerified, types.ErrorCode(err))
}

func TestShareData_OwnershipFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	// Consent denied AND no payment, but the ownership failure wins
	f.registerRecord(t, "rec-1", types.ConsentDenied)

	err := f.coordinator.ShareData(ctx, "did:ledup:mallory", consumerDID, "rec-1")
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))
}

func TestShareData_ConsumerRoleRequired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")

	// The verifier DID holds no consumer role
	err := f.coordinator.ShareData(ctx, producerDID, verifierDID, "rec-1")
	assert.Equal(t, types.ErrCodeUnauthorizedConsumer, types.ErrorCode(err))
}

func TestShareData_ProviderMayShare(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")

	_, err := f.authority.RegisterDid(ctx, "did:ledup:clinic", "0xclinic")
	require.NoError(t, err)
	require.NoError(t, f.authority.GrantRole(ctx, adminDID, "did:ledup:clinic", types.RoleProvider))

	assert.NoError(t, f.coordinator.ShareData(ctx, "did:ledup:clinic", consumerDID, "rec-1"))
}

func TestShareData_RecordNotFound(t *testing.T) {
	f := setup(t)

	err := f.coordinator.ShareData(context.Background(), producerDID, consumerDID, "rec-ghost")
	assert.True(t, types.IsErrorType(err, types.ErrorTypeNotFound))
}

func TestGetRecordCid_OneTimeConsumption(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")
	require.NoError(t, f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1"))

	cid, err := f.coordinator.GetRecordCid(ctx, "rec-1", consumerDID)
	require.NoError(t, err)
	assert.Equal(t, "bafy-rec-1", cid)

	// The grant is consumed; an identical second fetch is refused
	_, err = f.coordinator.GetRecordCid(ctx, "rec-1", consumerDID)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))
}

func TestGetRecordCid_NeverGranted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")

	// Same error shape as the consumed case
	_, err := f.coordinator.GetRecordCid(ctx, "rec-1", consumerDID)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))
}

func TestGetRecordCid_UnknownRecord(t *testing.T) {
	f := setup(t)

	_, err := f.coordinator.GetRecordCid(context.Background(), "rec-ghost", consumerDID)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))
}

func TestRevoke_OwnerOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")
	require.NoError(t, f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1"))

	err := f.coordinator.Revoke(ctx, consumerDID, "rec-1", consumerDID)
	assert.True(t, types.IsErrorType(err, types.ErrorTypeAuthorization))

	require.NoError(t, f.coordinator.Revoke(ctx, producerDID, "rec-1", consumerDID))

	_, err = f.coordinator.GetRecordCid(ctx, "rec-1", consumerDID)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))
}

func TestRevoke_AbsentGrantIsNoOp(t *testing.T) {
	f := setup(t)
	f.registerRecord(t, "rec-1", types.ConsentAllowed)

	assert.NoError(t, f.coordinator.Revoke(context.Background(), producerDID, "rec-1", consumerDID))
}

func TestConsentFlip_DoesNotRevokeExistingGrant(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")
	require.NoError(t, f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1"))

	// Denying consent blocks new shares but leaves issued grants alive
	require.NoError(t, f.consents.UpdateConsent(ctx, producerDID, producer, types.ConsentDenied))

	cid, err := f.coordinator.GetRecordCid(ctx, "rec-1", consumerDID)
	require.NoError(t, err)
	assert.NotEmpty(t, cid)

	err = f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1")
	assert.Equal(t, types.ErrCodeConsentNotAllowed, types.ErrorCode(err))
}

func TestUpdateDidAuthority_HotSwap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.registerRecord(t, "rec-1", types.ConsentAllowed)
	f.pay(t, "rec-1")

	// An empty replacement authority denies every role predicate
	log := logger.New("error")
	replacement := didauth.New(didauth.NewMemoryStore(), log)
	f.coordinator.UpdateDidAuthority(replacement)

	err := f.coordinator.ShareData(ctx, producerDID, consumerDID, "rec-1")
	assert.Equal(t, types.ErrCodeUnauthorizedConsumer, types.ErrorCode(err))
}

// Full settlement walkthrough: register, attest, pay, share, fetch
// once, fetch again, withdraw, withdraw again.
func TestRecordLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.registerRecord(t, "R123", types.ConsentAllowed)

	require.NoError(t, f.catalog.VerifyRecord(ctx, "R123", verifierDID))
	verified, err := f.catalog.IsVerified(ctx, "R123")
	require.NoError(t, err)
	assert.True(t, verified)

	receipt, err := f.payments.ProcessPayment(ctx, consumer, producer, "R123", 1024, consumerDID)
	require.NoError(t, err)
	wantAmount := new(big.Int).Mul(unitPrice, big.NewInt(1024))
	assert.Zero(t, wantAmount.Cmp(receipt.Amount))

	require.NoError(t, f.coordinator.ShareData(ctx, producerDID, consumerDID, "R123"))

	cid, err := f.coordinator.GetRecordCid(ctx, "R123", consumerDID)
	require.NoError(t, err)
	assert.Equal(t, "bafy-R123", cid)

	_, err = f.coordinator.GetRecordCid(ctx, "R123", consumerDID)
	assert.Equal(t, types.ErrCodeUnauthorized, types.ErrorCode(err))

	balance := f.payments.GetProducerBalance(ctx, producer)
	_, err = f.payments.WithdrawProducerBalance(ctx, producer, balance)
	require.NoError(t, err)
	assert.Zero(t, balance.Cmp(f.tokens.BalanceOf(producer)))

	_, err = f.payments.WithdrawProducerBalance(ctx, producer, balance)
	assert.Equal(t, types.ErrCodeInsufficientBalance, types.ErrorCode(err))
}
