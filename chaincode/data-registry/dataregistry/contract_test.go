package dataregistry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState struct {
	store map[string][]byte
}

func newFakeState() *fakeState {
	return &fakeState{store: make(map[string][]byte)}
}

func (f *fakeState) GetState(key string) ([]byte, error) {
	return f.store[key], nil
}

func (f *fakeState) PutState(key string, value []byte) error {
	f.store[key] = value
	return nil
}

func (f *fakeState) DelState(key string) error {
	delete(f.store, key)
	return nil
}

const (
	adminDid    = "did:ledup:admin"
	producerDid = "did:ledup:p1"
	consumerDid = "did:ledup:c1"
	verifierDid = "did:ledup:v1"
	producerKey = "0xp1"
	oneToken    = "1000000000000000000"
)

func setupState(t *testing.T) *fakeState {
	t.Helper()
	state := newFakeState()

	require.NoError(t, putJSON(state, paramsKey, Params{
		UnitPrice:       oneToken,
		ServiceFeeBps:   500,
		MinimumWithdraw: "10000000000000000000",
	}))

	for did, role := range map[string]string{
		adminDid:    "admin",
		producerDid: "producer",
		consumerDid: "consumer",
		verifierDid: "verifier",
	} {
		require.NoError(t, state.PutState(rolePrefix+did+"_"+role, []byte("1")))
	}

	require.NoError(t, registerProducer(state, producerKey, producerDid, "active", "allowed"))

	// Fund the consumer with plenty of approved tokens
	funds := new(big.Int).Mul(mustAmount(t, oneToken), big.NewInt(100000))
	require.NoError(t, state.PutState(tokenPrefix+consumerDid, []byte(funds.String())))
	require.NoError(t, state.PutState(allowPrefix+consumerDid, []byte(funds.String())))

	return state
}

func mustAmount(t *testing.T, value string) *big.Int {
	t.Helper()
	amount, err := parseAmount(value)
	require.NoError(t, err)
	return amount
}

func seedRecord(t *testing.T, state *fakeState, recordID string) {
	t.Helper()
	require.NoError(t, registerRecord(state, producerKey, recordID, "bafy-"+recordID, "hash-"+recordID, "Observation", 100, "sig"))
}

func pay(t *testing.T, state *fakeState, recordID string) {
	t.Helper()
	require.NoError(t, processPayment(state, consumerDid, producerKey, recordID, 100, consumerDid))
}

func TestRegisterProducer_Duplicate(t *testing.T) {
	state := setupState(t)

	err := registerProducer(state, producerKey, producerDid, "active", "allowed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestUpdateConsent_OwnerOrAdminOnly(t *testing.T) {
	state := setupState(t)

	require.Error(t, updateConsent(state, consumerDid, producerKey, "denied"))

	require.NoError(t, updateConsent(state, adminDid, producerKey, "denied"))
	record, err := getProducer(state, producerKey)
	require.NoError(t, err)
	assert.Equal(t, "denied", record.Consent)

	require.NoError(t, updateConsent(state, producerDid, producerKey, "allowed"))
}

func TestRegisterRecord_BumpsNonce(t *testing.T) {
	state := setupState(t)

	seedRecord(t, state, "rec-1")
	seedRecord(t, state, "rec-2")

	record, err := getProducer(state, producerKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), record.Nonce)

	err = registerRecord(state, producerKey, "rec-1", "cid", "hash", "Observation", 1, "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestUpdateRecord_ResetsVerification(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")

	require.NoError(t, verifyRecord(state, "rec-1", verifierDid))
	record, err := getRecord(state, "rec-1")
	require.NoError(t, err)
	require.True(t, record.IsVerified)

	require.NoError(t, updateRecord(state, producerDid, "rec-1", "bafy-v2", "hash-v2", "sig-v2"))
	record, err = getRecord(state, "rec-1")
	require.NoError(t, err)
	assert.False(t, record.IsVerified)
	assert.Equal(t, "bafy-v2", record.Cid)
}

func TestVerifyRecord_RequiresVerifierRole(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")

	err := verifyRecord(state, "rec-1", consumerDid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifier")
}

func TestProcessPayment_SplitsAmountExactly(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")

	pay(t, state, "rec-1")

	amount := new(big.Int).Mul(mustAmount(t, oneToken), big.NewInt(100))
	fee := new(big.Int).Mul(amount, big.NewInt(500))
	fee.Quo(fee, big.NewInt(bpsDenominator))

	producerBalance, err := readBalance(state, balancePrefix+producerKey)
	require.NoError(t, err)
	feeBalance, err := readBalance(state, balancePrefix+serviceFeeAccount)
	require.NoError(t, err)

	assert.Equal(t, fee.String(), feeBalance.String())
	assert.Equal(t, new(big.Int).Sub(amount, fee).String(), producerBalance.String())
	assert.Equal(t, amount.String(), new(big.Int).Add(producerBalance, feeBalance).String())
}

func TestProcessPayment_AlreadyProcessed(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")

	err := processPayment(state, consumerDid, producerKey, "rec-1", 100, consumerDid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processed")
}

func TestProcessPayment_RequiresConsumerRole(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")

	err := processPayment(state, producerDid, producerKey, "rec-1", 100, producerDid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid consumer")
}

func TestShareData_RequiresPaymentBeforeConsent(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	require.NoError(t, updateConsent(state, producerDid, producerKey, "denied"))

	err := shareData(state, producerDid, consumerDid, "rec-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment not verified")
}

func TestShareData_ConsentGate(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")
	require.NoError(t, updateConsent(state, producerDid, producerKey, "denied"))

	err := shareData(state, producerDid, consumerDid, "rec-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consent")

	require.NoError(t, updateConsent(state, producerDid, producerKey, "allowed"))
	require.NoError(t, shareData(state, producerDid, consumerDid, "rec-1"))
}

func TestShareData_OwnershipCheckedFirst(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")

	// Stranger caller fails on ownership even though payment is also missing
	err := shareData(state, consumerDid, consumerDid, "rec-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized: sharing requires")
}

func TestGetRecordCid_OneTimeConsumption(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")
	require.NoError(t, shareData(state, producerDid, consumerDid, "rec-1"))

	cid, err := getRecordCid(state, "rec-1", consumerDid)
	require.NoError(t, err)
	assert.Equal(t, "bafy-rec-1", cid)

	_, err = getRecordCid(state, "rec-1", consumerDid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestGetRecordCid_NeverGrantedOrUnknownLookAlike(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")

	_, neverGranted := getRecordCid(state, "rec-1", consumerDid)
	_, unknownRecord := getRecordCid(state, "rec-404", consumerDid)

	require.Error(t, neverGranted)
	require.Error(t, unknownRecord)
	assert.Contains(t, neverGranted.Error(), "unauthorized")
	assert.Contains(t, unknownRecord.Error(), "unauthorized")
}

func TestConsentFlip_DoesNotRevokeIssuedGrant(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")
	require.NoError(t, shareData(state, producerDid, consumerDid, "rec-1"))

	require.NoError(t, updateConsent(state, producerDid, producerKey, "denied"))

	cid, err := getRecordCid(state, "rec-1", consumerDid)
	require.NoError(t, err)
	assert.Equal(t, "bafy-rec-1", cid)
}

func TestWithdrawProducerBalance(t *testing.T) {
	state := setupState(t)
	seedRecord(t, state, "rec-1")
	pay(t, state, "rec-1")

	balance, err := readBalance(state, balancePrefix+producerKey)
	require.NoError(t, err)

	err = withdrawProducerBalance(state, producerKey, new(big.Int).Add(balance, big.NewInt(1)).String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")

	err = withdrawProducerBalance(state, producerKey, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")

	require.NoError(t, withdrawProducerBalance(state, producerKey, balance.String()))

	remaining, err := readBalance(state, balancePrefix+producerKey)
	require.NoError(t, err)
	assert.Equal(t, "0", remaining.String())

	tokens, err := readBalance(state, tokenPrefix+producerKey)
	require.NoError(t, err)
	assert.Equal(t, balance.String(), tokens.String())
}
