package dataregistry

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SmartContract is the on-chain rendition of the data registry: the
// consent, record, payment and grant state machines backed by world
// state instead of SQL. Transactions are serialized by ordering, so
// each operation observes fully committed prior state.
type SmartContract struct {
	contractapi.Contract
}

// stateStore is the slice of the chaincode stub the registry logic
// needs. Narrow on purpose so tests can drive the logic with a fake.
type stateStore interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
}

const (
	producerPrefix = "producer_"
	recordPrefix   = "record_"
	paymentPrefix  = "payment_"
	grantPrefix    = "grant_"
	balancePrefix  = "balance_"
	tokenPrefix    = "token_"
	allowPrefix    = "allowance_"
	rolePrefix     = "role_"
	paramsKey      = "registry_params"

	serviceFeeAccount = "__service_fee__"
	bpsDenominator    = 10000
)

// Producer is the per-producer aggregate in world state
type Producer struct {
	Producer  string `json:"producer"`
	OwnerDid  string `json:"owner_did"`
	Status    string `json:"status"`
	Consent   string `json:"consent"`
	Nonce     uint64 `json:"nonce"`
	IsActive  bool   `json:"is_active"`
	UpdatedAt string `json:"updated_at"`
}

// Record is a registered health record pointer
type Record struct {
	RecordID     string `json:"record_id"`
	Producer     string `json:"producer"`
	Cid          string `json:"cid"`
	Hash         string `json:"hash"`
	ResourceType string `json:"resource_type"`
	DataSize     uint64 `json:"data_size"`
	Signature    string `json:"signature"`
	IsVerified   bool   `json:"is_verified"`
	UpdatedAt    string `json:"updated_at"`
}

// Payment is the settlement state for one record id
type Payment struct {
	RecordID    string `json:"record_id"`
	ConsumerDid string `json:"consumer_did"`
	Amount      string `json:"amount"`
	Verified    bool   `json:"verified"`
}

// Params are the admin-adjustable registry economics
type Params struct {
	UnitPrice       string `json:"unit_price"`
	ServiceFeeBps   int64  `json:"service_fee_bps"`
	MinimumWithdraw string `json:"minimum_withdraw"`
}

// InitLedger seeds the admin role and default economics
func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface, adminDid string) error {
	state := ctx.GetStub()

	if err := state.PutState(rolePrefix+adminDid+"_admin", []byte("1")); err != nil {
		return fmt.Errorf("failed to seed admin role: %v", err)
	}

	params := Params{
		UnitPrice:       "1000000000000000000",
		ServiceFeeBps:   500,
		MinimumWithdraw: "10000000000000000000",
	}
	return putJSON(state, paramsKey, params)
}

// GrantRole grants a role to a DID. Admin-gated.
func (s *SmartContract) GrantRole(ctx contractapi.TransactionContextInterface, callerDid, did, role string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}
	return state.PutState(rolePrefix+did+"_"+role, []byte("1"))
}

// RevokeRole revokes a role from a DID. Admin-gated.
func (s *SmartContract) RevokeRole(ctx contractapi.TransactionContextInterface, callerDid, did, role string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}
	return state.DelState(rolePrefix + did + "_" + role)
}

// HasRole reports whether a DID holds a role
func (s *SmartContract) HasRole(ctx contractapi.TransactionContextInterface, did, role string) (bool, error) {
	return hasRole(ctx.GetStub(), did, role)
}

// RegisterProducer creates the producer aggregate with nonce zero
func (s *SmartContract) RegisterProducer(ctx contractapi.TransactionContextInterface, producer, ownerDid, status, consent string) error {
	return registerProducer(ctx.GetStub(), producer, ownerDid, status, consent)
}

func registerProducer(state stateStore, producer, ownerDid, status, consent string) error {
	existing, err := state.GetState(producerPrefix + producer)
	if err != nil {
		return fmt.Errorf("failed to read producer: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("producer already registered: %s", producer)
	}

	return putJSON(state, producerPrefix+producer, Producer{
		Producer:  producer,
		OwnerDid:  ownerDid,
		Status:    status,
		Consent:   consent,
		Nonce:     0,
		IsActive:  status == "active",
		UpdatedAt: now(),
	})
}

// UpdateConsent flips the producer's consent flag. Self- or admin-only.
// Grants already issued stay live; denial binds at the next ShareData.
func (s *SmartContract) UpdateConsent(ctx contractapi.TransactionContextInterface, callerDid, producer, consent string) error {
	return updateConsent(ctx.GetStub(), callerDid, producer, consent)
}

func updateConsent(state stateStore, callerDid, producer, consent string) error {
	record, err := getProducer(state, producer)
	if err != nil {
		return err
	}

	if callerDid != record.OwnerDid {
		admin, err := hasRole(state, callerDid, "admin")
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("unauthorized: consent is owner- or admin-only")
		}
	}

	record.Consent = consent
	record.UpdatedAt = now()
	return putJSON(state, producerPrefix+producer, record)
}

// RegisterRecord inserts a record pointer and bumps the producer nonce
func (s *SmartContract) RegisterRecord(ctx contractapi.TransactionContextInterface, producer, recordID, cid, hash, resourceType string, dataSize uint64, signature string) error {
	return registerRecord(ctx.GetStub(), producer, recordID, cid, hash, resourceType, dataSize, signature)
}

func registerRecord(state stateStore, producer, recordID, cid, hash, resourceType string, dataSize uint64, signature string) error {
	if recordID == "" || signature == "" || resourceType == "" {
		return fmt.Errorf("record id, signature and resource type are required")
	}

	producerRecord, err := getProducer(state, producer)
	if err != nil {
		return err
	}

	existing, err := state.GetState(recordPrefix + recordID)
	if err != nil {
		return fmt.Errorf("failed to read record: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("record already exists: %s", recordID)
	}

	if err := putJSON(state, recordPrefix+recordID, Record{
		RecordID:     recordID,
		Producer:     producer,
		Cid:          cid,
		Hash:         hash,
		ResourceType: resourceType,
		DataSize:     dataSize,
		Signature:    signature,
		IsVerified:   false,
		UpdatedAt:    now(),
	}); err != nil {
		return err
	}

	producerRecord.Nonce++
	producerRecord.UpdatedAt = now()
	return putJSON(state, producerPrefix+producer, producerRecord)
}

// UpdateRecord replaces a record's pointer and resets its verified flag
func (s *SmartContract) UpdateRecord(ctx contractapi.TransactionContextInterface, callerDid, recordID, cid, hash, signature string) error {
	return updateRecord(ctx.GetStub(), callerDid, recordID, cid, hash, signature)
}

func updateRecord(state stateStore, callerDid, recordID, cid, hash, signature string) error {
	record, err := getRecord(state, recordID)
	if err != nil {
		return err
	}

	producerRecord, err := getProducer(state, record.Producer)
	if err != nil {
		return err
	}
	if !producerRecord.IsActive {
		return fmt.Errorf("record not active: %s", recordID)
	}

	if callerDid != producerRecord.OwnerDid {
		provider, err := hasRole(state, callerDid, "provider")
		if err != nil {
			return err
		}
		if !provider {
			return fmt.Errorf("unauthorized: update requires the owner or a provider")
		}
	}

	record.Cid = cid
	record.Hash = hash
	record.Signature = signature
	// Edits invalidate prior attestation
	record.IsVerified = false
	record.UpdatedAt = now()
	if err := putJSON(state, recordPrefix+recordID, record); err != nil {
		return err
	}

	producerRecord.Nonce++
	producerRecord.UpdatedAt = now()
	return putJSON(state, producerPrefix+record.Producer, producerRecord)
}

// VerifyRecord attests a record. Verifier role required; re-verifying
// is an unconditional overwrite, never an error.
func (s *SmartContract) VerifyRecord(ctx contractapi.TransactionContextInterface, recordID, verifierDid string) error {
	return verifyRecord(ctx.GetStub(), recordID, verifierDid)
}

func verifyRecord(state stateStore, recordID, verifierDid string) error {
	if err := requireRole(state, verifierDid, "verifier"); err != nil {
		return err
	}

	record, err := getRecord(state, recordID)
	if err != nil {
		return err
	}

	record.IsVerified = true
	record.UpdatedAt = now()
	return putJSON(state, recordPrefix+recordID, record)
}

// IsVerified reads the verified flag
func (s *SmartContract) IsVerified(ctx contractapi.TransactionContextInterface, recordID string) (bool, error) {
	record, err := getRecord(ctx.GetStub(), recordID)
	if err != nil {
		return false, err
	}
	return record.IsVerified, nil
}

// MintTokens credits a token balance. Admin-gated; development and
// test networks only.
func (s *SmartContract) MintTokens(ctx contractapi.TransactionContextInterface, callerDid, account, amount string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}

	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return addBalance(state, tokenPrefix+account, value)
}

// Approve lets the registry spend up to amount of the owner's tokens
func (s *SmartContract) Approve(ctx contractapi.TransactionContextInterface, owner, amount string) error {
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	return ctx.GetStub().PutState(allowPrefix+owner, []byte(value.String()))
}

// ProcessPayment settles a consumer's payment for a record: debits the
// payer's tokens against their approval, splits the amount between the
// producer and the service fee, and marks the record paid. One-shot
// per record id.
func (s *SmartContract) ProcessPayment(ctx contractapi.TransactionContextInterface, payer, producer, recordID string, dataSize uint64, consumerDid string) error {
	return processPayment(ctx.GetStub(), payer, producer, recordID, dataSize, consumerDid)
}

func processPayment(state stateStore, payer, producer, recordID string, dataSize uint64, consumerDid string) error {
	if dataSize == 0 {
		return fmt.Errorf("data size must be positive")
	}

	if err := requireRole(state, consumerDid, "consumer"); err != nil {
		return fmt.Errorf("invalid consumer: %v", err)
	}

	producerRecord, err := getProducer(state, producer)
	if err != nil {
		return fmt.Errorf("invalid producer: %v", err)
	}
	producerRole, err := hasRole(state, producerRecord.OwnerDid, "producer")
	if err != nil {
		return err
	}
	if !producerRole {
		return fmt.Errorf("invalid producer: owner did lacks producer role")
	}

	existing, err := getPayment(state, recordID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Verified {
		return fmt.Errorf("payment already processed for record: %s", recordID)
	}

	params, err := getParams(state)
	if err != nil {
		return err
	}
	unitPrice, err := parseAmount(params.UnitPrice)
	if err != nil {
		return err
	}

	amount := new(big.Int).Mul(unitPrice, new(big.Int).SetUint64(dataSize))
	fee := new(big.Int).Mul(amount, big.NewInt(params.ServiceFeeBps))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	producerShare := new(big.Int).Sub(amount, fee)

	allowance, err := readBalance(state, allowPrefix+payer)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient allowance")
	}
	tokens, err := readBalance(state, tokenPrefix+payer)
	if err != nil {
		return err
	}
	if tokens.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient token balance")
	}

	if err := state.PutState(allowPrefix+payer, []byte(new(big.Int).Sub(allowance, amount).String())); err != nil {
		return err
	}
	if err := state.PutState(tokenPrefix+payer, []byte(new(big.Int).Sub(tokens, amount).String())); err != nil {
		return err
	}
	if err := addBalance(state, balancePrefix+producer, producerShare); err != nil {
		return err
	}
	if err := addBalance(state, balancePrefix+serviceFeeAccount, fee); err != nil {
		return err
	}

	return putJSON(state, paymentPrefix+recordID, Payment{
		RecordID:    recordID,
		ConsumerDid: consumerDid,
		Amount:      amount.String(),
		Verified:    true,
	})
}

// VerifyPayment reads the payment-verified flag; unknown records read
// as unpaid.
func (s *SmartContract) VerifyPayment(ctx contractapi.TransactionContextInterface, recordID string) (bool, error) {
	payment, err := getPayment(ctx.GetStub(), recordID)
	if err != nil {
		return false, err
	}
	return payment != nil && payment.Verified, nil
}

// ShareData issues a one-time grant. Predicates run in a fixed order:
// caller ownership, consumer role, payment, consent.
func (s *SmartContract) ShareData(ctx contractapi.TransactionContextInterface, callerDid, consumerDid, recordID string) error {
	return shareData(ctx.GetStub(), callerDid, consumerDid, recordID)
}

func shareData(state stateStore, callerDid, consumerDid, recordID string) error {
	record, err := getRecord(state, recordID)
	if err != nil {
		return err
	}
	producerRecord, err := getProducer(state, record.Producer)
	if err != nil {
		return err
	}

	if callerDid != producerRecord.OwnerDid {
		provider, err := hasRole(state, callerDid, "provider")
		if err != nil {
			return err
		}
		if !provider {
			return fmt.Errorf("unauthorized: sharing requires the owner or a provider")
		}
	}

	consumer, err := hasRole(state, consumerDid, "consumer")
	if err != nil {
		return err
	}
	if !consumer {
		return fmt.Errorf("unauthorized consumer: %s", consumerDid)
	}

	payment, err := getPayment(state, recordID)
	if err != nil {
		return err
	}
	if payment == nil || !payment.Verified {
		return fmt.Errorf("payment not verified for record: %s", recordID)
	}

	if producerRecord.Consent != "allowed" {
		return fmt.Errorf("consent not allowed: producer consent is %s", producerRecord.Consent)
	}

	return state.PutState(grantPrefix+recordID+"_"+consumerDid, []byte("1"))
}

// GetRecordCid consumes the caller's grant and returns the content
// pointer. Never-granted and already-consumed both fail the same way.
func (s *SmartContract) GetRecordCid(ctx contractapi.TransactionContextInterface, recordID, requesterDid string) (string, error) {
	return getRecordCid(ctx.GetStub(), recordID, requesterDid)
}

func getRecordCid(state stateStore, recordID, requesterDid string) (string, error) {
	granted, err := state.GetState(grantPrefix + recordID + "_" + requesterDid)
	if err != nil {
		return "", fmt.Errorf("failed to read grant: %v", err)
	}
	consumer, err := hasRole(state, requesterDid, "consumer")
	if err != nil {
		return "", err
	}
	if granted == nil || !consumer {
		return "", fmt.Errorf("unauthorized: access denied for record %s", recordID)
	}

	payment, err := getPayment(state, recordID)
	if err != nil {
		return "", err
	}
	if payment == nil || !payment.Verified {
		return "", fmt.Errorf("payment not verified for record: %s", recordID)
	}

	record, err := getRecord(state, recordID)
	if err != nil {
		return "", err
	}

	if err := state.DelState(grantPrefix + recordID + "_" + requesterDid); err != nil {
		return "", fmt.Errorf("failed to consume grant: %v", err)
	}
	return record.Cid, nil
}

// Revoke flips a grant off without consumption. Owner- or admin-only;
// revoking an absent grant is a no-op.
func (s *SmartContract) Revoke(ctx contractapi.TransactionContextInterface, callerDid, recordID, consumerDid string) error {
	state := ctx.GetStub()

	record, err := getRecord(state, recordID)
	if err != nil {
		return err
	}
	producerRecord, err := getProducer(state, record.Producer)
	if err != nil {
		return err
	}
	if callerDid != producerRecord.OwnerDid {
		admin, err := hasRole(state, callerDid, "admin")
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("unauthorized: revoking requires the owner or an admin")
		}
	}

	return state.DelState(grantPrefix + recordID + "_" + consumerDid)
}

// GetProducerBalance reads a producer's accrued balance
func (s *SmartContract) GetProducerBalance(ctx contractapi.TransactionContextInterface, producer string) (string, error) {
	balance, err := readBalance(ctx.GetStub(), balancePrefix+producer)
	if err != nil {
		return "", err
	}
	return balance.String(), nil
}

// WithdrawProducerBalance pays out accrued balance to the producer's
// token account. The accrual is decremented before the token credit.
func (s *SmartContract) WithdrawProducerBalance(ctx contractapi.TransactionContextInterface, producer, amount string) error {
	return withdrawProducerBalance(ctx.GetStub(), producer, amount)
}

func withdrawProducerBalance(state stateStore, producer, amount string) error {
	value, err := parseAmount(amount)
	if err != nil {
		return err
	}

	params, err := getParams(state)
	if err != nil {
		return err
	}

	balance, err := readBalance(state, balancePrefix+producer)
	if err != nil {
		return err
	}
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("insufficient balance")
	}

	minimum, err := parseAmount(params.MinimumWithdraw)
	if err != nil {
		return err
	}
	if value.Cmp(minimum) < 0 {
		return fmt.Errorf("amount below minimum withdrawal")
	}

	if err := state.PutState(balancePrefix+producer, []byte(new(big.Int).Sub(balance, value).String())); err != nil {
		return err
	}
	return addBalance(state, tokenPrefix+producer, value)
}

// WithdrawServiceFee pays out accrued service fees. Admin-only.
func (s *SmartContract) WithdrawServiceFee(ctx contractapi.TransactionContextInterface, callerDid, destination, amount string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}

	value, err := parseAmount(amount)
	if err != nil {
		return err
	}

	balance, err := readBalance(state, balancePrefix+serviceFeeAccount)
	if err != nil {
		return err
	}
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("insufficient balance")
	}

	if err := state.PutState(balancePrefix+serviceFeeAccount, []byte(new(big.Int).Sub(balance, value).String())); err != nil {
		return err
	}
	return addBalance(state, tokenPrefix+destination, value)
}

// ChangeServiceFee changes the fee split. Admin-only, capped at 50%.
func (s *SmartContract) ChangeServiceFee(ctx contractapi.TransactionContextInterface, callerDid string, bps int64) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}
	if bps < 0 || bps > 5000 {
		return fmt.Errorf("invalid parameter: service fee must be between 0 and 5000 bps")
	}

	params, err := getParams(state)
	if err != nil {
		return err
	}
	params.ServiceFeeBps = bps
	return putJSON(state, paramsKey, params)
}

// ChangeUnitPrice changes the per-data-unit price. Admin-only.
func (s *SmartContract) ChangeUnitPrice(ctx contractapi.TransactionContextInterface, callerDid, amount string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}

	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if value.Sign() <= 0 {
		return fmt.Errorf("invalid parameter: unit price must be positive")
	}

	params, err := getParams(state)
	if err != nil {
		return err
	}
	params.UnitPrice = value.String()
	return putJSON(state, paramsKey, params)
}

// SetMinimumWithdrawAmount changes the withdrawal threshold. Admin-only.
func (s *SmartContract) SetMinimumWithdrawAmount(ctx contractapi.TransactionContextInterface, callerDid, amount string) error {
	state := ctx.GetStub()
	if err := requireRole(state, callerDid, "admin"); err != nil {
		return err
	}

	value, err := parseAmount(amount)
	if err != nil {
		return err
	}
	if value.Sign() <= 0 {
		return fmt.Errorf("invalid parameter: minimum withdrawal must be positive")
	}

	params, err := getParams(state)
	if err != nil {
		return err
	}
	params.MinimumWithdraw = value.String()
	return putJSON(state, paramsKey, params)
}

// Helper functions

func getProducer(state stateStore, producer string) (*Producer, error) {
	data, err := state.GetState(producerPrefix + producer)
	if err != nil {
		return nil, fmt.Errorf("failed to read producer: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("producer not found: %s", producer)
	}

	var record Producer
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func getRecord(state stateStore, recordID string) (*Record, error) {
	data, err := state.GetState(recordPrefix + recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("record not found: %s", recordID)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func getPayment(state stateStore, recordID string) (*Payment, error) {
	data, err := state.GetState(paymentPrefix + recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment: %v", err)
	}
	if data == nil {
		return nil, nil
	}

	var payment Payment
	if err := json.Unmarshal(data, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func getParams(state stateStore) (*Params, error) {
	data, err := state.GetState(paramsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read params: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("registry params not initialized")
	}

	var params Params
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func hasRole(state stateStore, did, role string) (bool, error) {
	data, err := state.GetState(rolePrefix + did + "_" + role)
	if err != nil {
		return false, fmt.Errorf("failed to read role: %v", err)
	}
	return data != nil, nil
}

func requireRole(state stateStore, did, role string) error {
	ok, err := hasRole(state, did, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unauthorized: %s lacks the %s role", did, role)
	}
	return nil
}

func readBalance(state stateStore, key string) (*big.Int, error) {
	data, err := state.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %v", err)
	}
	if data == nil {
		return big.NewInt(0), nil
	}
	return parseAmount(string(data))
}

func addBalance(state stateStore, key string, delta *big.Int) error {
	balance, err := readBalance(state, key)
	if err != nil {
		return err
	}
	return state.PutState(key, []byte(new(big.Int).Add(balance, delta).String()))
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid token amount: %q", value)
	}
	return amount, nil
}

func putJSON(state stateStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return state.PutState(key, data)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
