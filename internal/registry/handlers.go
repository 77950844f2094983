package registry

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/interfaces"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/logger"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/storage"
	"github.com/NGI-TRUSTCHAIN/LED-UP-sub006/pkg/types"
)

// maxContentSize caps uploaded blobs at 16 MiB
const maxContentSize = 16 << 20

// Handlers exposes the registry core over HTTP
type Handlers struct {
	coordinator *Coordinator
	registrar   interfaces.DidRegistrar
	authority   interfaces.DidAuthority
	consents    interfaces.ConsentLedger
	catalog     interfaces.RecordCatalog
	payments    interfaces.PaymentLedger
	content     storage.ContentStore
	logger      *logger.Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(coordinator *Coordinator, registrar interfaces.DidRegistrar, authority interfaces.DidAuthority, consents interfaces.ConsentLedger, catalog interfaces.RecordCatalog, payments interfaces.PaymentLedger, content storage.ContentStore, log *logger.Logger) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		registrar:   registrar,
		authority:   authority,
		consents:    consents,
		catalog:     catalog,
		payments:    payments,
		content:     content,
		logger:      log,
	}
}

// RegisterRoutes registers HTTP routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Identity
	router.HandleFunc("/dids", h.RegisterDid).Methods("POST")
	router.HandleFunc("/dids/by-address/{address}", h.GetDid).Methods("GET")
	router.HandleFunc("/dids/{did}", h.GetDocument).Methods("GET")
	router.HandleFunc("/dids/{did}", h.DeactivateDid).Methods("DELETE")
	router.HandleFunc("/dids/{did}/roles/{role}", h.GrantRole).Methods("POST")
	router.HandleFunc("/dids/{did}/roles/{role}", h.RevokeRole).Methods("DELETE")

	// Producers and consent
	router.HandleFunc("/producers", h.RegisterProducer).Methods("POST")
	router.HandleFunc("/producers/{producer}/consent", h.UpdateConsent).Methods("PUT")
	router.HandleFunc("/producers/{producer}/consent", h.GetConsent).Methods("GET")
	router.HandleFunc("/producers/{producer}/status", h.UpdateStatus).Methods("PUT")
	router.HandleFunc("/producers/{producer}", h.RemoveProducer).Methods("DELETE")
	router.HandleFunc("/producers/{producer}/balance", h.GetProducerBalance).Methods("GET")

	// Records
	router.HandleFunc("/records", h.RegisterRecord).Methods("POST")
	router.HandleFunc("/records/{recordID}", h.UpdateRecord).Methods("PUT")
	router.HandleFunc("/records/{recordID}", h.GetRecord).Methods("GET")
	router.HandleFunc("/records/{recordID}/verify", h.VerifyRecord).Methods("POST")
	router.HandleFunc("/records/{recordID}/verified", h.IsVerified).Methods("GET")

	// Sharing
	router.HandleFunc("/records/{recordID}/share", h.ShareData).Methods("POST")
	router.HandleFunc("/records/{recordID}/cid", h.GetRecordCid).Methods("GET")
	router.HandleFunc("/records/{recordID}/revoke", h.RevokeGrant).Methods("POST")

	// Content blobs
	router.HandleFunc("/content", h.PutContent).Methods("POST")
	router.HandleFunc("/content/{cid}", h.GetContent).Methods("GET")

	// Settlement
	router.HandleFunc("/payments", h.ProcessPayment).Methods("POST")
	router.HandleFunc("/payments/{recordID}", h.VerifyPayment).Methods("GET")
	router.HandleFunc("/balances/service-fee", h.GetServiceFeeBalance).Methods("GET")
	router.HandleFunc("/withdrawals/producer", h.WithdrawProducerBalance).Methods("POST")
	router.HandleFunc("/withdrawals/service-fee", h.WithdrawServiceFee).Methods("POST")

	// Registry parameters
	router.HandleFunc("/params/minimum-withdraw", h.SetMinimumWithdraw).Methods("PUT")
	router.HandleFunc("/params/service-fee", h.ChangeServiceFee).Methods("PUT")
	router.HandleFunc("/params/unit-price", h.ChangeUnitPrice).Methods("PUT")
}

// RegisterDid handles DID registration
func (h *Handlers) RegisterDid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DID     string `json:"did"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	if req.DID == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "did and address are required")
		return
	}

	document, err := h.registrar.RegisterDid(r.Context(), req.DID, req.Address)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, document)
}

// GetDid resolves an address to its active DID
func (h *Handlers) GetDid(w http.ResponseWriter, r *http.Request) {
	did, err := h.authority.GetDid(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"did": did})
}

// GetDocument returns a DID document
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	document, err := h.authority.GetDocument(r.Context(), mux.Vars(r)["did"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, document)
}

// DeactivateDid soft-deactivates a DID
func (h *Handlers) DeactivateDid(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if err := h.registrar.DeactivateDid(r.Context(), claims.DID, mux.Vars(r)["did"]); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "DID deactivated"})
}

// GrantRole grants a role to a DID
func (h *Handlers) GrantRole(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	vars := mux.Vars(r)
	if err := h.registrar.GrantRole(r.Context(), claims.DID, vars["did"], types.Role(vars["role"])); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Role granted"})
}

// RevokeRole revokes a role from a DID
func (h *Handlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	vars := mux.Vars(r)
	if err := h.registrar.RevokeRole(r.Context(), claims.DID, vars["did"], types.Role(vars["role"])); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Role revoked"})
}

// RegisterProducer creates the caller's producer aggregate
func (h *Handlers) RegisterProducer(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Status  string `json:"status"`
		Consent string `json:"consent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	record, err := h.consents.RegisterProducer(r.Context(), claims.Address, claims.DID,
		types.ParseRecordStatus(req.Status), types.ParseConsentStatus(req.Consent))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// UpdateConsent flips a producer's consent flag
func (h *Handlers) UpdateConsent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Consent string `json:"consent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	err := h.consents.UpdateConsent(r.Context(), claims.DID, mux.Vars(r)["producer"], types.ParseConsentStatus(req.Consent))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Consent updated"})
}

// GetConsent reads a producer's consent flag
func (h *Handlers) GetConsent(w http.ResponseWriter, r *http.Request) {
	consent, err := h.consents.GetConsent(r.Context(), mux.Vars(r)["producer"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"consent": consent.String()})
}

// UpdateStatus changes a producer's record lifecycle status
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	err := h.consents.UpdateStatus(r.Context(), claims.DID, mux.Vars(r)["producer"], types.ParseRecordStatus(req.Status))
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Status updated"})
}

// RemoveProducer deletes the whole per-producer record set. Admin-only.
func (h *Handlers) RemoveProducer(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	err := h.catalog.RemoveProducerRecords(r.Context(), claims.DID, mux.Vars(r)["producer"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Producer records removed"})
}

// GetProducerBalance reads a producer's accrued balance
func (h *Handlers) GetProducerBalance(w http.ResponseWriter, r *http.Request) {
	balance := h.payments.GetProducerBalance(r.Context(), mux.Vars(r)["producer"])
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// RegisterRecord inserts a record for the calling producer
func (h *Handlers) RegisterRecord(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		RecordID     string `json:"record_id"`
		Signature    string `json:"signature"`
		ResourceType string `json:"resource_type"`
		CID          string `json:"cid"`
		URL          string `json:"url"`
		Hash         string `json:"hash"`
		DataSize     uint64 `json:"data_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "signature must be base64 encoded")
		return
	}

	record, err := h.catalog.RegisterRecord(r.Context(), claims.Address, req.RecordID, signature, req.ResourceType, types.RecordMetadata{
		CID:      req.CID,
		URL:      req.URL,
		Hash:     req.Hash,
		DataSize: req.DataSize,
	})
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// UpdateRecord replaces a record's metadata
func (h *Handlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Signature string `json:"signature"`
		CID       string `json:"cid"`
		URL       string `json:"url"`
		Hash      string `json:"hash"`
		DataSize  uint64 `json:"data_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "signature must be base64 encoded")
		return
	}

	err = h.catalog.UpdateRecord(r.Context(), mux.Vars(r)["recordID"], types.RecordMetadata{
		CID:      req.CID,
		URL:      req.URL,
		Hash:     req.Hash,
		DataSize: req.DataSize,
	}, signature, claims.DID)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Record updated"})
}

// GetRecord returns record metadata. The content pointer is only
// reachable through the grant-consuming cid endpoint.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.catalog.GetRecord(r.Context(), mux.Vars(r)["recordID"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record_id":     record.RecordID,
		"producer":      record.Producer,
		"resource_type": record.ResourceType,
		"hash":          record.Hash,
		"is_verified":   record.IsVerified,
		"updated_at":    record.UpdatedAt,
	})
}

// VerifyRecord attests a record. Verifier role required.
func (h *Handlers) VerifyRecord(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	if err := h.catalog.VerifyRecord(r.Context(), mux.Vars(r)["recordID"], claims.DID); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Record verified"})
}

// IsVerified reads a record's verified flag
func (h *Handlers) IsVerified(w http.ResponseWriter, r *http.Request) {
	verified, err := h.catalog.IsVerified(r.Context(), mux.Vars(r)["recordID"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

// ShareData issues a one-time grant to a consumer
func (h *Handlers) ShareData(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		ConsumerDID string `json:"consumer_did"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	if req.ConsumerDID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "consumer_did is required")
		return
	}

	if err := h.coordinator.ShareData(r.Context(), claims.DID, req.ConsumerDID, mux.Vars(r)["recordID"]); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Access granted"})
}

// GetRecordCid consumes the caller's grant and returns the content pointer
func (h *Handlers) GetRecordCid(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	cid, err := h.coordinator.GetRecordCid(r.Context(), mux.Vars(r)["recordID"], claims.DID)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cid": cid})
}

// RevokeGrant flips a consumer's grant off without consumption
func (h *Handlers) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		ConsumerDID string `json:"consumer_did"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if err := h.coordinator.Revoke(r.Context(), claims.DID, mux.Vars(r)["recordID"], req.ConsumerDID); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Grant revoked"})
}

// PutContent stores a blob in the content store and returns its CID.
// Producers upload here first, then register the returned pointer.
func (h *Handlers) PutContent(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims.Role != types.RoleProducer && claims.Role != types.RoleProvider {
		writeError(w, http.StatusForbidden, types.ErrCodeUnauthorized, "content upload requires a producer or provider role")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "content exceeds the maximum blob size")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "content must not be empty")
		return
	}

	cid, err := h.content.Put(r.Context(), data)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"cid":       cid,
		"data_size": len(data),
	})
}

// GetContent resolves a CID to its bytes. Knowing the CID is the
// capability; CIDs only leave the registry through grant consumption.
func (h *Handlers) GetContent(w http.ResponseWriter, r *http.Request) {
	data, err := h.content.Get(r.Context(), mux.Vars(r)["cid"])
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ProcessPayment settles the caller's payment for a record
func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Producer string `json:"producer"`
		RecordID string `json:"record_id"`
		DataSize uint64 `json:"data_size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	receipt, err := h.payments.ProcessPayment(r.Context(), claims.Address, req.Producer, req.RecordID, req.DataSize, claims.DID)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// VerifyPayment reads the payment-verified flag for a record
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	verified := h.payments.VerifyPayment(r.Context(), mux.Vars(r)["recordID"])
	writeJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

// GetServiceFeeBalance reads the accrued service-fee balance. Admin-only.
func (h *Handlers) GetServiceFeeBalance(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, types.ErrCodeUnauthorized, "service fee balance is admin-only")
		return
	}

	balance := h.payments.GetServiceFeeBalance(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// WithdrawProducerBalance pays out the caller's accrued balance
func (h *Handlers) WithdrawProducerBalance(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}

	receipt, err := h.payments.WithdrawProducerBalance(r.Context(), claims.Address, amount)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// WithdrawServiceFee pays out accrued service fees. Admin-only.
func (h *Handlers) WithdrawServiceFee(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Destination string `json:"destination"`
		Amount      string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "amount must be a decimal integer")
		return
	}

	receipt, err := h.payments.WithdrawServiceFee(r.Context(), claims.DID, req.Destination, amount)
	if err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// SetMinimumWithdraw changes the withdrawal threshold. Admin-only.
func (h *Handlers) SetMinimumWithdraw(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}

	if err := h.payments.SetMinimumWithdrawAmount(r.Context(), claims.DID, amount); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Minimum withdrawal updated"})
}

// ChangeServiceFee changes the service fee split. Admin-only.
func (h *Handlers) ChangeServiceFee(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req struct {
		Bps int64 `json:"bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	if err := h.payments.ChangeServiceFee(r.Context(), claims.DID, req.Bps); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Service fee updated"})
}

// ChangeUnitPrice changes the per-data-unit price. Admin-only.
func (h *Handlers) ChangeUnitPrice(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	amount, ok := h.decodeAmount(w, r)
	if !ok {
		return
	}

	if err := h.payments.ChangeUnitPrice(r.Context(), claims.DID, amount); err != nil {
		h.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unit price updated"})
}

// decodeAmount reads an {"amount": "<decimal>"} body
func (h *Handlers) decodeAmount(w http.ResponseWriter, r *http.Request) (*big.Int, bool) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return nil, false
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "amount must be a decimal integer")
		return nil, false
	}
	return amount, true
}

// writeRegistryError maps error kinds to HTTP status codes
func (h *Handlers) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	registryErr, ok := err.(*types.RegistryError)
	if !ok {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Unclassified error")
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch registryErr.Type {
	case types.ErrorTypeValidation:
		status = http.StatusBadRequest
	case types.ErrorTypeAuthorization:
		status = http.StatusForbidden
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	case types.ErrorTypeConflict:
		status = http.StatusConflict
	case types.ErrorTypePrecondition:
		status = http.StatusPreconditionFailed
	case types.ErrorTypeExternal:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	writeError(w, status, registryErr.Code, registryErr.Message)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response envelope
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
