/**
 * @description
 * This file contains the HTTP handlers for the bill-payment API endpoints.
 * Handlers parse incoming requests, call the application service, and map the
 * typed error taxonomy onto HTTP statuses so clients can branch on status
 * codes instead of parsing error strings.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/billerclient: For upstream API error codes.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vaultpay/billpay-service/internal/app"
	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/internal/store"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
)

// BillPayHandlers holds the application service that handlers will use.
type BillPayHandlers struct {
	service *app.Service
}

// NewBillPayHandlers creates a new instance of BillPayHandlers.
func NewBillPayHandlers(service *app.Service) *BillPayHandlers {
	return &BillPayHandlers{service: service}
}

type initiateRequest struct {
	CategoryCode  string `json:"category_code"`
	ProviderID    int64  `json:"provider_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Destination   string `json:"destination"`
	PlanID        string `json:"plan_id,omitempty"`
	BeneficiaryID string `json:"beneficiary_id,omitempty"`
}

// initiateResponse mirrors what the wallet client needs to render the
// confirmation sheet: the server-authoritative amounts and the verification
// factors the user must supply.
type initiateResponse struct {
	TransactionID   string   `json:"transaction_id"`
	Status          string   `json:"status"`
	Amount          string   `json:"amount"`
	Fee             string   `json:"fee"`
	TotalAmount     string   `json:"total_amount"`
	RequiredFactors []string `json:"required_factors"`
}

type confirmRequest struct {
	PIN           string `json:"pin"`
	EmailOTP      string `json:"email_otp,omitempty"`
	TwoFactorCode string `json:"two_fa_code,omitempty"`
}

type settledResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reference     string `json:"reference,omitempty"`
	Fee           string `json:"fee,omitempty"`
	TotalAmount   string `json:"total_amount,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type beneficiaryRequest struct {
	DisplayName       string `json:"display_name"`
	Destination       string `json:"destination"`
	ProviderReference string `json:"provider_reference,omitempty"`
	CategoryCode      string `json:"category_code"`
}

func buildSettledResponse(settled *domain.SettledTransaction) settledResponse {
	return settledResponse{
		TransactionID: settled.ID,
		Status:        settled.Status,
		Reference:     settled.Reference,
		Fee:           settled.Fee,
		TotalAmount:   settled.TotalAmount,
		FailureReason: settled.FailureReason,
	}
}

// InitiateHandler starts a new bill-payment flow.
func (h *BillPayHandlers) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pending, err := h.service.InitiateBillPayment(r.Context(), accountID, app.InitiateInput{
		CategoryCode:   req.CategoryCode,
		ProviderID:     req.ProviderID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Destination:    req.Destination,
		PlanID:         req.PlanID,
		BeneficiaryID:  req.BeneficiaryID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}

	policy := h.service.FetchPolicy(r.Context())
	h.writeJSON(w, http.StatusCreated, initiateResponse{
		TransactionID:   pending.ID,
		Status:          domain.SettlementPending,
		Amount:          pending.Amount,
		Fee:             pending.Fee,
		TotalAmount:     pending.TotalAmount,
		RequiredFactors: policy.RequiredFactors(),
	})
}

// ConfirmHandler submits the verification factors for a pending transaction.
func (h *BillPayHandlers) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	transactionID := chi.URLParam(r, "transactionID")

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settled, err := h.service.ConfirmBillPayment(r.Context(), accountID, transactionID, domain.VerificationBundle{
		PIN:           strings.TrimSpace(req.PIN),
		EmailOTP:      strings.TrimSpace(req.EmailOTP),
		TwoFactorCode: strings.TrimSpace(req.TwoFactorCode),
	})
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildSettledResponse(settled))
}

// CancelHandler abandons a pending flow.
func (h *BillPayHandlers) CancelHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	if err := h.service.CancelBillPayment(r.Context(), accountID, transactionID); err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// GetTransactionHandler resolves the current status of a transaction,
// reconciling against the biller when the outcome is still unknown.
func (h *BillPayHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	settled, err := h.service.GetTransaction(r.Context(), accountID, transactionID)
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildSettledResponse(settled))
}

// ListProvidersHandler returns the billers for a category.
func (h *BillPayHandlers) ListProvidersHandler(w http.ResponseWriter, r *http.Request) {
	categoryCode := r.URL.Query().Get("category")
	providers, err := h.service.ListProviders(r.Context(), categoryCode)
	if err != nil {
		h.writeFlowError(w, "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, providers)
}

// ListPlansHandler returns the plans for a provider.
func (h *BillPayHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	providerID, err := strconv.ParseInt(chi.URLParam(r, "providerID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid provider id")
		return
	}

	plans, err := h.service.ListPlans(r.Context(), providerID)
	if err != nil {
		h.writeFlowError(w, "", err)
		return
	}
	h.writeJSON(w, http.StatusOK, plans)
}

// GetPolicyHandler returns the verification factors currently required.
func (h *BillPayHandlers) GetPolicyHandler(w http.ResponseWriter, r *http.Request) {
	policy := h.service.FetchPolicy(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"require_pin":        policy.RequirePIN,
		"require_email_otp":  policy.RequireEmailOTP,
		"require_two_factor": policy.RequireTwoFactor,
		"required_factors":   policy.RequiredFactors(),
	})
}

// ListBeneficiariesHandler returns the saved beneficiaries, optionally
// filtered by category.
func (h *BillPayHandlers) ListBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	categoryCode := r.URL.Query().Get("category")
	beneficiaries, err := h.service.Directory().List(r.Context(), accountID, categoryCode)
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, beneficiaries)
}

// CreateBeneficiaryHandler saves a new beneficiary.
func (h *BillPayHandlers) CreateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	var req beneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.Directory().Create(r.Context(), accountID, beneficiaryFromRequest(accountID, req))
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// UpdateBeneficiaryHandler replaces the stored fields of a beneficiary.
func (h *BillPayHandlers) UpdateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	beneficiaryID := chi.URLParam(r, "beneficiaryID")

	var req beneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.service.Directory().Update(r.Context(), accountID, beneficiaryID, beneficiaryFromRequest(accountID, req))
	if err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteBeneficiaryHandler removes a beneficiary.
func (h *BillPayHandlers) DeleteBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not identify account from token")
		return
	}

	beneficiaryID := chi.URLParam(r, "beneficiaryID")
	if err := h.service.Directory().Delete(r.Context(), accountID, beneficiaryID); err != nil {
		h.writeFlowError(w, accountID, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func beneficiaryFromRequest(accountID string, req beneficiaryRequest) domain.Beneficiary {
	return domain.Beneficiary{
		AccountID:         accountID,
		DisplayName:       req.DisplayName,
		Destination:       req.Destination,
		ProviderReference: req.ProviderReference,
		CategoryCode:      req.CategoryCode,
	}
}

// writeFlowError maps the typed error taxonomy onto HTTP statuses.
func (h *BillPayHandlers) writeFlowError(w http.ResponseWriter, accountID string, err error) {
	var missing *app.MissingFactorsError
	if errors.As(err, &missing) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":           missing.Error(),
			"missing_factors": missing.Factors,
		})
		return
	}

	switch {
	case errors.Is(err, app.ErrUnknownCategory),
		errors.Is(err, app.ErrMissingProvider),
		errors.Is(err, app.ErrMissingPlan),
		errors.Is(err, app.ErrPlanMismatch),
		errors.Is(err, app.ErrInvalidDestination),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidIdempotencyKey),
		errors.Is(err, app.ErrInvalidBeneficiaryName):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrVerificationRejected):
		h.writeError(w, http.StatusUnauthorized, "Verification failed. Please check your details and try again.")
	case errors.Is(err, app.ErrPendingExpired):
		h.writeError(w, http.StatusGone, "This transaction has expired. Please start again.")
	case errors.Is(err, app.ErrFlowNotFound),
		errors.Is(err, app.ErrNoPendingTransaction),
		errors.Is(err, app.ErrPendingTransactionMismatch),
		errors.Is(err, app.ErrBeneficiaryNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrFlowCancelled),
		errors.Is(err, app.ErrFlowInProgress),
		errors.Is(err, store.ErrDuplicateIdempotencyKey):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrOutcomeUnknown):
		h.writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  domain.SettlementPending,
			"message": "Your payment is still being processed. Check the transaction status shortly.",
		})
	default:
		h.writeUpstreamError(w, accountID, err)
	}
}

// writeUpstreamError maps biller API errors; anything unrecognized is a 502.
func (h *BillPayHandlers) writeUpstreamError(w http.ResponseWriter, accountID string, err error) {
	var apiErr *billerclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case billerclient.CodeInsufficientBalance:
			h.writeError(w, http.StatusPaymentRequired, "Insufficient balance for this payment.")
			return
		case billerclient.CodeRateLimited:
			h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please wait and try again.")
			return
		case billerclient.CodeDuplicateRequest:
			h.writeError(w, http.StatusConflict, "This payment has already been submitted.")
			return
		case billerclient.CodeInvalidProvider:
			h.writeError(w, http.StatusBadRequest, "The selected provider is not available.")
			return
		}
	}

	log.Printf("level=error component=api msg=\"unhandled service error\" account_id=%s err=%v", accountID, err)
	h.writeError(w, http.StatusBadGateway, "The bill-payment service is temporarily unavailable.")
}

// writeJSON is a helper for writing JSON responses.
func (h *BillPayHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BillPayHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
