package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vaultpay/billpay-service/internal/app"
	"github.com/vaultpay/billpay-service/internal/domain"
	"github.com/vaultpay/billpay-service/internal/store"
	"github.com/vaultpay/billpay-service/pkg/billerclient"
)

func TestWriteFlowErrorStatusMapping(t *testing.T) {
	h := NewBillPayHandlers(nil)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown category", app.ErrUnknownCategory, http.StatusBadRequest},
		{"missing plan", app.ErrMissingPlan, http.StatusBadRequest},
		{"invalid amount", app.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid idempotency key", app.ErrInvalidIdempotencyKey, http.StatusBadRequest},
		{"duplicate idempotency key", store.ErrDuplicateIdempotencyKey, http.StatusConflict},
		{"verification rejected", fmt.Errorf("%w: wrong pin", app.ErrVerificationRejected), http.StatusUnauthorized},
		{"pending expired", fmt.Errorf("%w: gone", app.ErrPendingExpired), http.StatusGone},
		{"flow not found", app.ErrFlowNotFound, http.StatusNotFound},
		{"beneficiary not found", app.ErrBeneficiaryNotFound, http.StatusNotFound},
		{"flow cancelled", app.ErrFlowCancelled, http.StatusConflict},
		{"flow in progress", app.ErrFlowInProgress, http.StatusConflict},
		{"outcome unknown", app.ErrOutcomeUnknown, http.StatusAccepted},
		{"insufficient balance", &billerclient.APIError{StatusCode: 402, Code: billerclient.CodeInsufficientBalance}, http.StatusPaymentRequired},
		{"rate limited", &billerclient.APIError{StatusCode: 429, Code: billerclient.CodeRateLimited}, http.StatusTooManyRequests},
		{"duplicate request", &billerclient.APIError{StatusCode: 409, Code: billerclient.CodeDuplicateRequest}, http.StatusConflict},
		{"invalid provider", &billerclient.APIError{StatusCode: 400, Code: billerclient.CodeInvalidProvider}, http.StatusBadRequest},
		{"unrecognized upstream error", errors.New("connection reset"), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeFlowError(rec, "acct-1", tc.err)
			if rec.Code != tc.want {
				t.Fatalf("want status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestWriteFlowErrorMissingFactorsPayload(t *testing.T) {
	h := NewBillPayHandlers(nil)

	rec := httptest.NewRecorder()
	h.writeFlowError(rec, "acct-1", &app.MissingFactorsError{Factors: []string{domain.FactorPIN, domain.FactorEmailOTP}})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", rec.Code)
	}

	var body struct {
		Error          string   `json:"error"`
		MissingFactors []string `json:"missing_factors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Error != "Please provide your PIN and Email OTP" {
		t.Fatalf("unexpected message: %q", body.Error)
	}
	if len(body.MissingFactors) != 2 {
		t.Fatalf("expected two missing factors, got %v", body.MissingFactors)
	}
}

func TestWriteFlowErrorOutcomeUnknownBody(t *testing.T) {
	h := NewBillPayHandlers(nil)

	rec := httptest.NewRecorder()
	h.writeFlowError(rec, "acct-1", app.ErrOutcomeUnknown)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != domain.SettlementPending {
		t.Fatalf("expected pending status in body, got %v", body)
	}
}

func TestGetAccountIDRoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := GetAccountID(req.Context()); ok {
		t.Fatal("expected no account id on a bare context")
	}
}
