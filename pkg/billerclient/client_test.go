package billerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitiatePaymentSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(InitiatePaymentResponse{TransactionID: 123, Amount: "500", Fee: "200", TotalAmount: "700"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.InitiatePayment(context.Background(), InitiatePaymentRequest{
		CategoryCode:  "airtime",
		ProviderID:    7,
		Currency:      "NGN",
		Amount:        "500",
		AccountNumber: "08012345678",
	}, "token-1")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if gotKey != "token-1" {
		t.Fatalf("expected idempotency key header, got %q", gotKey)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if resp.TransactionID != 123 || resp.TotalAmount != "700" {
		t.Fatalf("response not decoded: %+v", resp)
	}
}

func TestDuplicateIdempotencyKeyReturnsTypedError(t *testing.T) {
	seen := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if seen[key] {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"code": CodeDuplicateRequest, "message": "duplicate request"})
			return
		}
		seen[key] = true
		json.NewEncoder(w).Encode(InitiatePaymentResponse{TransactionID: 123, Amount: "500", Fee: "200", TotalAmount: "700"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	req := InitiatePaymentRequest{CategoryCode: "airtime", ProviderID: 7, Currency: "NGN", Amount: "500", AccountNumber: "08012345678"}

	if _, err := client.InitiatePayment(context.Background(), req, "token-1"); err != nil {
		t.Fatalf("first initiate failed: %v", err)
	}

	_, err := client.InitiatePayment(context.Background(), req, "token-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != CodeDuplicateRequest || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected error: %+v", apiErr)
	}

	// A fresh token is a fresh request.
	if _, err := client.InitiatePayment(context.Background(), req, "token-2"); err != nil {
		t.Fatalf("fresh token initiate failed: %v", err)
	}
}

func TestConfirmPaymentDecodesFactorErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": CodeInvalidPIN, "message": "incorrect pin"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.ConfirmPayment(context.Background(), ConfirmPaymentRequest{TransactionID: 123, PIN: "11111"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != CodeInvalidPIN {
		t.Fatalf("expected invalid_pin code, got %q", apiErr.Code)
	}
	if apiErr.Message != "incorrect pin" {
		t.Fatalf("expected message to carry through, got %q", apiErr.Message)
	}
}

func TestNonJSONErrorBodyStillFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.GetTransaction(context.Background(), 123)
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
